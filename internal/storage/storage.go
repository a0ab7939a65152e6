// Package storage selects the ObjectStorage backend from configuration.
package storage

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"medparse/internal/config"
	"medparse/internal/port"
	"medparse/internal/storage/local"
	s3storage "medparse/internal/storage/s3"
)

// New returns the configured ObjectStorage: "local" writes under the
// deployment upload directory, "s3" uses AWS S3 or a compatible endpoint.
func New(ctx context.Context, cfg *config.Config) (port.ObjectStorage, error) {
	switch strings.ToLower(cfg.Storage.Provider) {
	case "", "local":
		log.WithField("root", cfg.Deployment.UploadDir).Info("storage: using local filesystem")
		return local.New(cfg.Deployment.UploadDir)
	case "s3":
		log.WithFields(log.Fields{"bucket": cfg.Storage.Bucket, "region": cfg.S3.Region}).Info("storage: using s3")
		return s3storage.NewS3Client(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}
