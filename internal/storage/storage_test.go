package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medparse/internal/config"
	"medparse/internal/storage"
	"medparse/internal/storage/local"
)

func TestNew_Local(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Provider = "local"
	cfg.Deployment.UploadDir = t.TempDir()

	s, err := storage.New(context.Background(), cfg)

	require.NoError(t, err)
	assert.IsType(t, &local.Storage{}, s)
}

func TestNew_Unknown(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Provider = "ftp"

	_, err := storage.New(context.Background(), cfg)

	assert.Error(t, err)
}
