// Package app wires the pipeline and its collaborators from configuration.
package app

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"medparse/internal/config"
	"medparse/internal/extractor"
	"medparse/internal/handler"
	"medparse/internal/parser"
	"medparse/internal/parser/backends"
	"medparse/internal/pipeline"
	"medparse/internal/port"
	"medparse/internal/rasterizer"
	"medparse/internal/source"
	"medparse/internal/storage"
)

// App holds the wired process-wide components.
type App struct {
	Config     *config.Config
	Registry   *parser.Registry
	Storage    port.ObjectStorage
	Rasterizer *rasterizer.Rasterizer
	Pipeline   pipeline.Service
	Sources    source.Policy
}

// New builds every component from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := backends.NewRegistry(cfg)
	raster := rasterizer.NewFromConfig(cfg, store)
	svc := pipeline.NewService(cfg, pipeline.Deps{
		Registry:   registry,
		Rasterizer: raster,
		Storage:    store,
		Extractor:  extractor.New(cfg.Extractor),
	})

	return &App{
		Config:     cfg,
		Registry:   registry,
		Storage:    store,
		Rasterizer: raster,
		Pipeline:   svc,
		Sources:    SourcePolicy(cfg),
	}, nil
}

// SourcePolicy limits API callers to files in the upload directory and to
// the configured remote hosts.
func SourcePolicy(cfg *config.Config) source.Policy {
	p := source.Policy{
		Roots: []string{cfg.Deployment.UploadDir},
		Hosts: cfg.Deployment.SourceHosts,
	}
	if cfg.Deployment.IsLocal() {
		p.StaticPath = cfg.Deployment.StaticPath
	}
	return p
}

// ReadinessChecks returns the dependency checks served on /readyz: the
// pdftoppm binary and the default vision backend and model.
func (a *App) ReadinessChecks() map[string]handler.ReadinessCheck {
	return map[string]handler.ReadinessCheck{
		"pdftoppm": func(context.Context) error {
			_, err := exec.LookPath(a.Config.Rasterizer.PdftoppmPath)
			return err
		},
		"vision": func(ctx context.Context) error {
			backend, err := a.Registry.Vision(a.Config.Vision.Parser)
			if err != nil {
				return err
			}
			timeout := a.Config.Extractor.HealthTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			hctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return backend.HealthCheck(hctx, a.Config.Vision.Model, port.BackendOptions{
				APIKey: a.Config.Vision.APIKey,
				APIURL: a.Config.Vision.APIURL,
			})
		},
	}
}
