package port

import (
	"context"

	"medparse/internal/domain"
)

// BackendOptions carries per-request credentials and endpoint overrides.
type BackendOptions struct {
	APIKey string
	APIURL string
}

// Message is one rendered prompt message. ImageDataURL is a data: URL.
type Message struct {
	Role         string
	Text         string
	ImageDataURL string
}

// VisionRequest is a single JSON-constrained inference call.
type VisionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	Options     BackendOptions
}

// VisionParser abstracts a vision-language inference backend.
type VisionParser interface {
	Descriptor() domain.ParserDescriptor
	// Models lists the vision-capable models of the backend catalog.
	Models(ctx context.Context, opts BackendOptions) ([]domain.ParserModel, error)
	// HealthCheck verifies the backend is reachable and serves model.
	HealthCheck(ctx context.Context, model string, opts BackendOptions) error
	// Complete runs inference and returns the raw JSON content of the reply.
	Complete(ctx context.Context, req VisionRequest) ([]byte, error)
}
