package port

import (
	"context"

	"medparse/internal/domain"
)

// Rasterizer converts a document into ordered, persisted page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, blob Blob) ([]domain.PageImage, error)
}
