package port

import (
	"context"

	"medparse/internal/domain"
)

// DocumentOptions selects the model and credentials for a document parser call.
type DocumentOptions struct {
	Model  string
	APIKey string
}

// DocumentParser abstracts OCR and document-to-markdown conversion services.
// Implementations never fail on backend errors: they log and return an empty
// OCR model or empty markdown instead.
type DocumentParser interface {
	Descriptor() domain.ParserDescriptor
	Models(ctx context.Context) ([]domain.ParserModel, error)
	OCR(ctx context.Context, blob Blob, opts DocumentOptions) (*domain.OCRModel, error)
	Parse(ctx context.Context, blob Blob, opts DocumentOptions) (string, error)
}
