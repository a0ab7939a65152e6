package port

import (
	"context"
	"io"
)

// Blob is a readable document or page image. Stages receive blobs instead of
// raw paths or URLs so they never branch on where the bytes live.
type Blob interface {
	// Name is a short display name, usually the file name.
	Name() string
	// Location is the path or URL the blob was resolved from.
	Location() string
	Open(ctx context.Context) (io.ReadCloser, error)
}
