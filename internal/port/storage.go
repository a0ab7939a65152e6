package port

import "context"

// PageObject is a rendered page image or source document headed for the
// blob store. Local stores ignore Bucket.
type PageObject struct {
	Bucket      string
	Key         string
	ContentType string
	Data        []byte
}

// StoredObject describes where a PageObject was written. Location is a
// filesystem path for local stores and the object URL for S3.
type StoredObject struct {
	Location string
	ETag     string
	Size     int64
}

// ObjectStorage keeps page images between rasterization and extraction.
type ObjectStorage interface {
	Put(ctx context.Context, obj PageObject) (*StoredObject, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
	// PresignGet returns a reference a vision backend can read the object
	// through for expirySeconds.
	PresignGet(ctx context.Context, bucket, key string, expirySeconds int64) (string, error)
}
