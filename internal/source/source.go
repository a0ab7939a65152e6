package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"medparse/internal/domain"
	"medparse/internal/port"
)

// Kind tells local files apart from remote URLs.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
)

func (k Kind) String() string {
	if k == KindRemote {
		return "remote"
	}
	return "local"
}

var defaultClient = &http.Client{Timeout: 5 * time.Minute}

// Source is a document reference resolved once at pipeline entry: either a
// local path or a remote http(s) URL.
type Source struct {
	kind     Kind
	location string
	client   *http.Client
}

// Local returns a source reading from a filesystem path.
func Local(p string) Source {
	return Source{kind: KindLocal, location: p}
}

// Remote returns a source fetched over HTTP.
func Remote(u string) Source {
	return Source{kind: KindRemote, location: u, client: defaultClient}
}

// Resolve classifies ref as Local or Remote.
func Resolve(ref string) (Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Source{}, fmt.Errorf("%w: empty file reference", domain.ErrInvalidSource)
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if _, err := url.ParseRequestURI(ref); err != nil {
			return Source{}, fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
		}
		return Remote(ref), nil
	}
	return Local(ref), nil
}

// MapStaticUpload rewrites a URL served from the local static upload route to
// its file in uploadDir. Other references are returned unchanged.
func MapStaticUpload(ref, staticPath, uploadDir string) string {
	if staticPath == "" || !strings.Contains(ref, staticPath) {
		return ref
	}
	name := path.Base(ref)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return filepath.Join(uploadDir, name)
}

// WithClient returns a copy of a remote source using client for fetches.
func (s Source) WithClient(client *http.Client) Source {
	s.client = client
	return s
}

func (s Source) Kind() Kind { return s.kind }

func (s Source) IsRemote() bool { return s.kind == KindRemote }

func (s Source) Location() string { return s.location }

func (s Source) Name() string {
	if s.kind == KindRemote {
		if u, err := url.Parse(s.location); err == nil {
			return path.Base(u.Path)
		}
	}
	return filepath.Base(s.location)
}

// Open returns a reader over the source bytes.
func (s Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.kind == KindLocal {
		f, err := os.Open(s.location)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", s.location, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	client := s.client
	if client == nil {
		client = defaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.location, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: status %d", s.location, resp.StatusCode)
	}
	return resp.Body, nil
}

// ReadAll reads the whole blob into memory.
func ReadAll(ctx context.Context, blob port.Blob) ([]byte, error) {
	rc, err := blob.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", blob.Name(), err)
	}
	return data, nil
}

// Stored is a blob persisted in object storage. Location is the URL or path
// handed to callers; bytes are read straight from the store.
type Stored struct {
	Storage  port.ObjectStorage
	Bucket   string
	Key      string
	Ref      string
	FileName string
}

func (b Stored) Name() string {
	if b.FileName != "" {
		return b.FileName
	}
	return path.Base(b.Key)
}

func (b Stored) Location() string { return b.Ref }

func (b Stored) Open(ctx context.Context) (io.ReadCloser, error) {
	data, err := b.Storage.Get(ctx, b.Bucket, b.Key)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", b.Key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Bytes is an in-memory blob.
type Bytes struct {
	FileName string
	Data     []byte
}

func (b Bytes) Name() string { return b.FileName }

func (b Bytes) Location() string { return b.FileName }

func (b Bytes) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}
