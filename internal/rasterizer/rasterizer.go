// Package rasterizer turns uploaded documents into per-page images held in
// object storage.
package rasterizer

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint for object keys, not security
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	log "github.com/sirupsen/logrus"

	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/port"
	"medparse/internal/source"
)

// ConvertFunc renders every page of the PDF at pdfPath to PNG files named
// <outPrefix>-<n>.png.
type ConvertFunc func(ctx context.Context, pdfPath, outPrefix string) error

// Options configures a Rasterizer.
type Options struct {
	Bucket        string
	KeyPrefix     string
	PresignExpiry int64
	// Local makes page refs filesystem paths instead of presigned URLs.
	Local bool
}

// Rasterizer implements port.Rasterizer.
type Rasterizer struct {
	cfg     config.RasterizerConfig
	opts    Options
	storage port.ObjectStorage
	convert ConvertFunc
}

// New creates a Rasterizer that renders PDFs with pdftoppm.
func New(cfg config.RasterizerConfig, storage port.ObjectStorage, opts Options) *Rasterizer {
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PdftoppmPath == "" {
		cfg.PdftoppmPath = "pdftoppm"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "uploads"
	}
	r := &Rasterizer{cfg: cfg, opts: opts, storage: storage}
	r.convert = r.pdftoppm
	return r
}

// NewFromConfig wires a Rasterizer from the application config.
func NewFromConfig(cfg *config.Config, storage port.ObjectStorage) *Rasterizer {
	return New(cfg.Rasterizer, storage, Options{
		Bucket:        cfg.Storage.Bucket,
		KeyPrefix:     cfg.Storage.KeyPrefix,
		PresignExpiry: cfg.Storage.PresignExpiry,
		Local:         cfg.Deployment.IsLocal(),
	})
}

// WithConverter replaces the PDF renderer.
func (r *Rasterizer) WithConverter(fn ConvertFunc) *Rasterizer {
	r.convert = fn
	return r
}

type rendered struct {
	data        []byte
	contentType string
	ext         string
}

// Rasterize sniffs the blob type from its content, renders PDF pages or
// passes a single image through, and persists every page. The returned
// slice is ordered by page and PageImage.Index is 0-based.
func (r *Rasterizer) Rasterize(ctx context.Context, blob port.Blob) ([]domain.PageImage, error) {
	data, err := source.ReadAll(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
	}

	contentType := sniff(data)
	fileType, ok := domain.AllowedContentTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedFileType, blob.Name(), contentType)
	}

	var pages []rendered
	if fileType == domain.FileTypePDF {
		pages, err = r.renderPDF(ctx, data)
		if err != nil {
			return nil, err
		}
	} else {
		pages = []rendered{{data: data, contentType: contentType, ext: string(fileType)}}
	}

	sum := md5.Sum(data) //nolint:gosec
	hash := hex.EncodeToString(sum[:])

	images := make([]domain.PageImage, 0, len(pages))
	for i, p := range pages {
		key := path.Join(r.opts.KeyPrefix, fmt.Sprintf("%s_%d.%s", hash, i, p.ext))
		ref, err := r.persist(ctx, key, p)
		if err != nil {
			return nil, err
		}
		images = append(images, domain.PageImage{Index: i, Ref: ref, Key: key, ContentType: p.contentType})
	}

	log.WithFields(log.Fields{"file": blob.Name(), "type": fileType, "pages": len(images)}).Info("rasterizer.Rasterize: done")
	return images, nil
}

func (r *Rasterizer) persist(ctx context.Context, key string, p rendered) (string, error) {
	out, err := r.storage.Put(ctx, port.PageObject{
		Bucket:      r.opts.Bucket,
		Key:         key,
		ContentType: p.contentType,
		Data:        p.data,
	})
	if err != nil {
		return "", fmt.Errorf("%w: uploading %s: %v", domain.ErrStorageFailed, key, err)
	}
	if r.opts.Local {
		return out.Location, nil
	}
	url, err := r.storage.PresignGet(ctx, r.opts.Bucket, key, r.opts.PresignExpiry)
	if err != nil {
		return "", fmt.Errorf("%w: presigning %s: %v", domain.ErrStorageFailed, key, err)
	}
	return url, nil
}

func (r *Rasterizer) renderPDF(ctx context.Context, data []byte) ([]rendered, error) {
	dir, err := os.MkdirTemp(r.cfg.TempDir, "medparse-raster-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp dir: %v", domain.ErrRasterizationFailed, err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("%w: writing temp file: %v", domain.ErrRasterizationFailed, err)
	}

	outPrefix := filepath.Join(dir, "page")
	if err := r.convert(ctx, pdfPath, outPrefix); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRasterizationFailed, err)
	}

	files, err := pageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no pages rendered", domain.ErrRasterizationFailed)
	}
	if want, ok := pageCount(data); ok && want != len(files) {
		return nil, fmt.Errorf("%w: pdf has %d pages, rendered %d", domain.ErrRasterizationFailed, want, len(files))
	}

	pages := make([]rendered, 0, len(files))
	for _, f := range files {
		img, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrRasterizationFailed, filepath.Base(f), err)
		}
		pages = append(pages, rendered{data: img, contentType: "image/png", ext: "png"})
	}
	return pages, nil
}

func (r *Rasterizer) pdftoppm(ctx context.Context, pdfPath, outPrefix string) error {
	cmd := exec.CommandContext(ctx, r.cfg.PdftoppmPath, "-png", "-r", strconv.Itoa(r.cfg.DPI), pdfPath, outPrefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pdftoppm: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// pageFiles lists page-<n>.png in dir ordered by n. pdftoppm zero-pads n to
// the width of the page count, so names alone do not sort.
func pageFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRasterizationFailed, err)
	}
	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".png")
		n, err := strconv.Atoi(strings.TrimPrefix(base, "page-"))
		if err != nil {
			continue
		}
		files = append(files, numbered{n: n, path: m})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// pageCount reads the page count from the PDF structure. ok is false when the
// document cannot be parsed, in which case the rendered count is trusted.
func pageCount(data []byte) (n int, ok bool) {
	defer func() {
		if recover() != nil {
			n, ok = 0, false
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.WithError(err).Warn("rasterizer.pageCount: could not parse pdf")
		return 0, false
	}
	return reader.NumPage(), true
}

func sniff(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
