package rasterizer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/port"
	"medparse/internal/rasterizer"
	"medparse/internal/source"
	"medparse/internal/storage/local"
	"medparse/mocks"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// buildPDF writes a minimal document with n empty pages and a valid xref table.
func buildPDF(n int) []byte {
	var buf bytes.Buffer
	offsets := []int{}
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n))
	for i := 0; i < n; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// fakeConverter writes pages zero-padded the way pdftoppm does.
func fakeConverter(pages int, calls *int) rasterizer.ConvertFunc {
	return func(_ context.Context, pdfPath, outPrefix string) error {
		*calls++
		if _, err := os.Stat(pdfPath); err != nil {
			return err
		}
		width := len(fmt.Sprint(pages))
		for i := 1; i <= pages; i++ {
			name := fmt.Sprintf("%s-%0*d.png", outPrefix, width, i)
			if err := os.WriteFile(name, append(append([]byte{}, pngHeader...), byte(i)), 0o600); err != nil {
				return err
			}
		}
		return nil
	}
}

func newLocal(t *testing.T) (*rasterizer.Rasterizer, string) {
	t.Helper()
	root := t.TempDir()
	store, err := local.New(root)
	require.NoError(t, err)
	r := rasterizer.New(config.RasterizerConfig{DPI: 150, TempDir: t.TempDir()}, store, rasterizer.Options{
		KeyPrefix: "uploads",
		Local:     true,
	})
	return r, root
}

func TestRasterize_ImagePassThrough(t *testing.T) {
	r, root := newLocal(t)
	calls := 0
	r.WithConverter(fakeConverter(1, &calls))

	data := append(append([]byte{}, pngHeader...), []byte("scan")...)
	pages, err := r.Rasterize(context.Background(), source.Bytes{FileName: "scan.png", Data: data})

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, pages[0].Index)
	assert.Equal(t, "image/png", pages[0].ContentType)
	assert.Regexp(t, `^uploads/[0-9a-f]{32}_0\.png$`, pages[0].Key)
	assert.Equal(t, filepath.Join(root, pages[0].Key), pages[0].Ref)

	stored, err := os.ReadFile(pages[0].Ref)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestRasterize_JPEGKeepsExtension(t *testing.T) {
	r, _ := newLocal(t)

	pages, err := r.Rasterize(context.Background(), source.Bytes{FileName: "photo", Data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")})

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "image/jpeg", pages[0].ContentType)
	assert.Regexp(t, `_0\.jpg$`, pages[0].Key)
}

func TestRasterize_UnsupportedType(t *testing.T) {
	r, _ := newLocal(t)

	_, err := r.Rasterize(context.Background(), source.Bytes{FileName: "notes.txt", Data: []byte("plain text, not a document")})

	assert.True(t, errors.Is(err, domain.ErrUnsupportedFileType))
}

func TestRasterize_PDFPagesInOrder(t *testing.T) {
	r, _ := newLocal(t)
	calls := 0
	r.WithConverter(fakeConverter(11, &calls))

	pages, err := r.Rasterize(context.Background(), source.Bytes{FileName: "report.pdf", Data: buildPDF(11)})

	require.NoError(t, err)
	require.Len(t, pages, 11)
	assert.Equal(t, 1, calls)
	for i, p := range pages {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, "image/png", p.ContentType)
		stored, err := os.ReadFile(p.Ref)
		require.NoError(t, err)
		assert.Equal(t, byte(i+1), stored[len(stored)-1], "page %d out of order", i)
	}
}

func TestRasterize_PageCountMismatch(t *testing.T) {
	r, _ := newLocal(t)
	calls := 0
	r.WithConverter(fakeConverter(2, &calls))

	_, err := r.Rasterize(context.Background(), source.Bytes{FileName: "report.pdf", Data: buildPDF(3)})

	assert.True(t, errors.Is(err, domain.ErrRasterizationFailed))
}

func TestRasterize_ConverterFailure(t *testing.T) {
	r, _ := newLocal(t)
	r.WithConverter(func(context.Context, string, string) error {
		return errors.New("pdftoppm: exit status 1: Syntax Error")
	})

	_, err := r.Rasterize(context.Background(), source.Bytes{FileName: "broken.pdf", Data: buildPDF(1)})

	assert.True(t, errors.Is(err, domain.ErrRasterizationFailed))
	assert.Contains(t, err.Error(), "Syntax Error")
}

func TestRasterize_NoPagesRendered(t *testing.T) {
	r, _ := newLocal(t)
	calls := 0
	r.WithConverter(fakeConverter(0, &calls))

	_, err := r.Rasterize(context.Background(), source.Bytes{FileName: "empty.pdf", Data: buildPDF(1)})

	assert.True(t, errors.Is(err, domain.ErrRasterizationFailed))
}

func TestRasterize_RemotePresignsRefs(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	r := rasterizer.New(config.RasterizerConfig{TempDir: t.TempDir()}, store, rasterizer.Options{
		Bucket:        "pages",
		KeyPrefix:     "uploads",
		PresignExpiry: 600,
	})
	calls := 0
	r.WithConverter(fakeConverter(2, &calls))

	store.On("Put", mock.Anything, mock.MatchedBy(func(in port.PageObject) bool {
		return in.Bucket == "pages" && in.ContentType == "image/png" && len(in.Data) > 0
	})).Return(&port.StoredObject{Location: "s3://pages/x"}, nil).Twice()
	store.On("PresignGet", mock.Anything, "pages", mock.AnythingOfType("string"), int64(600)).
		Return("https://pages.example.com/signed", nil).Twice()

	pages, err := r.Rasterize(context.Background(), source.Bytes{FileName: "report.pdf", Data: buildPDF(2)})

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://pages.example.com/signed", pages[1].Ref)
	assert.Regexp(t, `_1\.png$`, pages[1].Key)
	store.AssertExpectations(t)
}

func TestRasterize_StorageFailure(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	r := rasterizer.New(config.RasterizerConfig{TempDir: t.TempDir()}, store, rasterizer.Options{Local: true})

	store.On("Put", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	_, err := r.Rasterize(context.Background(), source.Bytes{FileName: "scan.png", Data: pngHeader})

	assert.True(t, errors.Is(err, domain.ErrStorageFailed))
}
