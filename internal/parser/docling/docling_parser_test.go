package docling_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/parser/docling"
	"medparse/internal/port"
	"medparse/internal/source"
)

const jsonContent = `{
  "pages": {
    "2": {"size": {"width": 600, "height": 800}},
    "1": {"size": {"width": 612, "height": 792}}
  },
  "texts": [
    {"text": "Hemoglobin 13.5 g/dL", "prov": [{"page_no": 1, "bbox": {"l": 72.4, "t": 700.2, "r": 300.6, "b": 688.0}}]},
    {"text": "Pulse: 88", "prov": [{"page_no": 2, "bbox": {"l": 10, "t": 790, "r": 90, "b": 780}}]},
    {"text": "Glucose 98", "prov": [{"page_no": 1, "bbox": {"l": 72, "t": 650, "r": 200, "b": 640}}]}
  ]
}`

func pdfBlob() source.Bytes {
	return source.Bytes{FileName: "report.pdf", Data: []byte("%PDF-1.4 fake")}
}

func newDoclingServer(t *testing.T, wantFormat string, body string, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1alpha/convert/file", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, []string{wantFormat}, r.MultipartForm.Value["to_formats"])
		assert.Equal(t, "easyocr", r.FormValue("ocr_engine"))
		assert.Equal(t, "dlparse_v4", r.FormValue("pdf_backend"))
		assert.Equal(t, "true", r.FormValue("force_ocr"))
		assert.Equal(t, "accurate", r.FormValue("table_mode"))
		assert.Equal(t, "300", r.FormValue("ocr_dpi"))

		f, hdr, err := r.FormFile("files")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Equal(t, "report.pdf", hdr.Filename)
			assert.Equal(t, "%PDF-1.4 fake", string(data))
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestDoclingParser_OCR(t *testing.T) {
	server := newDoclingServer(t, "json", `{"document":{"json_content":`+jsonContent+`}}`, http.StatusOK)
	defer server.Close()

	p := docling.NewParser(config.DoclingConfig{URL: server.URL})
	ocr, err := p.OCR(context.Background(), pdfBlob(), port.DocumentOptions{})

	require.NoError(t, err)
	require.Len(t, ocr.Pages, 2)
	assert.Equal(t, []domain.OCRPageSize{{Height: 792, Width: 612, Page: 1}, {Height: 800, Width: 600, Page: 2}}, ocr.Metadata.Pages)

	first := ocr.Pages[0]
	assert.Equal(t, 0, first.ID)
	assert.Equal(t, "Hemoglobin 13.5 g/dL Glucose 98", first.Text)
	require.Len(t, first.Words, 2)
	assert.Equal(t, 0.98, first.Words[0].Confidence)
	assert.Equal(t, 1, first.Words[1].ID)
	require.NotNil(t, first.Words[0].BoundingBox)
	assert.Equal(t, []domain.Vertex{{X: 72, Y: 92}, {X: 301, Y: 92}, {X: 301, Y: 104}, {X: 72, Y: 104}}, first.Words[0].BoundingBox.Vertices)

	assert.Equal(t, "Pulse: 88", ocr.Pages[1].Text)
	assert.Equal(t, "Hemoglobin 13.5 g/dL Glucose 98\nPulse: 88", ocr.Text)
}

func TestDoclingParser_OCR_ServerErrorReturnsEmpty(t *testing.T) {
	server := newDoclingServer(t, "json", `boom`, http.StatusInternalServerError)
	defer server.Close()

	ocr, err := docling.NewParser(config.DoclingConfig{URL: server.URL}).OCR(context.Background(), pdfBlob(), port.DocumentOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.EmptyOCRModel(), ocr)
}

func TestDoclingParser_OCR_MissingContentReturnsEmpty(t *testing.T) {
	server := newDoclingServer(t, "json", `{"document":{}}`, http.StatusOK)
	defer server.Close()

	ocr, err := docling.NewParser(config.DoclingConfig{URL: server.URL}).OCR(context.Background(), pdfBlob(), port.DocumentOptions{})

	require.NoError(t, err)
	assert.Empty(t, ocr.Pages)
	assert.Equal(t, "", ocr.Text)
}

func TestDoclingParser_OCR_UnreachableReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	ocr, err := docling.NewParser(config.DoclingConfig{URL: url}).OCR(context.Background(), pdfBlob(), port.DocumentOptions{})

	require.NoError(t, err)
	assert.NotNil(t, ocr)
	assert.Empty(t, ocr.Pages)
}

func TestDoclingParser_Parse(t *testing.T) {
	server := newDoclingServer(t, "md", `{"document":{"md_content":"| Test | Value |\n|---|---|\n| Pulse | 88 |"}}`, http.StatusOK)
	defer server.Close()

	md, err := docling.NewParser(config.DoclingConfig{URL: server.URL}).Parse(context.Background(), pdfBlob(), port.DocumentOptions{})

	require.NoError(t, err)
	assert.Contains(t, md, "| Pulse | 88 |")
}

func TestDoclingParser_Parse_FailureReturnsEmpty(t *testing.T) {
	server := newDoclingServer(t, "md", `{"detail":"bad"}`, http.StatusUnprocessableEntity)
	defer server.Close()

	md, err := docling.NewParser(config.DoclingConfig{URL: server.URL}).Parse(context.Background(), pdfBlob(), port.DocumentOptions{})

	require.NoError(t, err)
	assert.Equal(t, "", md)
}

func TestDoclingParser_DescriptorAndModels(t *testing.T) {
	p := docling.NewParser(config.DoclingConfig{})

	d := p.Descriptor()
	assert.Equal(t, "Docling", d.Name)
	assert.Equal(t, domain.ParserKindDocument, d.Kind)
	assert.Equal(t, "http://docling-serve:5001", d.DefaultAPIURL)

	models, err := p.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ParserModel{{ID: "document-parse", Name: "Document Parse"}}, models)
}

func TestConvertJSONContent_NullBBox(t *testing.T) {
	content := gjson.Parse(`{"pages":{"1":{"size":{"width":10,"height":10}}},"texts":[{"text":"x","prov":[{"page_no":1}]}]}`)

	ocr := docling.ConvertJSONContent(content)

	require.Len(t, ocr.Pages, 1)
	require.Len(t, ocr.Pages[0].Words, 1)
	assert.Nil(t, ocr.Pages[0].Words[0].BoundingBox)
}
