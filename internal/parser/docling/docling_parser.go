package docling

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/parser"
	"medparse/internal/port"
)

const (
	backendName = "Docling"
	defaultURL  = "http://docling-serve:5001"
	convertPath = "/v1alpha/convert/file"

	// wordConfidence is reported for every word; docling-serve does not
	// return per-span OCR confidence.
	wordConfidence = 0.98
)

// formFields is the conversion option set sent with every request.
var formFields = [][2]string{
	{"ocr_engine", "easyocr"},
	{"pdf_backend", "dlparse_v4"},
	{"from_formats", "pdf"},
	{"from_formats", "docx"},
	{"from_formats", "image"},
	{"force_ocr", "true"},
	{"image_export_mode", "placeholder"},
	{"ocr_lang", "en"},
	{"ocr_confidence_threshold", "0.7"},
	{"ocr_dpi", "300"},
	{"ocr_preprocessing", "true"},
	{"table_mode", "accurate"},
	{"abort_on_error", "false"},
	{"return_as_file", "false"},
	{"do_ocr", "true"},
}

// Parser implements port.DocumentParser against docling-serve. Backend
// failures are logged and turned into empty results.
type Parser struct {
	baseURL string
	client  *http.Client
}

// NewParser creates a docling-serve document parser.
func NewParser(cfg config.DoclingConfig) *Parser {
	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = defaultURL
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 600 * time.Second
	}
	return &Parser{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Parser) Descriptor() domain.ParserDescriptor {
	return domain.ParserDescriptor{
		Name:           backendName,
		Kind:           domain.ParserKindDocument,
		Enabled:        true,
		APIKeyRequired: false,
		APIURLRequired: false,
		DefaultAPIURL:  p.baseURL,
		Concurrency:    1,
	}
}

func (p *Parser) Models(_ context.Context) ([]domain.ParserModel, error) {
	return []domain.ParserModel{{ID: "document-parse", Name: "Document Parse"}}, nil
}

// OCR converts the document to docling JSON and returns its text spans as
// words with top-left-origin bounding boxes.
func (p *Parser) OCR(ctx context.Context, blob port.Blob, _ port.DocumentOptions) (*domain.OCRModel, error) {
	body, err := p.convert(ctx, blob, "json")
	if err != nil {
		log.WithFields(log.Fields{"file": blob.Name(), "error": err}).Error("docling.OCR: conversion failed")
		return domain.EmptyOCRModel(), nil
	}
	content := gjson.GetBytes(body, "document.json_content")
	if !content.IsObject() {
		log.WithField("file", blob.Name()).Error("docling.OCR: response has no document.json_content")
		return domain.EmptyOCRModel(), nil
	}
	return ConvertJSONContent(content), nil
}

// Parse converts the document to markdown.
func (p *Parser) Parse(ctx context.Context, blob port.Blob, _ port.DocumentOptions) (string, error) {
	body, err := p.convert(ctx, blob, "md")
	if err != nil {
		log.WithFields(log.Fields{"file": blob.Name(), "error": err}).Error("docling.Parse: conversion failed")
		return "", nil
	}
	md := gjson.GetBytes(body, "document.md_content")
	if md.String() == "" {
		log.WithField("file", blob.Name()).Error("docling.Parse: response has no document.md_content")
		return "", nil
	}
	return md.String(), nil
}

func (p *Parser) convert(ctx context.Context, blob port.Blob, toFormat string) ([]byte, error) {
	rc, err := blob.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", blob.Name(), err)
	}
	defer func() { _ = rc.Close() }()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range formFields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("writing form field: %w", err)
		}
	}
	if err := w.WriteField("to_formats", toFormat); err != nil {
		return nil, fmt.Errorf("writing form field: %w", err)
	}
	part, err := w.CreateFormFile("files", fileName(blob))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return nil, fmt.Errorf("reading %s: %w", blob.Name(), err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+convertPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling docling-serve: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &parser.StatusError{Backend: "docling", StatusCode: resp.StatusCode, Body: parser.Truncate(string(respBody), 500)}
	}
	return respBody, nil
}

// ConvertJSONContent maps docling's json_content onto the OCR model. Pages are
// ordered by page number; bboxes use a bottom-left origin and are flipped.
func ConvertJSONContent(content gjson.Result) *domain.OCRModel {
	out := domain.EmptyOCRModel()
	pages := content.Get("pages")
	texts := content.Get("texts")
	if !pages.IsObject() || !texts.IsArray() {
		return out
	}

	type pageSize struct {
		num           int
		width, height float64
	}
	var sizes []pageSize
	pages.ForEach(func(k, v gjson.Result) bool {
		num, err := strconv.Atoi(k.String())
		if err != nil {
			return true
		}
		sizes = append(sizes, pageSize{
			num:    num,
			width:  v.Get("size.width").Float(),
			height: v.Get("size.height").Float(),
		})
		return true
	})
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].num < sizes[j].num })

	pageTexts := make([]string, 0, len(sizes))
	for _, ps := range sizes {
		out.Metadata.Pages = append(out.Metadata.Pages, domain.OCRPageSize{Height: ps.height, Width: ps.width, Page: ps.num})

		page := domain.OCRPage{ID: ps.num - 1, Width: ps.width, Height: ps.height, Words: []domain.OCRWord{}}
		var words []string
		texts.ForEach(func(_, t gjson.Result) bool {
			text := t.Get("text").String()
			t.Get("prov").ForEach(func(_, prov gjson.Result) bool {
				if int(prov.Get("page_no").Int()) != ps.num {
					return true
				}
				page.Words = append(page.Words, domain.OCRWord{
					ID:          len(page.Words),
					Text:        text,
					Confidence:  wordConfidence,
					BoundingBox: convertBBox(prov.Get("bbox"), ps.height),
				})
				words = append(words, text)
				return true
			})
			return true
		})
		page.Text = strings.TrimSpace(strings.Join(words, " "))
		out.Pages = append(out.Pages, page)
		pageTexts = append(pageTexts, page.Text)
	}
	out.Text = strings.Join(pageTexts, "\n")
	return out
}

func convertBBox(bbox gjson.Result, pageHeight float64) *domain.BoundingBox {
	if !bbox.IsObject() {
		return nil
	}
	l := math.Round(bbox.Get("l").Float())
	r := math.Round(bbox.Get("r").Float())
	top := math.Round(pageHeight - bbox.Get("t").Float())
	bottom := math.Round(pageHeight - bbox.Get("b").Float())
	return &domain.BoundingBox{Vertices: []domain.Vertex{
		{X: l, Y: top},
		{X: r, Y: top},
		{X: r, Y: bottom},
		{X: l, Y: bottom},
	}}
}

func fileName(blob port.Blob) string {
	if n := blob.Name(); n != "" {
		return n
	}
	return "document.pdf"
}
