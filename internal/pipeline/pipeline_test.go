package pipeline_test

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/extractor"
	"medparse/internal/parser"
	"medparse/internal/pipeline"
	"medparse/internal/port"
	"medparse/internal/storage/local"
	"medparse/mocks"
)

const labOCR = `Complete Blood Count
Glucose 98 mg/dL
Hemoglobin 13.5 g/dL
Pulse: 88
Height: 184 cm
Weight: 115.6 kg`

type fixture struct {
	cfg    *config.Config
	vision *mocks.MockVisionParser
	doc    *mocks.MockDocumentParser
	raster *mocks.MockRasterizer
	store  *local.Storage
	pages  []domain.PageImage
	images [][]byte
	dir    string
}

func newFixture(t *testing.T, pageCount int) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := local.New(filepath.Join(dir, "store"))
	require.NoError(t, err)

	f := &fixture{
		cfg: &config.Config{
			Deployment: config.DeploymentConfig{
				Environment: domain.DeploymentLocal,
				UploadDir:   filepath.Join(dir, "uploads"),
				StaticPath:  "/api/static/uploads/",
			},
			Vision:   config.VisionConfig{Parser: "Fake", Model: "vision-1"},
			Pipeline: config.PipelineConfig{TextConcurrency: 2, ImageConcurrency: 4},
		},
		vision: new(mocks.MockVisionParser),
		doc:    new(mocks.MockDocumentParser),
		raster: new(mocks.MockRasterizer),
		store:  store,
		dir:    dir,
	}
	require.NoError(t, os.MkdirAll(f.cfg.Deployment.UploadDir, 0o755))

	for i := 0; i < pageCount; i++ {
		img := []byte("\x89PNG\r\n\x1a\npage-" + string(rune('1'+i)))
		key := "uploads/abc_" + string(rune('0'+i)) + ".png"
		out, err := store.Put(context.Background(), port.PageObject{Key: key, Data: img, ContentType: "image/png"})
		require.NoError(t, err)
		f.images = append(f.images, img)
		f.pages = append(f.pages, domain.PageImage{Index: i, Ref: out.Location, Key: key, ContentType: "image/png"})
	}

	f.vision.On("Descriptor").Return(domain.ParserDescriptor{Name: "Fake", Kind: domain.ParserKindVision, Enabled: true, Concurrency: 1})
	f.doc.On("Descriptor").Return(domain.ParserDescriptor{Name: "Docling", Kind: domain.ParserKindDocument, Enabled: true, Concurrency: 1})
	for i, p := range f.pages {
		f.doc.On("Parse", mock.Anything, mock.MatchedBy(func(b port.Blob) bool { return b.Location() == p.Ref }), mock.Anything).
			Return(markdown(i), nil)
	}
	return f
}

func (f *fixture) service() pipeline.Service {
	reg := parser.NewRegistry([]port.VisionParser{f.vision}, []port.DocumentParser{f.doc})
	return pipeline.NewService(f.cfg, pipeline.Deps{
		Registry:   reg,
		Rasterizer: f.raster,
		Storage:    f.store,
		Extractor:  extractor.New(config.ExtractorConfig{MaxAttempts: 1}),
	})
}

func (f *fixture) writeUpload(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(f.cfg.Deployment.UploadDir, name)
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4 fake"), 0o600))
	return p
}

func markdown(i int) string {
	return "markdown of page " + string(rune('1'+i))
}

// reply matches a completion request by pass and 0-based page.
func (f *fixture) reply(pass domain.Pass, page int, body string) {
	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString(f.images[page])
	f.vision.On("Complete", mock.Anything, mock.MatchedBy(func(req port.VisionRequest) bool {
		var hasText, hasImage, onPage bool
		for _, m := range req.Messages[1:] {
			if m.ImageDataURL != "" {
				hasImage = true
				onPage = onPage || m.ImageDataURL == image
			} else {
				hasText = true
				onPage = onPage || strings.Contains(m.Text, markdown(page))
			}
		}
		switch pass {
		case domain.PassTextOnly:
			return onPage && hasText && !hasImage
		case domain.PassImageOnly:
			return onPage && hasImage && !hasText
		default:
			return onPage && hasText && hasImage
		}
	})).Return([]byte(body), nil)
}

func TestParseHealthData_LabDocument(t *testing.T) {
	f := newFixture(t, 2)
	file := f.writeUpload(t, "report.pdf")

	f.raster.On("Rasterize", mock.Anything, mock.MatchedBy(func(b port.Blob) bool { return b.Name() == "report.pdf" })).
		Return(f.pages, nil)
	f.doc.On("OCR", mock.Anything, mock.Anything, port.DocumentOptions{Model: "document-parse"}).
		Return(&domain.OCRModel{Text: labOCR}, nil)
	f.vision.On("HealthCheck", mock.Anything, "vision-1", port.BackendOptions{}).Return(nil)

	f.reply(domain.PassTotal, 0, `{"test_result":{"glucose":{"value":"98","unit":"mg/dL"}}}`)
	f.reply(domain.PassTotal, 1, `{"test_result":{"hemoglobin":{"value":"13.5","unit":"g/dL"}}}`)
	f.reply(domain.PassTextOnly, 0, `{"test_result":{"hemoglobin":{"value":"12.0","unit":"g/dL"},"total_cholesterol":{"value":"180","unit":"mg/dL"}}}`)
	f.reply(domain.PassTextOnly, 1, `{"test_result":{}}`)
	f.reply(domain.PassImageOnly, 0, `{"test_result":{}}`)
	f.reply(domain.PassImageOnly, 1, `{"test_result":{"glucose":{"value":"99","unit":"mg/dL"}}}`)

	res, err := f.service().ParseHealthData(context.Background(), pipeline.Request{File: file})

	require.NoError(t, err)
	assert.Equal(t, domain.ModeLabResults, res.Mode)
	require.Len(t, res.Data, 1)
	require.Len(t, res.Pages, 1)
	require.Len(t, res.OCRResults, 1)

	rec, prov := res.Data[0], res.Pages[0]
	assert.Equal(t, "98", *rec.TestResult["glucose"].Value)
	assert.Equal(t, "13.5", *rec.TestResult["hemoglobin"].Value)
	assert.Equal(t, "180", *rec.TestResult["total_cholesterol"].Value)
	assert.Equal(t, 1, prov["glucose"].Page)
	assert.Equal(t, 2, prov["hemoglobin"].Page)
	assert.Equal(t, 1, prov["total_cholesterol"].Page)

	assert.Equal(t, "88", *rec.TestResult["pulse"].Value)
	assert.Equal(t, "34.14", *rec.TestResult["bmi"].Value)
	for _, k := range []string{"pulse", "height", "weight", "bmi"} {
		v, ok := prov[k]
		assert.True(t, ok, k)
		assert.Nil(t, v, k)
	}
	assert.Len(t, prov, len(rec.TestResult))
	f.vision.AssertNumberOfCalls(t, "HealthCheck", 3)
	f.vision.AssertNumberOfCalls(t, "Complete", 6)
}

func TestParseHealthData_ImagingFromStaticURL(t *testing.T) {
	f := newFixture(t, 1)
	f.writeUpload(t, "scan.pdf")

	f.raster.On("Rasterize", mock.Anything, mock.MatchedBy(func(b port.Blob) bool { return b.Name() == "scan.pdf" })).
		Return(f.pages, nil)
	f.doc.On("OCR", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.OCRModel{Text: "Radiology report. MRI lumbar spine. Technique: sagittal T1. Impression: no fracture. Height: 184 cm"}, nil)
	f.vision.On("HealthCheck", mock.Anything, "vision-1", mock.Anything).Return(nil)
	f.reply(domain.PassTotal, 0, `{"imaging_report":{"exam_type":"MRI","findings":null}}`)
	f.reply(domain.PassTextOnly, 0, `{"imaging_report":{"findings":"Normal alignment"}}`)
	f.reply(domain.PassImageOnly, 0, `{"imaging_report":{}}`)

	res, err := f.service().ParseHealthData(context.Background(), pipeline.Request{
		File: "http://localhost:8080/api/static/uploads/scan.pdf",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ModeImagingReport, res.Mode)
	rec, prov := res.Data[0], res.Pages[0]
	assert.Nil(t, rec.TestResult)
	assert.Equal(t, "MRI", *rec.ImagingReport["exam_type"])
	assert.Equal(t, "Normal alignment", *rec.ImagingReport["findings"])
	assert.Equal(t, 1, prov["findings"].Page)
	assert.NotContains(t, prov, "height")
}

func TestParseHealthData_OCRFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, 1)
	file := f.writeUpload(t, "report.pdf")

	f.raster.On("Rasterize", mock.Anything, mock.Anything).Return(f.pages, nil)
	f.doc.On("OCR", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("docling down"))
	f.vision.On("HealthCheck", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.vision.On("Complete", mock.Anything, mock.Anything).Return([]byte(`{"test_result":{"sodium":{"value":"140","unit":"mmol/L"}}}`), nil)

	res, err := f.service().ParseHealthData(context.Background(), pipeline.Request{File: file})

	require.NoError(t, err)
	assert.Equal(t, domain.ModeLabResults, res.Mode)
	assert.Equal(t, "", res.OCRResults[0].Text)
	assert.Equal(t, 1, res.Pages[0]["sodium"].Page)
}

func TestParseHealthData_DegradedPassesStillMerge(t *testing.T) {
	f := newFixture(t, 1)
	file := f.writeUpload(t, "report.pdf")

	f.raster.On("Rasterize", mock.Anything, mock.Anything).Return(f.pages, nil)
	f.doc.On("OCR", mock.Anything, mock.Anything, mock.Anything).Return(&domain.OCRModel{Text: "glucose"}, nil)
	f.vision.On("HealthCheck", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.reply(domain.PassTotal, 0, `not json at all`)
	f.reply(domain.PassTextOnly, 0, `{"test_result":{}}`)
	f.reply(domain.PassImageOnly, 0, `{"test_result":{"glucose":{"value":"101","unit":"mg/dL"}}}`)

	res, err := f.service().ParseHealthData(context.Background(), pipeline.Request{File: file})

	require.NoError(t, err)
	assert.Equal(t, "101", *res.Data[0].TestResult["glucose"].Value)
	assert.Equal(t, 1, res.Pages[0]["glucose"].Page)
}

func TestParseHealthData_UnknownVisionParser(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.service().ParseHealthData(context.Background(), pipeline.Request{
		File:         "report.pdf",
		VisionParser: &pipeline.ParserOptions{Parser: "Nope", Model: "x"},
	})

	assert.True(t, errors.Is(err, domain.ErrInvalidParser))
	f.raster.AssertNotCalled(t, "Rasterize", mock.Anything, mock.Anything)
}

func TestParseHealthData_MissingModel(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.service().ParseHealthData(context.Background(), pipeline.Request{
		File:         "report.pdf",
		VisionParser: &pipeline.ParserOptions{Parser: "Fake"},
	})

	assert.True(t, errors.Is(err, domain.ErrInvalidModel))
}

func TestParseHealthData_MissingFile(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.service().ParseHealthData(context.Background(), pipeline.Request{File: filepath.Join(f.dir, "absent.pdf")})

	assert.True(t, errors.Is(err, domain.ErrInvalidSource))
}

func TestParseHealthData_RasterizerErrorIsFatal(t *testing.T) {
	f := newFixture(t, 0)
	file := f.writeUpload(t, "notes.txt")

	f.raster.On("Rasterize", mock.Anything, mock.Anything).Return(nil, domain.ErrUnsupportedFileType)
	f.doc.On("OCR", mock.Anything, mock.Anything, mock.Anything).Return(domain.EmptyOCRModel(), nil)

	_, err := f.service().ParseHealthData(context.Background(), pipeline.Request{File: file})

	assert.True(t, errors.Is(err, domain.ErrUnsupportedFileType))
}

func TestParseHealthData_BackendUnavailable(t *testing.T) {
	f := newFixture(t, 1)
	file := f.writeUpload(t, "report.pdf")

	f.raster.On("Rasterize", mock.Anything, mock.Anything).Return(f.pages, nil)
	f.doc.On("OCR", mock.Anything, mock.Anything, mock.Anything).Return(domain.EmptyOCRModel(), nil)
	f.vision.On("HealthCheck", mock.Anything, mock.Anything, mock.Anything).
		Return(parser.Unavailable("Fake", "http://fake:1234", errors.New("connection refused")))

	_, err := f.service().ParseHealthData(context.Background(), pipeline.Request{File: file})

	assert.True(t, errors.Is(err, domain.ErrBackendUnavailable))
	f.vision.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestParseHealthData_CanceledWhileLoadingMarkdown(t *testing.T) {
	f := newFixture(t, 1)
	file := f.writeUpload(t, "report.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.doc.ExpectedCalls = nil
	f.doc.On("Descriptor").Return(domain.ParserDescriptor{Name: "Docling", Kind: domain.ParserKindDocument, Enabled: true, Concurrency: 1})
	f.doc.On("OCR", mock.Anything, mock.Anything, mock.Anything).Return(domain.EmptyOCRModel(), nil)
	f.doc.On("Parse", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)
	f.raster.On("Rasterize", mock.Anything, mock.Anything).Return(f.pages, nil)

	_, err := f.service().ParseHealthData(ctx, pipeline.Request{File: file})

	assert.True(t, errors.Is(err, context.Canceled))
	f.vision.AssertNotCalled(t, "HealthCheck", mock.Anything, mock.Anything, mock.Anything)
	f.vision.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}
