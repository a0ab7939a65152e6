// Package pipeline orchestrates a full health-document parse: rasterization,
// OCR, classification, three extraction passes, merge, vital-sign backfill,
// BMI and final validation.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"medparse/internal/classifier"
	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/extractor"
	"medparse/internal/merge"
	"medparse/internal/parser"
	"medparse/internal/port"
	"medparse/internal/schema"
	"medparse/internal/source"
	"medparse/internal/vitals"
)

// Default document parser selection.
const (
	DefaultDocumentParser = "Docling"
	DefaultDocumentModel  = "document-parse"
)

// ParserOptions selects a backend, model and per-request credentials.
type ParserOptions struct {
	Parser string `json:"parser"`
	Model  string `json:"model"`
	APIKey string `json:"api_key,omitempty"`
	APIURL string `json:"api_url,omitempty"`
}

// Request is the input of ParseHealthData. File is a filesystem path or an
// http(s) URL. Nil parser options fall back to the configured defaults.
type Request struct {
	File           string         `json:"file" binding:"required"`
	VisionParser   *ParserOptions `json:"vision_parser,omitempty"`
	DocumentParser *ParserOptions `json:"document_parser,omitempty"`
}

// Service defines the health-data parsing contract.
type Service interface {
	ParseHealthData(ctx context.Context, req Request) (*domain.Result, error)
}

// Deps are the collaborators of the pipeline service.
type Deps struct {
	Registry   *parser.Registry
	Rasterizer port.Rasterizer
	Storage    port.ObjectStorage
	Extractor  *extractor.Extractor
	Classifier classifier.Strategy
}

type service struct {
	cfg  *config.Config
	deps Deps
}

// NewService creates the pipeline service. A nil classifier uses the keyword
// strategy.
func NewService(cfg *config.Config, deps Deps) Service {
	if deps.Classifier == nil {
		deps.Classifier = classifier.NewKeyword()
	}
	return &service{cfg: cfg, deps: deps}
}

// ParseHealthData runs the whole pipeline for one document.
func (s *service) ParseHealthData(ctx context.Context, req Request) (*domain.Result, error) {
	start := time.Now()

	vopts, dopts := s.resolveOptions(req)
	vision, err := s.deps.Registry.Vision(vopts.Parser)
	if err != nil {
		return nil, err
	}
	if vopts.Model == "" {
		return nil, fmt.Errorf("%w: no model for %s", domain.ErrInvalidModel, vopts.Parser)
	}
	document, err := s.deps.Registry.Document(dopts.Parser)
	if err != nil {
		return nil, err
	}

	ref := req.File
	if s.cfg.Deployment.IsLocal() {
		ref = source.MapStaticUpload(ref, s.cfg.Deployment.StaticPath, s.cfg.Deployment.UploadDir)
	}
	src, err := source.Resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := source.ReadAll(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
	}
	blob := source.Bytes{FileName: src.Name(), Data: data}
	docOpts := port.DocumentOptions{Model: dopts.Model, APIKey: dopts.APIKey}

	logger := log.WithFields(log.Fields{"file": blob.Name(), "vision": vopts.Parser, "model": vopts.Model})
	logger.WithField("remote", src.IsRemote()).Info("pipeline.ParseHealthData: starting")

	var (
		pages []domain.PageImage
		ocr   *domain.OCRModel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pages, err = s.deps.Rasterizer.Rasterize(gctx, blob)
		return err
	})
	g.Go(func() error {
		ocr = s.runOCR(gctx, document, blob, docOpts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mode := s.deps.Classifier.Classify(ocr.Text)
	logger = logger.WithField("mode", mode)
	logger.WithField("pages", len(pages)).Info("pipeline.ParseHealthData: classified")

	inputs, err := s.pageInputs(ctx, pages, document, docOpts)
	if err != nil {
		return nil, err
	}

	target := extractor.Target{
		Backend: vision,
		Model:   vopts.Model,
		Options: port.BackendOptions{APIKey: vopts.APIKey, APIURL: vopts.APIURL},
	}
	passes, err := s.runPasses(ctx, mode, inputs, target)
	if err != nil {
		return nil, err
	}

	rec, prov := merge.MergePasses(mode, passes[0], passes[1], passes[2])
	if mode != domain.ModeImagingReport {
		rec = vitals.Enhance(rec, ocr.Text)
		rec = vitals.ApplyBMI(rec)
	}
	prov = alignProvenance(rec, prov)

	rec, err = schema.ValidateRecord(rec)
	if err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{"fields": len(prov), "duration": time.Since(start).String()}).Info("pipeline.ParseHealthData: done")
	return &domain.Result{
		Data:       []domain.ExtractionRecord{rec},
		Pages:      []domain.PageProvenance{prov},
		OCRResults: []domain.OCRModel{*ocr},
		Mode:       mode,
	}, nil
}

func (s *service) resolveOptions(req Request) (ParserOptions, ParserOptions) {
	vopts := ParserOptions{
		Parser: s.cfg.Vision.Parser,
		Model:  s.cfg.Vision.Model,
		APIKey: s.cfg.Vision.APIKey,
		APIURL: s.cfg.Vision.APIURL,
	}
	if req.VisionParser != nil && req.VisionParser.Parser != "" {
		vopts = *req.VisionParser
	}
	dopts := ParserOptions{Parser: DefaultDocumentParser, Model: DefaultDocumentModel}
	if req.DocumentParser != nil && req.DocumentParser.Parser != "" {
		dopts = *req.DocumentParser
	}
	return vopts, dopts
}

func (s *service) runOCR(ctx context.Context, document port.DocumentParser, blob port.Blob, opts port.DocumentOptions) *domain.OCRModel {
	ocr, err := document.OCR(ctx, blob, opts)
	if err != nil || ocr == nil {
		log.WithError(err).WithField("file", blob.Name()).Warn("pipeline.runOCR: continuing without OCR text")
		return domain.EmptyOCRModel()
	}
	return ocr
}

func (s *service) pageBlob(p domain.PageImage) source.Stored {
	return source.Stored{
		Storage: s.deps.Storage,
		Bucket:  s.cfg.Storage.Bucket,
		Key:     p.Key,
		Ref:     p.Ref,
	}
}

// pageInputs loads markdown context and image data for every page. inputs[i]
// belongs to pages[i]. Markdown failures leave the context empty unless the
// request was canceled; image failures are fatal.
func (s *service) pageInputs(ctx context.Context, pages []domain.PageImage, document port.DocumentParser, opts port.DocumentOptions) ([]parser.PageInput, error) {
	inputs := make([]parser.PageInput, len(pages))
	for i, p := range pages {
		inputs[i].Index = p.Index
	}

	text, tctx := errgroup.WithContext(ctx)
	text.SetLimit(limit(s.cfg.Pipeline.TextConcurrency, 2))
	for i, p := range pages {
		text.Go(func() error {
			md, err := document.Parse(tctx, s.pageBlob(p), opts)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.WithError(err).WithField("page", p.Index).Warn("pipeline.pageInputs: markdown unavailable")
				return nil
			}
			inputs[i].Context = md
			return nil
		})
	}

	images, ictx := errgroup.WithContext(ctx)
	images.SetLimit(limit(s.cfg.Pipeline.ImageConcurrency, 4))
	for i, p := range pages {
		images.Go(func() error {
			data, err := source.ReadAll(ictx, s.pageBlob(p))
			if err != nil {
				return fmt.Errorf("%w: loading page %d: %v", domain.ErrStorageFailed, p.Index, err)
			}
			inputs[i].ImageData = dataURL(p.ContentType, data)
			return nil
		})
	}

	textErr := text.Wait()
	if err := images.Wait(); err != nil {
		return nil, err
	}
	if textErr != nil {
		return nil, textErr
	}
	return inputs, nil
}

// runPasses starts the three passes together and returns their merged page
// results in domain.AllPasses order.
func (s *service) runPasses(ctx context.Context, mode domain.Mode, inputs []parser.PageInput, target extractor.Target) ([]domain.PassResult, error) {
	results := make([]domain.PassResult, len(domain.AllPasses))
	g, gctx := errgroup.WithContext(ctx)
	for i, pass := range domain.AllPasses {
		g.Go(func() error {
			tmpl, err := parser.SelectPromptForPass(pass, mode)
			if err != nil {
				return err
			}
			outcomes, err := s.deps.Extractor.ExtractPages(gctx, inputs, tmpl, target)
			if err != nil {
				return fmt.Errorf("%s pass: %w", pass, err)
			}
			records := make([]domain.ExtractionRecord, len(outcomes))
			for j, o := range outcomes {
				records[j] = o.Record
				if o.Degraded {
					log.WithFields(log.Fields{"pass": pass, "page": j}).WithError(o.Cause).Warn("pipeline.runPasses: page degraded")
				}
			}
			pr := merge.MergePages(mode, records)
			pr.Pass = pass
			results[i] = pr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// alignProvenance keeps one provenance entry per field of rec. Fields added
// after the merge get a nil entry.
func alignProvenance(rec domain.ExtractionRecord, prov domain.PageProvenance) domain.PageProvenance {
	out := domain.PageProvenance{}
	add := func(k string) {
		out[k] = prov[k]
	}
	for k, v := range rec.TestResult {
		if v.Present() {
			add(k)
		}
	}
	for k, v := range rec.ClinicalData {
		if domain.NarrativePresent(v) {
			add(k)
		}
	}
	for k, v := range rec.ImagingReport {
		if domain.NarrativePresent(v) {
			add(k)
		}
	}
	return out
}

func dataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func limit(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
