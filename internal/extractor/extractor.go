// Package extractor runs vision-language inference over document pages and
// turns model output into validated extraction records.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/parser"
	"medparse/internal/port"
	"medparse/internal/schema"
)

// Temperature is used for every inference call.
const Temperature = 0.1

// Target names the backend and model an extraction runs against.
type Target struct {
	Backend port.VisionParser
	Model   string
	Options port.BackendOptions
}

func (t Target) url() string {
	if t.Options.APIURL != "" {
		return t.Options.APIURL
	}
	return t.Backend.Descriptor().DefaultAPIURL
}

// Outcome is the non-fatal result for one page. A Degraded outcome carries
// the empty record for the mode and the last transient error.
type Outcome struct {
	Record   domain.ExtractionRecord
	Degraded bool
	Cause    error
	Attempts int
}

// Extractor runs inference with retries and timeouts. It is safe for
// concurrent use.
type Extractor struct {
	cfg config.ExtractorConfig
}

// New creates an Extractor. Zero settings fall back to the defaults of
// config.Load.
func New(cfg config.ExtractorConfig) *Extractor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 5 * time.Minute
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 10 * time.Second
	}
	return &Extractor{cfg: cfg}
}

// Extract runs the health check and then extracts a single page.
func (e *Extractor) Extract(ctx context.Context, in parser.PageInput, tmpl parser.PromptTemplate, target Target) (Outcome, error) {
	if err := e.healthCheck(ctx, target); err != nil {
		return Outcome{}, err
	}
	return e.extractPage(ctx, in, tmpl, target, log.WithField("page", in.Index))
}

// ExtractPages checks the backend once and extracts every page with bounded
// concurrency. outcomes[i] always belongs to pages[i]. A fatal error on any
// page cancels the rest and is returned.
func (e *Extractor) ExtractPages(ctx context.Context, pages []parser.PageInput, tmpl parser.PromptTemplate, target Target) ([]Outcome, error) {
	if err := e.healthCheck(ctx, target); err != nil {
		return nil, err
	}

	limit := target.Backend.Descriptor().Concurrency
	if limit <= 0 {
		limit = 1
	}
	runID := uuid.NewString()
	logger := log.WithFields(log.Fields{"run": runID, "prompt": tmpl.Name, "model": target.Model})
	logger.WithFields(log.Fields{"pages": len(pages), "concurrency": limit}).Info("extractor.ExtractPages: starting")

	outcomes := make([]Outcome, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, page := range pages {
		g.Go(func() error {
			out, err := e.extractPage(gctx, page, tmpl, target, logger.WithField("page", page.Index))
			if err != nil {
				return fmt.Errorf("page %d: %w", page.Index, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	degraded := 0
	for _, o := range outcomes {
		if o.Degraded {
			degraded++
		}
	}
	logger.WithField("degraded", degraded).Info("extractor.ExtractPages: finished")
	return outcomes, nil
}

func (e *Extractor) healthCheck(ctx context.Context, target Target) error {
	hctx, cancel := context.WithTimeout(ctx, e.cfg.HealthTimeout)
	defer cancel()

	err := target.Backend.HealthCheck(hctx, target.Model, target.Options)
	if err == nil {
		return nil
	}
	var be *parser.BackendError
	if errors.As(err, &be) {
		return err
	}
	return parser.Unavailable(target.Backend.Descriptor().Name, target.url(), err)
}

func (e *Extractor) extractPage(ctx context.Context, in parser.PageInput, tmpl parser.PromptTemplate, target Target, logger *log.Entry) (Outcome, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		rec, err := e.attempt(ctx, in, tmpl, target, logger)
		if err == nil {
			return Outcome{Record: rec, Attempts: attempt}, nil
		}
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		if !parser.IsTransient(err) {
			logger.WithError(err).Error("extractor.extractPage: fatal inference error")
			return Outcome{}, err
		}
		lastErr = err
		logger.WithFields(log.Fields{"attempt": attempt, "error": err}).Warn("extractor.extractPage: attempt failed")

		if attempt < e.cfg.MaxAttempts {
			if err := sleep(ctx, e.delay(attempt, err)); err != nil {
				return Outcome{}, err
			}
		}
	}

	logger.WithError(lastErr).Warn("extractor.extractPage: retries exhausted, returning empty record")
	return Outcome{
		Record:   domain.EmptyRecord(tmpl.Mode),
		Degraded: true,
		Cause:    lastErr,
		Attempts: e.cfg.MaxAttempts,
	}, nil
}

func (e *Extractor) attempt(ctx context.Context, in parser.PageInput, tmpl parser.PromptTemplate, target Target, logger *log.Entry) (domain.ExtractionRecord, error) {
	actx, cancel := context.WithTimeout(ctx, e.cfg.InferenceTimeout)
	defer cancel()

	raw, err := target.Backend.Complete(actx, port.VisionRequest{
		Model:       target.Model,
		Messages:    tmpl.Render(in),
		Temperature: Temperature,
		Options:     target.Options,
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return domain.ExtractionRecord{}, fmt.Errorf("%w after %s: %v", domain.ErrInferenceTimeout, e.cfg.InferenceTimeout, err)
		}
		return domain.ExtractionRecord{}, err
	}

	healed, rep, err := schema.Heal(tmpl.Mode, raw)
	if err != nil {
		return domain.ExtractionRecord{}, err
	}
	if rep.Changed() {
		logger.WithFields(log.Fields{
			"renamed_container": rep.RenamedContainer,
			"wrapped":           rep.Wrapped,
			"renamed_fields":    rep.RenamedFields,
			"dropped":           rep.Dropped,
		}).Info("extractor.attempt: healed model output")
	}
	return schema.Validate(tmpl.Mode, healed)
}

// delay is attempt × backoff, stretched to a backend's Retry-After hint.
func (e *Extractor) delay(attempt int, err error) time.Duration {
	d := time.Duration(attempt) * e.cfg.Backoff
	var rl *parser.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > d {
		d = rl.RetryAfter
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
