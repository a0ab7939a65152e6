package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/parser"
	"medparse/internal/port"
)

const (
	backendName = "Ollama"
	defaultURL  = "http://ollama:11434"

	// showConcurrency bounds the /api/show calls made while listing models.
	showConcurrency = 4
)

// Parser implements port.VisionParser against a local Ollama server.
type Parser struct {
	baseURL     string
	enabled     bool
	concurrency int
	client      *http.Client
}

// NewParser creates an Ollama vision parser. The backend is only enabled in
// local deployments.
func NewParser(cfg config.OllamaConfig, env domain.DeploymentEnv, concurrency int) *Parser {
	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = defaultURL
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Parser{
		baseURL:     baseURL,
		enabled:     env == domain.DeploymentLocal,
		concurrency: concurrency,
		client:      &http.Client{},
	}
}

func (p *Parser) Descriptor() domain.ParserDescriptor {
	return domain.ParserDescriptor{
		Name:           backendName,
		Kind:           domain.ParserKindVision,
		Enabled:        p.enabled,
		APIKeyRequired: false,
		APIURLRequired: true,
		DefaultAPIURL:  p.baseURL,
		Concurrency:    p.concurrency,
	}
}

type tagModel struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// Models lists the installed models that report the vision capability.
func (p *Parser) Models(ctx context.Context, opts port.BackendOptions) ([]domain.ParserModel, error) {
	base := p.url(opts)
	tags, err := p.tags(ctx, base)
	if err != nil {
		return nil, err
	}

	vision := make([]bool, len(tags))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(showConcurrency)
	for i, m := range tags {
		g.Go(func() error {
			ok, err := p.hasVision(gctx, base, m.Model)
			if err != nil {
				log.WithFields(log.Fields{"model": m.Model, "error": err}).Warn("ollama.Models: capability check failed")
				return nil
			}
			vision[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	models := []domain.ParserModel{}
	for i, m := range tags {
		if vision[i] {
			models = append(models, domain.ParserModel{ID: m.Model, Name: m.Name})
		}
	}
	return models, nil
}

// HealthCheck verifies the server answers /api/tags and has model pulled.
func (p *Parser) HealthCheck(ctx context.Context, model string, opts port.BackendOptions) error {
	base := p.url(opts)
	tags, err := p.tags(ctx, base)
	if err != nil {
		return parser.Unavailable(backendName, base, err)
	}
	for _, m := range tags {
		if m.Name == model || m.Name == model+":latest" {
			return nil
		}
	}
	return parser.ModelMissing(backendName, base, model)
}

func (p *Parser) Complete(ctx context.Context, req port.VisionRequest) ([]byte, error) {
	reqBody := map[string]interface{}{
		"model":    req.Model,
		"messages": buildMessages(req.Messages),
		"format":   "json",
		"stream":   false,
		"options": map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": -1,
		},
	}

	body, err := p.post(ctx, p.url(req.Options)+"/api/chat", reqBody)
	if err != nil {
		return nil, parser.Transport(backendName, p.url(req.Options), err)
	}

	content := gjson.GetBytes(body, "message.content")
	if !content.Exists() {
		return nil, fmt.Errorf("%w: ollama response has no message content", domain.ErrMalformedOutput)
	}
	return []byte(content.String()), nil
}

func (p *Parser) tags(ctx context.Context, base string) ([]tagModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/tags", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	body, err := p.do(req)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Models []tagModel `json:"models"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	return resp.Models, nil
}

func (p *Parser) hasVision(ctx context.Context, base, model string) (bool, error) {
	body, err := p.post(ctx, base+"/api/show", map[string]string{"model": model})
	if err != nil {
		return false, err
	}
	for _, c := range gjson.GetBytes(body, "capabilities").Array() {
		if c.String() == "vision" {
			return true, nil
		}
	}
	return false, nil
}

func (p *Parser) post(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req)
}

func (p *Parser) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &parser.StatusError{Backend: "ollama", StatusCode: resp.StatusCode, Body: parser.Truncate(string(respBody), 500)}
	}
	return respBody, nil
}

func (p *Parser) url(opts port.BackendOptions) string {
	if opts.APIURL != "" {
		return strings.TrimRight(opts.APIURL, "/")
	}
	return p.baseURL
}

// buildMessages folds consecutive user messages into one chat message. Ollama
// takes images as raw base64 without the data URL prefix.
func buildMessages(msgs []port.Message) []map[string]interface{} {
	var out []map[string]interface{}
	var texts, images []string
	flush := func() {
		if len(texts) == 0 && len(images) == 0 {
			return
		}
		m := map[string]interface{}{"role": "user", "content": strings.Join(texts, "\n\n")}
		if len(images) > 0 {
			m["images"] = images
		}
		out = append(out, m)
		texts, images = nil, nil
	}
	for _, m := range msgs {
		if m.Role != "" && m.Role != "user" {
			flush()
			out = append(out, map[string]interface{}{"role": m.Role, "content": m.Text})
			continue
		}
		if m.Text != "" {
			texts = append(texts, m.Text)
		}
		if m.ImageDataURL != "" {
			images = append(images, stripDataURL(m.ImageDataURL))
		}
	}
	flush()
	return out
}

func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}
