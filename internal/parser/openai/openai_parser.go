package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/parser"
	"medparse/internal/port"
)

const (
	backendName = "OpenAI"
	apiURL      = "https://api.openai.com/v1"
)

// visionModelPrefixes lists the model families that accept image input.
var visionModelPrefixes = []string{"gpt-4o", "gpt-4.1", "gpt-4-turbo", "gpt-5", "o1", "o3", "o4"}

// Parser implements port.VisionParser using the OpenAI Chat Completions API.
// Any OpenAI-compatible server can be targeted by overriding the base URL.
type Parser struct {
	apiKey      string
	baseURL     string
	concurrency int
	limiter     *rate.Limiter
	client      *http.Client
}

// NewParser creates an OpenAI-compatible vision parser.
func NewParser(cfg config.OpenAIConfig, concurrency int) *Parser {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = apiURL
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = concurrency
	}
	return &Parser{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, burst),
		client:      &http.Client{Timeout: timeout},
	}
}

func (p *Parser) Descriptor() domain.ParserDescriptor {
	return domain.ParserDescriptor{
		Name:           backendName,
		Kind:           domain.ParserKindVision,
		Enabled:        true,
		APIKeyRequired: true,
		APIURLRequired: false,
		DefaultAPIURL:  p.baseURL,
		Concurrency:    p.concurrency,
	}
}

func (p *Parser) Models(ctx context.Context, opts port.BackendOptions) ([]domain.ParserModel, error) {
	ids, err := p.listModels(ctx, opts)
	if err != nil {
		return nil, err
	}
	var models []domain.ParserModel
	for _, id := range ids {
		if isVisionModel(id) {
			models = append(models, domain.ParserModel{ID: id, Name: id})
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

func (p *Parser) HealthCheck(ctx context.Context, model string, opts port.BackendOptions) error {
	base := p.url(opts)
	ids, err := p.listModels(ctx, opts)
	if err != nil {
		return parser.Unavailable(backendName, base, err)
	}
	for _, id := range ids {
		if id == model {
			return nil
		}
	}
	return parser.ModelMissing(backendName, base, model)
}

func (p *Parser) Complete(ctx context.Context, req port.VisionRequest) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	reqBody := map[string]interface{}{
		"model":       req.Model,
		"temperature": req.Temperature,
		"messages":    buildMessages(req.Messages),
		"response_format": map[string]interface{}{
			"type": "json_object",
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(req.Options)+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.authorize(httpReq, req.Options)

	respBody, err := p.do(httpReq)
	if err != nil {
		return nil, parser.Transport(backendName, p.url(req.Options), err)
	}
	return parseResponse(respBody)
}

func (p *Parser) listModels(ctx context.Context, opts port.BackendOptions) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(opts)+"/models", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	p.authorize(req, opts)

	body, err := p.do(req)
	if err != nil {
		return nil, err
	}
	var ids []string
	gjson.GetBytes(body, "data.#.id").ForEach(func(_, v gjson.Result) bool {
		ids = append(ids, v.String())
		return true
	})
	return ids, nil
}

func (p *Parser) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling openai API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &parser.StatusError{Backend: "openai", StatusCode: resp.StatusCode, Body: parser.Truncate(string(respBody), 500)}
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parser.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, parser.NewRateLimitError("openai", statusErr, retryAfter)
		}
		return nil, statusErr
	}
	return respBody, nil
}

func (p *Parser) url(opts port.BackendOptions) string {
	if opts.APIURL != "" {
		return strings.TrimRight(opts.APIURL, "/")
	}
	return p.baseURL
}

func (p *Parser) authorize(req *http.Request, opts port.BackendOptions) {
	key := opts.APIKey
	if key == "" {
		key = p.apiKey
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

// buildMessages folds consecutive user messages into one multi-part message,
// the shape the API expects for mixed text and image input.
func buildMessages(msgs []port.Message) []map[string]interface{} {
	var out []map[string]interface{}
	var blocks []map[string]interface{}
	flush := func() {
		if len(blocks) > 0 {
			out = append(out, map[string]interface{}{"role": "user", "content": blocks})
			blocks = nil
		}
	}
	for _, m := range msgs {
		if m.Role != "" && m.Role != "user" {
			flush()
			out = append(out, map[string]interface{}{"role": m.Role, "content": m.Text})
			continue
		}
		if m.Text != "" {
			blocks = append(blocks, map[string]interface{}{
				"type": "text",
				"text": m.Text,
			})
		}
		if m.ImageDataURL != "" {
			blocks = append(blocks, map[string]interface{}{
				"type": "image_url",
				"image_url": map[string]interface{}{
					"url": m.ImageDataURL,
				},
			})
		}
	}
	flush()
	return out
}

// apiResponse models the OpenAI Chat Completions API response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseResponse(body []byte) ([]byte, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling response: %v", domain.ErrMalformedOutput, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from API: no choices", domain.ErrMalformedOutput)
	}

	if resp.Choices[0].FinishReason == "length" {
		return nil, fmt.Errorf("%w: output truncated (finish_reason: length)", domain.ErrMalformedOutput)
	}

	return []byte(resp.Choices[0].Message.Content), nil
}

func isVisionModel(id string) bool {
	for _, prefix := range visionModelPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}
