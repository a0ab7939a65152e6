// Package backends builds the parser registry from configuration.
package backends

import (
	"medparse/internal/config"
	"medparse/internal/parser"
	"medparse/internal/parser/docling"
	"medparse/internal/parser/ollama"
	"medparse/internal/parser/openai"
	"medparse/internal/port"
)

// NewRegistry constructs every known backend and keeps those enabled for the
// configured deployment.
func NewRegistry(cfg *config.Config) *parser.Registry {
	vision := []port.VisionParser{
		ollama.NewParser(cfg.Ollama, cfg.Deployment.Environment, cfg.Extractor.LocalConcurrency),
		openai.NewParser(cfg.OpenAI, cfg.Extractor.RemoteConcurrency),
	}
	document := []port.DocumentParser{
		docling.NewParser(cfg.Docling),
	}
	return parser.NewRegistry(vision, document)
}
