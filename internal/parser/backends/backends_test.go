package backends_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medparse/internal/config"
	"medparse/internal/domain"
	"medparse/internal/parser/backends"
)

func testConfig(env domain.DeploymentEnv) *config.Config {
	cfg := &config.Config{}
	cfg.Deployment.Environment = env
	cfg.Ollama.URL = "http://ollama:11434"
	cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	cfg.Docling.URL = "http://docling-serve:5001"
	cfg.Extractor.LocalConcurrency = 1
	cfg.Extractor.RemoteConcurrency = 4
	return cfg
}

func TestNewRegistry_Local(t *testing.T) {
	reg := backends.NewRegistry(testConfig(domain.DeploymentLocal))

	names := []string{}
	for _, d := range reg.Descriptors() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Ollama", "OpenAI", "Docling"}, names)

	v, err := reg.Vision("ollama")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Descriptor().Concurrency)
}

func TestNewRegistry_CloudDisablesOllama(t *testing.T) {
	reg := backends.NewRegistry(testConfig(domain.DeploymentCloud))

	_, err := reg.Vision("Ollama")
	assert.True(t, errors.Is(err, domain.ErrInvalidParser))

	v, err := reg.Vision("OpenAI")
	require.NoError(t, err)
	assert.Equal(t, 4, v.Descriptor().Concurrency)

	_, err = reg.Document("docling")
	assert.NoError(t, err)
}
