package parser_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medparse/internal/domain"
	"medparse/internal/parser"
	"medparse/internal/port"
	"medparse/mocks"
)

func visionMock(name string, enabled bool) *mocks.MockVisionParser {
	m := new(mocks.MockVisionParser)
	m.On("Descriptor").Return(domain.ParserDescriptor{Name: name, Kind: domain.ParserKindVision, Enabled: enabled})
	return m
}

func TestRegistry_KeepsEnabledBackends(t *testing.T) {
	doc := new(mocks.MockDocumentParser)
	doc.On("Descriptor").Return(domain.ParserDescriptor{Name: "Docling", Kind: domain.ParserKindDocument, Enabled: true})

	reg := parser.NewRegistry(
		[]port.VisionParser{visionMock("OpenAI", true), visionMock("Ollama", false)},
		[]port.DocumentParser{doc},
	)

	v, err := reg.Vision("openai")
	require.NoError(t, err)
	assert.Equal(t, "OpenAI", v.Descriptor().Name)

	_, err = reg.Vision("Ollama")
	assert.True(t, errors.Is(err, domain.ErrInvalidParser))

	_, err = reg.Document("Unknown")
	assert.True(t, errors.Is(err, domain.ErrInvalidParser))

	ds := reg.Descriptors()
	require.Len(t, ds, 2)
	assert.Equal(t, "OpenAI", ds[0].Name)
	assert.Equal(t, "Docling", ds[1].Name)
}

func TestRegistry_DescriptorsSortedWithinKind(t *testing.T) {
	reg := parser.NewRegistry(
		[]port.VisionParser{visionMock("OpenAI", true), visionMock("Ollama", true)},
		nil,
	)

	ds := reg.Descriptors()
	require.Len(t, ds, 2)
	assert.Equal(t, "Ollama", ds[0].Name)
	assert.Equal(t, "OpenAI", ds[1].Name)
}
