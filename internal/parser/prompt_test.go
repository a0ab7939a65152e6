package parser_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medparse/internal/domain"
	"medparse/internal/parser"
)

func TestSelectPrompt_AllCombinations(t *testing.T) {
	modes := []domain.Mode{domain.ModeLabResults, domain.ModeClinicalNotes, domain.ModeImagingReport}
	seen := map[string]bool{}
	for _, mode := range modes {
		for _, pass := range domain.AllPasses {
			tmpl, err := parser.SelectPromptForPass(pass, mode)
			require.NoError(t, err)
			assert.Equal(t, mode, tmpl.Mode)
			assert.Equal(t, pass.ExcludeImage(), tmpl.ExcludeImage)
			assert.Equal(t, pass.ExcludeText(), tmpl.ExcludeText)
			assert.Contains(t, tmpl.Instruction, mode.ContainerKey())
			seen[tmpl.Name] = true
		}
	}
	assert.Len(t, seen, 9)
}

func TestSelectPrompt_BothExcluded(t *testing.T) {
	_, err := parser.SelectPrompt(true, true, domain.ModeLabResults)

	assert.True(t, errors.Is(err, domain.ErrInvalidModalityCombination))
}

func TestSelectPrompt_UnknownMode(t *testing.T) {
	_, err := parser.SelectPrompt(false, false, domain.Mode("billing"))

	assert.Error(t, err)
}

func TestRender_Total(t *testing.T) {
	tmpl, err := parser.SelectPrompt(false, false, domain.ModeLabResults)
	require.NoError(t, err)

	msgs := tmpl.Render(parser.PageInput{Index: 0, Context: "Pulse 88", ImageData: "data:image/png;base64,AAAA"})

	require.Len(t, msgs, 3)
	assert.Equal(t, tmpl.Instruction, msgs[0].Text)
	assert.Equal(t, "This is the parsed text:\nPulse 88", msgs[1].Text)
	assert.Equal(t, "data:image/png;base64,AAAA", msgs[2].ImageDataURL)
}

func TestRender_TextOnlyHasNoImage(t *testing.T) {
	tmpl, err := parser.SelectPrompt(true, false, domain.ModeClinicalNotes)
	require.NoError(t, err)

	msgs := tmpl.Render(parser.PageInput{Context: "Chief complaint: cough", ImageData: "data:image/png;base64,AAAA"})

	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Empty(t, m.ImageDataURL)
	}
}

func TestRender_ImageOnlyHasNoContext(t *testing.T) {
	tmpl, err := parser.SelectPrompt(false, true, domain.ModeImagingReport)
	require.NoError(t, err)

	msgs := tmpl.Render(parser.PageInput{Context: "IMPRESSION: normal", ImageData: "data:image/png;base64,AAAA"})

	require.Len(t, msgs, 2)
	assert.NotContains(t, msgs[0].Text, "IMPRESSION")
	assert.Equal(t, "data:image/png;base64,AAAA", msgs[1].ImageDataURL)
}
