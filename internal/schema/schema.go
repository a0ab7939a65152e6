package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"medparse/internal/domain"
)

var (
	compileOnce sync.Once
	compiled    map[domain.Mode]*jsonschema.Schema
	compileErr  error
)

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func testResultSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": nullableString(),
			"unit":  nullableString(),
		},
		"required":             []string{"value", "unit"},
		"additionalProperties": false,
	}
}

func closedMap(names []string, valueSchema map[string]any, nullable bool) map[string]any {
	typ := any("object")
	if nullable {
		typ = []string{"object", "null"}
	}
	return map[string]any{
		"type":                 typ,
		"propertyNames":        map[string]any{"enum": names},
		"additionalProperties": valueSchema,
	}
}

// Document returns the JSON Schema for a mode as a plain map.
func Document(mode domain.Mode) map[string]any {
	props := map[string]any{}
	var required []string
	switch mode {
	case domain.ModeImagingReport:
		props["imaging_report"] = closedMap(domain.ImagingFields, nullableString(), false)
		required = []string{"imaging_report"}
	case domain.ModeClinicalNotes:
		props["test_result"] = closedMap(domain.TestFields, testResultSchema(), false)
		props["clinical_data"] = closedMap(domain.ClinicalFields, nullableString(), true)
		required = []string{"test_result"}
	default:
		props["test_result"] = closedMap(domain.TestFields, testResultSchema(), false)
		required = []string{"test_result"}
	}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func compileAll() {
	compiled = map[domain.Mode]*jsonschema.Schema{}
	for _, mode := range []domain.Mode{domain.ModeLabResults, domain.ModeClinicalNotes, domain.ModeImagingReport} {
		b, err := json.Marshal(Document(mode))
		if err != nil {
			compileErr = fmt.Errorf("marshal schema %s: %w", mode, err)
			return
		}
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		url := string(mode) + ".json"
		if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema %s: %w", mode, err)
			return
		}
		s, err := compiler.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("compile schema %s: %w", mode, err)
			return
		}
		compiled[mode] = s
	}
}

// Validate checks candidate against the closed schema for mode and decodes it.
// Unknown keys and bare scalar test values are rejected, not dropped.
func Validate(mode domain.Mode, candidate []byte) (domain.ExtractionRecord, error) {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return domain.ExtractionRecord{}, compileErr
	}
	s, ok := compiled[mode]
	if !ok {
		return domain.ExtractionRecord{}, fmt.Errorf("%w: unknown mode %q", domain.ErrSchemaViolation, mode)
	}

	var v any
	if err := json.Unmarshal(candidate, &v); err != nil {
		return domain.ExtractionRecord{}, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	if err := s.Validate(v); err != nil {
		return domain.ExtractionRecord{}, fmt.Errorf("%w: %v", domain.ErrSchemaViolation, err)
	}

	var rec domain.ExtractionRecord
	if err := json.Unmarshal(candidate, &rec); err != nil {
		return domain.ExtractionRecord{}, fmt.Errorf("%w: %v", domain.ErrSchemaViolation, err)
	}
	rec.Mode = mode
	if mode != domain.ModeImagingReport && rec.TestResult == nil {
		rec.TestResult = map[string]domain.TestResult{}
	}
	return rec, nil
}

// ValidateRecord re-validates an in-memory record.
func ValidateRecord(rec domain.ExtractionRecord) (domain.ExtractionRecord, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return domain.ExtractionRecord{}, fmt.Errorf("marshal record: %w", err)
	}
	return Validate(rec.Mode, b)
}
