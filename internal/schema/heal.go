package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"medparse/internal/domain"
)

// containerAliases lists the wrong container keys models commonly emit.
var containerAliases = map[string][]string{
	"test_result":    {"test_results", "testResults", "results", "testResult"},
	"clinical_data":  {"clinicalData", "clinical"},
	"imaging_report": {"imagingReport", "imaging", "report", "radiology_report"},
}

// Report describes what Heal changed.
type Report struct {
	RenamedContainer string
	Wrapped          bool
	RenamedFields    []string
	Dropped          []string
}

// Changed reports whether Heal altered the payload in any way.
func (r Report) Changed() bool {
	return r.RenamedContainer != "" || r.Wrapped || len(r.RenamedFields) > 0 || len(r.Dropped) > 0
}

type entry struct {
	key   string
	value gjson.Result
}

// Heal repairs structurally-close model output so it can pass Validate:
// wrong container keys are renamed, a bare field map is wrapped under the
// expected key, field names are snake_cased and aliased, scalar test values
// become {value, unit} objects and keys outside the closed sets are dropped.
func Heal(mode domain.Mode, raw []byte) ([]byte, Report, error) {
	var rep Report

	payload := extractObject(raw)
	if payload == nil {
		return nil, rep, fmt.Errorf("%w: %s", domain.ErrMalformedOutput, truncate(string(raw), 200))
	}
	root := gjson.ParseBytes(payload)

	expected := mode.ContainerKey()
	used := map[string]bool{}
	container, name := findContainer(root, expected)
	if name != "" {
		used[name] = true
		if name != expected {
			rep.RenamedContainer = name
		}
	}

	var narrative gjson.Result
	if mode == domain.ModeClinicalNotes {
		var nname string
		narrative, nname = findContainer(root, "clinical_data")
		if nname != "" {
			used[nname] = true
		}
	}

	var testEntries, narrativeEntries []entry
	switch {
	case container.Exists():
		testEntries = objectEntries(container)
		if narrative.Exists() {
			narrativeEntries = objectEntries(narrative)
		}
	case mode == domain.ModeClinicalNotes && narrative.Exists():
		narrativeEntries = objectEntries(narrative)
	default:
		rep.Wrapped = true
		for _, e := range objectEntries(root) {
			if mode == domain.ModeClinicalNotes && domain.IsClinicalField(snakeCase(e.key)) {
				narrativeEntries = append(narrativeEntries, e)
				continue
			}
			testEntries = append(testEntries, e)
		}
	}

	if !rep.Wrapped {
		root.ForEach(func(k, _ gjson.Result) bool {
			if !used[k.String()] {
				rep.Dropped = append(rep.Dropped, k.String())
			}
			return true
		})
	}

	out := []byte(`{}`)
	var err error
	switch mode {
	case domain.ModeImagingReport:
		out, err = sjson.SetRawBytes(out, "imaging_report", buildNarrative("imaging_report", testEntries, domain.IsImagingField, &rep))
	case domain.ModeClinicalNotes:
		out, err = sjson.SetRawBytes(out, "test_result", buildTests(testEntries, &rep))
		if err == nil {
			clinical := []byte("null")
			if len(narrativeEntries) > 0 || (narrative.Exists() && narrative.IsObject()) {
				clinical = buildNarrative("clinical_data", narrativeEntries, domain.IsClinicalField, &rep)
			}
			out, err = sjson.SetRawBytes(out, "clinical_data", clinical)
		}
	default:
		out, err = sjson.SetRawBytes(out, "test_result", buildTests(testEntries, &rep))
	}
	if err != nil {
		return nil, rep, fmt.Errorf("%w: rebuilding payload: %v", domain.ErrMalformedOutput, err)
	}
	return out, rep, nil
}

func findContainer(root gjson.Result, key string) (gjson.Result, string) {
	if r := root.Get(gjson.Escape(key)); r.Exists() {
		return r, key
	}
	for _, alias := range containerAliases[key] {
		if r := root.Get(gjson.Escape(alias)); r.Exists() {
			return r, alias
		}
	}
	return gjson.Result{}, ""
}

// objectEntries returns the members of an object, or converts a list of
// {"name": ..., "value": ..., "unit": ...} rows into entries.
func objectEntries(r gjson.Result) []entry {
	var out []entry
	switch {
	case r.IsObject():
		r.ForEach(func(k, v gjson.Result) bool {
			out = append(out, entry{key: k.String(), value: v})
			return true
		})
	case r.IsArray():
		r.ForEach(func(_, row gjson.Result) bool {
			if !row.IsObject() {
				return true
			}
			name := firstString(row, "name", "test", "test_name", "field")
			if name != "" {
				out = append(out, entry{key: name, value: row})
			}
			return true
		})
	}
	return out
}

func buildTests(entries []entry, rep *Report) []byte {
	obj := []byte(`{}`)
	seen := map[string]bool{}
	for _, e := range entries {
		key := snakeCase(e.key)
		if canonical, ok := domain.TestFieldAliases[key]; ok {
			key = canonical
		}
		if key != e.key {
			rep.RenamedFields = append(rep.RenamedFields, e.key+"->"+key)
		}
		if !domain.IsTestField(key) {
			rep.Dropped = append(rep.Dropped, "test_result."+e.key)
			continue
		}
		if seen[key] {
			continue
		}
		tr, ok := coerceTestResult(e.value)
		if !ok {
			rep.Dropped = append(rep.Dropped, "test_result."+e.key)
			continue
		}
		b, err := json.Marshal(tr)
		if err != nil {
			continue
		}
		next, err := sjson.SetRawBytes(obj, key, b)
		if err != nil {
			continue
		}
		obj = next
		seen[key] = true
	}
	return obj
}

func buildNarrative(container string, entries []entry, allowed func(string) bool, rep *Report) []byte {
	obj := []byte(`{}`)
	seen := map[string]bool{}
	for _, e := range entries {
		key := snakeCase(e.key)
		if key != e.key {
			rep.RenamedFields = append(rep.RenamedFields, e.key+"->"+key)
		}
		if !allowed(key) {
			rep.Dropped = append(rep.Dropped, container+"."+e.key)
			continue
		}
		if seen[key] {
			continue
		}
		b, err := json.Marshal(scalarString(e.value))
		if err != nil {
			continue
		}
		next, err := sjson.SetRawBytes(obj, key, b)
		if err != nil {
			continue
		}
		obj = next
		seen[key] = true
	}
	return obj
}

func coerceTestResult(v gjson.Result) (domain.TestResult, bool) {
	switch {
	case v.IsArray():
		return domain.TestResult{}, false
	case v.IsObject():
		value := v.Get("value")
		if !value.Exists() {
			value = v.Get("result")
		}
		return domain.TestResult{Value: scalarString(value), Unit: scalarString(v.Get("unit"))}, true
	default:
		return domain.TestResult{Value: scalarString(v)}, true
	}
}

// scalarString renders a JSON value as an optional string. Arrays of scalars
// are joined, objects are kept as raw JSON text.
func scalarString(r gjson.Result) *string {
	var s string
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.String:
		s = strings.TrimSpace(r.String())
	case gjson.Number, gjson.True, gjson.False:
		s = r.Raw
	case gjson.JSON:
		if r.IsArray() {
			var parts []string
			r.ForEach(func(_, item gjson.Result) bool {
				if p := scalarString(item); p != nil {
					parts = append(parts, *p)
				}
				return true
			})
			s = strings.Join(parts, "; ")
		} else {
			s = r.Raw
		}
	}
	if s == "" {
		return nil
	}
	return &s
}

func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// snakeCase converts camelCase, Title Case and punctuated keys to snake_case.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))
	lastUnderscore := true
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && !lastUnderscore && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// extractObject returns the outermost JSON object in raw, tolerating code
// fences and prose around it.
func extractObject(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if gjson.ValidBytes(trimmed) && gjson.ParseBytes(trimmed).IsObject() {
		return trimmed
	}
	start := bytes.IndexByte(trimmed, '{')
	end := bytes.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return nil
	}
	candidate := trimmed[start : end+1]
	if !gjson.ValidBytes(candidate) {
		return nil
	}
	return candidate
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
