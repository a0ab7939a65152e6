// Package export renders parse results as CSV or XLSX for review outside the
// app.
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"medparse/internal/domain"
)

// columns defines the header row shared by both formats.
var columns = []string{
	"Document",
	"Mode",
	"Section",
	"Field",
	"Value",
	"Unit",
	"Page",
}

// Row is one exported field.
type Row struct {
	Document string
	Mode     domain.Mode
	Section  string
	Field    string
	Value    string
	Unit     string
	Page     string
}

func (r Row) cells() []string {
	return []string{r.Document, string(r.Mode), r.Section, r.Field, r.Value, r.Unit, r.Page}
}

// Rows flattens every record of res into field rows ordered by section and
// field name. Page is blank when the value has no page of origin.
func Rows(document string, res *domain.Result) []Row {
	var rows []Row
	for i, rec := range res.Data {
		var prov domain.PageProvenance
		if i < len(res.Pages) {
			prov = res.Pages[i]
		}
		base := Row{Document: document, Mode: res.Mode}

		for _, k := range sortedKeys(rec.TestResult) {
			tr := rec.TestResult[k]
			if !tr.Present() {
				continue
			}
			r := base
			r.Section, r.Field, r.Value, r.Unit, r.Page = "test_result", k, deref(tr.Value), deref(tr.Unit), page(prov, k)
			rows = append(rows, r)
		}
		rows = append(rows, narrativeRows(base, "clinical_data", rec.ClinicalData, prov)...)
		rows = append(rows, narrativeRows(base, "imaging_report", rec.ImagingReport, prov)...)
	}
	return rows
}

func narrativeRows(base Row, section string, m map[string]*string, prov domain.PageProvenance) []Row {
	var rows []Row
	for _, k := range sortedKeys(m) {
		if !domain.NarrativePresent(m[k]) {
			continue
		}
		r := base
		r.Section, r.Field, r.Value, r.Page = section, k, *m[k], page(prov, k)
		rows = append(rows, r)
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func page(prov domain.PageProvenance, field string) string {
	if ref := prov[field]; ref != nil {
		return strconv.Itoa(ref.Page)
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a document name for use in a file name or
// Content-Disposition header.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "document"
	}
	return s
}

// BuildFilename returns {sanitized_name}_{YYYY-MM-DD}.{ext}.
func BuildFilename(name, ext string) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(name), time.Now().Format("2006-01-02"), ext)
}
