package domain

import (
	"encoding/json"
	"strings"
)

// TestResult is a single extracted measurement.
type TestResult struct {
	Value *string `json:"value"`
	Unit  *string `json:"unit"`
}

// Present reports whether the result carries a usable value.
func (t TestResult) Present() bool {
	return t.Value != nil && strings.TrimSpace(*t.Value) != ""
}

// Clone returns a deep copy so merged records never share pointers with their sources.
func (t TestResult) Clone() TestResult {
	return TestResult{Value: cloneString(t.Value), Unit: cloneString(t.Unit)}
}

// NewTestResult builds a TestResult; an empty unit is stored as null.
func NewTestResult(value, unit string) TestResult {
	tr := TestResult{Value: StringPtr(value)}
	if unit != "" {
		tr.Unit = StringPtr(unit)
	}
	return tr
}

// ExtractionRecord is the structured result for one document. Which maps are
// meaningful depends on Mode:
//   - lab_results: TestResult
//   - clinical_notes: TestResult and ClinicalData (nil serializes as null)
//   - imaging_report: ImagingReport
type ExtractionRecord struct {
	Mode          Mode                  `json:"-"`
	TestResult    map[string]TestResult `json:"test_result,omitempty"`
	ClinicalData  map[string]*string    `json:"clinical_data,omitempty"`
	ImagingReport map[string]*string    `json:"imaging_report,omitempty"`
}

// EmptyRecord returns the empty-but-valid record for a mode.
func EmptyRecord(mode Mode) ExtractionRecord {
	if mode == ModeImagingReport {
		return ExtractionRecord{Mode: mode, ImagingReport: map[string]*string{}}
	}
	return ExtractionRecord{Mode: mode, TestResult: map[string]TestResult{}}
}

// Clone returns a deep copy of the record.
func (r ExtractionRecord) Clone() ExtractionRecord {
	out := ExtractionRecord{Mode: r.Mode}
	if r.TestResult != nil {
		out.TestResult = make(map[string]TestResult, len(r.TestResult))
		for k, v := range r.TestResult {
			out.TestResult[k] = v.Clone()
		}
	}
	out.ClinicalData = cloneNarrative(r.ClinicalData)
	out.ImagingReport = cloneNarrative(r.ImagingReport)
	return out
}

// IsEmpty reports whether the record holds no present values.
func (r ExtractionRecord) IsEmpty() bool {
	for _, v := range r.TestResult {
		if v.Present() {
			return false
		}
	}
	for _, v := range r.ClinicalData {
		if NarrativePresent(v) {
			return false
		}
	}
	for _, v := range r.ImagingReport {
		if NarrativePresent(v) {
			return false
		}
	}
	return true
}

// MarshalJSON writes only the shape family active for the record's mode.
func (r ExtractionRecord) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	switch r.Mode {
	case ModeImagingReport:
		out["imaging_report"] = nonNilNarrative(r.ImagingReport)
	case ModeClinicalNotes:
		out["test_result"] = nonNilResults(r.TestResult)
		if r.ClinicalData == nil {
			out["clinical_data"] = nil
		} else {
			out["clinical_data"] = r.ClinicalData
		}
	default:
		out["test_result"] = nonNilResults(r.TestResult)
	}
	return json.Marshal(out)
}

// UnmarshalJSON infers the mode from the keys present.
func (r *ExtractionRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		TestResult    map[string]TestResult `json:"test_result"`
		ClinicalData  *map[string]*string   `json:"clinical_data"`
		ImagingReport map[string]*string    `json:"imaging_report"`
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ExtractionRecord{TestResult: raw.TestResult, ImagingReport: raw.ImagingReport}
	if raw.ClinicalData != nil {
		r.ClinicalData = *raw.ClinicalData
	}
	switch {
	case keys["imaging_report"] != nil:
		r.Mode = ModeImagingReport
	case keys["clinical_data"] != nil:
		r.Mode = ModeClinicalNotes
	default:
		r.Mode = ModeLabResults
	}
	return nil
}

// PageRef points at a 1-based page of the source document.
type PageRef struct {
	Page int `json:"page"`
}

// PageProvenance maps each field of a merged record to the page it came from.
// A nil entry means the value has no page of origin.
type PageProvenance map[string]*PageRef

// PassResult is the output of one extraction pass over all pages.
type PassResult struct {
	Pass       Pass             `json:"pass"`
	Record     ExtractionRecord `json:"record"`
	Provenance PageProvenance   `json:"provenance"`
}

// PageImage references one rasterized page. Index is 0-based. Ref is the
// path or URL handed to callers; Key locates the image in object storage.
type PageImage struct {
	Index       int    `json:"index"`
	Ref         string `json:"ref"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
}

// ParserDescriptor is the uniform capability descriptor of a parser backend.
type ParserDescriptor struct {
	Name           string     `json:"name"`
	Kind           ParserKind `json:"kind"`
	Enabled        bool       `json:"enabled"`
	APIKeyRequired bool       `json:"api_key_required"`
	APIURLRequired bool       `json:"api_url_required"`
	DefaultAPIURL  string     `json:"default_api_url,omitempty"`
	Concurrency    int        `json:"concurrency"`
}

// ParserModel is one entry of a backend's model catalog.
type ParserModel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Result is the pipeline output. Each slice holds exactly one element per document.
type Result struct {
	Data       []ExtractionRecord `json:"data"`
	Pages      []PageProvenance   `json:"pages"`
	OCRResults []OCRModel         `json:"ocrResults"`
	Mode       Mode               `json:"mode"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// NarrativePresent reports whether a narrative field holds text.
func NarrativePresent(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneNarrative(m map[string]*string) map[string]*string {
	if m == nil {
		return nil
	}
	out := make(map[string]*string, len(m))
	for k, v := range m {
		out[k] = cloneString(v)
	}
	return out
}

func nonNilResults(m map[string]TestResult) map[string]TestResult {
	if m == nil {
		return map[string]TestResult{}
	}
	return m
}

func nonNilNarrative(m map[string]*string) map[string]*string {
	if m == nil {
		return map[string]*string{}
	}
	return m
}
