// Package vitals backfills vital signs from raw OCR text and computes BMI.
package vitals

import (
	"regexp"
	"strconv"
	"strings"

	"medparse/internal/domain"
)

const (
	lbToKg   = 0.453592
	inchToCm = 2.54
)

// Field keys written by the enhancer.
const (
	Temperature = "body_temperature"
	Pulse       = "pulse"
	BP          = "blood_pressure"
	Systolic    = "systolic_blood_pressure"
	Diastolic   = "diastolic_blood_pressure"
	Oxygen      = "oxygen_saturation"
	Height      = "height"
	Weight      = "weight"
	BMI         = "bmi"
)

// pattern is one regex of a family plus the conversion applied to its match.
type pattern struct {
	re      *regexp.Regexp
	convert func(m []string) (domain.TestResult, bool)
}

// family fills a single field; the first pattern whose value falls inside
// [min, max] wins. A zero range accepts any value.
type family struct {
	field    string
	patterns []pattern
	min, max float64
}

// Plausible adult and paediatric ranges in canonical units.
const (
	MinHeightCm = 50
	MaxHeightCm = 250
	MinWeightKg = 2
	MaxWeightKg = 400
	minTempC    = 25
	maxTempC    = 45
)

var (
	// A unit letter only counts when it stands alone, so "37.2 for two days"
	// keeps its default Celsius.
	temperaturePatterns = []pattern{
		{regexp.MustCompile(`(?i)temperature[:\s]*(\d+\.?\d*)(?:\s*°?\s*([CF])\b)?`), temperature},
		{regexp.MustCompile(`(?i)\btemp\b[.:\s]*(\d+\.?\d*)(?:\s*°?\s*([CF])\b)?`), temperature},
		{regexp.MustCompile(`(?i)tympanic[:\s-]*(\d+\.?\d*)\s*°\s*([CF])\b`), temperature},
		{regexp.MustCompile(`(\d+\.?\d*)\s*°\s*([CFcf])\b`), temperature},
	}

	pulsePatterns = []pattern{
		{regexp.MustCompile(`(?i)pulse[:\s]*(\d+)`), unitOf("bpm")},
		{regexp.MustCompile(`(?i)heart\s*rate[:\s]*(\d+)`), unitOf("bpm")},
		{regexp.MustCompile(`(?i)\bhr\b[:\s]*(\d+)`), unitOf("bpm")},
	}

	bpPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)blood\s*pressure[:\s]*(\d{2,3})\s*/\s*(\d{2,3})`),
		regexp.MustCompile(`(?i)\bbp\b[:\s]*(\d{2,3})\s*/\s*(\d{2,3})`),
		regexp.MustCompile(`(?i)\b(\d{2,3})\s*/\s*(\d{2,3})\s*mm\s*hg`),
	}

	oxygenPatterns = []pattern{
		{regexp.MustCompile(`(?i)oxygen\s*(?:level|saturation)[:\s]*(\d+)\s*%?`), unitOf("%")},
		{regexp.MustCompile(`(?i)o2\s*(?:sat|saturation)[:\s]*(\d+)\s*%?`), unitOf("%")},
		{regexp.MustCompile(`(?i)spo2[:\s]*(\d+)\s*%?`), unitOf("%")},
		{regexp.MustCompile(`(?i)\b(\d+)\s*%\s*(?:oxygen|o2|sat)`), unitOf("%")},
	}

	heightPatterns = []pattern{
		{regexp.MustCompile(`(?i)height[:\s]*(\d+\.?\d*)\s*(?:cm|centimeters?)\b`), unitOf("cm")},
		{regexp.MustCompile(`(?i)height[:\s]*(\d+)\s*(?:ft|feet|')\s*(\d+)?\s*(?:in|inches|")?`), feetInches},
		{regexp.MustCompile(`(?i)height[:\s]*(\d+\.?\d*)\s*(?:in|inches)\b`), inches},
	}

	weightPatterns = []pattern{
		{regexp.MustCompile(`(?i)weight[:\s]*(\d+\.?\d*)\s*(?:kg|kilograms?)\b`), unitOf("kg")},
		{regexp.MustCompile(`(?i)weight[:\s]*(\d+\.?\d*)\s*(?:lbs?|pounds?)\b`), pounds},
		{regexp.MustCompile(`(?i)\b(\d+\.?\d*)\s*kg(?:[^/a-z]|$)`), unitOf("kg")},
		{regexp.MustCompile(`(?i)\b(\d+\.?\d*)\s*lbs?\b`), pounds},
	}

	bpValue = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
)

var families = []family{
	{Temperature, temperaturePatterns, minTempC, maxTempC},
	{Pulse, pulsePatterns, 0, 0},
	{Oxygen, oxygenPatterns, 0, 0},
	{Height, heightPatterns, MinHeightCm, MaxHeightCm},
	{Weight, weightPatterns, MinWeightKg, MaxWeightKg},
}

// Enhance returns a copy of rec with vital signs backfilled from ocrText.
// Present fields are never overwritten, blood pressure is reconciled between
// its combined and split forms and any bmi is removed. Imaging records are
// returned unchanged.
func Enhance(rec domain.ExtractionRecord, ocrText string) domain.ExtractionRecord {
	out := rec.Clone()
	if rec.Mode == domain.ModeImagingReport {
		return out
	}
	if out.TestResult == nil {
		out.TestResult = map[string]domain.TestResult{}
	}
	tr := out.TestResult
	delete(tr, BMI)

	for _, f := range families {
		if tr[f.field].Present() {
			continue
		}
		if v, ok := f.firstMatch(ocrText); ok {
			tr[f.field] = v
		}
	}
	backfillBP(tr, ocrText)
	reconcileBP(tr)
	return out
}

func (f family) firstMatch(text string) (domain.TestResult, bool) {
	for _, p := range f.patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := p.convert(m); ok && f.inRange(v) {
			return v, true
		}
	}
	return domain.TestResult{}, false
}

func (f family) inRange(v domain.TestResult) bool {
	if f.min == 0 && f.max == 0 {
		return true
	}
	n, err := strconv.ParseFloat(*v.Value, 64)
	return err == nil && n >= f.min && n <= f.max
}

func backfillBP(tr map[string]domain.TestResult, text string) {
	if tr[BP].Present() && tr[Systolic].Present() && tr[Diastolic].Present() {
		return
	}
	for _, re := range bpPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		setMissing(tr, BP, domain.NewTestResult(m[1]+"/"+m[2], "mmHg"))
		setMissing(tr, Systolic, domain.NewTestResult(m[1], "mmHg"))
		setMissing(tr, Diastolic, domain.NewTestResult(m[2], "mmHg"))
		return
	}
}

func reconcileBP(tr map[string]domain.TestResult) {
	if bp := tr[BP]; bp.Present() {
		if m := bpValue.FindStringSubmatch(*bp.Value); m != nil {
			setMissing(tr, Systolic, domain.NewTestResult(m[1], "mmHg"))
			setMissing(tr, Diastolic, domain.NewTestResult(m[2], "mmHg"))
		}
	}
	sys, dia := tr[Systolic], tr[Diastolic]
	if sys.Present() && dia.Present() && !tr[BP].Present() {
		tr[BP] = domain.NewTestResult(strings.TrimSpace(*sys.Value)+"/"+strings.TrimSpace(*dia.Value), "mmHg")
	}
}

func setMissing(tr map[string]domain.TestResult, key string, v domain.TestResult) {
	if !tr[key].Present() {
		tr[key] = v
	}
}

func unitOf(unit string) func([]string) (domain.TestResult, bool) {
	return func(m []string) (domain.TestResult, bool) {
		return domain.NewTestResult(m[1], unit), true
	}
}

// temperature converts Fahrenheit readings to Celsius. A reading without a
// unit is Fahrenheit when it is above the Celsius range.
func temperature(m []string) (domain.TestResult, bool) {
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.TestResult{}, false
	}
	unit := ""
	if len(m) > 2 {
		unit = m[2]
	}
	if strings.EqualFold(unit, "F") || (unit == "" && v > maxTempC) {
		return domain.NewTestResult(oneDecimal((v-32)*5/9), "°C"), true
	}
	return domain.NewTestResult(m[1], "°C"), true
}

func feetInches(m []string) (domain.TestResult, bool) {
	ft, err := strconv.Atoi(m[1])
	if err != nil {
		return domain.TestResult{}, false
	}
	in := 0
	if m[2] != "" {
		if in, err = strconv.Atoi(m[2]); err != nil {
			return domain.TestResult{}, false
		}
	}
	return domain.NewTestResult(oneDecimal(float64(ft*12+in)*inchToCm), "cm"), true
}

func inches(m []string) (domain.TestResult, bool) {
	in, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.TestResult{}, false
	}
	return domain.NewTestResult(oneDecimal(in*inchToCm), "cm"), true
}

func pounds(m []string) (domain.TestResult, bool) {
	lb, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.TestResult{}, false
	}
	return domain.NewTestResult(oneDecimal(lb*lbToKg), "kg"), true
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
