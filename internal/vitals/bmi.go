package vitals

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"medparse/internal/domain"
)

// BMIUnit is the unit written with a computed BMI.
const BMIUnit = "kg/m2"

var number = regexp.MustCompile(`\d+(?:\.\d+)?|\.\d+`)

// ApplyBMI returns a copy of rec with bmi computed from height and weight.
// Any bmi already present is replaced. When either input is missing or
// unparseable the record is returned without bmi. Imaging records are
// returned unchanged.
func ApplyBMI(rec domain.ExtractionRecord) domain.ExtractionRecord {
	out := rec.Clone()
	if rec.Mode == domain.ModeImagingReport || out.TestResult == nil {
		return out
	}
	delete(out.TestResult, BMI)

	h, hu, ok := measurement(out.TestResult[Height], "cm")
	if !ok {
		return out
	}
	w, wu, ok := measurement(out.TestResult[Weight], "kg")
	if !ok {
		return out
	}
	bmi, ok := CalculateBMI(h, hu, w, wu)
	if !ok {
		return out
	}
	out.TestResult[BMI] = domain.NewTestResult(strconv.FormatFloat(bmi, 'f', 2, 64), BMIUnit)
	return out
}

// CalculateBMI returns weight in kg over height in m squared, rounded to two
// decimals. Height units: cm, m, ft, in. Weight units: kg, lb. Heights
// outside 50-250 cm and weights outside 2-400 kg are rejected.
func CalculateBMI(height float64, heightUnit string, weight float64, weightUnit string) (float64, bool) {
	if height <= 0 || weight <= 0 {
		return 0, false
	}

	var meters float64
	switch normalizeUnit(heightUnit) {
	case "cm":
		meters = height / 100
	case "m":
		meters = height
	case "ft":
		meters = height * 0.3048
	case "in":
		meters = height * inchToCm / 100
	default:
		return 0, false
	}

	var kg float64
	switch normalizeUnit(weightUnit) {
	case "kg":
		kg = weight
	case "lb":
		kg = weight * lbToKg
	default:
		return 0, false
	}

	if meters*100 < MinHeightCm || meters*100 > MaxHeightCm || kg < MinWeightKg || kg > MaxWeightKg {
		return 0, false
	}
	return math.Round(kg/(meters*meters)*100) / 100, true
}

// Category returns the WHO adult BMI category.
func Category(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25:
		return "Normal weight"
	case bmi < 30:
		return "Overweight"
	default:
		return "Obese"
	}
}

func measurement(tr domain.TestResult, defaultUnit string) (float64, string, bool) {
	if !tr.Present() {
		return 0, "", false
	}
	raw := number.FindString(*tr.Value)
	if raw == "" {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, "", false
	}
	unit := defaultUnit
	if tr.Unit != nil && strings.TrimSpace(*tr.Unit) != "" {
		unit = *tr.Unit
	}
	return v, unit, true
}

func normalizeUnit(u string) string {
	switch strings.ToLower(strings.TrimSpace(u)) {
	case "cm", "centimeter", "centimeters", "centimetre", "centimetres":
		return "cm"
	case "m", "meter", "meters", "metre", "metres":
		return "m"
	case "ft", "feet", "foot":
		return "ft"
	case "in", "inch", "inches":
		return "in"
	case "kg", "kgs", "kilogram", "kilograms":
		return "kg"
	case "lb", "lbs", "pound", "pounds":
		return "lb"
	}
	return ""
}
