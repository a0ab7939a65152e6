package parser

import (
	"fmt"
	"strings"

	"medparse/internal/domain"
	"medparse/internal/port"
)

// PageInput is the per-page payload a prompt is rendered with. Index is the
// 0-based page index and never changes during fan-out.
type PageInput struct {
	Index     int
	Context   string
	ImageData string
}

// PromptTemplate is a fixed instruction plus the page context and image
// messages it includes.
type PromptTemplate struct {
	Name         string
	Mode         domain.Mode
	ExcludeImage bool
	ExcludeText  bool
	Instruction  string
}

const contextMessage = "This is the parsed text:\n{context}"

// Render produces the message list for one page.
func (t PromptTemplate) Render(in PageInput) []port.Message {
	msgs := []port.Message{{Role: "user", Text: t.Instruction}}
	if !t.ExcludeText {
		msgs = append(msgs, port.Message{Role: "user", Text: strings.Replace(contextMessage, "{context}", in.Context, 1)})
	}
	if !t.ExcludeImage {
		msgs = append(msgs, port.Message{Role: "user", ImageDataURL: in.ImageData})
	}
	return msgs
}

// SelectPrompt returns the template for a modality combination and mode.
func SelectPrompt(excludeImage, excludeText bool, mode domain.Mode) (PromptTemplate, error) {
	if excludeImage && excludeText {
		return PromptTemplate{}, domain.ErrInvalidModalityCombination
	}
	if !mode.Valid() {
		return PromptTemplate{}, fmt.Errorf("unknown mode %q", mode)
	}
	variant := "both"
	switch {
	case excludeImage:
		variant = "text"
	case excludeText:
		variant = "image"
	}
	return templates[string(mode)+"/"+variant], nil
}

// SelectPromptForPass is SelectPrompt keyed by pass.
func SelectPromptForPass(pass domain.Pass, mode domain.Mode) (PromptTemplate, error) {
	return SelectPrompt(pass.ExcludeImage(), pass.ExcludeText(), mode)
}

const labFormat = `Output rules:
1. Return a single JSON object with exactly one top-level key: "test_result".
2. "test_result" is an object. Every key is the snake_case name of a test (for example "hemoglobin", "ldl_cholesterol"). Never use camelCase or Title Case.
3. Every value is an object with exactly two keys: "value" (string) and "unit" (string or null), e.g. {"value": "122", "unit": "mg/dL"}. Never use a bare number or string as a value.
4. If nothing is found, "test_result" is an empty object.

Value rules:
- Blood pressure "136/84" becomes "blood_pressure" plus "systolic_blood_pressure" and "diastolic_blood_pressure".
- Record temperature, pulse, oxygen saturation, height and weight when present. Do not extract BMI; it is calculated from height and weight.
- Oxygen saturation and percentages are numbers without the % sign.
- Extract the measured value only, not the reference range. Keep markers such as "*" or "H" in the value.
- Keep lab units as printed (mg/dL, mmol/L, ...). Dates use yyyy-mm-dd.
- Label sided results in the key (left_vision, right_vision).
- Each test appears once.`

var clinicalFieldList = strings.Join(domain.ClinicalFields, ", ")

var imagingFieldList = strings.Join(domain.ImagingFields, ", ")

var clinicalFormat = `Output rules:
1. Return a single JSON object with two top-level keys: "test_result" and "clinical_data".
2. "test_result" holds structured lab values and vital signs: snake_case keys, each value {"value": string, "unit": string or null}. Use {} when there are none. Do not extract BMI.
3. "clinical_data" is an object with these keys, each a string or null: ` + clinicalFieldList + `.
4. If the document has no clinical narrative, "clinical_data" is null.
5. Dates use yyyy-mm-dd. Preserve medical terminology.`

var imagingFormat = `Output rules:
1. Return a single JSON object with exactly one top-level key: "imaging_report".
2. "imaging_report" is an object with these snake_case keys, each a string or null when not found: ` + imagingFieldList + `.
3. This is a radiology report. Do not extract lab values, vital signs or blood pressure.
4. Keep measurements with their units. Dates use yyyy-mm-dd.
5. Separate normal from abnormal findings and note critical findings under "urgency".`

var templates = map[string]PromptTemplate{
	"lab_results/both": {
		Name: "lab_both", Mode: domain.ModeLabResults,
		Instruction: `You are a precise health data analyst. Extract every test result from the page image and its parsed text.
Read both sources independently, then compare them. Where the parsed text is garbled (broken numbers, stray characters) trust the image; where the image is blurry or cut off trust clean parsed text.

` + labFormat,
	},
	"lab_results/text": {
		Name: "lab_text", Mode: domain.ModeLabResults, ExcludeImage: true,
		Instruction: `You are a precise health data analyst. Extract every test result from the parsed text of a health report. Ignore reference ranges and unrelated numbers. Look for vital signs in unstructured text too.

` + labFormat,
	},
	"lab_results/image": {
		Name: "lab_image", Mode: domain.ModeLabResults, ExcludeText: true,
		Instruction: `You are a precise health data analyst. Extract every test result from the page image only. Keep table rows and columns aligned and join values split across lines.

` + labFormat,
	},
	"clinical_notes/both": {
		Name: "clinical_both", Mode: domain.ModeClinicalNotes,
		Instruction: `You are a medical records analyst. Extract structured test results and the clinical narrative from the page image and its parsed text. Compare both sources and prefer the clearer one.

` + clinicalFormat,
	},
	"clinical_notes/text": {
		Name: "clinical_text", Mode: domain.ModeClinicalNotes, ExcludeImage: true,
		Instruction: `You are a medical records analyst. Extract structured test results and the clinical narrative from the parsed text of a medical document.

` + clinicalFormat,
	},
	"clinical_notes/image": {
		Name: "clinical_image", Mode: domain.ModeClinicalNotes, ExcludeText: true,
		Instruction: `You are a medical records analyst. Extract structured test results and the clinical narrative from the page image. Be careful with handwriting and low-contrast text.

` + clinicalFormat,
	},
	"imaging_report/both": {
		Name: "imaging_both", Mode: domain.ModeImagingReport,
		Instruction: `You are a medical imaging analyst. Extract the structured content of an imaging report (X-ray, MRI, CT, ultrasound) from the page image and its parsed text. Compare both sources and prefer the clearer one.

` + imagingFormat,
	},
	"imaging_report/text": {
		Name: "imaging_text", Mode: domain.ModeImagingReport, ExcludeImage: true,
		Instruction: `You are a medical imaging analyst. Extract the structured content of an imaging report from its parsed text.

` + imagingFormat,
	},
	"imaging_report/image": {
		Name: "imaging_image", Mode: domain.ModeImagingReport, ExcludeText: true,
		Instruction: `You are a medical imaging analyst. Extract the structured content of an imaging report from the page image. Be careful with abbreviations, measurements and anatomical references.

` + imagingFormat,
	},
}
