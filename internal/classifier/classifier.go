// Package classifier decides which extraction mode fits a document from its
// OCR text.
package classifier

import (
	"strings"

	"medparse/internal/domain"
)

// Strategy classifies OCR text into an extraction mode.
type Strategy interface {
	Classify(text string) domain.Mode
}

// Scores holds the number of distinct lexicon terms found per family.
type Scores struct {
	Imaging  int `json:"imaging"`
	Clinical int `json:"clinical"`
	Lab      int `json:"lab"`
}

var imagingTerms = []string{
	"radiology", "radiologist", "radiograph", "x-ray", "xray", "mri", "magnetic resonance",
	"ct scan", "computed tomography", "ultrasound", "sonograph", "mammogra", "fluoroscop",
	"pet scan", "dexa", "angiogra", "impression:", "findings:", "technique:", "comparison:",
	"contrast", "axial", "sagittal", "coronal", "t1-weighted", "t2-weighted", "hyperintens",
	"hypointens", "opacity", "lesion", "effusion", "fracture", "nodule", "soft tissue",
	"cortex", "vertebra", "joint space", "attenuation", "echogenic",
}

var clinicalTerms = []string{
	"chief complaint", "history of present illness", "physical exam", "assessment",
	"treatment plan", "consultation", "discharge", "follow-up", "medication",
	"prescription", "patient reports", "review of systems", "allergies",
	"social history", "family history",
}

var labTerms = []string{
	"reference range", "result", "mg/dl", "mmol/l", "g/dl", "ng/ml", "iu/l", "u/l",
	"complete blood count", "cbc", "lipid panel", "glucose", "hemoglobin",
	"cholesterol", "creatinine",
}

// Keyword is the default lexicon-scoring strategy.
type Keyword struct{}

// NewKeyword returns the keyword strategy.
func NewKeyword() Keyword {
	return Keyword{}
}

// Score counts distinct terms present in text for each lexicon.
func (Keyword) Score(text string) Scores {
	lower := strings.ToLower(text)
	return Scores{
		Imaging:  countTerms(lower, imagingTerms),
		Clinical: countTerms(lower, clinicalTerms),
		Lab:      countTerms(lower, labTerms),
	}
}

// Classify returns the mode for text. Empty text yields lab results.
func (k Keyword) Classify(text string) domain.Mode {
	return Decide(k.Score(text))
}

// Decide applies the decision order to a set of scores: imaging first,
// then clinical, lab results otherwise.
func Decide(s Scores) domain.Mode {
	if s.Imaging >= 3 || (s.Imaging > 0 && s.Imaging >= max(s.Clinical, s.Lab)) {
		return domain.ModeImagingReport
	}
	if s.Clinical > s.Lab || s.Clinical >= 3 {
		return domain.ModeClinicalNotes
	}
	return domain.ModeLabResults
}

func countTerms(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}
