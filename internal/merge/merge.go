// Package merge combines per-page and per-pass extraction records into one
// record with page provenance.
package merge

import (
	"medparse/internal/domain"
)

// MergePages merges the records of one pass. For every field the first page
// in page order with a present value wins; its 1-based page number becomes
// the field's provenance. pages[i] must be the record of page index i.
func MergePages(mode domain.Mode, pages []domain.ExtractionRecord) domain.PassResult {
	rec := domain.EmptyRecord(mode)
	prov := domain.PageProvenance{}

	for i, pageRec := range pages {
		pageNum := i + 1
		switch mode {
		case domain.ModeImagingReport:
			rec.ImagingReport = firstNarrative(rec.ImagingReport, pageRec.ImagingReport, prov, pageNum)
		case domain.ModeClinicalNotes:
			firstResults(rec.TestResult, pageRec.TestResult, prov, pageNum)
			rec.ClinicalData = firstNarrative(rec.ClinicalData, pageRec.ClinicalData, prov, pageNum)
		default:
			firstResults(rec.TestResult, pageRec.TestResult, prov, pageNum)
		}
	}
	return domain.PassResult{Record: rec, Provenance: prov}
}

// MergePasses cascades the three pass results field by field in the order
// total, text-only, image-only. Absent values are pruned and each surviving
// field keeps the provenance of the pass it came from.
func MergePasses(mode domain.Mode, total, textOnly, imageOnly domain.PassResult) (domain.ExtractionRecord, domain.PageProvenance) {
	rec := domain.EmptyRecord(mode)
	prov := domain.PageProvenance{}

	for _, pr := range []domain.PassResult{total, textOnly, imageOnly} {
		switch mode {
		case domain.ModeImagingReport:
			rec.ImagingReport = cascadeNarrative(rec.ImagingReport, pr.Record.ImagingReport, pr.Provenance, prov)
		case domain.ModeClinicalNotes:
			cascadeResults(rec.TestResult, pr.Record.TestResult, pr.Provenance, prov)
			rec.ClinicalData = cascadeNarrative(rec.ClinicalData, pr.Record.ClinicalData, pr.Provenance, prov)
		default:
			cascadeResults(rec.TestResult, pr.Record.TestResult, pr.Provenance, prov)
		}
	}
	if mode == domain.ModeImagingReport && rec.ImagingReport == nil {
		rec.ImagingReport = map[string]*string{}
	}
	return rec, prov
}

func firstResults(dst, src map[string]domain.TestResult, prov domain.PageProvenance, page int) {
	for k, v := range src {
		if _, taken := dst[k]; taken || !v.Present() {
			continue
		}
		dst[k] = v.Clone()
		prov[k] = &domain.PageRef{Page: page}
	}
}

// firstNarrative returns dst with the unclaimed present fields of src added.
// dst stays nil until a field survives.
func firstNarrative(dst, src map[string]*string, prov domain.PageProvenance, page int) map[string]*string {
	for k, v := range src {
		if !domain.NarrativePresent(v) {
			continue
		}
		if _, taken := dst[k]; taken {
			continue
		}
		if dst == nil {
			dst = map[string]*string{}
		}
		s := *v
		dst[k] = &s
		prov[k] = &domain.PageRef{Page: page}
	}
	return dst
}

func cascadeResults(dst, src map[string]domain.TestResult, srcProv, prov domain.PageProvenance) {
	for k, v := range src {
		if _, taken := dst[k]; taken || !v.Present() {
			continue
		}
		dst[k] = v.Clone()
		prov[k] = copyRef(srcProv[k])
	}
}

func cascadeNarrative(dst, src map[string]*string, srcProv, prov domain.PageProvenance) map[string]*string {
	for k, v := range src {
		if !domain.NarrativePresent(v) {
			continue
		}
		if _, taken := dst[k]; taken {
			continue
		}
		if dst == nil {
			dst = map[string]*string{}
		}
		s := *v
		dst[k] = &s
		prov[k] = copyRef(srcProv[k])
	}
	return dst
}

func copyRef(r *domain.PageRef) *domain.PageRef {
	if r == nil {
		return nil
	}
	return &domain.PageRef{Page: r.Page}
}
