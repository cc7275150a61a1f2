package entity

import "time"

// Region is a candidate zone for visual-mark detection, resolved during
// extraction. Text holds whatever content extraction recognized inside
// the zone (often empty for a genuine ink mark).
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text,omitempty"`
	// InkRatio is the fraction of dark pixels observed in the region,
	// 0 when pixel data was not available for the page.
	InkRatio float64 `json:"ink_ratio,omitempty"`
}

// Page holds one page's extracted text and its candidate regions.
type Page struct {
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Regions    []Region `json:"detected_regions,omitempty"`
	// OCR marks the page text as produced by optical recognition, which
	// caps the confidence of values matched on it.
	OCR bool `json:"ocr,omitempty"`
}

// ExtractionResult is the per-job, transient output of the extraction
// engine. Produced fresh for every job, never mutated after creation,
// and discarded once the job reaches a terminal state.
type ExtractionResult struct {
	Format   string        `json:"format"` // constants.PDF | DOCX | IMAGE
	FullText string        `json:"full_text"`
	Pages    []Page        `json:"pages"`
	Method   string        `json:"method"` // "pdf-text" | "pdf-ocr" | "docx" | "image-ocr"
	Duration time.Duration `json:"-"`
	Warnings []string      `json:"warnings,omitempty"`
}

// HasOCRPages reports whether any page text came from optical recognition.
func (r ExtractionResult) HasOCRPages() bool {
	for _, p := range r.Pages {
		if p.OCR {
			return true
		}
	}
	return false
}
