package entity

import "time"

// FieldMatch is the verdict for one template field in one job.
type FieldMatch struct {
	FieldID string `json:"field_id"`
	Found   bool   `json:"found"`
	// Value is the best-effort extracted text; always null for
	// signature/paraf fields where only presence matters.
	Value      *string `json:"value"`
	Confidence int     `json:"confidence"` // 0–100
	// Issue explains which check failed; present only when found=false
	// or confidence is below the reviewable threshold.
	Issue string `json:"issue,omitempty"`
}

// ValidationResult is a job's terminal output, serialized with exactly
// these field names so any renderer can display it without
// reinterpretation.
type ValidationResult struct {
	OverallScore    float64      `json:"overall_score"` // 0.0–100.0
	IsValid         bool         `json:"is_valid"`
	Fields          []FieldMatch `json:"fields"` // template field order
	Warnings        []string     `json:"warnings"`
	Errors          []string     `json:"errors"`
	Recommendations []string     `json:"recommendations"`
	Timestamp       time.Time    `json:"timestamp"`
}

// MissingFields returns the matches reported as not found.
func (r ValidationResult) MissingFields() []FieldMatch {
	var out []FieldMatch
	for _, f := range r.Fields {
		if !f.Found {
			out = append(out, f)
		}
	}
	return out
}

// CompletionPercentage is the share of template fields that were found,
// independent of confidence weighting.
func (r ValidationResult) CompletionPercentage() float64 {
	if len(r.Fields) == 0 {
		return r.OverallScore
	}
	found := 0
	for _, f := range r.Fields {
		if f.Found {
			found++
		}
	}
	return float64(found) / float64(len(r.Fields)) * 100
}
