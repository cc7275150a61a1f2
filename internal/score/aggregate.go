package score

import (
	"fmt"
	"math"
	"time"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

// Options carries the facts the aggregator cannot read off the matches
// themselves. Values here keep Aggregate a pure function of its inputs.
type Options struct {
	// OCRCeilingApplied records that matching ran on optically recognized
	// text, whose confidence was capped.
	OCRCeilingApplied bool
	// ExtractionWarnings are surfaced verbatim on the result.
	ExtractionWarnings []string
	// Now stamps the result; callers pass time.Now() outside tests.
	Now time.Time
}

// Aggregate folds per-field matches into the job's terminal verdict.
// Pure: identical inputs always yield the identical result.
//
// Required fields dominate the score; optional fields contribute at half
// weight and never block validity.
func Aggregate(matches []entity.FieldMatch, specs []entity.FieldSpec, opts Options) entity.ValidationResult {
	byID := make(map[string]entity.FieldMatch, len(matches))
	for _, m := range matches {
		byID[m.FieldID] = m
	}

	var (
		sum       float64
		weight    float64
		isValid   = true
		fields    = make([]entity.FieldMatch, 0, len(specs))
		errs      []string
		warnings  []string
		lowConfs  int
		missing   int
		uncertain int
	)

	for _, spec := range specs {
		m, ok := byID[spec.FieldID]
		if !ok {
			m = entity.FieldMatch{FieldID: spec.FieldID, Found: false, Issue: "field was not evaluated"}
		}
		fields = append(fields, m)

		w := constants.OptionalWeight
		if spec.Required {
			w = 1.0
		}
		weight += w
		if m.Found {
			sum += w * float64(m.Confidence) / 100
		}

		if spec.Required {
			if !m.Found {
				isValid = false
				missing++
				errs = append(errs, requiredMissing(spec, m))
			} else if m.Confidence < constants.MinRequiredConfidence {
				isValid = false
				lowConfs++
				errs = append(errs, fmt.Sprintf("required field %q confidence %d below minimum %d",
					spec.Label, m.Confidence, constants.MinRequiredConfidence))
			}
		}
		if m.Found && m.Confidence < constants.ReviewableConfidence {
			uncertain++
			warnings = append(warnings, fmt.Sprintf("field %q found with low confidence %d: %s",
				spec.Label, m.Confidence, orDefault(m.Issue, "manual review recommended")))
		}
	}

	var score float64
	if weight > 0 {
		score = 100 * sum / weight
	}
	score = math.Round(score*10) / 10
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return entity.ValidationResult{
		OverallScore:    score,
		IsValid:         isValid,
		Fields:          fields,
		Warnings:        append(warnings, opts.ExtractionWarnings...),
		Errors:          errs,
		Recommendations: recommendations(missing, lowConfs, uncertain, opts),
		Timestamp:       opts.Now,
	}
}

func requiredMissing(spec entity.FieldSpec, m entity.FieldMatch) string {
	if m.Issue != "" {
		return fmt.Sprintf("required field %q not found: %s", spec.Label, m.Issue)
	}
	return fmt.Sprintf("required field %q not found", spec.Label)
}

// recommendations emits one guidance line per distinct problem category.
func recommendations(missing, lowConfs, uncertain int, opts Options) []string {
	var out []string
	if missing > 0 {
		out = append(out, "document is missing required fields; verify the correct document was uploaded for this template")
	}
	if lowConfs > 0 || uncertain > 0 {
		out = append(out, "some fields were matched with low confidence; manual review recommended")
	}
	if opts.OCRCeilingApplied {
		out = append(out, "text was recovered by optical recognition; re-upload a higher-resolution scan or the original digital file for a more reliable result")
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
