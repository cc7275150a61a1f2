package score

import (
	"strings"

	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/extract"
)

// FieldComparison records one field's agreement with caller-supplied
// expected data.
type FieldComparison struct {
	FieldID  string `json:"field"`
	Value    string `json:"value"`
	Expected string `json:"expected,omitempty"`
}

// CrossCheck is the outcome of comparing extracted values against the
// customer record the caller holds.
type CrossCheck struct {
	Matches    []FieldComparison `json:"matches"`
	Mismatches []FieldComparison `json:"mismatches"`
	// MatchRate is the percentage of comparable fields that agreed; 100
	// when nothing was comparable.
	MatchRate float64 `json:"match_rate"`
}

// CompareWithCustomerData checks every extracted field value against the
// expected value the caller supplied for the same field id. Fields with
// no extracted value or no expectation are skipped, not counted against
// the rate. Comparison is case and whitespace insensitive with Turkish
// folding.
func CompareWithCustomerData(result entity.ValidationResult, expected map[string]string) CrossCheck {
	cc := CrossCheck{MatchRate: 100}

	for _, f := range result.Fields {
		if f.Value == nil || *f.Value == "" {
			continue
		}
		want, ok := expected[f.FieldID]
		if !ok || want == "" {
			continue
		}
		if foldValue(*f.Value) == foldValue(want) {
			cc.Matches = append(cc.Matches, FieldComparison{FieldID: f.FieldID, Value: *f.Value})
		} else {
			cc.Mismatches = append(cc.Mismatches, FieldComparison{FieldID: f.FieldID, Value: *f.Value, Expected: want})
		}
	}

	if n := len(cc.Matches) + len(cc.Mismatches); n > 0 {
		cc.MatchRate = float64(len(cc.Matches)) / float64(n) * 100
	}
	return cc
}

func foldValue(s string) string {
	return extract.FoldForSearch(strings.TrimSpace(s))
}
