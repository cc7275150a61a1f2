package entity

import "github.com/omerfdemir/docvalidator/constants"

// RegionHint marks a rectangular zone on a page where a visual field
// (signature/paraf) is expected. Coordinates are fractions of the page
// size in [0,1], so hints are resolution independent.
type RegionHint struct {
	Page   int     `json:"page"` // 1-indexed; 0 means any page
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FieldSpec declares one expected data point of a template.
type FieldSpec struct {
	FieldID    string              `json:"field_id"` // unique within template
	Label      string              `json:"label"`
	Type       constants.FieldType `json:"type"`
	Required   bool                `json:"required"`
	Pattern    string              `json:"pattern,omitempty"` // structural rule, e.g. `\d{10}`
	RegionHint *RegionHint         `json:"region_hint,omitempty"`
}

// DocumentTemplate is an immutable-once-published schema: the ordered
// field specs a document of this type must satisfy.
type DocumentTemplate struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields"`
}

// VisualFields returns the specs whose presence is judged visually.
func (t DocumentTemplate) VisualFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range t.Fields {
		if f.Type.Visual() {
			out = append(out, f)
		}
	}
	return out
}

// TextFields returns the specs matched against extracted text.
func (t DocumentTemplate) TextFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range t.Fields {
		if !f.Type.Visual() {
			out = append(out, f)
		}
	}
	return out
}
