package sigdetect

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/extract"
)

// Ink-density bands for the mark heuristic. Ratios are fractions of dark
// pixels in a candidate region. Below the noise floor a region is blank;
// between floor and the confident band the mark is real but uncertain.
const (
	inkNoiseFloor   = 0.01
	inkConfidentMin = 0.05
)

var cueWords = []string{"imza", "paraf", "kaşe", "mühür", "signature", "initials"}

// reCueContent matches letters following a cue label, the trace a signed
// line leaves in extracted text (a name after "İmza:").
var reCueContent = regexp.MustCompile(`[:\s][\p{L}]{3,}`)

// Detector judges signature and paraf fields from the candidate regions
// the extraction engine resolved. Only presence and confidence matter;
// Value is always nil for these field types.
type Detector struct {
	log *zap.Logger
}

func NewDetector(log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{log: log}
}

// Detect produces one FieldMatch per visual spec, in spec order.
func (d *Detector) Detect(ex entity.ExtractionResult, specs []entity.FieldSpec) []entity.FieldMatch {
	out := make([]entity.FieldMatch, 0, len(specs))
	for _, spec := range specs {
		if !spec.Type.Visual() {
			continue
		}
		out = append(out, d.detectField(ex, spec))
	}
	return out
}

func (d *Detector) detectField(ex entity.ExtractionResult, spec entity.FieldSpec) entity.FieldMatch {
	regions := candidateRegions(ex, spec)
	if len(regions) == 0 {
		return entity.FieldMatch{
			FieldID: spec.FieldID,
			Found:   false,
			Issue:   "no mark detected",
		}
	}

	var (
		bestInk float64
		cueHit  bool
	)
	for _, r := range regions {
		if r.InkRatio > bestInk {
			bestInk = r.InkRatio
		}
		if hasCueContent(r.Text) {
			cueHit = true
		}
	}

	switch {
	case bestInk >= inkConfidentMin:
		conf := inkConfidence(bestInk)
		fm := entity.FieldMatch{FieldID: spec.FieldID, Found: true, Confidence: conf}
		if conf < constants.ReviewableConfidence {
			fm.Issue = "mark present but uncertain"
		}
		return fm
	case bestInk >= inkNoiseFloor:
		return entity.FieldMatch{
			FieldID:    spec.FieldID,
			Found:      true,
			Confidence: inkConfidence(bestInk),
			Issue:      "mark present but uncertain",
		}
	case cueHit:
		// No pixel evidence, but text extraction saw content after a mark
		// cue (a name on the signature line).
		return entity.FieldMatch{
			FieldID:    spec.FieldID,
			Found:      true,
			Confidence: 55,
			Issue:      "mark present but uncertain",
		}
	default:
		return entity.FieldMatch{
			FieldID: spec.FieldID,
			Found:   false,
			Issue:   "no mark detected",
		}
	}
}

// inkConfidence maps a dark-pixel ratio onto 0-100. A wet-ink signature
// on a white zone typically lands between 0.03 and 0.15.
func inkConfidence(ratio float64) int {
	conf := 40 + int(ratio*600)
	if conf > 95 {
		conf = 95
	}
	return conf
}

// candidateRegions selects the regions relevant to one spec: regions of
// the hinted page matching the hinted zone, or every region when the spec
// carries no hint.
func candidateRegions(ex entity.ExtractionResult, spec entity.FieldSpec) []entity.Region {
	var out []entity.Region
	for _, page := range ex.Pages {
		if spec.RegionHint != nil && spec.RegionHint.Page > 0 && page.PageNumber != spec.RegionHint.Page {
			continue
		}
		for _, r := range page.Regions {
			if spec.RegionHint != nil && !sameZone(r, *spec.RegionHint) {
				continue
			}
			out = append(out, r)
		}
	}
	return out
}

// sameZone matches a resolved region back to its hint by coordinates,
// with tolerance for float drift.
func sameZone(r entity.Region, h entity.RegionHint) bool {
	const eps = 0.02
	return abs(r.X-h.X) < eps && abs(r.Y-h.Y) < eps &&
		abs(r.Width-h.Width) < eps && abs(r.Height-h.Height) < eps
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// hasCueContent reports whether region text holds a mark cue followed by
// actual content, not just the printed label.
func hasCueContent(text string) bool {
	if text == "" {
		return false
	}
	folded := extract.FoldForSearch(text)
	for _, cue := range cueWords {
		i := strings.Index(folded, cue)
		if i < 0 {
			continue
		}
		rest := folded[i+len(cue):]
		if reCueContent.MatchString(rest) {
			return true
		}
	}
	return false
}

// Describe renders a one-line summary for logs.
func Describe(fm entity.FieldMatch) string {
	if !fm.Found {
		return fmt.Sprintf("%s: not found", fm.FieldID)
	}
	return fmt.Sprintf("%s: found (confidence %d)", fm.FieldID, fm.Confidence)
}
