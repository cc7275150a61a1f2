package match

import (
	"strings"

	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/extract"
)

// candidate is one deterministic hit for a field.
type candidate struct {
	value      string
	confidence int
}

// searchField runs the deterministic keyword/pattern pass for one field
// over the normalized document text. It is the full fallback path when
// semantic analysis is unavailable, and the verification baseline when it
// is not.
//
// The search is line oriented: a labeled line plus the line after it form
// the window where the value is expected. Confidence tiers: shape hit in
// a labeled window 90, shape hit anywhere in the text 70, label-adjacent
// free text 75. A bare label with nothing after it is not a hit.
func searchField(text string, spec entity.FieldSpec) (candidate, bool) {
	lines := strings.Split(text, "\n")
	variants := labelVariants(spec)
	shape := fieldShape(spec)

	var re shapeMatcher
	if shape != "" {
		compiled, err := compileShape(shape)
		if err != nil {
			return candidate{}, false
		}
		re = compiled
	}

	for i, line := range lines {
		folded := extract.FoldForSearch(line)
		variant, at := findLabel(folded, variants)
		if at < 0 {
			continue
		}

		window := labelRemainder(line, folded, variant, at)
		if i+1 < len(lines) {
			window += "\n" + lines[i+1]
		}

		if re != nil {
			if m := re.FindStringSubmatch(window); len(m) > 1 {
				return candidate{value: strings.TrimSpace(m[1]), confidence: 90}, true
			}
			continue
		}
		if v := firstNonEmptyLine(window); v != "" {
			return candidate{value: v, confidence: 75}, true
		}
	}

	// No labeled hit; a unique structural shape anywhere still counts,
	// at lower confidence.
	if re != nil {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return candidate{value: strings.TrimSpace(m[1]), confidence: 70}, true
		}
	}
	return candidate{}, false
}

type shapeMatcher interface {
	FindStringSubmatch(s string) []string
}

func labelVariants(spec entity.FieldSpec) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(extract.FoldForSearch(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(spec.Label)
	add(strings.ReplaceAll(spec.FieldID, "_", " "))
	return out
}

// findLabel returns the first variant found in the folded line and its
// byte offset, or -1.
func findLabel(folded string, variants []string) (string, int) {
	for _, v := range variants {
		if i := strings.Index(folded, v); i >= 0 {
			return v, i
		}
	}
	return "", -1
}

// labelRemainder cuts the original line after the label. Turkish case
// folding can change byte lengths (İ → i), so the cut is located on the
// folded line and mapped back rune by rune.
func labelRemainder(line, folded, variant string, at int) string {
	foldedCut := at + len(variant)

	// Walk both strings in parallel up to the folded cut point.
	orig := line
	f := folded
	for len(f) > 0 && len(folded)-len(f) < foldedCut && len(orig) > 0 {
		_, fs := firstRune(f)
		_, os := firstRune(orig)
		f = f[fs:]
		orig = orig[os:]
	}
	return strings.TrimLeft(orig, " \t:：.-–")
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if v := strings.TrimSpace(line); v != "" {
			return v
		}
	}
	return ""
}
