package match

import (
	"regexp"
	"sync"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

// Default shapes for typed fields that declare no explicit pattern.
// Turkish leasing paperwork: a vergi numarası is 10 digits, a TC kimlik
// no is 11, dates are usually DD.MM.YYYY with '.' or '/' separators.
const (
	shapeTaxNumber  = `\d{10}`
	shapeNationalID = `\d{11}`
	shapeDate       = `\d{1,2}[./]\d{1,2}[./]\d{4}|\d{4}-\d{2}-\d{2}`
	shapeNumber     = `\d[\d.,]*`
	shapeAmount     = `\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?`
)

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

// compileShape compiles a field shape with word boundaries so a 10-digit
// pattern does not match inside an 11-digit run. Compiled patterns are
// cached; templates are few and stable.
func compileShape(pattern string) (*regexp.Regexp, error) {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(`(?:^|[^\p{L}\d])(` + pattern + `)(?:[^\p{L}\d]|$)`)
	if err != nil {
		return nil, err
	}
	patternCache[pattern] = re
	return re, nil
}

// fieldShape returns the structural rule for a spec: the declared pattern
// when present, otherwise a default shape for NUMBER and DATE types.
// TEXT fields without a pattern have no structural rule.
func fieldShape(spec entity.FieldSpec) string {
	if spec.Pattern != "" {
		return spec.Pattern
	}
	switch spec.Type {
	case constants.FieldTypeDate:
		return shapeDate
	case constants.FieldTypeNumber:
		return shapeNumber
	}
	return ""
}

// verifyShape reports whether the whole value satisfies the field's
// structural rule. Fields without a rule always verify.
func verifyShape(spec entity.FieldSpec, value string) bool {
	shape := fieldShape(spec)
	if shape == "" {
		return true
	}
	re, err := compileShape("(?:" + shape + ")")
	if err != nil {
		return false
	}
	m := re.FindStringSubmatch(" " + value + " ")
	return len(m) > 1 && m[1] == value
}
