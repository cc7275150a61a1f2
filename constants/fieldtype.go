package constants

// FieldType is the closed set of field kinds a template may declare.
// SIGNATURE and PARAF are visual: presence is judged from marked regions,
// never from extracted text alone.
type FieldType string

const (
	FieldTypeText      FieldType = "TEXT"
	FieldTypeNumber    FieldType = "NUMBER"
	FieldTypeDate      FieldType = "DATE"
	FieldTypeSignature FieldType = "SIGNATURE"
	FieldTypeParaf     FieldType = "PARAF"
)

// Visual reports whether the field is confirmed by visual evidence
// rather than text matching.
func (t FieldType) Visual() bool {
	return t == FieldTypeSignature || t == FieldTypeParaf
}

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeDate, FieldTypeSignature, FieldTypeParaf:
		return true
	}
	return false
}
