package llm

import (
	"encoding/json"
	"strings"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

const maxDocumentChars = 24000

// BuildSystemPrompt composes the system message: role, template context,
// per-field instructions and strict formatting rules. Documents are
// Turkish leasing paperwork, so the prompt keeps Turkish field labels
// verbatim.
func BuildSystemPrompt(req AnalyzeRequest) string {
	parts := []string{
		"You are a document compliance checker for Turkish financial leasing paperwork.",
		"You receive the extracted text of one document and a list of fields that must appear in it.",
		"For EVERY field in the list, report whether it is present, the exact value as written in the document, and a confidence from 0 to 100.",
		"Return ONLY JSON that matches the provided JSON Schema. No prose, no markdown fences.",
		"If a field is absent, set found=false, value=null and confidence to how sure you are of the absence.",
		"Never invent values. When the text is garbled around a field, report found=true with low confidence and describe the problem in 'issue'.",
		"Keep Turkish characters exactly as they appear (ı, İ, ş, ğ, ü, ö, ç).",
	}
	if name := strings.TrimSpace(req.TemplateName); name != "" {
		parts = append(parts, "Document type: "+name+".")
	}
	if rules := fieldRules(req.Fields); rules != "" {
		parts = append(parts, "Field rules: "+rules)
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the field list and the document text, truncated
// so one oversized scan cannot blow the context window.
func BuildUserPrompt(req AnalyzeRequest) string {
	var b strings.Builder
	b.WriteString("Fields to locate:\n")
	for _, f := range req.Fields {
		b.WriteString("- ")
		b.WriteString(f.FieldID)
		b.WriteString(": ")
		b.WriteString(f.Label)
		if f.Required {
			b.WriteString(" (required)")
		}
		if f.Pattern != "" {
			b.WriteString(" [expected shape: ")
			b.WriteString(f.Pattern)
			b.WriteString("]")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nDocument text:\n")
	doc := req.DocumentText
	if len(doc) > maxDocumentChars {
		b.WriteString(doc[:maxDocumentChars])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(doc)
	}
	return b.String()
}

// fieldRules emits short, high-precision per-type rules only for the
// types actually present in the field list.
func fieldRules(fields []entity.FieldSpec) string {
	present := map[constants.FieldType]bool{}
	for _, f := range fields {
		present[f.Type] = true
	}

	var parts []string
	if present[constants.FieldTypeNumber] {
		parts = append(parts, "NUMBER fields: report digits as written, keep separators; a Turkish tax number (vergi no) is exactly 10 digits and a TC kimlik no is exactly 11 digits.")
	}
	if present[constants.FieldTypeDate] {
		parts = append(parts, "DATE fields: report the date exactly as written (Turkish documents usually use DD.MM.YYYY or DD/MM/YYYY).")
	}
	if present[constants.FieldTypeText] {
		parts = append(parts, "TEXT fields: report the full value near the label, trimmed of surrounding boilerplate.")
	}
	return strings.Join(parts, " ")
}

// MarshalSchemaForPrompt renders the response schema as compact JSON for
// inclusion in the conversation.
func MarshalSchemaForPrompt(schema map[string]any) string {
	b, err := json.Marshal(schema)
	if err != nil {
		return "{}"
	}
	return string(b)
}
