package llm

import (
	"context"

	"github.com/omerfdemir/docvalidator/internal/entity"
)

// FieldProposal is the analyzer's advisory verdict for one field. The
// matcher independently re-verifies typed fields; proposals are never
// trusted blindly.
type FieldProposal struct {
	FieldID    string  `json:"field_id"`
	Found      bool    `json:"found"`
	Value      *string `json:"value"`
	Confidence int     `json:"confidence"` // 0–100
	Issue      string  `json:"issue,omitempty"`
}

// AnalyzeRequest carries the extracted text and the text-matchable field
// specs of one template.
type AnalyzeRequest struct {
	DocumentText string
	TemplateName string
	Fields       []entity.FieldSpec
}

// Analyzer is the semantic-lookup step the matcher delegates to. Errors
// are classified: transient failures carry resilience.TransientError and
// may be retried by the orchestrator; a structurally unusable response is
// wrapped in common.ErrMalformedAnalysis and triggers the deterministic
// fallback instead.
type Analyzer interface {
	AnalyzeFields(ctx context.Context, req AnalyzeRequest) ([]FieldProposal, []byte, error)
}
