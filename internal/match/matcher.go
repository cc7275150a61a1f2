package match

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/llm"
	"github.com/omerfdemir/docvalidator/internal/resilience"
)

// Matcher compares extracted text against a template's non-visual field
// specs. The semantic analyzer is advisory: structural fields are always
// re-verified against their declared shape, and when the analyzer is down
// the deterministic keyword pass carries the whole job.
type Matcher struct {
	analyzer llm.Analyzer
	log      *zap.Logger
}

func NewMatcher(analyzer llm.Analyzer, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{analyzer: analyzer, log: log}
}

// Match produces one FieldMatch per spec, in spec order.
//
// Transient analyzer failures propagate so the orchestrator can retry the
// analysis stage. A malformed analyzer response is not retried: the
// deterministic pass runs in full and the job continues degraded.
func (m *Matcher) Match(ctx context.Context, ex entity.ExtractionResult, specs []entity.FieldSpec, templateName string) ([]entity.FieldMatch, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	proposals, err := m.analyze(ctx, ex, specs, templateName)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]llm.FieldProposal, len(proposals))
	for _, p := range proposals {
		byID[p.FieldID] = p
	}

	out := make([]entity.FieldMatch, 0, len(specs))
	for _, spec := range specs {
		fm := m.matchField(ex.FullText, spec, byID)
		if ex.HasOCRPages() && fm.Confidence > constants.OCRConfidenceCeiling {
			fm.Confidence = constants.OCRConfidenceCeiling
		}
		if fm.Found && fm.Confidence < constants.ReviewableConfidence && fm.Issue == "" {
			fm.Issue = "low confidence, review recommended"
		}
		out = append(out, fm)
	}
	return out, nil
}

// analyze runs the semantic step. nil analyzer and malformed responses
// both degrade to an empty proposal set.
func (m *Matcher) analyze(ctx context.Context, ex entity.ExtractionResult, specs []entity.FieldSpec, templateName string) ([]llm.FieldProposal, error) {
	if m.analyzer == nil {
		return nil, nil
	}
	proposals, _, err := m.analyzer.AnalyzeFields(ctx, llm.AnalyzeRequest{
		DocumentText: ex.FullText,
		TemplateName: templateName,
		Fields:       specs,
	})
	switch {
	case err == nil:
		return proposals, nil
	case errors.Is(err, common.ErrMalformedAnalysis):
		m.log.Warn("analysis response malformed, using deterministic matching", zap.Error(err))
		return nil, nil
	case resilience.IsTransient(err):
		return nil, err
	default:
		m.log.Warn("analysis failed, using deterministic matching", zap.Error(err))
		return nil, nil
	}
}

// matchField merges the deterministic candidate with the analyzer's
// proposal for one field and picks the stronger verdict.
func (m *Matcher) matchField(text string, spec entity.FieldSpec, proposals map[string]llm.FieldProposal) entity.FieldMatch {
	det, detOK := searchField(text, spec)

	prop, propOK := proposals[spec.FieldID]
	var propIssue string
	if propOK && prop.Found && prop.Value != nil {
		// Typed fields are never taken on the analyzer's word alone: a
		// claimed value that fails the shape check keeps some confidence
		// but not enough to pass unreviewed.
		if !verifyShape(spec, *prop.Value) {
			prop.Confidence /= 2
			propIssue = fmt.Sprintf("reported value %q fails the %s shape check", *prop.Value, spec.Type)
		}
	} else {
		propOK = false
	}

	switch {
	case detOK && (!propOK || det.confidence >= prop.Confidence):
		v := det.value
		return entity.FieldMatch{
			FieldID:    spec.FieldID,
			Found:      det.confidence >= constants.MinFoundConfidence,
			Value:      &v,
			Confidence: det.confidence,
		}
	case propOK && prop.Confidence >= constants.MinFoundConfidence:
		return entity.FieldMatch{
			FieldID:    spec.FieldID,
			Found:      true,
			Value:      prop.Value,
			Confidence: prop.Confidence,
			Issue:      propIssue,
		}
	case propOK:
		return entity.FieldMatch{
			FieldID:    spec.FieldID,
			Found:      false,
			Value:      prop.Value,
			Confidence: prop.Confidence,
			Issue:      notFoundIssue(spec, propIssue),
		}
	default:
		issue := fmt.Sprintf("no value matching %q found in document text", spec.Label)
		if prop, ok := proposals[spec.FieldID]; ok && !prop.Found && prop.Issue != "" {
			issue = prop.Issue
		}
		return entity.FieldMatch{
			FieldID:    spec.FieldID,
			Found:      false,
			Confidence: 0,
			Issue:      issue,
		}
	}
}

func notFoundIssue(spec entity.FieldSpec, cause string) string {
	if cause != "" {
		return cause
	}
	return fmt.Sprintf("candidate for %q below confidence floor", spec.Label)
}
