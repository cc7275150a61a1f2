package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/llm"
	"github.com/omerfdemir/docvalidator/internal/resilience"
)

const defaultModel = "claude-haiku-4-5-20251001"

// Config for the Anthropic-backed analyzer.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Analyzer implements llm.Analyzer on top of the official SDK. API-level
// failures are classified so the orchestrator can tell a retryable outage
// from a structurally broken reply.
type Analyzer struct {
	client sdk.Client
	cfg    Config
	log    *zap.Logger
}

func NewAnalyzer(cfg Config, log *zap.Logger) *Analyzer {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{
		client: sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:    cfg,
		log:    log,
	}
}

// AnalyzeFields asks the model to locate every field in the document text
// and returns sanitized, schema-validated proposals plus the raw reply
// for audit logging.
func (a *Analyzer) AnalyzeFields(ctx context.Context, req llm.AnalyzeRequest) ([]llm.FieldProposal, []byte, error) {
	if len(req.Fields) == 0 {
		return nil, nil, nil
	}

	schema := llm.BuildAnalysisJSONSchema(req.Fields)
	system := llm.BuildSystemPrompt(req) +
		" The JSON Schema your reply must match: " + llm.MarshalSchemaForPrompt(schema)

	msg, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.cfg.Model),
		MaxTokens: a.cfg.MaxTokens,
		System: []sdk.TextBlockParam{
			{Text: system},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(llm.BuildUserPrompt(req))),
		},
		Temperature: sdk.Float(a.cfg.Temperature),
	})
	if err != nil {
		return nil, nil, classifyAPIError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	raw := []byte(text.String())

	a.log.Debug("analysis reply received",
		zap.String("job_id", common.JobIDFromContext(ctx)),
		zap.String("model", string(msg.Model)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens))

	proposals, err := a.decode(raw, schema)
	if err != nil {
		return nil, raw, fmt.Errorf("%w: %v", common.ErrMalformedAnalysis, err)
	}
	return proposals, raw, nil
}

// decode runs the lenient pipeline: carve out the JSON object, sanitize
// shape drift, validate against the schema, then unmarshal.
func (a *Analyzer) decode(raw []byte, schema map[string]any) ([]llm.FieldProposal, error) {
	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	clean, _, err := llm.SanitizeProposals(obj, a.log)
	if err != nil {
		return nil, err
	}
	if err := llm.ValidateJSONAgainstSchema(schema, clean); err != nil {
		return nil, err
	}
	var envelope struct {
		Fields []llm.FieldProposal `json:"fields"`
	}
	if err := json.Unmarshal(clean, &envelope); err != nil {
		return nil, err
	}
	return envelope.Fields, nil
}

// classifyAPIError maps SDK errors into the retry taxonomy: 429/5xx/529
// and network timeouts are transient, everything else is terminal.
func classifyAPIError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return fmt.Errorf("anthropic: %w", err)
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(err, 0)
	}
	return fmt.Errorf("anthropic: %w", err)
}
