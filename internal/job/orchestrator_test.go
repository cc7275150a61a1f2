package job

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/llm"
	"github.com/omerfdemir/docvalidator/internal/match"
	"github.com/omerfdemir/docvalidator/internal/repository"
	"github.com/omerfdemir/docvalidator/internal/resilience"
	"github.com/omerfdemir/docvalidator/internal/sigdetect"
)

type fakeEngine struct {
	result entity.ExtractionResult
	err    error
	calls  int
}

func (f *fakeEngine) Extract(_ context.Context, _ []byte, _ string, _ []entity.RegionHint) (entity.ExtractionResult, error) {
	f.calls++
	return f.result, f.err
}

// flakyAnalyzer fails with a transient error for the first `failures`
// calls, then succeeds.
type flakyAnalyzer struct {
	failures int
	calls    int
}

func (f *flakyAnalyzer) AnalyzeFields(_ context.Context, _ llm.AnalyzeRequest) ([]llm.FieldProposal, []byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, nil, resilience.NewTransientError(fmt.Errorf("attempt %d: upstream overloaded", f.calls), 529)
	}
	return nil, nil, nil
}

func taxCertTemplate() entity.DocumentTemplate {
	return entity.DocumentTemplate{
		ID:   "tax_certificate",
		Name: "Vergi Levhası",
		Fields: []entity.FieldSpec{
			{FieldID: "vergi_no", Label: "Vergi No", Type: constants.FieldTypeNumber, Required: true, Pattern: `\d{10}`},
			{FieldID: "imza", Label: "İmza", Type: constants.FieldTypeSignature, Required: false},
		},
	}
}

func goodExtraction() entity.ExtractionResult {
	text := "Vergi Levhası\nVergi No: 1234567890\n"
	return entity.ExtractionResult{
		Format:   constants.PDF,
		FullText: text,
		Pages: []entity.Page{{
			PageNumber: 1,
			Text:       text,
			Regions:    []entity.Region{{X: 0.5, Y: 0.7, Width: 0.4, Height: 0.2, InkRatio: 0.12}},
		}},
		Method: "pdf-text",
	}
}

type harness struct {
	jobs  *repository.MemoryJobStore
	orch  *Orchestrator
	jobID uuid.UUID
	task  Task
}

func newHarness(t *testing.T, engine *fakeEngine, analyzer llm.Analyzer, maxAttempts int) *harness {
	t.Helper()
	ctx := context.Background()

	jobs := repository.NewMemoryJobStore()
	templates := repository.NewMemoryTemplateStore()
	tpl := taxCertTemplate()
	require.NoError(t, templates.Put(ctx, tpl))

	now := time.Now()
	j := entity.ValidationJob{
		ID:         uuid.New(),
		DocumentID: "doc-1",
		TemplateID: tpl.ID,
		Status:     constants.JobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, created, err := jobs.CreateIfNoActive(ctx, j)
	require.NoError(t, err)
	require.True(t, created)

	retry := resilience.DefaultRetryConfig().ZeroDelay()
	retry.MaxAttempts = maxAttempts

	orch := NewOrchestrator(jobs, templates, engine, match.NewMatcher(analyzer, nil), sigdetect.NewDetector(nil),
		OrchestratorConfig{Retry: retry, ExtractTimeout: time.Minute}, nil)

	return &harness{
		jobs:  jobs,
		orch:  orch,
		jobID: j.ID,
		task: Task{
			JobID:       j.ID,
			DocumentID:  j.DocumentID,
			Template:    tpl,
			Data:        []byte("%PDF-1.4 stub"),
			Format:      constants.PDF,
			SubmittedAt: now,
		},
	}
}

func TestRun_TransientFailuresThenSuccess(t *testing.T) {
	analyzer := &flakyAnalyzer{failures: 2}
	h := newHarness(t, &fakeEngine{result: goodExtraction()}, analyzer, 3)

	h.orch.Run(context.Background(), h.task)

	j, err := h.jobs.GetByID(context.Background(), h.jobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, j.Status)
	assert.Equal(t, 3, j.AttemptCount)
	assert.Equal(t, 3, analyzer.calls)
	assert.Nil(t, j.LastError)
	require.NotNil(t, j.Result)
	assert.True(t, j.Result.IsValid)
}

func TestRun_RetryExhaustionFailsJob(t *testing.T) {
	analyzer := &flakyAnalyzer{failures: 10}
	h := newHarness(t, &fakeEngine{result: goodExtraction()}, analyzer, 3)

	h.orch.Run(context.Background(), h.task)

	j, err := h.jobs.GetByID(context.Background(), h.jobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, j.Status)
	assert.Equal(t, 3, j.AttemptCount)
	assert.Equal(t, 3, analyzer.calls, "the cap bounds the calls made")
	require.NotNil(t, j.LastError)
	assert.Equal(t, "analysis_unavailable", *j.LastError)
	assert.Nil(t, j.Result)
}

func TestRun_ExtractionErrorIsFatalAndNotRetried(t *testing.T) {
	analyzer := &flakyAnalyzer{}
	engine := &fakeEngine{err: fmt.Errorf("%w: damaged xref table", common.ErrCorruptedInput)}
	h := newHarness(t, engine, analyzer, 3)

	h.orch.Run(context.Background(), h.task)

	j, err := h.jobs.GetByID(context.Background(), h.jobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, j.Status)
	require.NotNil(t, j.LastError)
	assert.Equal(t, "corrupted_input", *j.LastError)
	assert.Equal(t, 1, engine.calls, "extraction is never retried")
	assert.Equal(t, 0, analyzer.calls, "analysis must not run after failed extraction")
}

func TestRun_EmptyContentReason(t *testing.T) {
	engine := &fakeEngine{err: fmt.Errorf("%w: no text layer and OCR produced nothing", common.ErrEmptyContent)}
	h := newHarness(t, engine, &flakyAnalyzer{}, 3)

	h.orch.Run(context.Background(), h.task)

	j, _ := h.jobs.GetByID(context.Background(), h.jobID)
	require.NotNil(t, j.LastError)
	assert.Equal(t, "empty_content", *j.LastError)
}

func TestRun_MalformedAnalysisFallsBackWithoutRetry(t *testing.T) {
	analyzer := &malformedAnalyzer{}
	h := newHarness(t, &fakeEngine{result: goodExtraction()}, analyzer, 3)

	h.orch.Run(context.Background(), h.task)

	j, err := h.jobs.GetByID(context.Background(), h.jobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, j.Status)
	assert.Equal(t, 1, j.AttemptCount, "a malformed response is not retried")
	assert.Equal(t, 1, analyzer.calls)
	require.NotNil(t, j.Result)
	assert.True(t, j.Result.IsValid, "deterministic matching alone carries the document")
}

type malformedAnalyzer struct{ calls int }

func (m *malformedAnalyzer) AnalyzeFields(_ context.Context, _ llm.AnalyzeRequest) ([]llm.FieldProposal, []byte, error) {
	m.calls++
	return nil, []byte("here is the JSON you asked for:"), common.ErrMalformedAnalysis
}

func TestRun_CustomerDataMismatchAddsWarnings(t *testing.T) {
	h := newHarness(t, &fakeEngine{result: goodExtraction()}, &flakyAnalyzer{}, 3)
	h.task.CustomerData = map[string]string{"vergi_no": "9999999999"}

	h.orch.Run(context.Background(), h.task)

	j, _ := h.jobs.GetByID(context.Background(), h.jobID)
	require.NotNil(t, j.Result)
	require.NotEmpty(t, j.Result.Warnings)
	assert.Contains(t, j.Result.Warnings[len(j.Result.Warnings)-1], "9999999999")
	assert.NotEmpty(t, j.Result.Recommendations)
}

func TestRun_MissingJobRecordDropsTask(t *testing.T) {
	h := newHarness(t, &fakeEngine{result: goodExtraction()}, &flakyAnalyzer{}, 3)
	h.task.JobID = uuid.New()

	h.orch.Run(context.Background(), h.task)

	// The real record was never touched.
	j, err := h.jobs.GetByID(context.Background(), h.jobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusQueued, j.Status)
}

func TestRun_FailedExtractionReleasesDocumentForResubmission(t *testing.T) {
	engine := &fakeEngine{err: errors.Join(common.ErrCorruptedInput)}
	h := newHarness(t, engine, &flakyAnalyzer{}, 3)

	h.orch.Run(context.Background(), h.task)

	now := time.Now()
	fresh := entity.ValidationJob{
		ID:         uuid.New(),
		DocumentID: h.task.DocumentID,
		TemplateID: h.task.Template.ID,
		Status:     constants.JobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, created, err := h.jobs.CreateIfNoActive(context.Background(), fresh)
	require.NoError(t, err)
	assert.True(t, created, "a terminal job must not block a new submission")
}
