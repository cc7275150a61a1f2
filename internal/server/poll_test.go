package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/job"
	"github.com/omerfdemir/docvalidator/internal/match"
	"github.com/omerfdemir/docvalidator/internal/repository"
	"github.com/omerfdemir/docvalidator/internal/resilience"
	"github.com/omerfdemir/docvalidator/internal/sigdetect"
)

// gatedEngine blocks extraction until release is closed, so tests can
// observe the pipeline mid-flight.
type gatedEngine struct {
	release chan struct{}
	text    string
}

func (e *gatedEngine) Extract(ctx context.Context, _ []byte, _ string, _ []entity.RegionHint) (entity.ExtractionResult, error) {
	select {
	case <-e.release:
	case <-ctx.Done():
		return entity.ExtractionResult{}, ctx.Err()
	}
	return entity.ExtractionResult{
		Format:   constants.PDF,
		FullText: e.text,
		Pages:    []entity.Page{{PageNumber: 1, Text: e.text}},
		Method:   "pdf-text",
	}, nil
}

type pollFixture struct {
	jobs   *repository.MemoryJobStore
	poll   *PollService
	queue  *job.Queue
	engine *gatedEngine
}

func newPollFixture(t *testing.T) *pollFixture {
	t.Helper()
	ctx := context.Background()

	jobs := repository.NewMemoryJobStore()
	templates := repository.NewMemoryTemplateStore()
	require.NoError(t, templates.Put(ctx, entity.DocumentTemplate{
		ID:   "tax_certificate",
		Name: "Vergi Levhası",
		Fields: []entity.FieldSpec{
			{FieldID: "vergi_no", Label: "Vergi No", Type: constants.FieldTypeNumber, Required: true, Pattern: `\d{10}`},
		},
	}))

	engine := &gatedEngine{release: make(chan struct{}), text: "Vergi No: 1234567890"}
	orch := job.NewOrchestrator(jobs, templates, engine, match.NewMatcher(nil, nil), sigdetect.NewDetector(nil),
		job.OrchestratorConfig{Retry: resilience.DefaultRetryConfig().ZeroDelay(), ExtractTimeout: time.Minute}, nil)
	queue := job.NewQueue(orch, nil, job.WithWorkers(1))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		queue.Shutdown(ctx)
	})

	return &pollFixture{
		jobs:   jobs,
		poll:   NewPollService(jobs, templates, queue, nil),
		queue:  queue,
		engine: engine,
	}
}

func (f *pollFixture) startDoc(t *testing.T, documentID string) StartResponse {
	t.Helper()
	resp, err := f.poll.Start(context.Background(), StartRequest{
		DocumentID: documentID,
		TemplateID: "tax_certificate",
		Data:       []byte("%PDF-1.4 stub"),
		Format:     constants.PDF,
	})
	require.NoError(t, err)
	return resp
}

func (f *pollFixture) waitTerminal(t *testing.T, documentID string) entity.ValidationJob {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		j, err := f.jobs.GetByDocumentID(context.Background(), documentID)
		require.NoError(t, err)
		if j.Terminal() {
			return j
		}
		select {
		case <-deadline:
			t.Fatalf("job for %s never reached a terminal state (status %s)", documentID, j.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStart_IdempotentWhileActive(t *testing.T) {
	f := newPollFixture(t)

	first := f.startDoc(t, "doc-1")
	assert.True(t, first.Created)

	second := f.startDoc(t, "doc-1")
	assert.False(t, second.Created)
	assert.Equal(t, first.JobID, second.JobID)

	close(f.engine.release)
	f.waitTerminal(t, "doc-1")
}

func TestStart_NewJobAfterTerminal(t *testing.T) {
	f := newPollFixture(t)
	close(f.engine.release)

	first := f.startDoc(t, "doc-1")
	f.waitTerminal(t, "doc-1")

	second := f.startDoc(t, "doc-1")
	assert.True(t, second.Created)
	assert.NotEqual(t, first.JobID, second.JobID)
}

func TestStart_Validation(t *testing.T) {
	f := newPollFixture(t)

	_, err := f.poll.Start(context.Background(), StartRequest{TemplateID: "tax_certificate", Data: []byte("x")})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.poll.Start(context.Background(), StartRequest{DocumentID: "doc-1", TemplateID: "tax_certificate"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.poll.Start(context.Background(), StartRequest{DocumentID: "doc-1", TemplateID: "nope", Data: []byte("x")})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestStatus_UnknownDocument(t *testing.T) {
	f := newPollFixture(t)
	_, err := f.poll.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrJobNotFound)
}

func TestResult_NotReadyWhileRunning(t *testing.T) {
	f := newPollFixture(t)
	f.startDoc(t, "doc-1")

	_, err := f.poll.Result(context.Background(), "doc-1")
	assert.ErrorIs(t, err, common.ErrNotReady)

	close(f.engine.release)
	f.waitTerminal(t, "doc-1")

	result, err := f.poll.Result(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestResult_FailedJobYieldsReason(t *testing.T) {
	f := newPollFixture(t)
	f.startDoc(t, "doc-1")

	j, err := f.jobs.GetByDocumentID(context.Background(), "doc-1")
	require.NoError(t, err)
	reason := "corrupted_input"
	j.Status = constants.JobStatusFailed
	j.LastError = &reason
	require.NoError(t, f.jobs.Update(context.Background(), j))

	_, err = f.poll.Result(context.Background(), "doc-1")
	require.ErrorIs(t, err, common.ErrJobFailed)
	assert.Contains(t, err.Error(), "corrupted_input")

	close(f.engine.release)
}

func TestProgressEstimate_MonotonicAcrossStages(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	j := entity.ValidationJob{
		Status:         constants.JobStatusQueued,
		CreatedAt:      base,
		UpdatedAt:      base,
		StageEnteredAt: base,
	}

	var prev int
	check := func(now time.Time) {
		p := progressEstimate(j, now)
		assert.GreaterOrEqual(t, p, prev, "estimate went backwards at status %s", j.Status)
		assert.LessOrEqual(t, p, 100)
		prev = p
	}

	check(base)
	check(base.Add(4 * time.Second))
	check(base.Add(30 * time.Second)) // capped inside the queued band

	advance := func(et job.EventType, now time.Time) {
		var err error
		j, err = job.Apply(j, job.Event{Type: et, Now: now})
		require.NoError(t, err)
	}

	advance(job.EventStartExtraction, base.Add(31*time.Second))
	check(base.Add(31 * time.Second))
	check(base.Add(90 * time.Second))

	advance(job.EventStartAnalysis, base.Add(91*time.Second))
	check(base.Add(91 * time.Second))
	check(base.Add(121 * time.Second)) // top of the analyzing band

	// A retry stamps UpdatedAt but must not pull the estimate back to
	// the base of the band.
	advance(job.EventAnalysisRetry, base.Add(122*time.Second))
	check(base.Add(123 * time.Second))
	advance(job.EventAnalysisRetry, base.Add(124*time.Second))
	check(base.Add(125 * time.Second))

	var err error
	j, err = job.Apply(j, job.Event{Type: job.EventComplete, Result: &entity.ValidationResult{}, Now: base.Add(10 * time.Minute)})
	require.NoError(t, err)
	check(base.Add(10 * time.Minute))
	assert.Equal(t, 100, prev)
}

func TestStatusMessage_ShowsRetryAttempt(t *testing.T) {
	j := entity.ValidationJob{Status: constants.JobStatusAnalyzing, AttemptCount: 2}
	assert.Contains(t, statusMessage(j), "attempt 2")

	j.AttemptCount = 1
	assert.NotContains(t, statusMessage(j), "attempt")
}
