package job

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

func queuedJob() entity.ValidationJob {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	return entity.ValidationJob{
		ID:         uuid.New(),
		DocumentID: "doc-1",
		TemplateID: "tax_certificate",
		Status:     constants.JobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestApply_HappyPath(t *testing.T) {
	j := queuedJob()
	now := j.CreatedAt

	j, err := Apply(j, Event{Type: EventStartExtraction, Now: now.Add(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusExtracting, j.Status)
	assert.Equal(t, now.Add(time.Second), j.StageEnteredAt)

	j, err = Apply(j, Event{Type: EventStartAnalysis, Now: now.Add(2 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusAnalyzing, j.Status)
	assert.Equal(t, 1, j.AttemptCount)
	assert.Equal(t, now.Add(2*time.Second), j.StageEnteredAt)

	result := entity.ValidationResult{OverallScore: 87.5, IsValid: true}
	j, err = Apply(j, Event{Type: EventComplete, Result: &result, Now: now.Add(3 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, j.Status)
	require.NotNil(t, j.Result)
	assert.Equal(t, 87.5, j.Result.OverallScore)
	assert.Nil(t, j.LastError)
	assert.Equal(t, now.Add(3*time.Second), j.UpdatedAt)
}

func TestApply_RetryIncrementsAttemptCountOnly(t *testing.T) {
	j := queuedJob()
	now := j.CreatedAt
	j, _ = Apply(j, Event{Type: EventStartExtraction, Now: now.Add(time.Second)})
	j, _ = Apply(j, Event{Type: EventStartAnalysis, Now: now.Add(2 * time.Second)})

	entered := j.StageEnteredAt
	j, err := Apply(j, Event{Type: EventAnalysisRetry, Now: now.Add(10 * time.Second)})
	require.NoError(t, err)
	j, err = Apply(j, Event{Type: EventAnalysisRetry, Now: now.Add(20 * time.Second)})
	require.NoError(t, err)

	assert.Equal(t, constants.JobStatusAnalyzing, j.Status)
	assert.Equal(t, 3, j.AttemptCount)
	assert.Equal(t, now.Add(20*time.Second), j.UpdatedAt)
	assert.Equal(t, entered, j.StageEnteredAt, "a retry does not re-enter the stage")
}

func TestApply_FailFromAnyNonTerminal(t *testing.T) {
	for _, setup := range [][]EventType{
		{},
		{EventStartExtraction},
		{EventStartExtraction, EventStartAnalysis},
	} {
		j := queuedJob()
		for _, et := range setup {
			var err error
			j, err = Apply(j, Event{Type: et, Now: time.Now()})
			require.NoError(t, err)
		}

		j, err := Apply(j, Event{Type: EventFail, Err: "corrupted_input", Now: time.Now()})
		require.NoError(t, err)
		assert.Equal(t, constants.JobStatusFailed, j.Status)
		require.NotNil(t, j.LastError)
		assert.Equal(t, "corrupted_input", *j.LastError)
		assert.Nil(t, j.Result)
	}
}

func TestApply_TerminalJobsRejectEverything(t *testing.T) {
	j := queuedJob()
	j, _ = Apply(j, Event{Type: EventFail, Err: "empty_content", Now: time.Now()})

	for _, et := range []EventType{EventStartExtraction, EventStartAnalysis, EventAnalysisRetry, EventComplete, EventFail} {
		_, err := Apply(j, Event{Type: et, Err: "x", Now: time.Now()})
		assert.Error(t, err, "event %s must be rejected on a terminal job", et)
	}
}

func TestApply_InvalidTransitions(t *testing.T) {
	j := queuedJob()

	_, err := Apply(j, Event{Type: EventStartAnalysis, Now: time.Now()})
	assert.Error(t, err, "cannot analyze before extracting")

	_, err = Apply(j, Event{Type: EventComplete, Result: &entity.ValidationResult{}, Now: time.Now()})
	assert.Error(t, err, "cannot complete from queued")

	_, err = Apply(j, Event{Type: EventAnalysisRetry, Now: time.Now()})
	assert.Error(t, err, "cannot retry analysis before analyzing")

	_, err = Apply(j, Event{Type: EventFail, Now: time.Now()})
	assert.Error(t, err, "failure needs a reason")
}

func TestApply_CompleteRequiresResult(t *testing.T) {
	j := queuedJob()
	j, _ = Apply(j, Event{Type: EventStartExtraction, Now: time.Now()})
	j, _ = Apply(j, Event{Type: EventStartAnalysis, Now: time.Now()})

	_, err := Apply(j, Event{Type: EventComplete, Now: time.Now()})
	assert.Error(t, err)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	j := queuedJob()
	before := j

	_, err := Apply(j, Event{Type: EventStartExtraction, Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, before, j)
}
