package job

import (
	"fmt"
	"time"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

// EventType is the closed set of lifecycle events the orchestrator may
// apply to a job.
type EventType string

const (
	// EventStartExtraction moves QUEUED → EXTRACTING.
	EventStartExtraction EventType = "START_EXTRACTION"
	// EventStartAnalysis moves EXTRACTING → ANALYZING and counts the
	// first analysis attempt.
	EventStartAnalysis EventType = "START_ANALYSIS"
	// EventAnalysisRetry stays in ANALYZING and increments attempt_count.
	EventAnalysisRetry EventType = "ANALYSIS_RETRY"
	// EventComplete moves ANALYZING → COMPLETED and attaches the result.
	EventComplete EventType = "COMPLETE"
	// EventFail moves any non-terminal status → FAILED with last_error.
	EventFail EventType = "FAIL"
)

// Event is one state-machine input.
type Event struct {
	Type   EventType
	Result *entity.ValidationResult // required for COMPLETE
	Err    string                   // required for FAIL
	Now    time.Time
}

// Apply is the pure transition function of the job lifecycle. It returns
// the next job value without touching the input; persistence is the
// caller's concern. Invalid transitions return an error and leave the
// job unchanged.
func Apply(j entity.ValidationJob, e Event) (entity.ValidationJob, error) {
	if j.Terminal() {
		return j, fmt.Errorf("%w: job %s is terminal (%s)", common.ErrInvalidInput, j.ID, j.Status)
	}

	next := j
	next.UpdatedAt = e.Now

	switch e.Type {
	case EventStartExtraction:
		if j.Status != constants.JobStatusQueued {
			return j, invalidTransition(j.Status, constants.JobStatusExtracting)
		}
		next.Status = constants.JobStatusExtracting
		next.StageEnteredAt = e.Now

	case EventStartAnalysis:
		if j.Status != constants.JobStatusExtracting {
			return j, invalidTransition(j.Status, constants.JobStatusAnalyzing)
		}
		next.Status = constants.JobStatusAnalyzing
		next.StageEnteredAt = e.Now
		next.AttemptCount = 1

	case EventAnalysisRetry:
		if j.Status != constants.JobStatusAnalyzing {
			return j, fmt.Errorf("%w: analysis retry in status %s", common.ErrInvalidInput, j.Status)
		}
		next.AttemptCount++

	case EventComplete:
		if j.Status != constants.JobStatusAnalyzing {
			return j, invalidTransition(j.Status, constants.JobStatusCompleted)
		}
		if e.Result == nil {
			return j, fmt.Errorf("%w: completion without a result", common.ErrInvalidInput)
		}
		next.Status = constants.JobStatusCompleted
		next.StageEnteredAt = e.Now
		next.Result = e.Result
		next.LastError = nil

	case EventFail:
		if e.Err == "" {
			return j, fmt.Errorf("%w: failure without a reason", common.ErrInvalidInput)
		}
		next.Status = constants.JobStatusFailed
		next.StageEnteredAt = e.Now
		reason := e.Err
		next.LastError = &reason
		next.Result = nil

	default:
		return j, fmt.Errorf("%w: unknown event %q", common.ErrInvalidInput, e.Type)
	}

	return next, nil
}

func invalidTransition(from, to constants.JobStatus) error {
	return fmt.Errorf("%w: transition %s → %s", common.ErrInvalidInput, from, to)
}
