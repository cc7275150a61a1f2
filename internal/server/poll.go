package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/job"
	"github.com/omerfdemir/docvalidator/internal/repository"
)

// PollService is the boundary contract of the pipeline: start a job,
// report progress, hand out the terminal result. Callers poll; nothing
// here blocks on job completion, and redundant status calls have no side
// effects.
type PollService struct {
	jobs      repository.JobRepository
	templates repository.TemplateRepository
	queue     *job.Queue
	log       *zap.Logger
	now       func() time.Time
}

func NewPollService(jobs repository.JobRepository, templates repository.TemplateRepository, queue *job.Queue, log *zap.Logger) *PollService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PollService{
		jobs:      jobs,
		templates: templates,
		queue:     queue,
		log:       log,
		now:       time.Now,
	}
}

// StartRequest carries one validation request.
type StartRequest struct {
	DocumentID   string
	TemplateID   string
	Data         []byte
	Format       string
	CustomerData map[string]string
}

// StartResponse reports the job handling a document, created or reused.
type StartResponse struct {
	JobID   uuid.UUID `json:"job_id"`
	Status  string    `json:"status"`
	Created bool      `json:"created"`
}

// Start is idempotent per document id: while a non-terminal job exists
// for the document, its id is returned instead of creating a duplicate.
// Once the prior job is terminal, a fresh start creates a new job.
func (s *PollService) Start(ctx context.Context, req StartRequest) (StartResponse, error) {
	if req.DocumentID == "" {
		return StartResponse{}, fmt.Errorf("%w: document_id is required", common.ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return StartResponse{}, fmt.Errorf("%w: document bytes are required", common.ErrInvalidInput)
	}

	tpl, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return StartResponse{}, fmt.Errorf("%w: unknown template %q", common.ErrInvalidInput, req.TemplateID)
	}

	now := s.now()
	j := entity.ValidationJob{
		ID:             uuid.New(),
		DocumentID:     req.DocumentID,
		TemplateID:     tpl.ID,
		Status:         constants.JobStatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
		StageEnteredAt: now,
	}

	j, created, err := s.jobs.CreateIfNoActive(ctx, j)
	if err != nil {
		return StartResponse{}, err
	}
	if !created {
		s.log.Info("reusing active job for document",
			zap.String("document_id", req.DocumentID),
			zap.String("job_id", j.ID.String()))
		return StartResponse{JobID: j.ID, Status: string(j.Status), Created: false}, nil
	}

	if err := s.queue.Enqueue(ctx, job.Task{
		JobID:        j.ID,
		DocumentID:   j.DocumentID,
		Template:     tpl,
		Data:         req.Data,
		Format:       req.Format,
		CustomerData: req.CustomerData,
		SubmittedAt:  now,
	}); err != nil {
		return StartResponse{}, err
	}
	return StartResponse{JobID: j.ID, Status: string(j.Status), Created: true}, nil
}

// StatusResponse is the polling answer. ProgressEstimate is a
// monotonically non-decreasing heuristic, not a measure of work done.
type StatusResponse struct {
	JobID            uuid.UUID `json:"job_id"`
	Status           string    `json:"status"`
	Message          string    `json:"message"`
	ProgressEstimate int       `json:"progress_estimate"` // 0-100
	AttemptCount     int       `json:"attempt_count"`
	LastError        *string   `json:"last_error,omitempty"`
}

// Status reports the latest job for a document.
func (s *PollService) Status(ctx context.Context, documentID string) (StatusResponse, error) {
	j, err := s.jobs.GetByDocumentID(ctx, documentID)
	if err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{
		JobID:            j.ID,
		Status:           string(j.Status),
		Message:          statusMessage(j),
		ProgressEstimate: progressEstimate(j, s.now()),
		AttemptCount:     j.AttemptCount,
		LastError:        j.LastError,
	}, nil
}

// Result returns the persisted terminal result. While the job is not
// terminal it fails with ErrNotReady; a failed job yields its last_error
// instead of a result.
func (s *PollService) Result(ctx context.Context, documentID string) (entity.ValidationResult, error) {
	j, err := s.jobs.GetByDocumentID(ctx, documentID)
	if err != nil {
		return entity.ValidationResult{}, err
	}
	switch j.Status {
	case constants.JobStatusCompleted:
		if j.Result == nil {
			return entity.ValidationResult{}, fmt.Errorf("%w: completed job %s has no result", common.ErrInternal, j.ID)
		}
		return *j.Result, nil
	case constants.JobStatusFailed:
		reason := "unknown"
		if j.LastError != nil {
			reason = *j.LastError
		}
		return entity.ValidationResult{}, fmt.Errorf("%w: %s", common.ErrJobFailed, reason)
	default:
		return entity.ValidationResult{}, fmt.Errorf("%w: job %s is %s", common.ErrNotReady, j.ID, j.Status)
	}
}

func statusMessage(j entity.ValidationJob) string {
	switch j.Status {
	case constants.JobStatusQueued:
		return "waiting for a worker"
	case constants.JobStatusExtracting:
		return "extracting document text and regions"
	case constants.JobStatusAnalyzing:
		if j.AttemptCount > 1 {
			return fmt.Sprintf("matching template fields (attempt %d)", j.AttemptCount)
		}
		return "matching template fields"
	case constants.JobStatusCompleted:
		return "validation complete"
	case constants.JobStatusFailed:
		if j.LastError != nil {
			return "validation failed: " + *j.LastError
		}
		return "validation failed"
	}
	return string(j.Status)
}

// progressEstimate derives a non-decreasing percentage from the stage
// plus time spent in it. Stage bands do not overlap, and the in-stage
// component is anchored to StageEnteredAt, which analysis retries do not
// touch, so repeated polls never go backwards.
func progressEstimate(j entity.ValidationJob, now time.Time) int {
	if j.Terminal() {
		return 100
	}

	var base, ceil int
	switch j.Status {
	case constants.JobStatusQueued:
		base, ceil = 5, 15
	case constants.JobStatusExtracting:
		base, ceil = 20, 55
	case constants.JobStatusAnalyzing:
		base, ceil = 60, 95
	default:
		base, ceil = 5, 15
	}

	entered := j.StageEnteredAt
	if entered.IsZero() {
		entered = j.CreatedAt
	}
	elapsed := int(now.Sub(entered).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	p := base + elapsed
	if p > ceil {
		p = ceil
	}
	return p
}
