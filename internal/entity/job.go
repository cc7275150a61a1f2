package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/omerfdemir/docvalidator/constants"
)

// ValidationJob is the unit of work and its state. Mutated only by the
// orchestrator's transition function; read by the polling handler.
type ValidationJob struct {
	ID           uuid.UUID           `json:"job_id"`
	DocumentID   string              `json:"document_id"`
	TemplateID   string              `json:"template_id"`
	Status       constants.JobStatus `json:"status"`
	AttemptCount int                 `json:"attempt_count"`
	LastError    *string             `json:"last_error,omitempty"`
	Result       *ValidationResult   `json:"result,omitempty"` // set only when status=COMPLETED
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	// StageEnteredAt is when the job entered its current status. Analysis
	// retries update UpdatedAt but not this, so progress estimates derived
	// from it never move backwards within a stage.
	StageEnteredAt time.Time `json:"stage_entered_at"`
}

// Terminal reports whether the job has reached a terminal status.
func (j ValidationJob) Terminal() bool {
	return j.Status.Terminal()
}
