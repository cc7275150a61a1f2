package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/omerfdemir/docvalidator/internal/entity"
)

// JobRepository is the only shared mutable state of the pipeline. It is
// written by the orchestrator and read by the polling handler.
type JobRepository interface {
	// CreateIfNoActive inserts the job unless a non-terminal job already
	// exists for the same document id, in which case the existing job is
	// returned with created=false. The check-then-create is atomic so
	// simultaneous start requests cannot race in a duplicate.
	CreateIfNoActive(ctx context.Context, j entity.ValidationJob) (entity.ValidationJob, bool, error)

	// GetByID returns the job or common.ErrJobNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (entity.ValidationJob, error)

	// GetByDocumentID returns the most recent job for the document or
	// common.ErrJobNotFound.
	GetByDocumentID(ctx context.Context, documentID string) (entity.ValidationJob, error)

	// Update persists a transitioned job record.
	Update(ctx context.Context, j entity.ValidationJob) error
}

// TemplateRepository holds the published document templates.
type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (entity.DocumentTemplate, error)
	List(ctx context.Context) ([]entity.DocumentTemplate, error)
	Put(ctx context.Context, t entity.DocumentTemplate) error
}
