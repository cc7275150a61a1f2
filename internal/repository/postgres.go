package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

// PostgresJobStore persists jobs in the validation_jobs table. The
// one-active-job-per-document invariant is enforced by a partial unique
// index on document_id over non-terminal rows, so concurrent starts
// resolve inside Postgres, not in application code.
type PostgresJobStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPostgresJobStore(pool *pgxpool.Pool, log *zap.Logger) *PostgresJobStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostgresJobStore{pool: pool, log: log}
}

const jobColumns = `id, document_id, template_id, status, attempt_count, last_error, result, created_at, updated_at, stage_entered_at`

func (s *PostgresJobStore) CreateIfNoActive(ctx context.Context, j entity.ValidationJob) (entity.ValidationJob, bool, error) {
	result, err := marshalResult(j.Result)
	if err != nil {
		return entity.ValidationJob{}, false, err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO validation_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (document_id) WHERE status NOT IN ('COMPLETED', 'FAILED')
		DO NOTHING`,
		j.ID, j.DocumentID, j.TemplateID, j.Status, j.AttemptCount, j.LastError, result, j.CreatedAt, j.UpdatedAt, j.StageEnteredAt)
	if err != nil {
		return entity.ValidationJob{}, false, fmt.Errorf("%w: insert job: %v", common.ErrDatabase, err)
	}
	if tag.RowsAffected() == 1 {
		return j, true, nil
	}

	// Lost the race or an active job already existed; hand back the
	// active one.
	existing, err := s.scanJob(s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM validation_jobs
		WHERE document_id = $1 AND status NOT IN ('COMPLETED', 'FAILED')`,
		j.DocumentID))
	if err != nil {
		return entity.ValidationJob{}, false, err
	}
	return existing, false, nil
}

func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (entity.ValidationJob, error) {
	return s.scanJob(s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM validation_jobs
		WHERE id = $1`, id))
}

func (s *PostgresJobStore) GetByDocumentID(ctx context.Context, documentID string) (entity.ValidationJob, error) {
	return s.scanJob(s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM validation_jobs
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, documentID))
}

func (s *PostgresJobStore) Update(ctx context.Context, j entity.ValidationJob) error {
	result, err := marshalResult(j.Result)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE validation_jobs
		SET status = $2, attempt_count = $3, last_error = $4, result = $5, updated_at = $6, stage_entered_at = $7
		WHERE id = $1`,
		j.ID, j.Status, j.AttemptCount, j.LastError, result, j.UpdatedAt, j.StageEnteredAt)
	if err != nil {
		return fmt.Errorf("%w: update job: %v", common.ErrDatabase, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s", common.ErrJobNotFound, j.ID)
	}
	return nil
}

func (s *PostgresJobStore) scanJob(row pgx.Row) (entity.ValidationJob, error) {
	var (
		j      entity.ValidationJob
		result []byte
	)
	err := row.Scan(&j.ID, &j.DocumentID, &j.TemplateID, &j.Status, &j.AttemptCount,
		&j.LastError, &result, &j.CreatedAt, &j.UpdatedAt, &j.StageEnteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.ValidationJob{}, common.ErrJobNotFound
	}
	if err != nil {
		return entity.ValidationJob{}, fmt.Errorf("%w: scan job: %v", common.ErrDatabase, err)
	}
	if len(result) > 0 {
		var vr entity.ValidationResult
		if err := json.Unmarshal(result, &vr); err != nil {
			return entity.ValidationJob{}, fmt.Errorf("%w: decode result: %v", common.ErrDatabase, err)
		}
		j.Result = &vr
	}
	return j, nil
}

func marshalResult(r *entity.ValidationResult) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: encode result: %v", common.ErrDatabase, err)
	}
	return b, nil
}

// PostgresTemplateStore persists templates as JSONB field lists.
type PostgresTemplateStore struct {
	pool *pgxpool.Pool
}

func NewPostgresTemplateStore(pool *pgxpool.Pool) *PostgresTemplateStore {
	return &PostgresTemplateStore{pool: pool}
}

func (s *PostgresTemplateStore) GetByID(ctx context.Context, id string) (entity.DocumentTemplate, error) {
	var (
		t      entity.DocumentTemplate
		fields []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, fields FROM document_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.DocumentTemplate{}, fmt.Errorf("%w: template %s", common.ErrNotFound, id)
	}
	if err != nil {
		return entity.DocumentTemplate{}, fmt.Errorf("%w: get template: %v", common.ErrDatabase, err)
	}
	if err := json.Unmarshal(fields, &t.Fields); err != nil {
		return entity.DocumentTemplate{}, fmt.Errorf("%w: decode template fields: %v", common.ErrDatabase, err)
	}
	return t, nil
}

func (s *PostgresTemplateStore) List(ctx context.Context) ([]entity.DocumentTemplate, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, fields FROM document_templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list templates: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.DocumentTemplate
	for rows.Next() {
		var (
			t      entity.DocumentTemplate
			fields []byte
		)
		if err := rows.Scan(&t.ID, &t.Name, &fields); err != nil {
			return nil, fmt.Errorf("%w: scan template: %v", common.ErrDatabase, err)
		}
		if err := json.Unmarshal(fields, &t.Fields); err != nil {
			return nil, fmt.Errorf("%w: decode template fields: %v", common.ErrDatabase, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresTemplateStore) Put(ctx context.Context, t entity.DocumentTemplate) error {
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("%w: encode template fields: %v", common.ErrDatabase, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO document_templates (id, name, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, fields = EXCLUDED.fields`,
		t.ID, t.Name, fields)
	if err != nil {
		return fmt.Errorf("%w: put template: %v", common.ErrDatabase, err)
	}
	return nil
}
