package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

func newJob(documentID string) entity.ValidationJob {
	now := time.Now()
	return entity.ValidationJob{
		ID:         uuid.New(),
		DocumentID: documentID,
		TemplateID: "tax_certificate",
		Status:     constants.JobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCreateIfNoActive_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	first, created, err := s.CreateIfNoActive(ctx, newJob("doc-1"))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.CreateIfNoActive(ctx, newJob("doc-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID, "active job is returned, not replaced")
}

func TestCreateIfNoActive_ConcurrentStartsCreateExactlyOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	const workers = 32
	var wg sync.WaitGroup
	createdCount := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := s.CreateIfNoActive(ctx, newJob("doc-1"))
			assert.NoError(t, err)
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	var total int
	for created := range createdCount {
		if created {
			total++
		}
	}
	assert.Equal(t, 1, total)
}

func TestCreateIfNoActive_TerminalJobReleasesDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	j, _, err := s.CreateIfNoActive(ctx, newJob("doc-1"))
	require.NoError(t, err)

	reason := "corrupted_input"
	j.Status = constants.JobStatusFailed
	j.LastError = &reason
	require.NoError(t, s.Update(ctx, j))

	fresh, created, err := s.CreateIfNoActive(ctx, newJob("doc-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, j.ID, fresh.ID)
}

func TestGetByDocumentID_ReturnsLatest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	old, _, err := s.CreateIfNoActive(ctx, newJob("doc-1"))
	require.NoError(t, err)
	old.Status = constants.JobStatusCompleted
	old.Result = &entity.ValidationResult{IsValid: true}
	require.NoError(t, s.Update(ctx, old))

	latest, _, err := s.CreateIfNoActive(ctx, newJob("doc-1"))
	require.NoError(t, err)

	got, err := s.GetByDocumentID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)
}

func TestGetByDocumentID_Unknown(t *testing.T) {
	s := NewMemoryJobStore()
	_, err := s.GetByDocumentID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrJobNotFound)
}

func TestUpdate_UnknownJob(t *testing.T) {
	s := NewMemoryJobStore()
	err := s.Update(context.Background(), newJob("doc-1"))
	assert.ErrorIs(t, err, common.ErrJobNotFound)
}

func TestMemoryTemplateStore_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTemplateStore()

	for _, id := range []string{"identity", "tax_certificate", "contract"} {
		require.NoError(t, s.Put(ctx, entity.DocumentTemplate{ID: id, Name: id}))
	}
	// Overwriting must not reorder.
	require.NoError(t, s.Put(ctx, entity.DocumentTemplate{ID: "identity", Name: "Kimlik"}))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "identity", all[0].ID)
	assert.Equal(t, "Kimlik", all[0].Name)
	assert.Equal(t, "contract", all[2].ID)
}

func TestMemoryTemplateStore_GetUnknown(t *testing.T) {
	s := NewMemoryTemplateStore()
	_, err := s.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
