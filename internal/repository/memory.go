package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

// MemoryJobStore is the in-process job store used by tests and
// single-node deployments without a database. The single mutex is the
// atomicity guarantee for the one-active-job-per-document invariant.
type MemoryJobStore struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]entity.ValidationJob
	byDoc  map[string][]uuid.UUID // insertion order, latest last
	active map[string]uuid.UUID   // document id of the non-terminal job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:   make(map[uuid.UUID]entity.ValidationJob),
		byDoc:  make(map[string][]uuid.UUID),
		active: make(map[string]uuid.UUID),
	}
}

func (s *MemoryJobStore) CreateIfNoActive(_ context.Context, j entity.ValidationJob) (entity.ValidationJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.active[j.DocumentID]; ok {
		return s.jobs[id], false, nil
	}
	s.jobs[j.ID] = j
	s.byDoc[j.DocumentID] = append(s.byDoc[j.DocumentID], j.ID)
	if !j.Terminal() {
		s.active[j.DocumentID] = j.ID
	}
	return j, true, nil
}

func (s *MemoryJobStore) GetByID(_ context.Context, id uuid.UUID) (entity.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return entity.ValidationJob{}, fmt.Errorf("%w: job %s", common.ErrJobNotFound, id)
	}
	return j, nil
}

func (s *MemoryJobStore) GetByDocumentID(_ context.Context, documentID string) (entity.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byDoc[documentID]
	if len(ids) == 0 {
		return entity.ValidationJob{}, fmt.Errorf("%w: document %s", common.ErrJobNotFound, documentID)
	}
	return s.jobs[ids[len(ids)-1]], nil
}

func (s *MemoryJobStore) Update(_ context.Context, j entity.ValidationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; !ok {
		return fmt.Errorf("%w: job %s", common.ErrJobNotFound, j.ID)
	}
	s.jobs[j.ID] = j
	if j.Terminal() {
		if s.active[j.DocumentID] == j.ID {
			delete(s.active, j.DocumentID)
		}
	}
	return nil
}

// MemoryTemplateStore is the in-process template catalog.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]entity.DocumentTemplate
	order     []string
}

func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[string]entity.DocumentTemplate)}
}

func (s *MemoryTemplateStore) GetByID(_ context.Context, id string) (entity.DocumentTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return entity.DocumentTemplate{}, fmt.Errorf("%w: template %s", common.ErrNotFound, id)
	}
	return t, nil
}

func (s *MemoryTemplateStore) List(_ context.Context) ([]entity.DocumentTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.DocumentTemplate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.templates[id])
	}
	return out, nil
}

func (s *MemoryTemplateStore) Put(_ context.Context, t entity.DocumentTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	s.templates[t.ID] = t
	return nil
}
