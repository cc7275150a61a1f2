package job

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/extract"
	"github.com/omerfdemir/docvalidator/internal/match"
	"github.com/omerfdemir/docvalidator/internal/repository"
	"github.com/omerfdemir/docvalidator/internal/resilience"
	"github.com/omerfdemir/docvalidator/internal/sigdetect"
)

// blockingEngine parks every extraction until release is closed.
type blockingEngine struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (e *blockingEngine) Extract(ctx context.Context, _ []byte, _ string, _ []entity.RegionHint) (entity.ExtractionResult, error) {
	e.started <- struct{}{}
	select {
	case <-e.release:
	case <-ctx.Done():
		return entity.ExtractionResult{}, ctx.Err()
	}
	return goodExtraction(), nil
}

type taskFactory struct {
	t    *testing.T
	jobs *repository.MemoryJobStore
	tpl  entity.DocumentTemplate
}

func (f *taskFactory) task(documentID string) Task {
	f.t.Helper()
	now := time.Now()
	j := entity.ValidationJob{
		ID:             uuid.New(),
		DocumentID:     documentID,
		TemplateID:     f.tpl.ID,
		Status:         constants.JobStatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
		StageEnteredAt: now,
	}
	_, created, err := f.jobs.CreateIfNoActive(context.Background(), j)
	require.NoError(f.t, err)
	require.True(f.t, created)
	return Task{
		JobID:       j.ID,
		DocumentID:  documentID,
		Template:    f.tpl,
		Data:        []byte("%PDF-1.4 stub"),
		Format:      constants.PDF,
		SubmittedAt: now,
	}
}

func newQueueFixture(t *testing.T, engine extract.Engine, opts ...QueueOption) (*Queue, *taskFactory) {
	t.Helper()
	ctx := context.Background()

	jobs := repository.NewMemoryJobStore()
	templates := repository.NewMemoryTemplateStore()
	tpl := taxCertTemplate()
	require.NoError(t, templates.Put(ctx, tpl))

	orch := NewOrchestrator(jobs, templates, engine, match.NewMatcher(nil, nil), sigdetect.NewDetector(nil),
		OrchestratorConfig{Retry: resilience.DefaultRetryConfig().ZeroDelay(), ExtractTimeout: time.Minute}, nil)

	return NewQueue(orch, nil, opts...), &taskFactory{t: t, jobs: jobs, tpl: tpl}
}

func TestQueue_RunsTasksToTerminal(t *testing.T) {
	q, f := newQueueFixture(t, &fakeEngine{result: goodExtraction()}, WithWorkers(2))

	task := f.task("doc-1")
	require.NoError(t, q.Enqueue(context.Background(), task))

	deadline := time.After(5 * time.Second)
	for {
		j, err := f.jobs.GetByID(context.Background(), task.JobID)
		require.NoError(t, err)
		if j.Terminal() {
			assert.Equal(t, constants.JobStatusCompleted, j.Status)
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never reached a terminal state (status %s)", j.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestQueue_ShutdownPromptUnderFullQueue(t *testing.T) {
	engine := newBlockingEngine()
	q, f := newQueueFixture(t, engine, WithWorkers(1), WithQueueSize(1))

	// One task in flight, one filling the channel.
	require.NoError(t, q.Enqueue(context.Background(), f.task("doc-1")))
	<-engine.started
	require.NoError(t, q.Enqueue(context.Background(), f.task("doc-2")))

	// A third producer hits backpressure and blocks.
	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		_ = q.Enqueue(context.Background(), f.task("doc-3"))
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	begin := time.Now()
	q.Shutdown(ctx)
	assert.Less(t, time.Since(begin), 2*time.Second, "shutdown must not wait behind a blocked producer")

	select {
	case <-producerDone:
	case <-time.After(time.Second):
		t.Fatal("blocked producer was not released by shutdown")
	}

	close(engine.release)
}

func TestQueue_EnqueueAfterShutdownIsDiscarded(t *testing.T) {
	q, f := newQueueFixture(t, &fakeEngine{result: goodExtraction()}, WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)

	task := f.task("doc-late")
	require.NoError(t, q.Enqueue(context.Background(), task))

	time.Sleep(50 * time.Millisecond)
	j, err := f.jobs.GetByID(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusQueued, j.Status, "a discarded task leaves the record queued for a restart")
}
