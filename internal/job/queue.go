package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Queue runs validation tasks on a fixed worker pool. Jobs for different
// documents share nothing but the job store, so workers never coordinate
// beyond the channel.
type Queue struct {
	orch    *Orchestrator
	log     *zap.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	quit chan struct{}
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

type QueueOption func(*Queue)

func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

func WithJobTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(orch *Orchestrator, log *zap.Logger, opts ...QueueOption) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	q := &Queue{
		orch:    orch,
		log:     log,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Task, 256),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.log.Info("worker started", zap.Int("worker_id", workerID))

				for {
					select {
					case task := <-q.ch:
						q.run(task)
					case <-q.quit:
						// Drain what was already accepted, then stop.
						for {
							select {
							case task := <-q.ch:
								q.run(task)
							default:
								q.log.Info("worker stopped", zap.Int("worker_id", workerID))
								return
							}
						}
					}
				}
			}(i + 1)
		}
	})
}

func (q *Queue) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	q.orch.Run(ctx, task)
}

// Enqueue hands a task to the pool. A full channel applies backpressure
// rather than dropping work, but shutdown always wins: a producer blocked
// on a full queue is released when the queue stops, and the job record
// simply stays QUEUED for a restart to pick up.
func (q *Queue) Enqueue(_ context.Context, task Task) error {
	select {
	case <-q.quit:
		q.log.Warn("cannot enqueue: queue is shutting down", zap.String("job_id", task.JobID.String()))
		return nil
	default:
	}

	select {
	case q.ch <- task:
	default:
		q.log.Warn("queue full, applying backpressure", zap.String("job_id", task.JobID.String()))
		select {
		case q.ch <- task:
		case <-q.quit:
			q.log.Warn("queue stopped while waiting, task dropped", zap.String("job_id", task.JobID.String()))
			return nil
		}
	}

	q.log.Info("queued validation job",
		zap.String("job_id", task.JobID.String()),
		zap.String("document_id", task.DocumentID),
		zap.String("template_id", task.Template.ID))
	return nil
}

// Shutdown stops intake and waits for in-flight jobs until ctx expires.
func (q *Queue) Shutdown(ctx context.Context) {
	q.stopOnce.Do(func() { close(q.quit) })

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.log.Warn("shutdown interrupted by context")
	case <-done:
		q.log.Info("queue drained, shutdown complete")
	}
}
