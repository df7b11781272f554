package jobs

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/abhisek/quizforge/internal/pipeline"
	"github.com/abhisek/quizforge/internal/quiz"
)

// Queue defaults.
const (
	DefaultMaxConcurrent = 3

	// queueDepth bounds the in-memory dispatch buffer. Jobs that do not
	// fit stay pending in the store and are replayed on the next start.
	queueDepth = 256
)

// Runner executes one generation; the pipeline satisfies it.
type Runner interface {
	GenerateWithProgress(ctx context.Context, text string, opts quiz.Options, progress pipeline.ProgressFunc) (*quiz.Questionset, error)
}

// Queue dispatches pending jobs to a bounded pool of workers.
type Queue struct {
	store         *Store
	runner        Runner
	maxConcurrent int

	ch   chan string
	wg   sync.WaitGroup
	logf func(format string, args ...any)

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewQueue builds a queue. Non-positive maxConcurrent falls back to the
// default.
func NewQueue(store *Store, runner Runner, maxConcurrent int) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Queue{
		store:         store,
		runner:        runner,
		maxConcurrent: maxConcurrent,
		ch:            make(chan string, queueDepth),
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	}
}

// Start recovers crashed jobs, replays the pending backlog in FIFO
// order and launches the workers. ctx bounds every pipeline run.
func (q *Queue) Start(ctx context.Context) error {
	var startErr error
	q.startOnce.Do(func() {
		recovered, err := q.store.ResetRunning(ctx)
		if err != nil {
			startErr = err
			return
		}
		if recovered > 0 {
			q.logf("recovered %d interrupted jobs", recovered)
		}

		pending, err := q.store.Pending(ctx)
		if err != nil {
			startErr = err
			return
		}
		for _, id := range pending {
			select {
			case q.ch <- id:
			default:
				// Backlog beyond the buffer stays pending for the
				// next start.
			}
		}

		for i := 0; i < q.maxConcurrent; i++ {
			q.wg.Add(1)
			go q.worker(ctx)
		}
	})
	return startErr
}

// Stop closes intake and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.ch)
		q.wg.Wait()
	})
}

// Submit creates a pending job and offers it to the workers.
func (q *Queue) Submit(ctx context.Context, params Params) (*Job, error) {
	job, err := q.store.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	select {
	case q.ch <- job.ID:
	default:
		// Stays pending; replayed on the next start.
	}
	return job, nil
}

// Cancel cancels a pending job. A cancelled job still sitting in the
// dispatch buffer is skipped by the worker.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	return q.store.Cancel(ctx, id)
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for id := range q.ch {
		if ctx.Err() != nil {
			return
		}
		q.process(ctx, id)
	}
}

func (q *Queue) process(ctx context.Context, id string) {
	ok, err := q.store.MarkRunning(ctx, id)
	if err != nil {
		q.logf("job %s: mark running: %v", id, err)
		return
	}
	if !ok {
		// Cancelled or claimed elsewhere.
		return
	}

	job, err := q.store.Get(ctx, id)
	if err != nil {
		q.logf("job %s: load: %v", id, err)
		_ = q.store.Fail(ctx, id, "job payload unreadable: "+err.Error())
		return
	}

	progress := func(pct int) {
		if err := q.store.SetProgress(ctx, id, pct); err != nil {
			q.logf("job %s: progress update: %v", id, err)
		}
	}

	qs, err := q.runner.GenerateWithProgress(ctx, job.Params.Text, job.Params.Options, progress)
	if err != nil {
		if ferr := q.store.Fail(ctx, id, err.Error()); ferr != nil {
			q.logf("job %s: record failure: %v", id, ferr)
		}
		return
	}
	if err := q.store.Complete(ctx, id, qs); err != nil {
		q.logf("job %s: record completion: %v", id, err)
	}
}
