package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/quizforge/internal/pipeline"
	"github.com/abhisek/quizforge/internal/quiz"
)

// fakeRunner is a scriptable pipeline stand-in.
type fakeRunner struct {
	mu       sync.Mutex
	texts    []string
	inFlight int
	maxSeen  int
	gate     chan struct{} // non-nil blocks runs until closed
}

func (r *fakeRunner) GenerateWithProgress(ctx context.Context, text string, opts quiz.Options, progress pipeline.ProgressFunc) (*quiz.Questionset, error) {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.inFlight++
	if r.inFlight > r.maxSeen {
		r.maxSeen = r.inFlight
	}
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if strings.HasPrefix(text, "fail") {
		return nil, errors.New("generation blew up")
	}
	for _, pct := range []int{5, 50, 100} {
		progress(pct)
	}
	return &quiz.Questionset{
		Questions: []quiz.Question{{
			Stem: text, OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d",
			Correct: "A", Difficulty: quiz.DifficultyEasy, CognitiveLevel: quiz.BloomApply,
		}},
	}, nil
}

func waitForTerminal(t *testing.T, s *Store, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return nil
}

func TestQueueCompletesJob(t *testing.T) {
	s := testStore(t)
	r := &fakeRunner{}
	q := NewQueue(s, r, 2)
	q.logf = t.Logf
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop()

	job, err := q.Submit(context.Background(), testParams("async text"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitForTerminal(t, s, job.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("status = %q (%s), want completed", done.Status, done.Error)
	}
	if done.Progress != 100 {
		t.Errorf("progress = %d, want 100", done.Progress)
	}
	if done.Result == nil || done.Result.Questions[0].Stem != "async text" {
		t.Error("result missing or wrong")
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("missing timestamps")
	}
}

func TestQueueRecordsFailure(t *testing.T) {
	s := testStore(t)
	q := NewQueue(s, &fakeRunner{}, 1)
	q.logf = t.Logf
	_ = q.Start(context.Background())
	defer q.Stop()

	job, _ := q.Submit(context.Background(), testParams("fail: broken source"))
	done := waitForTerminal(t, s, job.ID)
	if done.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", done.Status)
	}
	if !strings.Contains(done.Error, "blew up") {
		t.Errorf("error = %q", done.Error)
	}
}

func TestQueueCancelledJobSkipped(t *testing.T) {
	s := testStore(t)
	r := &fakeRunner{}
	q := NewQueue(s, r, 1)
	q.logf = t.Logf

	// Submit before starting so the worker cannot race the cancel.
	job, err := q.Submit(context.Background(), testParams("to cancel"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := q.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	_ = q.Start(context.Background())
	q.Stop()

	got, _ := s.Get(context.Background(), job.ID)
	if got.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	r.mu.Lock()
	ran := len(r.texts)
	r.mu.Unlock()
	if ran != 0 {
		t.Errorf("cancelled job was executed %d times", ran)
	}
}

func TestQueueCrashRecovery(t *testing.T) {
	s := testStore(t)

	// Simulate a crash: a job left in running with partial progress.
	job, _ := s.Create(context.Background(), testParams("interrupted"))
	_, _ = s.MarkRunning(context.Background(), job.ID)
	_ = s.SetProgress(context.Background(), job.ID, 40)

	r := &fakeRunner{}
	q := NewQueue(s, r, 1)
	q.logf = t.Logf
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop()

	done := waitForTerminal(t, s, job.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("recovered job status = %q, want completed", done.Status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) != 1 || r.texts[0] != "interrupted" {
		t.Errorf("recovered job not re-executed: %v", r.texts)
	}
}

func TestQueueBoundedConcurrency(t *testing.T) {
	s := testStore(t)
	r := &fakeRunner{gate: make(chan struct{})}
	q := NewQueue(s, r, 2)
	q.logf = t.Logf
	_ = q.Start(context.Background())

	var ids []string
	for i := 0; i < 5; i++ {
		job, err := q.Submit(context.Background(), testParams("concurrent"))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids = append(ids, job.ID)
	}

	// Let the workers pick up work, then release everything.
	deadline := time.Now().Add(2 * time.Second)
	for {
		r.mu.Lock()
		n := r.inFlight
		r.mu.Unlock()
		if n == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(r.gate)
	for _, id := range ids {
		waitForTerminal(t, s, id)
	}
	q.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxSeen > 2 {
		t.Errorf("concurrent runs = %d, want at most 2", r.maxSeen)
	}
	if len(r.texts) != 5 {
		t.Errorf("executed %d jobs, want 5", len(r.texts))
	}
}
