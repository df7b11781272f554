package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/quizforge/internal/quiz"
	"github.com/abhisek/quizforge/internal/store"
)

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("job not found")

// ErrNotCancellable is returned when cancellation is requested for a
// job that has already left pending.
var ErrNotCancellable = errors.New("job is not pending")

// Store persists jobs. Once a job is running only its owning worker
// may mutate it; external actors go through the queue.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore builds a job store over the shared database.
func NewStore(s *store.Store) *Store {
	return &Store{db: s.DB(), now: time.Now}
}

// Create inserts a new pending job and returns it.
func (s *Store) Create(ctx context.Context, params Params) (*Job, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Params:    params,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO jobs (id, status, progress, params, created_at) VALUES ($1, $2, 0, $3, $4)",
		job.ID, job.Status, string(raw), job.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Get returns one job by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, status, progress, params, result, error, created_at, started_at, completed_at
FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// List returns all jobs, newest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, status, progress, params, result, error, created_at, started_at, completed_at
FROM jobs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Pending returns pending job ids, oldest first, for queue replay.
func (s *Store) Pending(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM jobs WHERE status = $1 ORDER BY created_at ASC, id ASC", StatusPending)
	if err != nil {
		return nil, fmt.Errorf("pending jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkRunning transitions pending -> running. The conditional update
// makes double-dispatch a no-op.
func (s *Store) MarkRunning(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, started_at = $2 WHERE id = $3 AND status = $4",
		StatusRunning, s.now().Unix(), id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark running: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// SetProgress updates the progress percentage of a running job.
func (s *Store) SetProgress(ctx context.Context, id string, pct int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET progress = $1 WHERE id = $2 AND status = $3",
		pct, id, StatusRunning,
	)
	return err
}

// Complete writes the terminal completed state with the result.
func (s *Store) Complete(ctx context.Context, id string, result *quiz.Questionset) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, progress = 100, result = $2, completed_at = $3 WHERE id = $4",
		StatusCompleted, string(raw), s.now().Unix(), id,
	)
	return err
}

// Fail writes the terminal failed state with the error message.
func (s *Store) Fail(ctx context.Context, id string, msg string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, error = $2, completed_at = $3 WHERE id = $4",
		StatusFailed, msg, s.now().Unix(), id,
	)
	return err
}

// Cancel transitions pending -> cancelled. Any other state fails with
// ErrNotCancellable (or ErrNotFound).
func (s *Store) Cancel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4",
		StatusCancelled, s.now().Unix(), id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotCancellable
}

// ResetRunning moves every running job back to pending. Called once at
// startup so work interrupted by a crash is re-executed.
func (s *Store) ResetRunning(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, progress = 0, started_at = NULL WHERE status = $2",
		StatusPending, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		params      string
		result      sql.NullString
		errMsg      sql.NullString
		createdAt   int64
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
	)
	err := row.Scan(&job.ID, &job.Status, &job.Progress, &params, &result, &errMsg,
		&createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
		return nil, fmt.Errorf("decode job %s params: %w", job.ID, err)
	}
	if result.Valid && result.String != "" {
		var qs quiz.Questionset
		if err := json.Unmarshal([]byte(result.String), &qs); err != nil {
			return nil, fmt.Errorf("decode job %s result: %w", job.ID, err)
		}
		job.Result = &qs
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0).UTC()
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		job.CompletedAt = &t
	}
	return &job, nil
}
