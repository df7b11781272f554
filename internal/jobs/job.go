// Package jobs provides the durable job store and the bounded worker
// queue that runs generation pipelines asynchronously.
package jobs

import (
	"time"

	"github.com/abhisek/quizforge/internal/quiz"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are legal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Params is the durable request payload of a job.
type Params struct {
	Text    string       `json:"text"`
	Options quiz.Options `json:"options"`
}

// Job is one asynchronous generation request.
type Job struct {
	ID       string `json:"id"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"` // 0..100
	Params   Params `json:"params"`

	Result *quiz.Questionset `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
