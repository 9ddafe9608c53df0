package ports

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when finishing a run that was never begun.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a journaled run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one journal entry.
type Run struct {
	ID         string
	Pipeline   string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time

	Roots     int
	Completed int
	Skipped   int
	Processed int
	Reused    int
	Resumed   int
	Dropped   int
	Purged    int

	// Error is the failure message of a failed run.
	Error string
}

// RunJournal records the history of pipeline runs against a cache root.
type RunJournal interface {
	// Begin records a new run. run.Status is set to RunRunning.
	Begin(ctx context.Context, run *Run) error

	// Finish updates a begun run with its outcome and counters.
	// Returns ErrRunNotFound if the run was never begun.
	Finish(ctx context.Context, run *Run) error

	// Recent returns up to limit runs, most recently started first.
	Recent(ctx context.Context, limit int) ([]Run, error)

	Close() error
}
