package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/sluice/pkg/ports"
)

// Journal implements ports.RunJournal in memory.
// Safe for concurrent use.
type Journal struct {
	runs map[string]ports.Run
	mu   sync.RWMutex
}

// NewJournal creates an empty in-memory journal.
func NewJournal() *Journal {
	return &Journal{
		runs: make(map[string]ports.Run),
	}
}

// Begin records a copy of run.
func (j *Journal) Begin(ctx context.Context, run *ports.Run) error {
	run.Status = ports.RunRunning

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.runs[run.ID]; exists {
		return fmt.Errorf("run %s already begun", run.ID)
	}
	j.runs[run.ID] = *run
	return nil
}

// Finish updates the outcome of a begun run. Identity fields (pipeline,
// start time) keep the values recorded by Begin.
func (j *Journal) Finish(ctx context.Context, run *ports.Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	stored, ok := j.runs[run.ID]
	if !ok {
		return fmt.Errorf("finish run %s: %w", run.ID, ports.ErrRunNotFound)
	}
	updated := *run
	updated.Pipeline = stored.Pipeline
	updated.StartedAt = stored.StartedAt
	j.runs[run.ID] = updated
	return nil
}

// Recent returns copies of the most recently started runs.
func (j *Journal) Recent(ctx context.Context, limit int) ([]ports.Run, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	runs := make([]ports.Run, 0, len(j.runs))
	for _, r := range j.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(a, b int) bool {
		if !runs[a].StartedAt.Equal(runs[b].StartedAt) {
			return runs[a].StartedAt.After(runs[b].StartedAt)
		}
		return runs[a].ID > runs[b].ID
	})
	if limit >= 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Close is a no-op.
func (j *Journal) Close() error { return nil }
