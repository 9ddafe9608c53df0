package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStageEnter     EventType = "stage_enter"
	EventStageLeave     EventType = "stage_leave"
	EventArtifactReused EventType = "artifact_reused"
	EventItemDropped    EventType = "item_dropped"
	EventCheckpoint     EventType = "checkpoint"
	EventRootSkipped    EventType = "root_skipped"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Root      string    `json:"root"`
}

// StageEvent represents an item entering or leaving a stage.
type StageEvent struct {
	EventBase
	Stage string `json:"stage"`
	Kind  Kind   `json:"kind"`
	Item  string `json:"item"`
	// Outlet is set on leave events of sorters and on drops.
	Outlet string `json:"outlet,omitempty"`
	// Duration is set on leave events.
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// CheckpointEvent reports a checkpoint lookup or save.
type CheckpointEvent struct {
	EventBase
	Checkpoint string `json:"checkpoint"`
	Hit        bool   `json:"hit"`
	Saved      bool   `json:"saved"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnStageEnter     func(context.Context, *StageEvent)
	OnStageLeave     func(context.Context, *StageEvent)
	OnArtifactReused func(context.Context, *StageEvent)
	OnItemDropped    func(context.Context, *StageEvent)
	OnCheckpoint     func(context.Context, *CheckpointEvent)
	OnRootSkipped    func(context.Context, *StageEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStageEnter:     chain(h.OnStageEnter, other.OnStageEnter),
		OnStageLeave:     chain(h.OnStageLeave, other.OnStageLeave),
		OnArtifactReused: chain(h.OnArtifactReused, other.OnArtifactReused),
		OnItemDropped:    chain(h.OnItemDropped, other.OnItemDropped),
		OnCheckpoint:     chain(h.OnCheckpoint, other.OnCheckpoint),
		OnRootSkipped:    chain(h.OnRootSkipped, other.OnRootSkipped),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
