package runtime

import (
	"context"
	"time"

	"github.com/aretw0/sluice/pkg/domain"
)

type eventOption func(*domain.StageEvent)

func withErr(err error) eventOption {
	return func(ev *domain.StageEvent) { ev.Err = err }
}

func withOutlet(outlet string) eventOption {
	return func(ev *domain.StageEvent) { ev.Outlet = outlet }
}

func withDuration(d time.Duration) eventOption {
	return func(ev *domain.StageEvent) { ev.Duration = d }
}

func (e *Engine) base(typ domain.EventType, root string) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      typ,
		RunID:     e.runID,
		Root:      root,
	}
}

func (e *Engine) emitStage(ctx context.Context, hook func(context.Context, *domain.StageEvent), typ domain.EventType, item *domain.Item, stage string, kind domain.Kind, opts ...eventOption) {
	if hook == nil {
		return
	}
	ev := &domain.StageEvent{
		EventBase: e.base(typ, item.Root()),
		Stage:     stage,
		Kind:      kind,
		Item:      item.Name(),
	}
	for _, opt := range opts {
		opt(ev)
	}
	hook(ctx, ev)
}

func (e *Engine) emitCheckpoint(ctx context.Context, root, name string, hit, saved bool) {
	if e.hooks.OnCheckpoint == nil {
		return
	}
	e.hooks.OnCheckpoint(ctx, &domain.CheckpointEvent{
		EventBase:  e.base(domain.EventCheckpoint, root),
		Checkpoint: name,
		Hit:        hit,
		Saved:      saved,
	})
}
