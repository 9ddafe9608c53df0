package runtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/sluice/pkg/domain"
)

// resume looks for the furthest checkpoint in run that already holds an
// artifact for this root. It returns the index of the first node still to
// execute and the item to execute it with.
//
// The resumed item's derived name is recomputed by applying the naming rule
// of every processor skipped over, so names match an uninterrupted run.
func (l *lineage) resume(ctx context.Context, run []*domain.Node, item *domain.Item) (int, *domain.Item, error) {
	m := l.engine.checkpoints
	for i := len(run) - 1; i >= 0; i-- {
		cp, ok := run[i].Stage.(*domain.CheckpointStage)
		if !ok {
			continue
		}
		p := m.Checkpoint(cp.Checkpoint, slices.Values([]*domain.Item{item}))
		if done, _ := p.Counts(); done == 0 {
			continue
		}

		var cached *domain.Item
		for c, err := range m.Save(cp.Checkpoint, nil, p) {
			if err != nil {
				return 0, nil, fmt.Errorf("checkpoint %q: %w", cp.Checkpoint, err)
			}
			cached = c
		}
		l.keepEarlier(run[:i], item)

		name := item.Name()
		for _, n := range run[:i] {
			if n.Stage.Kind() == domain.KindProcessor {
				name = domain.DeriveName(name, n.Trim, n.Suffix)
			}
		}

		l.stats.Resumed++
		l.logger.Debug("resuming from checkpoint", "checkpoint", cp.Checkpoint, "skipped", i)
		l.engine.emitCheckpoint(ctx, l.root, cp.Checkpoint, true, false)
		return i + 1, item.Derive(name, cached.Content()), nil
	}
	return 0, item, nil
}

// keepEarlier marks valid entries of the checkpoints skipped over as
// observed, so a purge after a resumed run keeps them.
func (l *lineage) keepEarlier(run []*domain.Node, item *domain.Item) {
	m := l.engine.checkpoints
	for _, n := range run {
		cp, ok := n.Stage.(*domain.CheckpointStage)
		if !ok {
			continue
		}
		p := m.Checkpoint(cp.Checkpoint, slices.Values([]*domain.Item{item}))
		for range m.Save(cp.Checkpoint, nil, p) {
		}
	}
}

// save persists item at a checkpoint reached by normal execution and
// continues with the cache-backed copy.
func (l *lineage) save(ctx context.Context, n *domain.Node, item *domain.Item) (*domain.Item, error) {
	cp := n.Stage.(*domain.CheckpointStage)
	m := l.engine.checkpoints

	var saved *domain.Item
	hit := false
	err := l.invoke(ctx, n, item, func() (string, error) {
		p := m.Checkpoint(cp.Checkpoint, slices.Values([]*domain.Item{item}))
		done, _ := p.Counts()
		hit = done > 0
		for s, err := range m.Save(cp.Checkpoint, p.ToDo(), p) {
			if err != nil {
				return "", err
			}
			saved = s
		}
		return "", nil
	})
	if err != nil {
		return nil, err
	}
	l.engine.emitCheckpoint(ctx, l.root, cp.Checkpoint, hit, !hit)
	return saved, nil
}
