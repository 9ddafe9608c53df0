package runtime

import (
	"context"
	"sort"

	"github.com/aretw0/sluice/pkg/domain"
)

// arrive buffers item at the merger inlet named by ref. When the last
// declared inlet for this root arrives, the merger fires once and the merged
// item continues along the merger's chain.
func (l *lineage) arrive(ctx context.Context, ref *domain.Node, item *domain.Item) error {
	merger := ref.Target
	if l.fired[merger] {
		return &domain.RoutingError{
			Stage:    merger.Name(),
			Port:     ref.Inlet,
			Declared: merger.Stage.Inlets(),
			Reason:   "merger already fired for this root",
		}
	}
	buf, ok := l.pending[merger]
	if !ok {
		buf = make(map[string]*domain.Item, len(merger.Stage.Inlets()))
		l.pending[merger] = buf
	}
	if _, filled := buf[ref.Inlet]; filled {
		return &domain.RoutingError{
			Stage:    merger.Name(),
			Port:     ref.Inlet,
			Declared: merger.Stage.Inlets(),
			Reason:   "inlet already holds an item for this root",
		}
	}
	buf[ref.Inlet] = item

	for _, inlet := range merger.Stage.Inlets() {
		if _, ok := buf[inlet]; !ok {
			l.logger.Debug("merger waiting", "stage", merger.Name(), "arrived", ref.Inlet, "missing", inlet)
			return nil
		}
	}
	delete(l.pending, merger)
	l.fired[merger] = true

	merged, err := l.merge(ctx, merger, buf)
	if err != nil {
		return err
	}
	return l.drive(ctx, merger.Next, merged)
}

// merge produces the merger's output. The derived name and provenance follow
// the item on the first declared inlet.
func (l *lineage) merge(ctx context.Context, n *domain.Node, inputs map[string]*domain.Item) (*domain.Item, error) {
	first := inputs[n.Stage.Inlets()[0]]
	name := domain.DeriveName(first.Name(), n.Trim, n.Suffix)
	path := l.workPath(n.Key)

	reused, err := l.reuse(ctx, n, first, path)
	if err != nil {
		return nil, err
	}
	if reused {
		return first.Derive(name, domain.FileContent(path)), nil
	}

	merger := n.Stage.(domain.Merger)
	var data []byte
	err = l.invoke(ctx, n, first, func() (string, error) {
		var err error
		data, err = merger.Merge(ctx, inputs)
		return "", err
	})
	if err != nil {
		return nil, err
	}
	if err := l.persist(n, path, data); err != nil {
		return nil, err
	}
	l.stats.Processed++
	return first.Derive(name, domain.PersistedContent(path, data)), nil
}

// discardPending drops merger buffers that never completed for this root.
func (l *lineage) discardPending() {
	for merger, buf := range l.pending {
		arrived := make([]string, 0, len(buf))
		for inlet := range buf {
			arrived = append(arrived, inlet)
		}
		sort.Strings(arrived)
		l.logger.Debug("discarding incomplete merger inputs", "stage", merger.Name(), "arrived", arrived)
	}
	clear(l.pending)
}
