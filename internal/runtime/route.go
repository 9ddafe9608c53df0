package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/aretw0/sluice/internal/fsutil"
	"github.com/aretw0/sluice/pkg/domain"
)

// lineage holds the state of one root item's trip through the graph.
type lineage struct {
	engine *Engine
	graph  *domain.Graph
	root   string
	stats  *RunStats
	logger *slog.Logger

	// pending buffers merger inputs by merger node, then inlet.
	pending map[*domain.Node]map[string]*domain.Item
	fired   map[*domain.Node]bool
	// failed is the input of the last stage invocation that returned an error.
	failed *domain.Item
}

func (l *lineage) drive(ctx context.Context, n *domain.Node, item *domain.Item) error {
	for n != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n.IsInletRef() {
			return l.arrive(ctx, n, item)
		}

		var err error
		switch n.Stage.Kind() {
		case domain.KindProcessor, domain.KindCheckpoint:
			n, item, err = l.linear(ctx, n, item)
		case domain.KindSorter:
			n, err = l.sort(ctx, n, item)
		case domain.KindSplitter:
			return l.split(ctx, n, item)
		case domain.KindTerminus:
			return l.finalize(ctx, n, item)
		default:
			return fmt.Errorf("stage %q: a %s cannot receive items directly", n.Name(), n.Stage.Kind())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// linear runs a maximal chain of processors and checkpoints, starting after
// the furthest checkpoint of the chain that is already cached.
func (l *lineage) linear(ctx context.Context, start *domain.Node, item *domain.Item) (*domain.Node, *domain.Item, error) {
	var run []*domain.Node
	for n := start; n != nil && !n.IsInletRef(); n = n.Next {
		if k := n.Stage.Kind(); k != domain.KindProcessor && k != domain.KindCheckpoint {
			break
		}
		run = append(run, n)
	}

	from, item, err := l.resume(ctx, run, item)
	if err != nil {
		return nil, nil, err
	}

	for _, n := range run[from:] {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if n.Stage.Kind() == domain.KindCheckpoint {
			item, err = l.save(ctx, n, item)
		} else {
			item, err = l.process(ctx, n, item)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return run[len(run)-1].Next, item, nil
}

func (l *lineage) process(ctx context.Context, n *domain.Node, item *domain.Item) (*domain.Item, error) {
	name := domain.DeriveName(item.Name(), n.Trim, n.Suffix)
	path := l.workPath(n.Key)

	reused, err := l.reuse(ctx, n, item, path)
	if err != nil {
		return nil, err
	}
	if reused {
		return item.Derive(name, domain.FileContent(path)), nil
	}

	proc := n.Stage.(domain.Processor)
	var data []byte
	err = l.invoke(ctx, n, item, func() (string, error) {
		var err error
		data, err = proc.Process(ctx, item)
		return "", err
	})
	if err != nil {
		return nil, err
	}
	if err := l.persist(n, path, data); err != nil {
		return nil, err
	}
	l.stats.Processed++
	return item.Derive(name, domain.PersistedContent(path, data)), nil
}

func (l *lineage) sort(ctx context.Context, n *domain.Node, item *domain.Item) (*domain.Node, error) {
	sorter := n.Stage.(domain.Sorter)
	var outlet string
	err := l.invoke(ctx, n, item, func() (string, error) {
		var err error
		outlet, err = sorter.Sort(ctx, item)
		return outlet, err
	})
	if err != nil {
		return nil, err
	}

	if !domain.HasPort(n.Stage.Outlets(), outlet) {
		return nil, &domain.RoutingError{Stage: n.Name(), Port: outlet, Declared: n.Stage.Outlets()}
	}
	branch := n.Branches[outlet]
	if branch == nil {
		l.drop(ctx, n, item, outlet)
	}
	return branch, nil
}

func (l *lineage) split(ctx context.Context, n *domain.Node, item *domain.Item) error {
	outlets := n.Stage.Outlets()
	paths := make(map[string]string, len(outlets))
	for _, o := range outlets {
		paths[o] = l.workPath(n.Key + domain.NameSeparator + o)
	}

	contents, err := l.reuseAll(ctx, n, item, paths)
	if err != nil {
		return err
	}
	if contents == nil {
		splitter := n.Stage.(domain.Splitter)
		var parts map[string][]byte
		err := l.invoke(ctx, n, item, func() (string, error) {
			var err error
			parts, err = splitter.Split(ctx, item)
			return "", err
		})
		if err != nil {
			return err
		}
		for _, o := range slices.Sorted(maps.Keys(parts)) {
			if !domain.HasPort(outlets, o) {
				return &domain.RoutingError{Stage: n.Name(), Port: o, Declared: outlets}
			}
		}
		contents = make(map[string]*domain.Content, len(outlets))
		for _, o := range outlets {
			data, ok := parts[o]
			if !ok {
				return &domain.RoutingError{Stage: n.Name(), Port: o, Declared: outlets, Reason: "splitter produced no item for this outlet"}
			}
			if err := l.persist(n, paths[o], data); err != nil {
				return err
			}
			contents[o] = domain.PersistedContent(paths[o], data)
		}
		l.stats.Processed++
	}

	for _, o := range outlets {
		suffix := o
		if n.Suffix != "" {
			suffix = n.Suffix + domain.NameSeparator + o
		}
		child := item.Derive(domain.DeriveName(item.Name(), n.Trim, suffix), contents[o])

		branch := n.Branches[o]
		if branch == nil {
			l.drop(ctx, n, child, o)
			continue
		}
		if err := l.drive(ctx, branch, child); err != nil {
			return err
		}
	}
	return nil
}

func (l *lineage) finalize(ctx context.Context, n *domain.Node, item *domain.Item) error {
	terminus := n.Stage.(domain.Terminus)
	return l.invoke(ctx, n, item, func() (string, error) {
		return "", terminus.Finalize(ctx, item)
	})
}

// invoke calls a stage, emitting enter and leave events around it.
// Errors are wrapped with the stage name.
func (l *lineage) invoke(ctx context.Context, n *domain.Node, item *domain.Item, call func() (string, error)) error {
	e := l.engine
	kind := n.Stage.Kind()
	e.emitStage(ctx, e.hooks.OnStageEnter, domain.EventStageEnter, item, n.Name(), kind)

	start := time.Now()
	outlet, err := call()
	e.emitStage(ctx, e.hooks.OnStageLeave, domain.EventStageLeave, item, n.Name(), kind,
		withOutlet(outlet), withDuration(time.Since(start)), withErr(err))

	if err != nil {
		l.failed = item
		return fmt.Errorf("stage %q: %w", n.Name(), err)
	}
	return nil
}

// failedLineage names the items from the root down to the input of the
// failing stage.
func (l *lineage) failedLineage() []string {
	if l.failed == nil {
		return []string{l.root}
	}
	return l.failed.Lineage()
}

// reuse reports whether the working artifact at path already exists, in
// which case the stage is not invoked.
func (l *lineage) reuse(ctx context.Context, n *domain.Node, item *domain.Item, path string) (bool, error) {
	exists, err := fsutil.Exists(path)
	if err != nil {
		return false, fmt.Errorf("stage %q: checking %s: %w", n.Name(), path, err)
	}
	if !exists {
		return false, nil
	}
	l.stats.Reused++
	l.logger.Debug("reusing artifact", "stage", n.Name(), "path", path)
	l.engine.emitStage(ctx, l.engine.hooks.OnArtifactReused, domain.EventArtifactReused, item, n.Name(), n.Stage.Kind())
	return true, nil
}

// reuseAll is reuse for multi-artifact stages: it returns file-backed
// contents only when every path exists.
func (l *lineage) reuseAll(ctx context.Context, n *domain.Node, item *domain.Item, paths map[string]string) (map[string]*domain.Content, error) {
	contents := make(map[string]*domain.Content, len(paths))
	for outlet, path := range paths {
		exists, err := fsutil.Exists(path)
		if err != nil {
			return nil, fmt.Errorf("stage %q: checking %s: %w", n.Name(), path, err)
		}
		if !exists {
			return nil, nil
		}
		contents[outlet] = domain.FileContent(path)
	}
	l.stats.Reused++
	l.logger.Debug("reusing artifacts", "stage", n.Name(), "count", len(paths))
	l.engine.emitStage(ctx, l.engine.hooks.OnArtifactReused, domain.EventArtifactReused, item, n.Name(), n.Stage.Kind())
	return contents, nil
}

func (l *lineage) persist(n *domain.Node, path string, data []byte) error {
	if err := fsutil.WriteFile(path, data); err != nil {
		return fmt.Errorf("stage %q: %w", n.Name(), err)
	}
	l.logger.Debug("artifact written", "stage", n.Name(), "path", path)
	return nil
}

func (l *lineage) drop(ctx context.Context, n *domain.Node, item *domain.Item, outlet string) {
	l.stats.Dropped++
	l.logger.Debug("item dropped", "stage", n.Name(), "outlet", outlet, "item", item.Name())
	l.engine.emitStage(ctx, l.engine.hooks.OnItemDropped, domain.EventItemDropped, item, n.Name(), n.Stage.Kind(), withOutlet(outlet))
}

func (l *lineage) workPath(key string) string {
	return filepath.Join(l.engine.workRoot, l.root, key+"."+l.graph.Ext)
}
