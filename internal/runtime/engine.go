package runtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/pkg/checkpoint"
	"github.com/aretw0/sluice/pkg/domain"
)

// RunStats summarizes one run.
type RunStats struct {
	// Roots is the number of root items the source emitted.
	Roots int
	// Completed roots ran their whole lineage; Skipped roots were aborted by
	// a capability error.
	Completed int
	Skipped   int
	// Processed counts stage invocations that produced a new artifact.
	Processed int
	// Reused counts working artifacts adopted instead of recomputed.
	Reused int
	// Resumed counts lineages restarted from a cached checkpoint.
	Resumed int
	// Dropped counts items routed to an outlet without a branch.
	Dropped int
}

// Engine drives root items through a compiled graph, one lineage at a time.
type Engine struct {
	workRoot    string
	checkpoints *checkpoint.Manager
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runID       string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRunID tags events and log records with a run identifier.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// NewEngine creates an engine writing intermediate artifacts under workRoot.
// checkpoints may be nil for graphs without checkpoint stages.
func NewEngine(workRoot string, checkpoints *checkpoint.Manager, opts ...Option) *Engine {
	e := &Engine{
		workRoot:    workRoot,
		checkpoints: checkpoints,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.logger = e.logger.With("component", "engine")
	if e.runID != "" {
		e.logger = e.logger.With("run_id", e.runID)
	}
	return e
}

// Run pulls every root item from the graph's source and drives its lineage
// to completion before pulling the next.
//
// A capability error skips the current root. Any other error, including a
// routing error, stops the run and is returned wrapped with the stage name.
func (e *Engine) Run(ctx context.Context, g *domain.Graph) (RunStats, error) {
	var stats RunStats
	if len(g.Checkpoints) > 0 && e.checkpoints == nil {
		return stats, fmt.Errorf("graph has checkpoints %v but the engine has no checkpoint manager", g.Checkpoints)
	}

	next, stop := iter.Pull2(g.Source.Items(ctx))
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		item, err, ok := next()
		if !ok {
			break
		}
		if err != nil {
			if errors.Is(err, domain.ErrCapability) {
				e.logger.Warn("source skipped an item", "stage", g.Source.Name(), "error", err)
				continue
			}
			return stats, fmt.Errorf("source %q: %w", g.Source.Name(), err)
		}

		stats.Roots++
		l := e.lineage(g, item.Root(), &stats)
		err = l.drive(ctx, g.Head.Next, item)
		l.discardPending()

		var capErr *domain.CapabilityError
		switch {
		case err == nil:
			stats.Completed++
		case errors.As(err, &capErr):
			stats.Skipped++
			l.logger.Warn("root skipped", "stage", capErr.Stage, "lineage", l.failedLineage(), "error", err)
			e.emitStage(ctx, e.hooks.OnRootSkipped, domain.EventRootSkipped, item, capErr.Stage, 0, withErr(err))
		default:
			return stats, err
		}
	}

	e.logger.Info("run finished",
		"roots", stats.Roots,
		"completed", stats.Completed,
		"skipped", stats.Skipped,
		"processed", stats.Processed,
		"reused", stats.Reused,
		"resumed", stats.Resumed,
		"dropped", stats.Dropped,
	)
	return stats, nil
}

func (e *Engine) lineage(g *domain.Graph, root string, stats *RunStats) *lineage {
	return &lineage{
		engine:  e,
		graph:   g,
		root:    root,
		stats:   stats,
		pending: make(map[*domain.Node]map[string]*domain.Item),
		fired:   make(map[*domain.Node]bool),
		logger:  e.logger.With("root", root),
	}
}
