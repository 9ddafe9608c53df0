package sluice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/sluice/internal/compiler"
	"github.com/aretw0/sluice/internal/config"
	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/internal/runtime"
	"github.com/aretw0/sluice/pkg/adapters/flock"
	"github.com/aretw0/sluice/pkg/adapters/sqlite"
	"github.com/aretw0/sluice/pkg/checkpoint"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/aretw0/sluice/pkg/registry"
	"github.com/aretw0/sluice/pkg/schema"
	"github.com/aretw0/sluice/pkg/stages"
	"github.com/google/uuid"
)

// Version is the library and CLI version.
const Version = "0.1.0"

// Defaults applied when a pipeline does not configure its roots.
const (
	DefaultCacheDir = "cache"
	DefaultWorkDir  = "work"
	// StateDir holds lock files and the run journal inside the cache root.
	// The purge never enters it.
	StateDir    = ".sluice"
	JournalFile = "runs.db"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed run.
// Lockers that renew their lease keep it held for as long as the run lasts.
const DefaultLockTTL = 30 * time.Minute

// ErrCacheBusy is returned when another run holds the cache root.
var ErrCacheBusy = errors.New("cache root is in use by another run")

// Engine is the high-level entry point of the library.
// It loads pipeline files, runs them against their cache and keeps the
// run journal.
type Engine struct {
	registry *registry.Registry
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	locker   ports.DistributedLocker
	journal  ports.RunJournal
	verifier checkpoint.Verifier
	lockTTL  time.Duration

	cacheRoot string
	workRoot  string
	noPurge   bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRegistry replaces the default registry (built-in stages only).
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLocker sets the lock guarding the cache root. The default is a file
// lock inside the cache root, which only covers one host.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithJournal sets where runs are recorded. The default is a SQLite
// database inside the cache root.
func WithJournal(j ports.RunJournal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithVerifier checks cache entries before they are trusted.
func WithVerifier(v checkpoint.Verifier) Option {
	return func(e *Engine) {
		e.verifier = v
	}
}

// WithLockTTL overrides DefaultLockTTL. Non-positive values are ignored.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithCacheRoot overrides the cache root of every loaded pipeline.
func WithCacheRoot(dir string) Option {
	return func(e *Engine) {
		e.cacheRoot = dir
	}
}

// WithWorkRoot overrides the working root of every loaded pipeline.
func WithWorkRoot(dir string) Option {
	return func(e *Engine) {
		e.workRoot = dir
	}
}

// WithoutPurge keeps stale cache entries after a run.
func WithoutPurge() Option {
	return func(e *Engine) {
		e.noPurge = true
	}
}

// New creates an engine. Without WithRegistry it registers the built-in
// stage types.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{lockTTL: DefaultLockTTL}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = registry.New()
		if err := stages.RegisterBuiltins(e.registry); err != nil {
			return nil, fmt.Errorf("failed to register built-in stages: %w", err)
		}
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	return e, nil
}

// Registry returns the stage registry used to compile pipelines.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Pipeline is a compiled pipeline together with the directories it uses.
type Pipeline struct {
	// Name identifies the pipeline in logs and the run journal.
	Name      string
	Def       *schema.Pipeline
	Graph     *domain.Graph
	CacheRoot string
	WorkRoot  string
}

// Load reads, validates and compiles the pipeline file at path.
// Relative paths in the file resolve against its directory.
func (e *Engine) Load(path string) (*Pipeline, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	def, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return e.Compile(name, def, filepath.Dir(path))
}

// Compile builds a pipeline from an already parsed definition. base is the
// directory relative paths resolve against.
func (e *Engine) Compile(name string, def *schema.Pipeline, base string) (*Pipeline, error) {
	c := compiler.New(e.registry, compiler.WithLogger(e.logger.With("pipeline", name)))
	g, err := c.Compile(def)
	if err != nil {
		return nil, err
	}
	stages.ResolvePaths(g, base)

	return &Pipeline{
		Name:      name,
		Def:       def,
		Graph:     g,
		CacheRoot: pick(e.cacheRoot, config.Resolve(base, def.Cache.Root), filepath.Join(base, DefaultCacheDir)),
		WorkRoot:  pick(e.workRoot, config.Resolve(base, def.Work.Root), filepath.Join(base, DefaultWorkDir)),
	}, nil
}

// Result is the outcome of Run.
type Result struct {
	ports.Run
	Purge checkpoint.PurgeReport
}

// Run executes p once over every root item of its source.
//
// The cache root is locked for the duration of the run. After a run that
// completes without error, cache entries the run did not observe are purged
// unless WithoutPurge was given. The run is recorded in the journal whatever
// its outcome.
func (e *Engine) Run(ctx context.Context, p *Pipeline) (*Result, error) {
	res := &Result{Run: ports.Run{ID: uuid.NewString(), Pipeline: p.Name, StartedAt: time.Now()}}
	logger := e.logger.With("run_id", res.ID, "pipeline", p.Name)

	unlock, err := e.lock(ctx, p)
	if err != nil {
		return nil, err
	}
	defer unlock(context.WithoutCancel(ctx))

	journal, closeJournal, err := e.openJournal(p)
	if err != nil {
		return nil, err
	}
	defer closeJournal()

	if err := journal.Begin(ctx, &res.Run); err != nil {
		return nil, fmt.Errorf("failed to journal run: %w", err)
	}

	manager := e.manager(p, logger)
	eng := runtime.NewEngine(p.WorkRoot, manager,
		runtime.WithLogger(logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithRunID(res.ID),
	)
	stats, runErr := eng.Run(ctx, p.Graph)
	res.Roots, res.Completed, res.Skipped = stats.Roots, stats.Completed, stats.Skipped
	res.Processed, res.Reused, res.Resumed, res.Dropped = stats.Processed, stats.Reused, stats.Resumed, stats.Dropped

	if runErr == nil && !e.noPurge {
		res.Purge, runErr = manager.Purge(ctx)
		res.Purged = len(res.Purge.Files)
	}

	res.FinishedAt = time.Now()
	res.Status = ports.RunSucceeded
	if runErr != nil {
		res.Status = ports.RunFailed
		res.Error = runErr.Error()
	}
	if err := journal.Finish(context.WithoutCancel(ctx), &res.Run); err != nil {
		logger.Error("failed to journal run outcome", "error", err)
	}
	return res, runErr
}

// CheckpointStatus reports how many roots have passed one checkpoint.
type CheckpointStatus struct {
	Stage      string
	Checkpoint string
	Done       int
	ToDo       int
}

// Status partitions the source's current roots at every checkpoint of p.
// It reads the cache but never writes to it.
func (e *Engine) Status(ctx context.Context, p *Pipeline) ([]CheckpointStatus, error) {
	roots, err := e.roots(ctx, p)
	if err != nil {
		return nil, err
	}
	manager := e.manager(p, e.logger)

	var out []CheckpointStatus
	for _, n := range checkpointNodes(p.Graph) {
		cp := n.Stage.(*domain.CheckpointStage)
		done, todo := manager.Checkpoint(cp.Checkpoint, slices.Values(roots)).Counts()
		out = append(out, CheckpointStatus{Stage: cp.Name(), Checkpoint: cp.Checkpoint, Done: done, ToDo: todo})
	}
	return out, nil
}

// Purge deletes every cache entry that does not belong to one of the
// source's current roots at one of p's checkpoints, without running the
// pipeline.
func (e *Engine) Purge(ctx context.Context, p *Pipeline) (checkpoint.PurgeReport, error) {
	unlock, err := e.lock(ctx, p)
	if err != nil {
		return checkpoint.PurgeReport{}, err
	}
	defer unlock(context.WithoutCancel(ctx))

	manager, err := e.observeRoots(ctx, p)
	if err != nil {
		return checkpoint.PurgeReport{}, err
	}
	return manager.Purge(ctx)
}

// Stale lists the cache files Purge would delete, without taking the lock
// or deleting anything.
func (e *Engine) Stale(ctx context.Context, p *Pipeline) ([]string, error) {
	manager, err := e.observeRoots(ctx, p)
	if err != nil {
		return nil, err
	}
	return manager.Stale(ctx)
}

// History returns up to limit recent runs against p's cache root.
func (e *Engine) History(ctx context.Context, p *Pipeline, limit int) ([]ports.Run, error) {
	if e.journal == nil {
		if _, err := os.Stat(journalPath(p)); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	}
	journal, closeJournal, err := e.openJournal(p)
	if err != nil {
		return nil, err
	}
	defer closeJournal()
	return journal.Recent(ctx, limit)
}

// observeRoots marks the valid cache entries of every current root at every
// checkpoint as observed, so that only the rest counts as stale.
func (e *Engine) observeRoots(ctx context.Context, p *Pipeline) (*checkpoint.Manager, error) {
	roots, err := e.roots(ctx, p)
	if err != nil {
		return nil, err
	}
	manager := e.manager(p, e.logger)
	for _, name := range p.Graph.Checkpoints {
		part := manager.Checkpoint(name, slices.Values(roots))
		for _, err := range manager.Save(name, nil, part) {
			if err != nil {
				return nil, err
			}
		}
	}
	return manager, nil
}

func (e *Engine) manager(p *Pipeline, logger *slog.Logger) *checkpoint.Manager {
	opts := []checkpoint.Option{checkpoint.WithLogger(logger)}
	if e.verifier != nil {
		opts = append(opts, checkpoint.WithVerifier(e.verifier))
	}
	return checkpoint.New(p.CacheRoot, p.Graph.Ext, opts...)
}

// roots drains the source, skipping items it reports as unsupported.
func (e *Engine) roots(ctx context.Context, p *Pipeline) ([]*domain.Item, error) {
	var roots []*domain.Item
	for item, err := range p.Graph.Source.Items(ctx) {
		if err != nil {
			if errors.Is(err, domain.ErrCapability) {
				continue
			}
			return nil, fmt.Errorf("source %q: %w", p.Graph.Source.Name(), err)
		}
		roots = append(roots, item)
	}
	return roots, nil
}

func (e *Engine) lock(ctx context.Context, p *Pipeline) (ports.UnlockFunc, error) {
	locker := e.locker
	if locker == nil {
		locker = flock.New(filepath.Join(p.CacheRoot, StateDir))
	}
	unlock, err := locker.TryLock(ctx, LockKey(p.CacheRoot), e.lockTTL)
	if errors.Is(err, ports.ErrLockHeld) {
		return nil, fmt.Errorf("%w: %s", ErrCacheBusy, p.CacheRoot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock cache root: %w", err)
	}
	return unlock, nil
}

func (e *Engine) openJournal(p *Pipeline) (ports.RunJournal, func(), error) {
	if e.journal != nil {
		return e.journal, func() {}, nil
	}
	j, err := sqlite.Open(journalPath(p))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run journal: %w", err)
	}
	return j, func() {
		if err := j.Close(); err != nil {
			e.logger.Warn("failed to close run journal", "error", err)
		}
	}, nil
}

// LockKey names the lock of a cache root. Hosts sharing a cache root over a
// network mount derive the same key from the same absolute path.
func LockKey(cacheRoot string) string {
	abs, err := filepath.Abs(cacheRoot)
	if err != nil {
		abs = cacheRoot
	}
	return "cache-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String()
}

func journalPath(p *Pipeline) string {
	return filepath.Join(p.CacheRoot, StateDir, JournalFile)
}

func checkpointNodes(g *domain.Graph) []*domain.Node {
	var nodes []*domain.Node
	g.Walk(func(n *domain.Node) bool {
		if !n.IsInletRef() && n.Stage.Kind() == domain.KindCheckpoint {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
