package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/sluice/internal/fsutil"
	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/pkg/domain"
)

// Verifier validates the bytes of a cache entry before it is trusted.
// A non-nil error demotes the entry to a cache miss.
type Verifier func(path string, data []byte) error

// Manager memoizes items at named checkpoints under a cache root and tracks
// which cache entries the current run has observed.
type Manager struct {
	root   string
	ext    string
	verify Verifier
	logger *slog.Logger

	mu       sync.Mutex
	observed map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithVerifier sets a content check applied to every cache hit.
func WithVerifier(v Verifier) Option {
	return func(m *Manager) {
		m.verify = v
	}
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a manager for the cache at root, storing artifacts with the
// given extension. The observed set starts empty.
func New(root, ext string, opts ...Option) *Manager {
	m := &Manager{
		root:     filepath.Clean(root),
		ext:      strings.TrimPrefix(ext, "."),
		observed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	m.logger = m.logger.With("component", "checkpoint")
	return m
}

// Root returns the cache root directory.
func (m *Manager) Root() string { return m.root }

// Path returns the cache location of rootName at checkpoint name.
func (m *Manager) Path(rootName, name string) string {
	return filepath.Join(m.root, rootName, name+"."+m.ext)
}

// Checkpoint classifies every item of items as done (cached at checkpoint
// name) or to-do in a single pass.
//
// Done items are rebuilt from the cache: same root and name as the input,
// content backed by the cache file, parent set to the input item.
// Entries that exist but cannot be used are logged and treated as misses.
func (m *Manager) Checkpoint(name string, items iter.Seq[*domain.Item]) Partition {
	p := Partition{name: name}
	for item := range items {
		e := entry{item: item}
		cached, err := m.lookup(name, item)
		switch {
		case err != nil:
			m.logger.Warn("ignoring cache entry", "checkpoint", name, "root", item.Root(), "error", err)
		case cached != nil:
			e.cached = cached
		}
		p.entries = append(p.entries, e)
	}
	return p
}

func (m *Manager) lookup(name string, item *domain.Item) (*domain.Item, error) {
	path := m.Path(item.Root(), name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.CacheReadError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &domain.CacheReadError{Path: path, Err: fmt.Errorf("not a regular file")}
	}
	if info.Size() == 0 {
		return nil, &domain.CacheReadError{Path: path, Err: fmt.Errorf("empty file")}
	}

	if m.verify == nil {
		f, err := os.Open(path)
		if err != nil {
			return nil, &domain.CacheReadError{Path: path, Err: err}
		}
		_ = f.Close()
		return item.Derive(item.Name(), domain.FileContent(path)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.CacheReadError{Path: path, Err: err}
	}
	if err := m.verify(path, data); err != nil {
		return nil, &domain.CacheReadError{Path: path, Err: err}
	}
	return item.Derive(item.Name(), domain.PersistedContent(path, data)), nil
}

// Save marks the done items of p observed and yields them, then persists each
// computed item to checkpoint name, marks it observed and yields the
// cache-backed copy. Done items always come first, so the relative order of
// the two groups is not the input order.
//
// The sequence stops at the first write failure, yielding the error.
func (m *Manager) Save(name string, computed iter.Seq[*domain.Item], p Partition) iter.Seq2[*domain.Item, error] {
	return func(yield func(*domain.Item, error) bool) {
		for item := range p.Done() {
			m.observe(item.Content().Path())
			if !yield(item, nil) {
				return
			}
		}
		if computed == nil {
			return
		}
		for item := range computed {
			saved, err := m.persist(name, item)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(saved, nil) {
				return
			}
		}
	}
}

func (m *Manager) persist(name string, item *domain.Item) (*domain.Item, error) {
	data, err := item.Content().Bytes()
	if err != nil {
		return nil, fmt.Errorf("checkpoint %q: reading %s: %w", name, item, err)
	}
	path := m.Path(item.Root(), name)
	if err := fsutil.WriteFile(path, data); err != nil {
		return nil, fmt.Errorf("checkpoint %q: %w", name, err)
	}
	m.observe(path)
	m.logger.Debug("checkpoint saved", "checkpoint", name, "root", item.Root(), "path", path)
	return item.Derive(item.Name(), domain.PersistedContent(path, data)), nil
}

func (m *Manager) observe(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed[filepath.Clean(path)] = struct{}{}
}

// Observed returns the cache paths observed so far, sorted.
func (m *Manager) Observed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.observed))
	for p := range m.observed {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (m *Manager) isObserved(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.observed[filepath.Clean(path)]
	return ok
}

// PurgeReport lists what a purge removed.
type PurgeReport struct {
	Files []string
	Dirs  []string
	Kept  int
}

// Purge deletes every file under the cache root that was not observed in
// this run, then removes per-item directories left empty. The root itself and
// directories whose name starts with "." are never touched.
func (m *Manager) Purge(ctx context.Context) (PurgeReport, error) {
	var report PurgeReport
	dirs, err := m.walk(ctx, func(path string, observed bool) error {
		if observed {
			report.Kept++
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to purge %s: %w", path, err)
		}
		report.Files = append(report.Files, path)
		return nil
	})
	if err != nil {
		return report, err
	}

	// Deepest first, so parents see their children already gone.
	for i := len(dirs) - 1; i >= 0; i-- {
		empty, err := fsutil.IsEmptyDir(dirs[i])
		if err != nil || !empty {
			continue
		}
		if err := os.Remove(dirs[i]); err != nil {
			return report, fmt.Errorf("failed to remove empty directory %s: %w", dirs[i], err)
		}
		report.Dirs = append(report.Dirs, dirs[i])
	}

	m.logger.Info("cache purged", "removed", len(report.Files), "dirs", len(report.Dirs), "kept", report.Kept)
	return report, nil
}

// Stale lists the files Purge would delete, without deleting them.
func (m *Manager) Stale(ctx context.Context) ([]string, error) {
	var files []string
	_, err := m.walk(ctx, func(path string, observed bool) error {
		if !observed {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// walk calls fn for every file under the root, outside dot-directories, and
// returns the directories it entered in walk order.
func (m *Manager) walk(ctx context.Context, fn func(path string, observed bool) error) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == m.root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path == m.root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			dirs = append(dirs, path)
			return nil
		}
		return fn(path, m.isObserved(path))
	})
	return dirs, err
}
