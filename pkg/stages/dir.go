package stages

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
)

type dirArgs struct {
	Path string `mapstructure:"path"`
	Glob string `mapstructure:"glob"`
}

// Dir is a source emitting one root item per file of a directory.
// The root name is the file name without its extension.
type Dir struct {
	domain.Base
	path string
	glob string
}

// NewDir builds a Dir source. Args: path (required), glob (default "*").
func NewDir(cfg registry.Config) (domain.Stage, error) {
	var args dirArgs
	if err := registry.Decode(cfg.Args, &args); err != nil {
		return nil, err
	}
	if args.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if args.Glob == "" {
		args.Glob = "*"
	}
	if _, err := filepath.Match(args.Glob, ""); err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", args.Glob, err)
	}
	return &Dir{
		Base: domain.NewBase(cfg.Name, domain.KindSource),
		path: args.Path,
		glob: args.Glob,
	}, nil
}

// Path returns the directory the source lists.
func (d *Dir) Path() string { return d.path }

func (d *Dir) ResolvePaths(base string) { d.path = resolve(base, d.path) }

// Items lists matching regular files sorted by name. Content is read lazily.
// Root names are file names without extension; a file whose root name is
// already taken by an earlier file is skipped with a capability error.
func (d *Dir) Items(ctx context.Context) iter.Seq2[*domain.Item, error] {
	return func(yield func(*domain.Item, error) bool) {
		entries, err := os.ReadDir(d.path)
		if err != nil {
			yield(nil, fmt.Errorf("failed to list %s: %w", d.path, err))
			return
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if ok, _ := filepath.Match(d.glob, e.Name()); ok {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		owners := make(map[string]string, len(names))
		for _, name := range names {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			root := strings.TrimSuffix(name, filepath.Ext(name))
			if prev, taken := owners[root]; taken {
				reason := fmt.Sprintf("%s has the same root name %q as %s", name, root, prev)
				if !yield(nil, domain.Capability(d.Name(), reason, nil)) {
					return
				}
				continue
			}
			owners[root] = name
			item := domain.NewRootItem(root, domain.FileContent(filepath.Join(d.path, name)))
			if !yield(item, nil) {
				return
			}
		}
	}
}
