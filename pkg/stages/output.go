package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/sluice/internal/fsutil"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
)

type outputArgs struct {
	Dir string `mapstructure:"dir"`
	Ext string `mapstructure:"ext"`
}

// Output is a terminus writing each item to {dir}/{derivedName}.{ext}.
type Output struct {
	domain.Base
	dir string
	ext string
}

// NewOutput builds an Output terminus. Args: dir (required), ext (default "png").
func NewOutput(cfg registry.Config) (domain.Stage, error) {
	var args outputArgs
	if err := registry.Decode(cfg.Args, &args); err != nil {
		return nil, err
	}
	if args.Dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	ext := strings.TrimPrefix(args.Ext, ".")
	if ext == "" {
		ext = "png"
	}
	return &Output{
		Base: domain.NewBase(cfg.Name, domain.KindTerminus),
		dir:  args.Dir,
		ext:  ext,
	}, nil
}

// Dir returns the output directory.
func (s *Output) Dir() string { return s.dir }

func (s *Output) ResolvePaths(base string) { s.dir = resolve(base, s.dir) }

// Path returns where item would be written.
func (s *Output) Path(item *domain.Item) string {
	return filepath.Join(s.dir, item.Name()+"."+s.ext)
}

func (s *Output) Finalize(ctx context.Context, item *domain.Item) error {
	data, err := item.Content().Bytes()
	if err != nil {
		return err
	}
	return fsutil.WriteFile(s.Path(item), data)
}
