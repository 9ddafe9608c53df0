package stages

import (
	"path/filepath"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
)

// Type names of the built-in stages.
const (
	TypeDir      = "dir"
	TypeIdentity = "identity"
	TypeExec     = "exec"
	TypePattern  = "pattern"
	TypeCopy     = "copy"
	TypeConcat   = "concat"
	TypeOutput   = "output"
)

// RegisterBuiltins adds every built-in stage type to reg.
func RegisterBuiltins(reg *registry.Registry) error {
	builtins := []struct {
		name string
		ctor registry.Constructor
	}{
		{TypeDir, NewDir},
		{TypeIdentity, NewIdentity},
		{TypeExec, NewExec},
		{TypePattern, NewPattern},
		{TypeCopy, NewCopy},
		{TypeConcat, NewConcat},
		{TypeOutput, NewOutput},
	}
	for _, b := range builtins {
		if err := reg.Register(b.name, b.ctor); err != nil {
			return err
		}
	}
	return nil
}

// PathResolver is implemented by stages that hold filesystem paths taken from
// a pipeline file. Relative paths are resolved against base, the directory of
// that file.
type PathResolver interface {
	ResolvePaths(base string)
}

// ResolvePaths calls ResolvePaths on every stage of g that supports it.
func ResolvePaths(g *domain.Graph, base string) {
	g.Walk(func(n *domain.Node) bool {
		if r, ok := n.Stage.(PathResolver); ok && !n.IsInletRef() {
			r.ResolvePaths(base)
		}
		return true
	})
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
