package stages_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
	"github.com/aretw0/sluice/pkg/stages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, typ string, args map[string]any) (domain.Stage, error) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, stages.RegisterBuiltins(reg))
	if args == nil {
		args = map[string]any{}
	}
	return reg.Build(registry.Config{Name: "s", Type: typ, Args: args})
}

func mustBuild(t *testing.T, typ string, args map[string]any) domain.Stage {
	t.Helper()
	s, err := build(t, typ, args)
	require.NoError(t, err)
	return s
}

func memItem(root, payload string) *domain.Item {
	return domain.NewRootItem(root, domain.MemoryContent([]byte(payload)))
}

func TestRegisterBuiltins(t *testing.T) {
	reg := registry.New()
	require.NoError(t, stages.RegisterBuiltins(reg))
	assert.Equal(t, []string{"checkpoint", "concat", "copy", "dir", "exec", "identity", "output", "pattern"}, reg.Types())

	assert.Error(t, stages.RegisterBuiltins(reg), "types cannot be registered twice")
}

func TestDir_ListsMatchingFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"b.png":       "B",
		"a.png":       "A",
		".hidden.png": "H",
		"notes.txt":   "N",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	src := mustBuild(t, stages.TypeDir, map[string]any{"path": dir, "glob": "*.png"}).(domain.Source)

	var roots, payloads []string
	for item, err := range src.Items(context.Background()) {
		require.NoError(t, err)
		roots = append(roots, item.Root())
		data, err := item.Content().Bytes()
		require.NoError(t, err)
		payloads = append(payloads, string(data))
		assert.Equal(t, filepath.Join(dir, item.Root()+".png"), item.Content().Path())
	}
	assert.Equal(t, []string{"a", "b"}, roots)
	assert.Equal(t, []string{"A", "B"}, payloads)
}

func TestDir_SameStemIsSkipped(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "a.md", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	src := mustBuild(t, stages.TypeDir, map[string]any{"path": dir}).(domain.Source)

	var roots, paths []string
	var errs []error
	for item, err := range src.Items(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		roots = append(roots, item.Root())
		paths = append(paths, item.Content().Path())
	}
	assert.Equal(t, []string{"a", "b"}, roots)
	assert.Equal(t, []string{filepath.Join(dir, "a.md"), filepath.Join(dir, "b.txt")}, paths)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrCapability)
	assert.ErrorContains(t, errs[0], `a.txt has the same root name "a" as a.md`)
}

func TestDir_Errors(t *testing.T) {
	_, err := build(t, stages.TypeDir, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = build(t, stages.TypeDir, map[string]any{"path": ".", "glob": "["})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	src := mustBuild(t, stages.TypeDir, map[string]any{"path": filepath.Join(t.TempDir(), "missing")}).(domain.Source)
	var errs []error
	for _, err := range src.Items(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
}

func TestIdentity(t *testing.T) {
	p := mustBuild(t, stages.TypeIdentity, nil).(domain.Processor)
	out, err := p.Process(context.Background(), memItem("a", "payload"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(out))

	_, err = build(t, stages.TypeIdentity, map[string]any{"unexpected": 1})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCopy(t *testing.T) {
	s := mustBuild(t, stages.TypeCopy, map[string]any{"outlets": []any{"rgb", "alpha"}}).(domain.Splitter)
	assert.Equal(t, []string{"rgb", "alpha"}, s.Outlets())

	out, err := s.Split(context.Background(), memItem("a", "x"))
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"rgb": []byte("x"), "alpha": []byte("x")}, out)

	for _, outlets := range [][]any{nil, {"a", "a"}, {""}} {
		_, err := build(t, stages.TypeCopy, map[string]any{"outlets": outlets})
		assert.ErrorIs(t, err, domain.ErrConfiguration, "outlets %v", outlets)
	}
}

func TestConcat(t *testing.T) {
	m := mustBuild(t, stages.TypeConcat, map[string]any{
		"inlets":    []any{"b", "a"},
		"separator": "+",
	}).(domain.Merger)
	assert.Equal(t, []string{"b", "a"}, m.Inlets())

	out, err := m.Merge(context.Background(), map[string]*domain.Item{
		"a": memItem("r", "A"),
		"b": memItem("r", "B"),
	})
	require.NoError(t, err)
	assert.Equal(t, "B+A", string(out), "inputs are joined in declared inlet order")

	_, err = m.Merge(context.Background(), map[string]*domain.Item{"a": memItem("r", "A")})
	assert.Error(t, err)
}

func TestPattern(t *testing.T) {
	s := mustBuild(t, stages.TypePattern, map[string]any{
		"routes": []any{
			map[string]any{"outlet": "small", "match": "_thumb$"},
			map[string]any{"outlet": "large", "match": "^hd_"},
			map[string]any{"outlet": "small", "match": "^icon"},
		},
		"fallback": "other",
	}).(domain.Sorter)
	assert.Equal(t, []string{"small", "large", "other"}, s.Outlets())

	cases := map[string]string{
		"cat_thumb": "small",
		"hd_dog":    "large",
		"hd_thumb":  "small",
		"icon_x":    "small",
		"plain":     "other",
	}
	for name, want := range cases {
		got, err := s.Sort(context.Background(), memItem(name, ""))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	def := mustBuild(t, stages.TypePattern, nil)
	assert.Equal(t, []string{domain.DefaultOutlet}, def.Outlets())

	_, err := build(t, stages.TypePattern, map[string]any{
		"routes": []any{map[string]any{"outlet": "x", "match": "("}},
	})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := mustBuild(t, stages.TypeOutput, map[string]any{"dir": dir, "ext": ".jpg"})
	term := s.(domain.Terminus)

	item := memItem("a", "root").Derive("a_up", domain.MemoryContent([]byte("final")))
	require.NoError(t, term.Finalize(context.Background(), item))

	path := filepath.Join(dir, "a_up.jpg")
	assert.Equal(t, path, s.(*stages.Output).Path(item))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "final", string(data))

	_, err = build(t, stages.TypeOutput, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestResolvePaths(t *testing.T) {
	base := filepath.Join(t.TempDir(), "project")
	src := mustBuild(t, stages.TypeDir, map[string]any{"path": "in"})
	out := mustBuild(t, stages.TypeOutput, map[string]any{"dir": "/abs/out"})

	g := &domain.Graph{Source: src.(domain.Source)}
	g.Head = &domain.Node{Stage: src, Next: &domain.Node{Stage: out}}
	stages.ResolvePaths(g, base)

	assert.Equal(t, filepath.Join(base, "in"), src.(*stages.Dir).Path())
	assert.Equal(t, "/abs/out", out.(*stages.Output).Dir())
}
