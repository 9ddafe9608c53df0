package schema_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/sluice/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func parseYAML(t *testing.T, doc string) (*schema.Pipeline, error) {
	t.Helper()
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	return schema.Parse(raw)
}

func TestParse_FullDocument(t *testing.T) {
	p, err := parseYAML(t, `
stages:
  src:
    dir: {path: ./in, glob: "*.png"}
  up:
    exec: {command: upscale, suffix: up, trim: [raw]}
  sort: pattern
  split:
    copy: {outlets: [rgb, alpha]}
  join: {concat: {inlets: [rgb, alpha]}}
  save: output
pipeline:
  - src
  - up
  - split:
      rgb: [join.rgb]
      alpha: join.alpha
  - join
  - sort:
      keep: [save]
      drop:
naming:
  trim: [tmp]
cache:
  root: ./cache
  ext: .png
work:
  root: ./work
`)
	require.NoError(t, err)

	up := p.Stages["up"]
	assert.Equal(t, "exec", up.Type)
	assert.Equal(t, "up", up.Suffix)
	assert.Equal(t, []string{"raw"}, up.Trim)
	assert.Equal(t, map[string]any{"command": "upscale"}, up.Args, "reserved keys are removed from args")

	assert.Equal(t, "pattern", p.Stages["sort"].Type)
	assert.Empty(t, p.Stages["sort"].Args)

	require.Len(t, p.Topology, 5)
	assert.Equal(t, schema.Leaf{Stage: "src"}, p.Topology[0])

	split, ok := p.Topology[2].(schema.Branch)
	require.True(t, ok)
	assert.Equal(t, "split", split.Stage)
	rgb, ok := split.Outlet("rgb")
	require.True(t, ok)
	assert.Equal(t, []schema.Node{schema.InletRef{Merger: "join", Inlet: "rgb"}}, rgb)
	alpha, _ := split.Outlet("alpha")
	assert.Equal(t, []schema.Node{schema.InletRef{Merger: "join", Inlet: "alpha"}}, alpha)

	sort := p.Topology[4].(schema.Branch)
	drop, declared := sort.Outlet("drop")
	assert.True(t, declared)
	assert.Empty(t, drop, "a nil branch is an explicit drop")

	assert.Equal(t, []string{"tmp"}, p.Naming.Trim)
	assert.Equal(t, "./cache", p.Cache.Root)
	assert.Equal(t, "png", p.Cache.Ext)
	assert.Equal(t, "./work", p.Work.Root)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		keys []string
	}{
		{
			name: "missing sections",
			doc:  `naming: {trim: [a]}`,
			keys: []string{"stages", "pipeline"},
		},
		{
			name: "unknown section and field",
			doc: `
stages: {a: identity}
pipeline: [a]
extra: 1
cache: {rot: x}
`,
			keys: []string{"extra", "cache.rot"},
		},
		{
			name: "bad field types",
			doc: `
stages:
  a: {identity: {suffix: [x], trim: oops}}
pipeline: [a]
naming: {trim: 3}
`,
			keys: []string{"stages.a.suffix", "stages.a.trim", "naming.trim"},
		},
		{
			name: "bad topology elements",
			doc: `
stages: {a: identity}
pipeline:
  - a.b.c
  - {x: 1}
  - {a: {k: [1]}, b: {}}
  - 42
`,
			keys: []string{"pipeline[0]", "pipeline[1].x", "pipeline[2]", "pipeline[3]"},
		},
		{
			name: "stage with two types",
			doc: `
stages:
  a: {identity: {}, exec: {}}
pipeline: [a]
`,
			keys: []string{"stages.a"},
		},
		{
			name: "dotted stage name",
			doc: `
stages:
  a.b: identity
pipeline: [x]
`,
			keys: []string{"stages.a.b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseYAML(t, tt.doc)
			require.Error(t, err)

			errs := schema.ValidationErrors(err)
			var got []string
			for _, e := range errs {
				var ve *schema.ValidationError
				require.ErrorAs(t, e, &ve)
				got = append(got, ve.Path)
			}
			assert.ElementsMatch(t, tt.keys, got)
		})
	}
}

func TestValidate_OptionalFields(t *testing.T) {
	s := schema.Schema{"root": schema.String(), "depth": schema.Int()}

	assert.Empty(t, schema.Validate("cache", s, map[string]any{}))
	assert.Empty(t, schema.Validate("cache", s, map[string]any{"depth": float64(2)}), "JSON numbers are whole floats")

	errs := schema.Validate("cache", s, map[string]any{"depth": 2.5, "root": 1})
	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0], "cache.depth: expected int (got float64)")
	assert.EqualError(t, errs[1], "cache.root: expected string (got int)")

	errs = schema.Validate("naming", schema.Schema{"trim": schema.Slice(schema.String())},
		map[string]any{"trim": []any{"raw", 7}})
	require.Len(t, errs, 1)
	var ve *schema.ValidationError
	require.ErrorAs(t, errs[0], &ve)
	assert.Equal(t, "naming.trim[1]", ve.Path)
	assert.Equal(t, 7, ve.Value)
	assert.Equal(t, "naming", ve.Section())
}

func TestParse_ErrorPathsInsideBranches(t *testing.T) {
	_, err := parseYAML(t, `
stages: {src: dir, up: identity, route: pattern}
pipeline:
  - src
  - up
  - route:
      keep: [42]
      drop: [up, {x: 1}]
`)
	require.Error(t, err)

	var paths []string
	for _, e := range schema.ValidationErrors(err) {
		var ve *schema.ValidationError
		require.ErrorAs(t, e, &ve)
		paths = append(paths, ve.Path)
		assert.Equal(t, "pipeline", ve.Section())
	}
	assert.ElementsMatch(t, []string{"pipeline[2].route.keep[0]", "pipeline[2].route.drop[1].x"}, paths)
	assert.Contains(t, err.Error(), "2 problems in pipeline document:")
	assert.Contains(t, err.Error(), "\n  pipeline[2].route.keep[0]: expected a stage name or a branch mapping (got int)")
}

func TestValidationErrors_Wrapped(t *testing.T) {
	_, err := parseYAML(t, "stages: {a: identity}\npipeline: [a]\nextra: 1\n")
	require.Error(t, err)

	wrapped := fmt.Errorf("invalid pipeline demo.yaml: %w", err)
	errs := schema.ValidationErrors(wrapped)
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "extra: unknown section")

	var ve *schema.ValidationError
	require.ErrorAs(t, wrapped, &ve, "single problems are reachable through the aggregate")
	assert.Equal(t, "extra", ve.Path)

	assert.Nil(t, schema.ValidationErrors(errors.New("boom")))
	assert.Nil(t, schema.ValidationErrors(nil))
}
