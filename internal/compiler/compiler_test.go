package compiler_test

import (
	"testing"

	"github.com/aretw0/sluice/internal/compiler"
	"github.com/aretw0/sluice/internal/testutils"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakes() *registryFixture {
	return &registryFixture{
		stages: []domain.Stage{
			testutils.NewSource("src"),
			testutils.NewProcessor("up"),
			testutils.NewProcessor("down"),
			testutils.NewSorter("sort", "keep", "drop"),
			testutils.NewSplitter("split", "rgb", "alpha"),
			testutils.NewMerger("join", "rgb", "alpha"),
			testutils.NewTerminus("save"),
			testutils.NewTerminus("save2"),
		},
	}
}

type registryFixture struct {
	stages []domain.Stage
}

func (f *registryFixture) registry(t *testing.T) *registry.Registry {
	return testutils.Registry(t, f.stages...)
}

const defs = `
naming:
  trim: [tmp]
stages:
  src: src
  up: {up: {suffix: up, trim: [raw]}}
  down: down
  sort: sort
  split: split
  join: {join: {suffix: joined}}
  save: save
  save2: save2
  cp: {checkpoint: {name: upscaled}}
`

func compile(t *testing.T, topology string) (*domain.Graph, error) {
	t.Helper()
	p := testutils.ParsePipeline(t, defs+topology)
	return compiler.New(fakes().registry(t)).Compile(p)
}

func TestCompile_LinearChain(t *testing.T) {
	g, err := compile(t, `
pipeline: [src, up, cp, down, save]
cache: {ext: jpg}
`)
	require.NoError(t, err)

	assert.Equal(t, "src", g.Source.Name())
	assert.Equal(t, "jpg", g.Ext)
	assert.Equal(t, []string{"upscaled"}, g.Checkpoints)

	var order []string
	for _, n := range g.Nodes() {
		order = append(order, n.Name())
	}
	assert.Equal(t, []string{"src", "up", "cp", "down", "save"}, order)

	up := g.Head.Next
	assert.Equal(t, "up", up.Suffix)
	assert.Equal(t, "up", up.Key)
	assert.Equal(t, []string{"tmp", "raw"}, up.Trim, "pipeline trims come first")
	assert.Equal(t, "down", up.Next.Next.Key, "key defaults to the stage name")
}

func TestCompile_DefaultExt(t *testing.T) {
	g, err := compile(t, `pipeline: [src, up]`)
	require.NoError(t, err)
	assert.Equal(t, compiler.DefaultExt, g.Ext)
	assert.Nil(t, g.Head.Next.Next, "an open chain ends the lineage")
}

func TestCompile_BranchesAndMerger(t *testing.T) {
	g, err := compile(t, `
pipeline:
  - src
  - split:
      rgb: [up, join.rgb]
      alpha: [join.alpha]
  - join
  - sort:
      keep: [save]
`)
	require.NoError(t, err)

	split := g.Head.Next
	require.Equal(t, domain.KindSplitter, split.Stage.Kind())
	assert.Nil(t, split.Next, "mergers are reached through inlet references")

	rgb := split.Branches["rgb"]
	require.NotNil(t, rgb)
	assert.Equal(t, "up", rgb.Name())
	require.True(t, rgb.Next.IsInletRef())
	assert.Equal(t, "join.rgb", rgb.Next.Name())

	alpha := split.Branches["alpha"]
	require.True(t, alpha.IsInletRef())
	assert.Same(t, rgb.Next.Target, alpha.Target, "both references target the same merger node")

	join := alpha.Target
	assert.Equal(t, "joined", join.Key)
	sort := join.Next
	require.Equal(t, "sort", sort.Name())
	assert.Equal(t, "save", sort.Branches["keep"].Name())
	v, declared := sort.Branches["drop"]
	assert.True(t, declared)
	assert.Nil(t, v, "unbranched outlets are implicit termini")
}

func TestCompile_LeafSorterDropsEverything(t *testing.T) {
	g, err := compile(t, `pipeline: [src, sort]`)
	require.NoError(t, err)
	sort := g.Head.Next
	assert.Len(t, sort.Branches, 2)
	for _, b := range sort.Branches {
		assert.Nil(t, b)
	}
}

func TestCompile_SorterAlternativesFeedOneInlet(t *testing.T) {
	f := fakes()
	f.stages = append(f.stages, testutils.NewMerger("pick", "any"))
	p := testutils.ParsePipeline(t, defs+`  pick: pick
pipeline:
  - src
  - sort:
      keep: [up, pick.any]
      drop: [down, pick.any]
  - pick
  - save
`)
	_, err := compiler.New(f.registry(t)).Compile(p)
	require.NoError(t, err)
}

func TestCompile_SplitterOutletsCannotShareAnInlet(t *testing.T) {
	tests := []struct {
		name     string
		topology string
	}{
		{"direct", "pipeline:\n  - src\n  - split: {rgb: [join.rgb], alpha: [join.rgb]}\n  - join\n"},
		{"through a sorter", `
pipeline:
  - src
  - split:
      rgb:
        - sort: {keep: [join.alpha], drop: [join.rgb]}
      alpha: [join.alpha]
  - join
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(t, tt.topology)
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Error(), `fed from two outlets of splitter "split"`)
		})
	}
}

func TestCompile_SorterUnderSplitterFeedsOneInlet(t *testing.T) {
	g, err := compile(t, `
pipeline:
  - src
  - split:
      rgb:
        - sort: {keep: [join.rgb], drop: [join.rgb]}
      alpha: [join.alpha]
  - join
  - save
`)
	require.NoError(t, err)
	sort := g.Head.Next.Branches["rgb"]
	require.NotNil(t, sort)
	assert.Equal(t, "rgb", sort.Branches["keep"].Inlet)
	assert.Equal(t, "rgb", sort.Branches["drop"].Inlet)
}

func TestCompile_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		topology string
		stage    string
	}{
		{"unknown stage", `pipeline: [src, nope]`, "nope"},
		{"source not first", `pipeline: [up, src]`, "up"},
		{"source twice", `pipeline: [src, up, src]`, "src"},
		{"duplicate position", `pipeline: [src, up, cp, up]`, "up"},
		{"duplicate across branches", "pipeline:\n  - src\n  - sort: {keep: [up], drop: [up]}\n", "up"},
		{"element after terminus", `pipeline: [src, save, up]`, "up"},
		{"processor after fan-out", `pipeline: [src, sort, up]`, "up"},
		{"merger without fan-out", "pipeline:\n  - src\n  - up\n  - join\n", "join"},
		{"merger inlet without producer", "pipeline:\n  - src\n  - split: {rgb: [join.rgb]}\n  - join\n", "join"},
		{"reference to unplaced merger", "pipeline:\n  - src\n  - split: {rgb: [join.rgb], alpha: [join.alpha]}\n", "join"},
		{"element after inlet reference", "pipeline:\n  - src\n  - split: {rgb: [join.rgb, up], alpha: [join.alpha]}\n  - join\n", "up"},
		{"reference to non-merger", "pipeline:\n  - src\n  - split: {rgb: [up.default]}\n", "up.default"},
		{"branch on processor", "pipeline:\n  - src\n  - up: {default: [save]}\n", "up"},
		{"merger heading a branch", "pipeline:\n  - src\n  - sort: {keep: [join]}\n", "join"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(t, tt.topology)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)

			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.stage, cfgErr.Stage)
		})
	}
}

func TestCompile_DuplicateCheckpointNames(t *testing.T) {
	p := testutils.ParsePipeline(t, defs+`  cp3: {checkpoint: {name: upscaled}}
pipeline: [src, cp, up, cp3]
`)
	_, err := compiler.New(fakes().registry(t)).Compile(p)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "cp3", cfgErr.Stage)
	assert.Contains(t, cfgErr.Reason, `"upscaled"`)
}

func TestCompile_ArtifactKeyClash(t *testing.T) {
	f := fakes()
	f.stages = append(f.stages, testutils.NewProcessor("up2"))
	p := testutils.ParsePipeline(t, defs+`  up2: {up2: {suffix: up}}
pipeline: [src, up, up2]
`)
	_, err := compiler.New(f.registry(t)).Compile(p)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "up2", cfgErr.Stage)
	assert.Contains(t, cfgErr.Reason, "artifact key")
}

func TestCompile_RoutingErrors(t *testing.T) {
	tests := []struct {
		name     string
		topology string
		port     string
	}{
		{"undeclared outlet", "pipeline:\n  - src\n  - sort: {keep: [save], maybe: [save2]}\n", "maybe"},
		{"undeclared inlet", "pipeline:\n  - src\n  - split: {rgb: [join.red]}\n", "red"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(t, tt.topology)
			var routeErr *domain.RoutingError
			require.ErrorAs(t, err, &routeErr)
			assert.Equal(t, tt.port, routeErr.Port)
			assert.ErrorIs(t, err, domain.ErrRouting)
		})
	}
}

func TestCompile_UnknownStageType(t *testing.T) {
	p := testutils.ParsePipeline(t, `
stages:
  src: src
  x: warp
pipeline: [src, x]
`)
	_, err := compiler.New(fakes().registry(t)).Compile(p)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "x", cfgErr.Stage)
	assert.Contains(t, cfgErr.Reason, "warp")
}

func TestCompile_StagesAreInstantiatedOnce(t *testing.T) {
	builds := 0
	reg := registry.New()
	reg.MustRegister("src", func(registry.Config) (domain.Stage, error) { return testutils.NewSource("src"), nil })
	reg.MustRegister("merge", func(cfg registry.Config) (domain.Stage, error) {
		builds++
		return testutils.NewMerger(cfg.Name, "a", "b"), nil
	})
	reg.MustRegister("split", func(cfg registry.Config) (domain.Stage, error) {
		return testutils.NewSplitter(cfg.Name, "a", "b"), nil
	})

	p := testutils.ParsePipeline(t, `
stages: {src: src, s: split, m: merge}
pipeline:
  - src
  - s: {a: [m.a], b: [m.b]}
  - m
`)
	_, err := compiler.New(reg).Compile(p)
	require.NoError(t, err)
	assert.Equal(t, 1, builds)
}
