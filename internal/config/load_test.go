package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/sluice/internal/config"
	"github.com/aretw0/sluice/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDoc = `
stages:
  src: {dir: {path: in}}
  up: {exec: {command: upscale, args: ["{in}", "{out}"], suffix: up}}
  save: {output: {dir: out}}
pipeline: [src, up, save]
cache: {root: cache}
work: {root: /abs/work}
`

const jsonDoc = `{
  "stages": {
    "src": {"dir": {"path": "in"}},
    "up": {"exec": {"command": "upscale", "args": ["{in}", "{out}"], "suffix": "up", "skip_exit_codes": [3]}},
    "save": {"output": {"dir": "out"}}
  },
  "pipeline": ["src", "up", "save"],
  "cache": {"root": "cache"},
  "work": {"root": "/abs/work"}
}`

const tomlDoc = `
pipeline = ["src", "up", "save"]

[stages.src.dir]
path = "in"

[stages.up.exec]
command = "upscale"
args = ["{in}", "{out}"]
suffix = "up"

[stages.save.output]
dir = "out"

[cache]
root = "cache"

[work]
root = "/abs/work"
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Formats(t *testing.T) {
	for name, doc := range map[string]string{
		"pipeline.yaml": yamlDoc,
		"pipeline.yml":  yamlDoc,
		"pipeline.json": jsonDoc,
		"pipeline.toml": tomlDoc,
	} {
		t.Run(name, func(t *testing.T) {
			path := write(t, name, doc)
			p, err := config.Load(path)
			require.NoError(t, err)

			assert.Equal(t, []schema.Node{
				schema.Leaf{Stage: "src"}, schema.Leaf{Stage: "up"}, schema.Leaf{Stage: "save"},
			}, p.Topology)
			assert.Equal(t, "exec", p.Stages["up"].Type)
			assert.Equal(t, "up", p.Stages["up"].Suffix)
			assert.Equal(t, "upscale", p.Stages["up"].Args["command"])

			assert.Equal(t, filepath.Join(filepath.Dir(path), "cache"), p.Cache.Root)
			assert.Equal(t, "/abs/work", p.Work.Root)
		})
	}
}

func TestDecode_JSONNumbers(t *testing.T) {
	raw, err := config.Decode(".json", []byte(`{"a": 3, "b": 1.5, "c": [2]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), raw["a"])
	assert.Equal(t, 1.5, raw["b"])
	assert.Equal(t, []any{int64(2)}, raw["c"])
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read pipeline")

	_, err = config.Load(write(t, "pipeline.ini", "x=1"))
	assert.ErrorContains(t, err, "unsupported pipeline format")

	_, err = config.Load(write(t, "pipeline.yaml", ""))
	assert.ErrorContains(t, err, "empty")

	_, err = config.Load(write(t, "pipeline.yaml", "stages: {a: identity}\n"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid pipeline pipeline.yaml: pipeline: required")
	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 1, "problems survive the wrapping")
	var ve *schema.ValidationError
	require.ErrorAs(t, errs[0], &ve)
	assert.Equal(t, "pipeline", ve.Path)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "", config.Resolve("/base", ""))
	assert.Equal(t, "/abs", config.Resolve("/base", "/abs"))
	assert.Equal(t, filepath.Join("/base", "rel"), config.Resolve("/base", "rel"))
}
