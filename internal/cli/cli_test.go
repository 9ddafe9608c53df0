package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineDoc = `
stages:
  src: {dir: {path: in}}
  same: {identity: {suffix: copy}}
  keep: checkpoint
  save: {output: {dir: out, ext: txt}}
pipeline: [src, same, keep, save]
cache: {ext: txt}
`

func project(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "in"), 0o755))
	for _, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "in", name), []byte(name), 0o644))
	}
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func newEnv(t *testing.T, s Settings) *Env {
	t.Helper()
	env, err := NewEnv(s)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, env.Close()) })
	return env
}

func TestLoadSettings_Precedence(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "sluice.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log-format: json\nlock-ttl: 5m\nwork-root: /from-file\ndebug: true\n"), 0o644))
	t.Setenv("SLUICE_WORK_ROOT", "/from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flags)
	require.NoError(t, flags.Parse([]string{"--cache-root", "/from-flag", "--config", cfg}))

	s, err := LoadSettings(flags)
	require.NoError(t, err)
	assert.Equal(t, "/from-flag", s.CacheRoot)
	assert.Equal(t, "/from-env", s.WorkRoot, "environment beats the settings file")
	assert.Equal(t, LogJSON, s.LogFormat)
	assert.Equal(t, 5*time.Minute, s.LockTTL)
	assert.True(t, s.Debug)
}

func TestLoadSettings_Errors(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flags)
	require.NoError(t, flags.Parse([]string{"--log-format", "xml"}))
	_, err := LoadSettings(flags)
	assert.ErrorContains(t, err, `invalid log format "xml"`)

	flags = pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flags)
	require.NoError(t, flags.Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))
	_, err = LoadSettings(flags)
	assert.ErrorContains(t, err, "failed to read settings")
}

func TestSignalContext(t *testing.T) {
	sc := NewSignalContext(context.Background())
	defer sc.Stop()
	assert.False(t, sc.Interrupted(context.Canceled), "no signal received yet")

	forced := make(chan struct{})
	sc.mu.Lock()
	sc.Force = func() { close(forced) }
	sc.mu.Unlock()

	sc.sigCh <- os.Interrupt
	<-sc.Done()
	assert.Equal(t, os.Interrupt, sc.Signal())
	assert.True(t, sc.Interrupted(fmt.Errorf("pipeline failed: %w", context.Canceled)))
	assert.False(t, sc.Interrupted(nil))

	sc.sigCh <- syscall.SIGTERM
	select {
	case <-forced:
	case <-time.After(time.Second):
		t.Fatal("second signal did not force an exit")
	}
	assert.Equal(t, os.Interrupt, sc.Signal(), "the first signal is kept")
}

func TestCommands_Lifecycle(t *testing.T) {
	path := project(t, pipelineDoc)
	dir := filepath.Dir(path)
	env := newEnv(t, Settings{})
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, Validate(env, path, &out))
	assert.Equal(t, "Pipeline pipeline is valid: 3 stages, 1 checkpoint ✅\n", out.String())

	out.Reset()
	require.NoError(t, Status(ctx, env, path, &out))
	assert.Contains(t, out.String(), "pending")

	out.Reset()
	require.NoError(t, Run(ctx, env, path, &out))
	assert.Contains(t, out.String(), "done: 2 roots")
	assert.FileExists(t, filepath.Join(dir, "out", "a_copy.txt"))

	out.Reset()
	require.NoError(t, Status(ctx, env, path, &out))
	assert.Contains(t, out.String(), "complete")
	assert.NotContains(t, out.String(), "pending")

	out.Reset()
	require.NoError(t, Graph(ctx, env, path, true, &out))
	assert.Contains(t, out.String(), "class keep done;")

	out.Reset()
	require.NoError(t, History(ctx, env, path, 5, &out))
	assert.Contains(t, out.String(), "succeeded")

	stale := filepath.Join(dir, "cache", "gone", "keep.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	out.Reset()
	require.NoError(t, Purge(ctx, env, path, true, &out))
	assert.Contains(t, out.String(), stale)
	assert.Contains(t, out.String(), "1 file would be purged")
	assert.FileExists(t, stale)

	out.Reset()
	require.NoError(t, Purge(ctx, env, path, false, &out))
	assert.Equal(t, "1 file purged\n", out.String())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(dir, "out", "a_copy.txt"))
}

func TestHistory_Empty(t *testing.T) {
	path := project(t, pipelineDoc)
	var out bytes.Buffer
	require.NoError(t, History(context.Background(), newEnv(t, Settings{}), path, 5, &out))
	assert.Contains(t, out.String(), "No runs recorded")
}

func TestValidate_ListsProblems(t *testing.T) {
	path := project(t, "stages: {a: identity, b: pattern}\npipeline: [a, {b: {keep: [7]}}]\nextra: 1\ncache: {rot: x}\n")
	var out bytes.Buffer
	err := Validate(newEnv(t, Settings{}), path, &out)
	assert.EqualError(t, err, "3 problems found")
	assert.Equal(t, ""+
		"  - extra                  unknown section\n"+
		"  - pipeline[1].b.keep[0]  expected a stage name or a branch mapping (got int)\n"+
		"  - cache.rot              unknown field\n", out.String())
}

func TestDescribe(t *testing.T) {
	path := project(t, pipelineDoc)
	var out bytes.Buffer
	require.NoError(t, Describe(newEnv(t, Settings{}), path, &out))
	assert.Contains(t, out.String(), "# pipeline")
	assert.Contains(t, out.String(), "| keep | checkpoint | checkpoint |")
	assert.Contains(t, out.String(), "```mermaid")
}

func TestNewEnv_MetricsAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	path := project(t, pipelineDoc)
	env := newEnv(t, Settings{
		MetricsAddr: "127.0.0.1:0",
		RedisURL:    "redis://" + mr.Addr(),
		NoPurge:     true,
		Debug:       true,
	})
	require.NotNil(t, env.Metrics)

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), env, path, &out))
	assert.Contains(t, out.String(), "done: 2 roots")

	families, err := env.Metrics.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "sluice_stage_items_total")
}

func TestNewEnv_BadRedisURL(t *testing.T) {
	_, err := NewEnv(Settings{RedisURL: "http://nope"})
	assert.ErrorContains(t, err, "invalid redis url")
}
