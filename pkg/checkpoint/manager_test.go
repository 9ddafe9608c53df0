package checkpoint_test

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/aretw0/sluice/pkg/checkpoint"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roots(names ...string) iter.Seq[*domain.Item] {
	return func(yield func(*domain.Item) bool) {
		for _, n := range names {
			if !yield(domain.NewRootItem(n, domain.MemoryContent([]byte("src:"+n)))) {
				return
			}
		}
	}
}

func names(seq iter.Seq[*domain.Item]) []string {
	var out []string
	for item := range seq {
		out = append(out, item.Root())
	}
	return out
}

func writeEntry(t *testing.T, m *checkpoint.Manager, root, name, data string) string {
	t.Helper()
	path := m.Path(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestCheckpoint_PartitionIsTotal(t *testing.T) {
	m := checkpoint.New(t.TempDir(), "png")
	writeEntry(t, m, "b", "up", "cached-b")
	writeEntry(t, m, "d", "up", "")
	writeEntry(t, m, "a", "other", "wrong checkpoint")

	p := m.Checkpoint("up", roots("a", "b", "c", "d"))

	assert.Equal(t, []string{"b"}, names(p.Done()))
	assert.Equal(t, []string{"a", "c", "d"}, names(p.ToDo()), "empty entries are misses")

	done, todo := p.Counts()
	assert.Equal(t, 4, done+todo)

	for item := range p.Done() {
		data, err := item.Content().Bytes()
		require.NoError(t, err)
		assert.Equal(t, "cached-b", string(data))
		assert.Equal(t, m.Path("b", "up"), item.Content().Path())
		require.NotNil(t, item.Parent())
		assert.Equal(t, "b", item.Parent().Name())
	}
}

func TestCheckpoint_VerifierDemotesToToDo(t *testing.T) {
	bad := errors.New("corrupt")
	m := checkpoint.New(t.TempDir(), "png", checkpoint.WithVerifier(func(_ string, data []byte) error {
		if string(data) == "garbage" {
			return bad
		}
		return nil
	}))
	writeEntry(t, m, "a", "up", "garbage")
	writeEntry(t, m, "b", "up", "fine")

	p := m.Checkpoint("up", roots("a", "b"))
	assert.Equal(t, []string{"b"}, names(p.Done()))
	assert.Equal(t, []string{"a"}, names(p.ToDo()))
}

func TestSave_DoneFirstThenComputed(t *testing.T) {
	m := checkpoint.New(t.TempDir(), ".png")
	writeEntry(t, m, "b", "up", "cached-b")

	p := m.Checkpoint("up", roots("a", "b", "c"))

	computed := func(yield func(*domain.Item) bool) {
		for item := range p.ToDo() {
			out := item.Derive(item.Name()+"_up", domain.MemoryContent([]byte("new:"+item.Root())))
			if !yield(out) {
				return
			}
		}
	}

	var got []string
	for item, err := range m.Save("up", computed, p) {
		require.NoError(t, err)
		got = append(got, item.Root())
		assert.Equal(t, m.Path(item.Root(), "up"), item.Content().Path())
	}
	assert.Equal(t, []string{"b", "a", "c"}, got)

	data, err := os.ReadFile(m.Path("a", "up"))
	require.NoError(t, err)
	assert.Equal(t, "new:a", string(data))

	want := []string{m.Path("a", "up"), m.Path("b", "up"), m.Path("c", "up")}
	slices.Sort(want)
	assert.Equal(t, want, m.Observed())
}

func TestSave_SecondRunIsAllDone(t *testing.T) {
	dir := t.TempDir()
	first := checkpoint.New(dir, "png")
	p := first.Checkpoint("up", roots("a", "b"))
	for _, err := range first.Save("up", p.ToDo(), p) {
		require.NoError(t, err)
	}
	before, err := os.ReadFile(first.Path("a", "up"))
	require.NoError(t, err)

	second := checkpoint.New(dir, "png")
	assert.Empty(t, second.Observed(), "a new manager starts with nothing observed")
	p = second.Checkpoint("up", roots("a", "b"))
	assert.Empty(t, names(p.ToDo()))
	for _, err := range second.Save("up", nil, p) {
		require.NoError(t, err)
	}

	after, err := os.ReadFile(second.Path("a", "up"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, second.Observed(), 2)
}

func TestPurge_RemovesUnobserved(t *testing.T) {
	dir := t.TempDir()
	m := checkpoint.New(dir, "png")
	keep := writeEntry(t, m, "a", "up", "a")
	stale := writeEntry(t, m, "a", "old", "x")
	gone := writeEntry(t, m, "z", "up", "z")
	state := filepath.Join(dir, ".sluice", "runs.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(state), 0o755))
	require.NoError(t, os.WriteFile(state, []byte("db"), 0o644))

	p := m.Checkpoint("up", roots("a"))
	for _, err := range m.Save("up", nil, p) {
		require.NoError(t, err)
	}

	listed, err := m.Stale(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{stale, gone}, listed)
	assert.FileExists(t, stale, "listing deletes nothing")

	report, err := m.Purge(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{stale, gone}, report.Files)
	assert.Equal(t, []string{filepath.Dir(gone)}, report.Dirs)
	assert.Equal(t, 1, report.Kept)

	assert.FileExists(t, keep)
	assert.NoFileExists(t, stale)
	assert.NoDirExists(t, filepath.Dir(gone))
	assert.FileExists(t, state, "dot directories are never purged")
	assert.DirExists(t, dir)
}

func TestPurge_MissingRoot(t *testing.T) {
	m := checkpoint.New(filepath.Join(t.TempDir(), "nope"), "png")
	report, err := m.Purge(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Files)
}

func TestPurge_Cancelled(t *testing.T) {
	dir := t.TempDir()
	m := checkpoint.New(dir, "png")
	writeEntry(t, m, "a", "up", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Purge(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
