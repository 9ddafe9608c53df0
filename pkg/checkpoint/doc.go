// Package checkpoint memoizes pipeline items on disk.
//
// A checkpoint is a named position in a pipeline. The item for root R at
// checkpoint C lives at {cacheRoot}/{R}/{C}.{ext}; the file's existence is the
// memoization signal, there is no metadata alongside it.
//
// A run classifies items, saves what it computed, and finally purges
// everything it did not observe:
//
//	m := checkpoint.New(".cache", "png", checkpoint.WithLogger(logger))
//	p := m.Checkpoint("upscaled", items)
//	computed := process(p.ToDo())
//	for item, err := range m.Save("upscaled", computed, p) {
//	    ...
//	}
//	report, err := m.Purge(ctx)
package checkpoint
