// Package runtime executes compiled pipeline graphs.
//
// The engine is single-threaded and depth-first: it pulls one root item from
// the source, drives it and everything derived from it to completion, and
// only then pulls the next root. Merger buffers and failures are therefore
// scoped to one root's lineage.
package runtime
