package domain

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// Content is a handle to an item's payload.
// It is either backed by a file (loaded lazily, at most once) or held in memory.
type Content struct {
	path string

	once sync.Once
	data []byte
	err  error
}

// FileContent returns content that is read from path on first use.
func FileContent(path string) *Content {
	return &Content{path: path}
}

// MemoryContent returns content held directly in memory.
func MemoryContent(data []byte) *Content {
	c := &Content{data: data}
	c.once.Do(func() {})
	return c
}

// PersistedContent returns content backed by path whose bytes are already known,
// typically right after the engine wrote them.
func PersistedContent(path string, data []byte) *Content {
	c := &Content{path: path, data: data}
	c.once.Do(func() {})
	return c
}

// Path returns the backing file path, or "" for in-memory content.
func (c *Content) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Bytes returns the payload, loading it from disk on the first call.
func (c *Content) Bytes() ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("content is nil")
	}
	c.once.Do(func() {
		c.data, c.err = os.ReadFile(c.path)
	})
	return c.data, c.err
}

// Open returns a reader over the payload.
func (c *Content) Open() (io.ReadCloser, error) {
	if c.path != "" && c.data == nil {
		return os.Open(c.path)
	}
	data, err := c.Bytes()
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Item is a work artifact flowing through the pipeline graph.
// Its identity (root and derived name) is fixed at construction.
type Item struct {
	root    string
	name    string
	content *Content

	// parent is provenance only: never used to recompute anything.
	parent *Item
}

// NewRootItem creates an item emitted directly by a Source.
func NewRootItem(root string, content *Content) *Item {
	return &Item{
		root:    root,
		name:    root,
		content: content,
	}
}

// Derive creates a child item sharing this item's root.
func (i *Item) Derive(name string, content *Content) *Item {
	return &Item{
		root:    i.root,
		name:    name,
		content: content,
		parent:  i,
	}
}

// Root returns the name of the source artifact this item descends from.
func (i *Item) Root() string { return i.root }

// Name returns the item's derived name.
func (i *Item) Name() string { return i.name }

// Content returns the payload handle.
func (i *Item) Content() *Content { return i.content }

// Parent returns the item this one was derived from, or nil for root items.
func (i *Item) Parent() *Item { return i.parent }

// IsRoot reports whether the item was created by a Source.
func (i *Item) IsRoot() bool { return i.parent == nil }

// Lineage returns derived names from the root item down to this one.
func (i *Item) Lineage() []string {
	var names []string
	for cur := i; cur != nil; cur = cur.parent {
		names = append(names, cur.name)
	}
	for l, r := 0, len(names)-1; l < r; l, r = l+1, r-1 {
		names[l], names[r] = names[r], names[l]
	}
	return names
}

func (i *Item) String() string {
	if i.name == i.root {
		return i.root
	}
	return i.root + "/" + i.name
}
