package testutils

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/aretw0/sluice/pkg/domain"
)

// Source emits one in-memory root item per root name, with payload "<root>".
type Source struct {
	domain.Base
	Roots []string
	// Err, if set, is yielded after all roots.
	Err error
}

// NewSource creates a fake source.
func NewSource(name string, roots ...string) *Source {
	return &Source{Base: domain.NewBase(name, domain.KindSource), Roots: roots}
}

func (s *Source) Items(ctx context.Context) iter.Seq2[*domain.Item, error] {
	return func(yield func(*domain.Item, error) bool) {
		for _, root := range s.Roots {
			if !yield(domain.NewRootItem(root, domain.MemoryContent([]byte(root))), nil) {
				return
			}
		}
		if s.Err != nil {
			yield(nil, s.Err)
		}
	}
}

// Calls counts invocations per root.
type Calls struct {
	mu    sync.Mutex
	roots []string
}

func (c *Calls) record(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots = append(c.roots, root)
}

// Count returns the total number of invocations.
func (c *Calls) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.roots)
}

// Roots returns the roots of every invocation, in call order.
func (c *Calls) Roots() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.roots...)
}

// Processor appends "+<name>" to the payload unless Fn is set.
type Processor struct {
	domain.Base
	Calls
	Fn func(item *domain.Item, data []byte) ([]byte, error)
}

// NewProcessor creates a fake processor.
func NewProcessor(name string) *Processor {
	return &Processor{Base: domain.NewBase(name, domain.KindProcessor)}
}

func (p *Processor) Process(ctx context.Context, item *domain.Item) ([]byte, error) {
	p.record(item.Root())
	data, err := item.Content().Bytes()
	if err != nil {
		return nil, err
	}
	if p.Fn != nil {
		return p.Fn(item, data)
	}
	return append(append([]byte{}, data...), "+"+p.Name()...), nil
}

// Sorter routes by Fn. Without Fn it picks the first outlet that occurs in
// the item's root name, falling back to the first declared outlet.
type Sorter struct {
	domain.Base
	Calls
	Fn func(item *domain.Item) (string, error)
}

// NewSorter creates a fake sorter with the given outlets.
func NewSorter(name string, outlets ...string) *Sorter {
	return &Sorter{Base: domain.NewBase(name, domain.KindSorter, outlets...)}
}

func (s *Sorter) Sort(ctx context.Context, item *domain.Item) (string, error) {
	s.record(item.Root())
	if s.Fn != nil {
		return s.Fn(item)
	}
	for _, o := range s.Outlets() {
		if strings.Contains(item.Root(), o) {
			return o, nil
		}
	}
	return s.Outlets()[0], nil
}

// Splitter produces "<payload>/<outlet>" per outlet unless Fn is set.
type Splitter struct {
	domain.Base
	Calls
	Fn func(item *domain.Item) (map[string][]byte, error)
}

// NewSplitter creates a fake splitter with the given outlets.
func NewSplitter(name string, outlets ...string) *Splitter {
	return &Splitter{Base: domain.NewBase(name, domain.KindSplitter, outlets...)}
}

func (s *Splitter) Split(ctx context.Context, item *domain.Item) (map[string][]byte, error) {
	s.record(item.Root())
	if s.Fn != nil {
		return s.Fn(item)
	}
	data, err := item.Content().Bytes()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(s.Outlets()))
	for _, o := range s.Outlets() {
		out[o] = append(append([]byte{}, data...), "/"+o...)
	}
	return out, nil
}

// Merger joins inlet payloads with "|" in declared inlet order.
type Merger struct {
	domain.Base
	Calls
}

// NewMerger creates a fake merger with the given inlets.
func NewMerger(name string, inlets ...string) *Merger {
	return &Merger{Base: domain.NewBase(name, domain.KindMerger, inlets...)}
}

func (m *Merger) Merge(ctx context.Context, inputs map[string]*domain.Item) ([]byte, error) {
	var root string
	parts := make([]string, 0, len(inputs))
	for _, inlet := range m.Inlets() {
		item := inputs[inlet]
		root = item.Root()
		data, err := item.Content().Bytes()
		if err != nil {
			return nil, err
		}
		parts = append(parts, string(data))
	}
	m.record(root)
	return []byte(strings.Join(parts, "|")), nil
}

// Terminus collects every finalized item.
type Terminus struct {
	domain.Base
	Fn func(item *domain.Item) error

	mu    sync.Mutex
	items []*domain.Item
}

// NewTerminus creates a collecting terminus.
func NewTerminus(name string) *Terminus {
	return &Terminus{Base: domain.NewBase(name, domain.KindTerminus)}
}

func (t *Terminus) Finalize(ctx context.Context, item *domain.Item) error {
	if t.Fn != nil {
		if err := t.Fn(item); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, item)
	return nil
}

// Items returns the finalized items in order.
func (t *Terminus) Items() []*domain.Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*domain.Item(nil), t.items...)
}

// Payloads returns "<derivedName>=<payload>" for every finalized item.
func (t *Terminus) Payloads() []string {
	var out []string
	for _, item := range t.Items() {
		data, _ := item.Content().Bytes()
		out = append(out, item.Name()+"="+string(data))
	}
	return out
}
