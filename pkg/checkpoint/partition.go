package checkpoint

import (
	"iter"

	"github.com/aretw0/sluice/pkg/domain"
)

type entry struct {
	item   *domain.Item
	cached *domain.Item
}

// Partition is the classification of items at one checkpoint. Every input
// item is in exactly one of Done and ToDo.
type Partition struct {
	name    string
	entries []entry
}

// Name returns the checkpoint the partition was computed for.
func (p Partition) Name() string { return p.name }

// Done yields the cache-backed items, in input order.
func (p Partition) Done() iter.Seq[*domain.Item] {
	return func(yield func(*domain.Item) bool) {
		for _, e := range p.entries {
			if e.cached != nil && !yield(e.cached) {
				return
			}
		}
	}
}

// ToDo yields the input items that still have to be computed, in input order.
func (p Partition) ToDo() iter.Seq[*domain.Item] {
	return func(yield func(*domain.Item) bool) {
		for _, e := range p.entries {
			if e.cached == nil && !yield(e.item) {
				return
			}
		}
	}
}

// Counts returns the sizes of Done and ToDo.
func (p Partition) Counts() (done, todo int) {
	for _, e := range p.entries {
		if e.cached != nil {
			done++
		} else {
			todo++
		}
	}
	return done, todo
}
