package domain

import (
	"context"
	"iter"
)

// Kind discriminates the stage variants. The engine dispatches on it.
type Kind int

const (
	KindSource Kind = iota + 1
	KindProcessor
	KindSorter
	KindSplitter
	KindMerger
	KindTerminus
	// KindCheckpoint is the built-in memoization point.
	KindCheckpoint
)

// DefaultOutlet is the outlet (or inlet) name of single-port stages.
const DefaultOutlet = "default"

var kindNames = map[Kind]string{
	KindSource:     "source",
	KindProcessor:  "processor",
	KindSorter:     "sorter",
	KindSplitter:   "splitter",
	KindMerger:     "merger",
	KindTerminus:   "terminus",
	KindCheckpoint: "checkpoint",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Fans reports whether the kind routes into named branches.
func (k Kind) Fans() bool {
	return k == KindSorter || k == KindSplitter
}

// Stage is the common surface of every pipeline node.
type Stage interface {
	Name() string
	Kind() Kind
	// Inlets and Outlets are named, ordered and fixed at construction.
	Inlets() []string
	Outlets() []string
}

// Source emits the lazy sequence of root items.
type Source interface {
	Stage
	Items(ctx context.Context) iter.Seq2[*Item, error]
}

// Processor is a 1:1 transform. The returned bytes become the payload of the
// derived item.
type Processor interface {
	Stage
	Process(ctx context.Context, item *Item) ([]byte, error)
}

// Sorter picks exactly one of its declared outlets for an item.
// It never transforms content.
type Sorter interface {
	Stage
	Sort(ctx context.Context, item *Item) (string, error)
}

// Splitter fans one item out into one payload per declared outlet.
type Splitter interface {
	Stage
	Split(ctx context.Context, item *Item) (map[string][]byte, error)
}

// Merger fans one item per declared inlet (all sharing a root) into one payload.
type Merger interface {
	Stage
	Merge(ctx context.Context, inputs map[string]*Item) ([]byte, error)
}

// Terminus performs the final side effect of a lineage.
type Terminus interface {
	Stage
	Finalize(ctx context.Context, item *Item) error
}

// Base implements the Stage metadata methods. Stage implementations embed it.
type Base struct {
	StageName    string
	StageKind    Kind
	StageInlets  []string
	StageOutlets []string
}

// NewBase returns metadata for a stage with the conventional ports of its kind.
// Sorters and splitters pass their outlets; mergers pass their inlets.
func NewBase(name string, kind Kind, ports ...string) Base {
	b := Base{StageName: name, StageKind: kind}
	def := []string{DefaultOutlet}
	switch kind {
	case KindSource:
		b.StageOutlets = def
	case KindProcessor, KindCheckpoint:
		b.StageInlets, b.StageOutlets = def, def
	case KindSorter, KindSplitter:
		b.StageInlets, b.StageOutlets = def, ports
	case KindMerger:
		b.StageInlets, b.StageOutlets = ports, def
	case KindTerminus:
		b.StageInlets = def
	}
	return b
}

func (b Base) Name() string      { return b.StageName }
func (b Base) Kind() Kind        { return b.StageKind }
func (b Base) Inlets() []string  { return b.StageInlets }
func (b Base) Outlets() []string { return b.StageOutlets }

// HasPort reports whether name is one of ports.
func HasPort(ports []string, name string) bool {
	for _, p := range ports {
		if p == name {
			return true
		}
	}
	return false
}
