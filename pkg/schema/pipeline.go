package schema

import "strings"

// Pipeline is the parsed, syntactically valid pipeline definition.
// Stage references are resolved later by the compiler.
type Pipeline struct {
	// Stages maps stage names to their definitions.
	Stages map[string]StageDef
	// Topology is the ordered root chain.
	Topology []Node

	Naming Naming
	Cache  Cache
	Work   Work
}

// StageDef is one entry of the stages section.
type StageDef struct {
	Name string
	Type string
	// Suffix is appended to derived names of items the stage produces.
	Suffix string
	// Trim lists name components stripped before Suffix is appended.
	Trim []string
	// Args is the stage's own configuration (reserved keys removed).
	Args map[string]any
}

// Naming configures the derived-name rule for the whole pipeline.
type Naming struct {
	Trim []string
}

// Cache configures the checkpoint cache.
type Cache struct {
	Root string
	Ext  string
}

// Work configures where intermediate stage artifacts are written.
type Work struct {
	Root string
}

// Node is an element of a topology chain.
type Node interface {
	// StageName returns the stage the element refers to.
	StageName() string
	node()
}

// Leaf references a stage by name.
type Leaf struct {
	Stage string
}

// Branch attaches sub-topologies to outlets of a sorter or splitter.
type Branch struct {
	Stage string
	// Outlets is sorted by outlet name.
	Outlets []Outlet
}

// Outlet is one branch of a Branch node.
type Outlet struct {
	Name  string
	Chain []Node
}

// InletRef feeds the end of a branch into an inlet of a merger,
// written "merger.inlet".
type InletRef struct {
	Merger string
	Inlet  string
}

func (l Leaf) StageName() string     { return l.Stage }
func (b Branch) StageName() string   { return b.Stage }
func (r InletRef) StageName() string { return r.Merger }

func (Leaf) node()     {}
func (Branch) node()   {}
func (InletRef) node() {}

func (r InletRef) String() string { return r.Merger + InletSeparator + r.Inlet }

// InletSeparator separates merger and inlet names in an inlet reference.
const InletSeparator = "."

// Outlet returns the chain attached to name and whether one was declared.
func (b Branch) Outlet(name string) ([]Node, bool) {
	for _, o := range b.Outlets {
		if o.Name == name {
			return o.Chain, true
		}
	}
	return nil, false
}

func validStageName(name string) bool {
	return name != "" && !strings.Contains(name, InletSeparator) && strings.TrimSpace(name) == name
}
