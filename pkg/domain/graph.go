package domain

// Node is a position of a stage in the compiled graph.
type Node struct {
	Stage Stage

	// Suffix and Trim drive the naming rule for items this node produces.
	Suffix string
	Trim   []string

	// Key names the node's working artifacts ({work}/{root}/{Key}.{ext}).
	Key string

	// Next is the continuation of single-outlet kinds (processor, merger,
	// checkpoint). nil ends the lineage.
	Next *Node

	// Branches maps sorter/splitter outlets to the head of their sub-graph.
	// Declared outlets without a branch map to nil (implicit terminus).
	Branches map[string]*Node

	// Target and Inlet are set on inlet references, which feed items into a
	// merger node instead of running a stage of their own.
	Target *Node
	Inlet  string
}

// CheckpointStage is the built-in memoization point. Items pass through
// unchanged and are persisted to the checkpoint cache.
type CheckpointStage struct {
	Base
	// Checkpoint is the cache file name used for this point.
	Checkpoint string
}

// NewCheckpointStage returns a checkpoint stage. An empty checkpoint name
// defaults to the stage name.
func NewCheckpointStage(name, checkpoint string) *CheckpointStage {
	if checkpoint == "" {
		checkpoint = name
	}
	return &CheckpointStage{
		Base:       NewBase(name, KindCheckpoint),
		Checkpoint: checkpoint,
	}
}

// IsInletRef reports whether the node forwards into a merger inlet.
func (n *Node) IsInletRef() bool { return n.Target != nil }

// Name returns the stage name, or "merger.inlet" for inlet references.
func (n *Node) Name() string {
	if n.IsInletRef() {
		return n.Target.Stage.Name() + "." + n.Inlet
	}
	return n.Stage.Name()
}

// Graph is a compiled, acyclic pipeline. It is built once and executed once
// per root item.
type Graph struct {
	Source Source

	// Head is the source's node; Head.Next is the first stage items enter.
	Head *Node

	// Ext is the artifact file extension (without dot).
	Ext string

	// Checkpoints lists checkpoint names in compile order.
	Checkpoints []string
}

// Walk visits every node reachable from the head exactly once, depth first,
// in topology order. Returning false from fn stops the walk.
func (g *Graph) Walk(fn func(n *Node) bool) {
	seen := make(map[*Node]bool)
	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		for ; n != nil; n = n.Next {
			if seen[n] {
				return true
			}
			seen[n] = true
			if !fn(n) {
				return false
			}
			if n.IsInletRef() {
				if !visit(n.Target) {
					return false
				}
				return true
			}
			for _, outlet := range n.Stage.Outlets() {
				if !visit(n.Branches[outlet]) {
					return false
				}
			}
		}
		return true
	}
	visit(g.Head)
}

// Nodes returns all nodes in Walk order.
func (g *Graph) Nodes() []*Node {
	var nodes []*Node
	g.Walk(func(n *Node) bool {
		nodes = append(nodes, n)
		return true
	})
	return nodes
}
