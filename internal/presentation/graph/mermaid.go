package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/sluice/pkg/domain"
)

// Overlay contains checkpoint progress to visualize on the graph.
type Overlay struct {
	// Done and Pending list checkpoint stage names.
	Done    []string
	Pending []string
}

// GenerateMermaid produces a Mermaid flowchart of a compiled graph.
// It applies semantic styling per stage kind:
// - Source: ((Circle))
// - Processor: [Rectangle]
// - Sorter: {Rhombus}
// - Splitter: {{Hexagon}}
// - Merger: [\Trapezoid/]
// - Terminus: ([Stadium])
// - Checkpoint: [(Cylinder)]
// Branch edges carry the outlet name, inlet references are dashed and outlets
// without a branch end in a crossed edge.
func GenerateMermaid(g *domain.Graph, overlay *Overlay) string {
	m := &mermaid{declared: make(map[*domain.Node]bool)}
	m.sb.WriteString("graph TD\n")
	m.declare(g.Head)

	if overlay != nil {
		m.sb.WriteString("\n    %% Overlay Styles\n")
		m.sb.WriteString("    classDef done fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		m.sb.WriteString("    classDef pending fill:#fff3e0,stroke:#ef6c00,stroke-width:2px,color:#000;\n")
		for _, name := range overlay.Done {
			fmt.Fprintf(&m.sb, "    class %s done;\n", sanitizeMermaidID(name))
		}
		for _, name := range overlay.Pending {
			fmt.Fprintf(&m.sb, "    class %s pending;\n", sanitizeMermaidID(name))
		}
	}
	return m.sb.String()
}

type mermaid struct {
	sb       strings.Builder
	declared map[*domain.Node]bool
}

// declare writes a node and, the first time it is seen, its outgoing edges.
func (m *mermaid) declare(n *domain.Node) {
	if m.declared[n] {
		return
	}
	m.declared[n] = true

	name := n.Stage.Name()
	opener, closer := shape(n.Stage.Kind())
	label := name
	if n.Suffix != "" {
		label = fmt.Sprintf("%s <br/> _%s", name, n.Suffix)
	}
	fmt.Fprintf(&m.sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(name), opener, label, closer)

	if n.Stage.Kind().Fans() {
		for _, outlet := range n.Stage.Outlets() {
			m.edge(n, outlet, n.Branches[outlet])
		}
		return
	}
	if n.Next != nil {
		m.edge(n, "", n.Next)
	}
}

func (m *mermaid) edge(from *domain.Node, label string, to *domain.Node) {
	fromID := sanitizeMermaidID(from.Stage.Name())

	switch {
	case to == nil:
		sink := fmt.Sprintf("%s__%s", fromID, sanitizeMermaidID(label))
		fmt.Fprintf(&m.sb, "    %s((\" \"))\n", sink)
		fmt.Fprintf(&m.sb, "    %s -- \"%s\" --x %s\n", fromID, quote(label), sink)

	case to.IsInletRef():
		inlet := to.Inlet
		if label != "" {
			inlet = label + " → " + inlet
		}
		m.declare(to.Target)
		fmt.Fprintf(&m.sb, "    %s -. \"%s\" .-> %s\n", fromID, quote(inlet), sanitizeMermaidID(to.Target.Stage.Name()))

	default:
		m.declare(to)
		toID := sanitizeMermaidID(to.Stage.Name())
		if label == "" {
			fmt.Fprintf(&m.sb, "    %s --> %s\n", fromID, toID)
		} else {
			fmt.Fprintf(&m.sb, "    %s -- \"%s\" --> %s\n", fromID, quote(label), toID)
		}
	}
}

func shape(kind domain.Kind) (string, string) {
	switch kind {
	case domain.KindSource:
		return "((", "))"
	case domain.KindSorter:
		return "{", "}"
	case domain.KindSplitter:
		return "{{", "}}"
	case domain.KindMerger:
		return "[\\", "/]"
	case domain.KindTerminus:
		return "([", "])"
	case domain.KindCheckpoint:
		return "[(", ")]"
	}
	return "[", "]"
}

func quote(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
