package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/schema"
)

// GenerateMarkdown describes a compiled pipeline as a Markdown document:
// a stage table, the checkpoint order and the Mermaid flowchart.
func GenerateMarkdown(name string, def *schema.Pipeline, g *domain.Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", name)
	fmt.Fprintf(&sb, "Source `%s`, artifacts stored as `.%s`.\n\n", g.Source.Name(), g.Ext)

	sb.WriteString("## Stages\n\n")
	sb.WriteString("| Stage | Type | Kind | Suffix | Ports |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, n := range g.Nodes() {
		if n.IsInletRef() {
			continue
		}
		typ := ""
		if d, ok := def.Stages[n.Stage.Name()]; ok {
			typ = d.Type
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			n.Stage.Name(), typ, n.Stage.Kind(), code(n.Suffix), ports(n.Stage))
	}

	if len(g.Checkpoints) > 0 {
		sb.WriteString("\n## Checkpoints\n\n")
		for i, cp := range g.Checkpoints {
			fmt.Fprintf(&sb, "%d. `%s`\n", i+1, cp)
		}
	}

	if len(def.Naming.Trim) > 0 {
		fmt.Fprintf(&sb, "\nNames trim %s before suffixing.\n", codeList(def.Naming.Trim))
	}

	sb.WriteString("\n## Flow\n\n```mermaid\n")
	sb.WriteString(GenerateMermaid(g, nil))
	sb.WriteString("```\n")
	return sb.String()
}

func ports(s domain.Stage) string {
	switch {
	case s.Kind().Fans():
		return "out: " + codeList(s.Outlets())
	case s.Kind() == domain.KindMerger:
		return "in: " + codeList(s.Inlets())
	}
	return ""
}

func code(s string) string {
	if s == "" {
		return ""
	}
	return "`" + s + "`"
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = code(s)
	}
	return strings.Join(quoted, ", ")
}
