package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/sluice/internal/presentation/graph"
	"github.com/aretw0/sluice/internal/presentation/tui"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/schema"
)

// Validate loads and compiles the pipeline at path without touching its
// cache. Every schema problem is listed, not only the first.
func Validate(env *Env, path string, out io.Writer) error {
	p, err := env.Engine.Load(path)
	if errs := schema.ValidationErrors(err); len(errs) > 0 {
		printProblems(out, errs)
		return errors.New(tui.Count(len(errs), "problem") + " found")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pipeline %s is valid: %s, %s ✅\n",
		p.Name, tui.Count(stageCount(p.Graph), "stage"), tui.Count(len(p.Graph.Checkpoints), "checkpoint"))
	return nil
}

// Graph prints the Mermaid flowchart of the pipeline at path. With status
// set, checkpoints are colored by whether every current root has passed
// them.
func Graph(ctx context.Context, env *Env, path string, status bool, out io.Writer) error {
	p, err := env.Engine.Load(path)
	if err != nil {
		return err
	}

	var overlay *graph.Overlay
	if status {
		rows, err := env.Engine.Status(ctx, p)
		if err != nil {
			return err
		}
		overlay = &graph.Overlay{}
		for _, r := range rows {
			if r.ToDo == 0 {
				overlay.Done = append(overlay.Done, r.Stage)
			} else {
				overlay.Pending = append(overlay.Pending, r.Stage)
			}
		}
	}
	fmt.Fprint(out, graph.GenerateMermaid(p.Graph, overlay))
	return nil
}

// Status prints how many roots have passed each checkpoint.
func Status(ctx context.Context, env *Env, path string, out io.Writer) error {
	p, err := env.Engine.Load(path)
	if err != nil {
		return err
	}
	rows, err := env.Engine.Status(ctx, p)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(out, "Pipeline %s has no checkpoints.\n", p.Name)
		return nil
	}

	table := make([]tui.CheckpointStatus, len(rows))
	for i, r := range rows {
		table[i] = tui.CheckpointStatus(r)
	}
	fmt.Fprintln(out, tui.StatusTable(table, tui.Palette{Profile: tui.Profile(out)}))
	return nil
}

// Describe prints a Markdown description of the pipeline, rendered for the
// terminal when out is one.
func Describe(env *Env, path string, out io.Writer) error {
	p, err := env.Engine.Load(path)
	if err != nil {
		return err
	}
	md := graph.GenerateMarkdown(p.Name, p.Def, p.Graph)
	md += fmt.Sprintf("\nCache root `%s`, work root `%s`.\n", p.CacheRoot, p.WorkRoot)

	rendered, err := tui.NewRenderer(tui.IsTerminal(out))(md)
	if err != nil {
		env.Logger.Warn("failed to render markdown", "error", err)
		rendered = md
	}
	fmt.Fprint(out, strings.TrimLeft(rendered, "\n"))
	return nil
}

// printProblems lists validation problems with their document paths
// aligned in one column.
func printProblems(out io.Writer, errs []error) {
	width := 0
	for _, e := range errs {
		var ve *schema.ValidationError
		if errors.As(e, &ve) {
			width = max(width, len(ve.Path))
		}
	}
	for _, e := range errs {
		var ve *schema.ValidationError
		if !errors.As(e, &ve) {
			fmt.Fprintf(out, "  - %v\n", e)
			continue
		}
		reason := ve.Reason
		if ve.Value != nil {
			reason += fmt.Sprintf(" (got %T)", ve.Value)
		}
		fmt.Fprintf(out, "  - %-*s  %s\n", width, ve.Path, reason)
	}
}

// stageCount counts the stages after the source.
func stageCount(g *domain.Graph) int {
	n := 0
	for _, node := range g.Nodes() {
		if !node.IsInletRef() && node != g.Head {
			n++
		}
	}
	return n
}
