package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/sluice/pkg/ports"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/termenv"
)

// CheckpointStatus is one row of the status report.
type CheckpointStatus struct {
	Stage      string
	Checkpoint string
	Done       int
	ToDo       int
}

// Complete reports whether every root has passed the checkpoint.
func (s CheckpointStatus) Complete() bool { return s.ToDo == 0 }

// Palette colors report cells. The zero value (or termenv.Ascii) prints plain text.
type Palette struct {
	Profile termenv.Profile
}

func (p Palette) paint(s, color string) string {
	if p.Profile == termenv.Ascii {
		return s
	}
	return termenv.String(s).Foreground(p.Profile.Color(color)).String()
}

func (p Palette) Good(s string) string { return p.paint(s, "#4ade80") }
func (p Palette) Warn(s string) string { return p.paint(s, "#fbbf24") }
func (p Palette) Bad(s string) string  { return p.paint(s, "#f87171") }

// StatusTable renders checkpoint progress.
func StatusTable(rows []CheckpointStatus, pal Palette) string {
	tw := newTable("Checkpoint", "Stage", "Done", "To do", "State")
	for _, r := range rows {
		state := pal.Good("complete")
		if !r.Complete() {
			state = pal.Warn("pending")
		}
		tw.AppendRow(table.Row{r.Checkpoint, r.Stage, r.Done, r.ToDo, state})
	}
	alignRight(tw, 3, 4)
	return tw.Render()
}

// HistoryTable renders recent runs, newest first.
func HistoryTable(runs []ports.Run, pal Palette) string {
	tw := newTable("Run", "Pipeline", "Started", "Duration", "Status", "Roots", "Skipped", "Processed", "Reused", "Purged")
	for _, r := range runs {
		status := string(r.Status)
		switch r.Status {
		case ports.RunSucceeded:
			status = pal.Good(status)
		case ports.RunFailed:
			status = pal.Bad(status)
		default:
			status = pal.Warn(status)
		}
		tw.AppendRow(table.Row{
			shortID(r.ID),
			r.Pipeline,
			r.StartedAt.Local().Format(time.DateTime),
			duration(r),
			status,
			r.Roots,
			r.Skipped,
			r.Processed,
			r.Reused,
			r.Purged,
		})
	}
	alignRight(tw, 6, 7, 8, 9, 10)
	return tw.Render()
}

func newTable(headers ...string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	return tw
}

func alignRight(tw table.Writer, columns ...int) {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, c := range columns {
		configs = append(configs, table.ColumnConfig{
			Number:      c,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func duration(r ports.Run) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

// Count formats n with a unit, e.g. "1 root" or "3 roots".
func Count(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// Summary renders a one-line run summary.
func Summary(r ports.Run, pal Palette) string {
	line := fmt.Sprintf("%s, %d completed, %d skipped, %d processed, %d reused, %d resumed, %d dropped",
		Count(r.Roots, "root"), r.Completed, r.Skipped, r.Processed, r.Reused, r.Resumed, r.Dropped)
	if r.Purged > 0 {
		line += fmt.Sprintf(", %s purged", Count(r.Purged, "file"))
	}
	if r.Status == ports.RunFailed {
		return pal.Bad("failed: ") + line
	}
	return pal.Good("done: ") + line
}
