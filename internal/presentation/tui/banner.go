package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the sluice banner to w using the given color profile.
func PrintBanner(w io.Writer, p termenv.Profile) {
	lines := []struct {
		text  string
		color string
	}{
		{"      _       _          ", "#38bdf8"},
		{"  ___| |_   _(_) ___ ___ ", "#22d3ee"},
		{" / __| | | | | |/ __/ _ \\", "#2dd4bf"},
		{" \\__ \\ | |_| | | (_|  __/", "#34d399"},
		{" |___/_|\\__,_|_|\\___\\___|", "#4ade80"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
