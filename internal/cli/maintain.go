package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/sluice/internal/presentation/tui"
)

// Purge deletes stale cache entries of the pipeline at path without running
// it. With dryRun set it only lists what would be deleted.
func Purge(ctx context.Context, env *Env, path string, dryRun bool, out io.Writer) error {
	p, err := env.Engine.Load(path)
	if err != nil {
		return err
	}
	if dryRun {
		files, err := env.Engine.Stale(ctx, p)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(out, f)
		}
		fmt.Fprintf(out, "%s would be purged\n", tui.Count(len(files), "file"))
		return nil
	}

	report, err := env.Engine.Purge(ctx, p)
	if err != nil {
		return err
	}
	for _, f := range report.Files {
		env.Logger.Debug("purged", "file", f)
	}
	fmt.Fprintf(out, "%s purged\n", tui.Count(len(report.Files), "file"))
	return nil
}

// History prints up to limit recent runs against the pipeline's cache root.
func History(ctx context.Context, env *Env, path string, limit int, out io.Writer) error {
	p, err := env.Engine.Load(path)
	if err != nil {
		return err
	}
	runs, err := env.Engine.History(ctx, p, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs recorded for %s yet.\n", p.CacheRoot)
		return nil
	}
	fmt.Fprintln(out, tui.HistoryTable(runs, tui.Palette{Profile: tui.Profile(out)}))
	return nil
}
