package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/sluice/internal/presentation/tui"
	"github.com/aretw0/sluice/pkg/observability"
)

// Run loads the pipeline at path, runs it once and prints the summary.
// With Settings.MetricsAddr set, metrics are served for the duration of the
// run.
func Run(ctx context.Context, env *Env, path string, out io.Writer) error {
	p, err := env.Engine.Load(path)
	if err != nil {
		return err
	}

	stopMetrics := serveMetrics(ctx, env)
	res, runErr := env.Engine.Run(ctx, p)
	stopMetrics()

	if res != nil {
		fmt.Fprintln(out, tui.Summary(res.Run, tui.Palette{Profile: tui.Profile(out)}))
	}
	if runErr != nil {
		return fmt.Errorf("pipeline %s failed: %w", p.Name, runErr)
	}
	return nil
}

func serveMetrics(ctx context.Context, env *Env) func() {
	if env.Metrics == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Go(func() {
		h := observability.Handler(env.Metrics)
		err := observability.Serve(ctx, env.Settings.MetricsAddr, h, env.Logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			env.Logger.Error("metrics server failed", "error", err)
		}
	})
	return func() {
		cancel()
		wg.Wait()
	}
}
