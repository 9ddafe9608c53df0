package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/sluice/pkg/domain"
)

// LogHooks returns lifecycle hooks that trace engine events at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageLeave: func(ctx context.Context, e *domain.StageEvent) {
			attrs := []any{"root", e.Root, "stage", e.Stage, "item", e.Item, "duration", e.Duration}
			if e.Outlet != "" {
				attrs = append(attrs, "outlet", e.Outlet)
			}
			if e.Err != nil {
				attrs = append(attrs, "error", e.Err)
			}
			logger.DebugContext(ctx, "stage_leave", attrs...)
		},
		OnArtifactReused: func(ctx context.Context, e *domain.StageEvent) {
			logger.DebugContext(ctx, "artifact_reused", "root", e.Root, "stage", e.Stage, "item", e.Item)
		},
		OnItemDropped: func(ctx context.Context, e *domain.StageEvent) {
			logger.DebugContext(ctx, "item_dropped", "root", e.Root, "stage", e.Stage, "outlet", e.Outlet)
		},
		OnCheckpoint: func(ctx context.Context, e *domain.CheckpointEvent) {
			logger.DebugContext(ctx, "checkpoint", "root", e.Root, "checkpoint", e.Checkpoint, "hit", e.Hit, "saved", e.Saved)
		},
		OnRootSkipped: func(ctx context.Context, e *domain.StageEvent) {
			logger.WarnContext(ctx, "root_skipped", "root", e.Root, "stage", e.Stage, "error", e.Err)
		},
	}
}
