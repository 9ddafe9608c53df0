package observability

import (
	"context"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "sluice"

// Metrics records engine lifecycle events as Prometheus series.
type Metrics struct {
	stageItems    *prometheus.CounterVec
	stageErrors   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	reused        *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	checkpoints   *prometheus.CounterVec
	skipped       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		stageItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stage_items_total",
			Help:      "Items that left a stage.",
		}, []string{"stage", "kind"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stage_errors_total",
			Help:      "Stage invocations that returned an error.",
		}, []string{"stage", "kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of stage invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		reused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "artifacts_reused_total",
			Help:      "Working artifacts reused instead of recomputed.",
		}, []string{"stage"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "items_dropped_total",
			Help:      "Items routed to an outlet without a branch.",
		}, []string{"stage", "outlet"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "checkpoint_items_total",
			Help:      "Items passing a checkpoint, by cache result.",
		}, []string{"checkpoint", "result"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "roots_skipped_total",
			Help:      "Root items skipped because a stage could not handle them.",
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{
		m.stageItems, m.stageErrors, m.stageDuration, m.reused, m.dropped, m.checkpoints, m.skipped,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) {
			kind := e.Kind.String()
			if e.Err != nil {
				m.stageErrors.WithLabelValues(e.Stage, kind).Inc()
			} else {
				m.stageItems.WithLabelValues(e.Stage, kind).Inc()
			}
			m.stageDuration.WithLabelValues(e.Stage).Observe(e.Duration.Seconds())
		},
		OnArtifactReused: func(_ context.Context, e *domain.StageEvent) {
			m.reused.WithLabelValues(e.Stage).Inc()
		},
		OnItemDropped: func(_ context.Context, e *domain.StageEvent) {
			m.dropped.WithLabelValues(e.Stage, e.Outlet).Inc()
		},
		OnCheckpoint: func(_ context.Context, e *domain.CheckpointEvent) {
			result := "miss"
			if e.Hit {
				result = "hit"
			}
			m.checkpoints.WithLabelValues(e.Checkpoint, result).Inc()
		},
		OnRootSkipped: func(_ context.Context, e *domain.StageEvent) {
			m.skipped.WithLabelValues(e.Stage).Inc()
		},
	}
}
