package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/sluice"
	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/pkg/adapters/redis"
	"github.com/aretw0/sluice/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Env is an engine configured from Settings together with the resources it
// owns.
type Env struct {
	Engine   *sluice.Engine
	Logger   *slog.Logger
	Settings Settings

	// Metrics is non-nil when Settings.MetricsAddr is set.
	Metrics *prometheus.Registry

	closers []func() error
}

// NewEnv creates the logger, the optional metrics registry and Redis locker,
// and the engine using them.
func NewEnv(s Settings) (*Env, error) {
	env := &Env{Settings: s, Logger: newLogger(s)}

	opts := []sluice.Option{
		sluice.WithLogger(env.Logger),
		sluice.WithLockTTL(s.LockTTL),
		sluice.WithCacheRoot(s.CacheRoot),
		sluice.WithWorkRoot(s.WorkRoot),
	}
	if s.Debug {
		opts = append(opts, sluice.WithLifecycleHooks(observability.LogHooks(env.Logger)))
	}
	if s.NoPurge {
		opts = append(opts, sluice.WithoutPurge())
	}

	if s.MetricsAddr != "" {
		env.Metrics = prometheus.NewRegistry()
		env.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := observability.NewMetrics(env.Metrics)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sluice.WithLifecycleHooks(m.Hooks()))
	}

	if s.RedisURL != "" {
		locker, err := redis.NewLockerFromURL(s.RedisURL)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, locker.Close)
		opts = append(opts, sluice.WithLocker(locker))
	}

	eng, err := sluice.New(opts...)
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	env.Engine = eng
	return env, nil
}

// Close releases what NewEnv opened.
func (e *Env) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func newLogger(s Settings) *slog.Logger {
	level := slog.LevelInfo
	if s.Debug {
		level = slog.LevelDebug
	}
	if s.LogFormat == LogJSON {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}
