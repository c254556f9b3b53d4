package commands

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xianyu564/tobacco-notes/internal/build"
	"github.com/xianyu564/tobacco-notes/internal/config"
	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	"github.com/xianyu564/tobacco-notes/internal/history"
	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/metrics"
	"github.com/xianyu564/tobacco-notes/internal/notify"
	"github.com/xianyu564/tobacco-notes/internal/retry"
)

// newBuildService wires the coordinator with the sinks enabled in cfg. The
// returned close function releases the history database and NATS connection.
func newBuildService(cfg *config.Config, root *CLI, logger *slog.Logger) (*build.Service, func(), error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Failed to close resource", logfields.Error(err))
			}
		}
	}

	opts := []build.Option{build.WithLogger(logger)}

	if cfg.Metrics.Enabled || cfg.Metrics.PrometheusTextfile != "" {
		opts = append(opts, build.WithRecorder(metrics.NewPrometheusRecorder(prometheus.NewRegistry())))
	}

	spawner, err := dispatch.NewExecSpawner(childArgs(cfg, root)...)
	if err != nil {
		logger.Warn("Process pool unavailable; heavy images run in-process", logfields.Error(err))
	} else {
		opts = append(opts, build.WithSpawner(spawner))
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.Resolve(cfg.History.Path))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, store.Close)
		opts = append(opts, build.WithHistory(store))
	}

	if cfg.Notify.Enabled {
		pub, err := notify.NewNATSPublisher(cfg.Notify.URL, cfg.Notify.Subject, cfg.Notify.JetStream, logger)
		if err != nil {
			logger.Warn("Build events disabled", logfields.Error(err))
		} else {
			if n := cfg.Notify; n.Retries > 0 {
				pub.WithRetry(retry.NewPolicy(n.RetryBackoff, time.Duration(n.RetryInitial), time.Duration(n.RetryMax), n.Retries))
			}
			closers = append(closers, pub.Close)
			opts = append(opts, build.WithPublisher(pub))
		}
	}

	return build.NewService(cfg, opts...), closeAll, nil
}

// childArgs are the global flags a worker process needs to rebuild the same configuration.
func childArgs(cfg *config.Config, root *CLI) []string {
	args := []string{"--config", absOr(root.Config)}
	if cfg.Paths.Root != "" {
		args = append(args, "--root", absOr(cfg.Paths.Root))
	}
	return args
}

func absOr(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
