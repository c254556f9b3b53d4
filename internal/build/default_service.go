package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xianyu564/tobacco-notes/internal/config"
	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	"github.com/xianyu564/tobacco-notes/internal/history"
	"github.com/xianyu564/tobacco-notes/internal/incremental"
	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/markdown"
	"github.com/xianyu564/tobacco-notes/internal/metrics"
	"github.com/xianyu564/tobacco-notes/internal/notify"
	"github.com/xianyu564/tobacco-notes/internal/pipeline"
)

// Service is the standard implementation of BuildService.
type Service struct {
	cfg       *config.Config
	recorder  metrics.Recorder
	logger    *slog.Logger
	spawner   dispatch.Spawner
	sampler   metrics.Sampler
	publisher notify.Publisher
	history   *history.Store
	renderer  *markdown.Renderer
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the metrics recorder shared by every run.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSpawner enables the process pool for heavy images.
func WithSpawner(sp dispatch.Spawner) Option {
	return func(s *Service) { s.spawner = sp }
}

// WithSampler overrides the resource sampler used by the monitor.
func WithSampler(sm metrics.Sampler) Option {
	return func(s *Service) { s.sampler = sm }
}

// WithPublisher publishes an event after every build.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithHistory records every build in store. The caller owns the store.
func WithHistory(store *history.Store) Option {
	return func(s *Service) { s.history = store }
}

// NewService creates a build service for cfg.
func NewService(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
		publisher: notify.NoopPublisher{},
		renderer:  markdown.NewRenderer(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes the stage pipeline. On success the build state is committed
// with the completion time; on any failure it is left untouched and a single
// classified error wrapping *Error is returned alongside the partial result.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	buildID := uuid.NewString()
	logger := s.logger.With(logfields.BuildID(buildID))
	res := &Result{BuildID: buildID, Incremental: req.Incremental, StartTime: start}

	lock, err := acquireLock(s.cfg.Resolve(s.cfg.Build.LockFile))
	if err != nil {
		res.Status = StatusFailed
		res.EndTime = time.Now()
		res.Duration = res.EndTime.Sub(start)
		s.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		return res, classify(buildID, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("Failed to release build lock", logfields.Error(err))
		}
	}()

	monitor := metrics.NewMonitor(
		metrics.WithSampler(s.sampler),
		metrics.WithRecorder(s.recorder),
		metrics.WithLogger(logger),
		metrics.WithUntimed(func(err error) bool { return errors.Is(err, pipeline.ErrStageSkipped) }),
	)
	if s.cfg.Metrics.Enabled {
		if err := monitor.Start(s.cfg.Metrics.SampleInterval.Std()); err != nil {
			logger.Warn("Resource sampling unavailable", logfields.Error(err))
		}
	}
	defer monitor.Stop()

	r := newRun(s, req, logger)
	logger.Info("Build started",
		slog.Bool("incremental", req.Incremental),
		logfields.Workers(r.dispatcher.Workers()))

	obs := &stageObserver{logger: logger, recorder: s.recorder}
	stages, runErr := pipeline.RunStages(ctx, timed(r.pipeline(), monitor), obs)
	monitor.Stop()

	res.Stages = stages
	res.Changes = r.changes
	if runErr == nil {
		state, err := incremental.SaveState(s.cfg.StateFile(), time.Now())
		if err != nil {
			runErr = fmt.Errorf("save build state: %w", err)
		} else {
			res.State = state
		}
	}
	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(start)
	res.Summary = monitor.Summary()
	res.Status = statusOf(runErr)

	s.recorder.ObserveBuildDuration(res.Duration)
	s.recorder.IncBuildOutcome(res.Status.outcome())
	s.finish(ctx, req, res, monitor, runErr, logger)

	if runErr != nil {
		logger.Error("Build failed", logfields.Error(runErr), logfields.Elapsed(res.Duration))
		return res, classify(buildID, runErr)
	}
	logger.Info("Build completed",
		logfields.Elapsed(res.Duration),
		slog.Int("notes_changed", len(res.Changes.ModifiedNotes)),
		slog.Int("images_changed", len(res.Changes.ModifiedImages)))
	return res, nil
}

func statusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *pipeline.StageError
	if errors.As(err, &se) && se.Kind == pipeline.StageErrorCanceled {
		return StatusCanceled
	}
	if errors.Is(err, context.Canceled) {
		return StatusCanceled
	}
	return StatusFailed
}
