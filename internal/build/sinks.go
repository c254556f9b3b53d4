package build

import (
	"context"
	"log/slog"
	"time"

	"github.com/xianyu564/tobacco-notes/internal/history"
	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/metrics"
	"github.com/xianyu564/tobacco-notes/internal/notify"
)

// finish hands a completed build to the report, history and notify sinks.
// Sink failures are logged and never change the build outcome.
func (s *Service) finish(ctx context.Context, req Request, res *Result, monitor *metrics.Monitor, runErr error, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	if s.cfg.Metrics.Enabled && !req.NoReport {
		report := metrics.NewReport(res.BuildID, string(res.Status), monitor)
		report.Meta = map[string]any{
			"incremental":    res.Incremental,
			"notes_changed":  len(res.Changes.ModifiedNotes),
			"images_changed": len(res.Changes.ModifiedImages),
		}
		path, err := report.Persist(s.cfg.Resolve(s.cfg.Metrics.ReportDir))
		if err != nil {
			logger.Warn("Failed to write metrics report", logfields.Error(err))
		} else {
			res.ReportPath = path
			logger.Info("Metrics report written", logfields.Path(path))
		}
	}

	if tf := s.cfg.Metrics.PrometheusTextfile; tf != "" {
		if pr, ok := s.recorder.(*metrics.PrometheusRecorder); ok {
			if err := pr.WriteTextfile(s.cfg.Resolve(tf)); err != nil {
				logger.Warn("Failed to write Prometheus textfile", logfields.Error(err))
			}
		}
	}

	if s.history != nil {
		b := history.Build{
			ID:            res.BuildID,
			StartedAt:     res.StartTime,
			FinishedAt:    res.EndTime,
			Outcome:       string(res.Status),
			Incremental:   res.Incremental,
			NotesChanged:  len(res.Changes.ModifiedNotes),
			ImagesChanged: len(res.Changes.ModifiedImages),
			Error:         errText,
		}
		stages := make([]history.StageRun, len(res.Stages))
		for i, st := range res.Stages {
			stages[i] = history.StageRun{BuildID: res.BuildID, Seq: i, Stage: string(st.Name), Duration: st.Duration, Result: string(st.Result)}
		}
		if err := s.history.RecordBuild(ctx, b, stages); err != nil {
			logger.Warn("Failed to record build history", logfields.Error(err))
		} else if pruned, err := s.history.Prune(ctx, s.cfg.History.Keep); err != nil {
			logger.Warn("Failed to prune build history", logfields.Error(err))
		} else if pruned > 0 {
			logger.Debug("Pruned build history", slog.Int64("rows", pruned))
		}
	}

	ev := notify.BuildEvent{
		BuildID:       res.BuildID,
		Outcome:       string(res.Status),
		Incremental:   res.Incremental,
		StartedAt:     res.StartTime,
		FinishedAt:    res.EndTime,
		DurationMS:    float64(res.Duration) / float64(time.Millisecond),
		NotesChanged:  len(res.Changes.ModifiedNotes),
		ImagesChanged: len(res.Changes.ModifiedImages),
		Stages:        make([]notify.StageEvent, 0, len(res.Stages)),
		Error:         errText,
		ReportPath:    res.ReportPath,
	}
	for _, st := range res.Stages {
		ev.Stages = append(ev.Stages, notify.StageEvent{
			Name:       string(st.Name),
			Result:     string(st.Result),
			DurationMS: float64(st.Duration) / float64(time.Millisecond),
		})
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logger.Warn("Failed to publish build event", logfields.Error(err))
	}
}
