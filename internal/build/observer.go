package build

import (
	"context"
	"log/slog"
	"time"

	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/metrics"
	"github.com/xianyu564/tobacco-notes/internal/pipeline"
)

// timed wraps every stage in the monitor so its wall time and meta are recorded.
func timed(defs []pipeline.StageDef, monitor *metrics.Monitor) []pipeline.StageDef {
	out := make([]pipeline.StageDef, len(defs))
	for i, def := range defs {
		fn, name := def.Fn, string(def.Name)
		def.Fn = func(ctx context.Context) (pipeline.Meta, error) {
			return monitor.TimeStage(name, func() (map[string]any, error) { return fn(ctx) })
		}
		out[i] = def
	}
	return out
}

// stageObserver counts stage results and logs them. Timing is done by timed.
type stageObserver struct {
	logger   *slog.Logger
	recorder metrics.Recorder
}

func (o *stageObserver) OnStageStart(stage pipeline.StageName) {
	o.logger.Debug("Stage started", logfields.Stage(string(stage)))
}

func (o *stageObserver) OnStageComplete(stage pipeline.StageName, start time.Time, d time.Duration, result pipeline.StageResult, meta pipeline.Meta, err error) {
	name := string(stage)
	o.recorder.IncStageResult(name, resultLabel(result))
	if result == pipeline.StageResultSkipped {
		o.logger.Info("Stage skipped", logfields.Stage(name))
		return
	}

	attrs := []any{logfields.Stage(name), logfields.Elapsed(d)}
	switch result {
	case pipeline.StageResultSuccess:
		o.logger.Info("Stage complete", attrs...)
	case pipeline.StageResultWarning:
		o.logger.Warn("Stage completed with warnings", append(attrs, logfields.Error(err))...)
	default:
		o.logger.Error("Stage failed", append(attrs, logfields.Error(err))...)
	}
}

func resultLabel(r pipeline.StageResult) metrics.ResultLabel {
	switch r {
	case pipeline.StageResultSuccess:
		return metrics.ResultSuccess
	case pipeline.StageResultWarning:
		return metrics.ResultWarning
	case pipeline.StageResultCanceled:
		return metrics.ResultCanceled
	case pipeline.StageResultSkipped:
		return metrics.ResultSkipped
	default:
		return metrics.ResultFatal
	}
}
