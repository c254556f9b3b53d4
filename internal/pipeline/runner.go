package pipeline

import (
	"context"
	"errors"
	"time"
)

// Observer receives callbacks around stage execution.
type Observer interface {
	OnStageStart(stage StageName)
	OnStageComplete(stage StageName, start time.Time, duration time.Duration, result StageResult, meta Meta, err error)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnStageStart(StageName) {}
func (NoopObserver) OnStageComplete(StageName, time.Time, time.Duration, StageResult, Meta, error) {
}

// StageRun is the record of one executed stage.
type StageRun struct {
	Name     StageName
	Start    time.Time
	Duration time.Duration
	Result   StageResult
	Meta     Meta
}

// RunStages executes stages strictly in order, timing each through obs, and
// stops at the first fatal or canceled stage. Warnings are recorded and the
// run continues. The returned error is the aborting *StageError.
func RunStages(ctx context.Context, defs []StageDef, obs Observer) ([]StageRun, error) {
	if obs == nil {
		obs = NoopObserver{}
	}
	runs := make([]StageRun, 0, len(defs))
	for _, st := range defs {
		if err := ctx.Err(); err != nil {
			se := NewCanceledStageError(st.Name, err)
			now := time.Now()
			obs.OnStageComplete(st.Name, now, 0, StageResultCanceled, nil, se)
			runs = append(runs, StageRun{Name: st.Name, Start: now, Result: StageResultCanceled})
			return runs, se
		}

		obs.OnStageStart(st.Name)
		t0 := time.Now()
		meta, err := st.Fn(ctx)
		dur := time.Since(t0)

		if errors.Is(err, ErrStageSkipped) {
			obs.OnStageComplete(st.Name, t0, dur, StageResultSkipped, meta, nil)
			runs = append(runs, StageRun{Name: st.Name, Start: t0, Duration: dur, Result: StageResultSkipped, Meta: meta})
			continue
		}

		se := classify(st.Name, err)
		result := resultOf(se)
		obs.OnStageComplete(st.Name, t0, dur, result, meta, asError(se))
		runs = append(runs, StageRun{Name: st.Name, Start: t0, Duration: dur, Result: result, Meta: meta})

		if se != nil && se.Kind != StageErrorWarning {
			return runs, se
		}
	}
	return runs, nil
}

// classify normalizes a stage return value; unclassified errors are fatal.
func classify(name StageName, err error) *StageError {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewCanceledStageError(name, err)
	}
	return NewFatalStageError(name, err)
}

func resultOf(se *StageError) StageResult {
	if se == nil {
		return StageResultSuccess
	}
	switch se.Kind {
	case StageErrorWarning:
		return StageResultWarning
	case StageErrorCanceled:
		return StageResultCanceled
	default:
		return StageResultFatal
	}
}

// asError avoids handing observers a typed-nil error.
func asError(se *StageError) error {
	if se == nil {
		return nil
	}
	return se
}
