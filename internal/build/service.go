package build

import (
	"context"
	"time"

	"github.com/xianyu564/tobacco-notes/internal/incremental"
	"github.com/xianyu564/tobacco-notes/internal/metrics"
	"github.com/xianyu564/tobacco-notes/internal/pipeline"
)

// BuildService is the canonical interface for executing site builds.
type BuildService interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request holds the per-run inputs of a build.
type Request struct {
	// Incremental uses the persisted build state to limit note and image
	// processing to changed files. Aggregation stages always rescan.
	Incremental bool

	// NoReport suppresses the metrics report even when metrics are enabled.
	NoReport bool
}

// Result is the outcome of a build.
type Result struct {
	BuildID     string
	Status      Status
	Incremental bool
	Changes     incremental.ChangeSet
	Stages      []pipeline.StageRun
	Summary     metrics.Summary
	// ReportPath is empty when no report was written.
	ReportPath string
	// State is the committed build state; nil when the build failed.
	State *incremental.BuildState

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// StageDuration returns the recorded duration of stage, if it ran.
func (r *Result) StageDuration(stage pipeline.StageName) (time.Duration, bool) {
	for _, s := range r.Stages {
		if s.Name == stage {
			return s.Duration, true
		}
	}
	return 0, false
}

// Status represents the outcome of a build execution.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// IsSuccess returns true if the build completed successfully.
func (s Status) IsSuccess() bool { return s == StatusSuccess }

func (s Status) outcome() metrics.BuildOutcomeLabel {
	switch s {
	case StatusSuccess:
		return metrics.BuildOutcomeSuccess
	case StatusCanceled:
		return metrics.BuildOutcomeCanceled
	default:
		return metrics.BuildOutcomeFailed
	}
}
