package build

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xianyu564/tobacco-notes/internal/metrics"
	"github.com/xianyu564/tobacco-notes/internal/pipeline"
)

func TestTimedStagesFeedMonitor(t *testing.T) {
	monitor := metrics.NewMonitor(
		metrics.WithSampler(metrics.SamplerFunc(func() (metrics.Sample, error) { return metrics.Sample{}, nil })),
		metrics.WithUntimed(func(err error) bool { return errors.Is(err, pipeline.ErrStageSkipped) }),
	)
	defer monitor.Stop()

	defs := pipeline.NewPipeline().
		Add(pipeline.StageProcessNotes, func(context.Context) (pipeline.Meta, error) {
			return pipeline.Meta{"items": 0}, pipeline.ErrStageSkipped
		}).
		Add(pipeline.StageBuildIndex, func(context.Context) (pipeline.Meta, error) {
			return pipeline.Meta{"notes": 4}, nil
		}).
		Build()

	runs, err := pipeline.RunStages(context.Background(), timed(defs, monitor), nil)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, pipeline.StageResultSkipped, runs[0].Result)
	assert.Equal(t, 4, runs[1].Meta["notes"])

	recs := monitor.Records()
	require.Len(t, recs, 1, "skipped stages are not timed")
	assert.Equal(t, string(pipeline.StageBuildIndex), recs[0].Name)
	assert.Equal(t, 4, recs[0].Meta["notes"])
}
