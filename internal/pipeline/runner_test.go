package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	started   []StageName
	completed []StageResult
	metas     []Meta
}

func (r *recordingObserver) OnStageStart(s StageName) { r.started = append(r.started, s) }
func (r *recordingObserver) OnStageComplete(_ StageName, _ time.Time, _ time.Duration, res StageResult, meta Meta, _ error) {
	r.completed = append(r.completed, res)
	r.metas = append(r.metas, meta)
}

func ok(calls *[]StageName, name StageName) Stage {
	return func(context.Context) (Meta, error) {
		*calls = append(*calls, name)
		return Meta{"items": 1}, nil
	}
}

func TestRunStagesInOrder(t *testing.T) {
	var calls []StageName
	defs := NewPipeline().
		Add(StageDiscoverChanges, ok(&calls, StageDiscoverChanges)).
		AddIf(false, StageProcessImages, ok(&calls, StageProcessImages)).
		Add(StageBuildFeeds, ok(&calls, StageBuildFeeds)).
		Build()
	obs := &recordingObserver{}

	runs, err := RunStages(context.Background(), defs, obs)
	require.NoError(t, err)
	assert.Equal(t, []StageName{StageDiscoverChanges, StageBuildFeeds}, calls)
	assert.Equal(t, []StageResult{StageResultSuccess, StageResultSuccess}, obs.completed)
	require.Len(t, runs, 2)
	assert.Equal(t, 1, runs[0].Meta["items"])
}

func TestRunStagesAbortsOnFatal(t *testing.T) {
	var calls []StageName
	boom := errors.New("cannot write docs/feed.xml")
	defs := NewPipeline().
		Add(StageProcessNotes, ok(&calls, StageProcessNotes)).
		Add(StageBuildFeeds, func(context.Context) (Meta, error) { return nil, boom }).
		Add(StageBuildSearchIndex, ok(&calls, StageBuildSearchIndex)).
		Build()

	runs, err := RunStages(context.Background(), defs, nil)
	require.Error(t, err)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageBuildFeeds, se.Stage)
	assert.Equal(t, StageErrorFatal, se.Kind)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []StageName{StageProcessNotes}, calls)
	assert.Len(t, runs, 2)
}

func TestRunStagesContinuesOnWarning(t *testing.T) {
	var calls []StageName
	defs := NewPipeline().
		Add(StageBuildIndex, func(context.Context) (Meta, error) {
			return nil, NewWarnStageError(StageBuildIndex, errors.New("contributors unavailable"))
		}).
		Add(StageBuildFeeds, ok(&calls, StageBuildFeeds)).
		Build()
	obs := &recordingObserver{}

	_, err := RunStages(context.Background(), defs, obs)
	require.NoError(t, err)
	assert.Equal(t, []StageResult{StageResultWarning, StageResultSuccess}, obs.completed)
	assert.Equal(t, []StageName{StageBuildFeeds}, calls)
}

func TestRunStagesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls []StageName
	defs := NewPipeline().Add(StageDiscoverChanges, ok(&calls, StageDiscoverChanges)).Build()

	_, err := RunStages(ctx, defs, nil)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageErrorCanceled, se.Kind)
	assert.Empty(t, calls)
}

func TestClassifyWrappedCancellation(t *testing.T) {
	se := classify(StageProcessNotes, fmt.Errorf("dispatch: %w", context.Canceled))
	assert.Equal(t, StageErrorCanceled, se.Kind)
	assert.Nil(t, classify(StageProcessNotes, nil))
}

func TestRunStagesSkipped(t *testing.T) {
	var calls []StageName
	defs := NewPipeline().
		Add(StageProcessNotes, func(context.Context) (Meta, error) {
			return Meta{"items": 0}, ErrStageSkipped
		}).
		Add(StageBuildFeeds, ok(&calls, StageBuildFeeds)).
		Build()
	obs := &recordingObserver{}

	runs, err := RunStages(context.Background(), defs, obs)
	require.NoError(t, err)
	assert.Equal(t, []StageResult{StageResultSkipped, StageResultSuccess}, obs.completed)
	assert.Equal(t, StageResultSkipped, runs[0].Result)
	assert.Equal(t, []StageName{StageBuildFeeds}, calls)
}
