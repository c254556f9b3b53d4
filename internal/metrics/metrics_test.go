package metrics

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSampler(calls *atomic.Int32) Sampler {
	return SamplerFunc(func() (Sample, error) {
		n := calls.Add(1)
		return Sample{
			Time:       time.Now(),
			CPUPercent: float64(n * 10),
			RSSBytes:   uint64(n) * 1000,
			ReadBytes:  uint64(n) * 100,
			WriteBytes: uint64(n) * 50,
		}, nil
	})
}

func TestSummarizeStages(t *testing.T) {
	recs := []TaskRecord{
		{Name: "process_notes", Duration: 2 * time.Second},
		{Name: "build_feeds", Duration: time.Second},
		{Name: "process_notes", Duration: 4 * time.Second},
	}
	s := Summarize(recs, nil, 10*time.Second)

	require.Len(t, s.Stages, 2)
	pn := s.Stages[0]
	assert.Equal(t, "process_notes", pn.Name)
	assert.Equal(t, 2, pn.Count)
	assert.InDelta(t, 6.0, pn.Total, 1e-9)
	assert.InDelta(t, 3.0, pn.Average, 1e-9)
	assert.InDelta(t, 2.0, pn.Min, 1e-9)
	assert.InDelta(t, 4.0, pn.Max, 1e-9)
	assert.InDelta(t, 10.0, s.TotalSeconds, 1e-9)
	assert.Zero(t, s.Resources.Samples)

	slow := s.SlowestStages(1)
	require.Len(t, slow, 1)
	assert.Equal(t, "process_notes", slow[0].Name)
}

func TestSummarizeResources(t *testing.T) {
	samples := []Sample{
		{CPUPercent: 10, RSSBytes: 100, ReadBytes: 1000, WriteBytes: 10},
		{CPUPercent: 50, RSSBytes: 300, ReadBytes: 1500, WriteBytes: 40},
	}
	s := Summarize(nil, samples, time.Second)
	r := s.Resources
	assert.Equal(t, 2, r.Samples)
	assert.InDelta(t, 30.0, r.CPUAverage, 1e-9)
	assert.InDelta(t, 50.0, r.CPUPeak, 1e-9)
	assert.Equal(t, uint64(300), r.RSSPeakBytes)
	assert.InDelta(t, 200.0, r.RSSAverage, 1e-9)
	assert.Equal(t, uint64(500), r.DiskReadBytes)
	assert.Equal(t, uint64(30), r.DiskWriteBytes)
}

func TestMonitorTimeStageRecordsErrors(t *testing.T) {
	m := NewMonitor(WithSampler(fakeSampler(new(atomic.Int32))))
	defer m.Stop()

	meta, err := m.TimeStage("ok", func() (map[string]any, error) { return map[string]any{"count": 3}, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, meta["count"])
	boom := errors.New("boom")
	_, err = m.TimeStage("bad", func() (map[string]any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	recs := m.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "ok", recs[0].Name)
	assert.Equal(t, 3, recs[0].Meta["count"])
	assert.Empty(t, recs[0].Error)
	assert.Equal(t, "boom", recs[1].Error)
}

func TestMonitorTimeStageUntimed(t *testing.T) {
	skipped := errors.New("nothing to do")
	m := NewMonitor(WithSampler(fakeSampler(new(atomic.Int32))),
		WithUntimed(func(err error) bool { return errors.Is(err, skipped) }))
	defer m.Stop()

	_, err := m.TimeStage("process_notes", func() (map[string]any, error) { return nil, skipped })
	require.ErrorIs(t, err, skipped)
	assert.Empty(t, m.Records())
	assert.Empty(t, m.Summary().Stages)
}

func TestMonitorSamplingAndStop(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor(WithSampler(fakeSampler(&calls)))
	require.NoError(t, m.Start(10*time.Millisecond))

	require.Eventually(t, func() bool { return len(m.Samples()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()

	n := len(m.Samples())
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, m.Samples(), n, "no samples after Stop")
	require.NoError(t, m.Start(10*time.Millisecond), "Start after Stop is a no-op")
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, m.Samples(), n)
}

func TestMonitorSamplerErrorsAreNotFatal(t *testing.T) {
	m := NewMonitor(WithSampler(SamplerFunc(func() (Sample, error) {
		return Sample{}, errors.New("no proc")
	})))
	require.NoError(t, m.Start(5*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	assert.Empty(t, m.Samples())
}

func TestReportPersist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metrics")
	m := NewMonitor(WithSampler(fakeSampler(new(atomic.Int32))))
	m.Record(TaskRecord{Name: "discover_changes", Start: time.Now(), Duration: time.Millisecond})
	m.Stop()

	rep := NewReport("b-1", "success", m)
	path, err := rep.Persist(dir)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Regexp(t, `report_\d+\.json$`, path)

	data, err := os.ReadFile(filepath.Join(dir, "latest.json"))
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "b-1", got.BuildID)
	require.Len(t, got.Summary.Stages, 1)
	assert.Equal(t, "discover_changes", got.Summary.Stages[0].Name)
	assert.NotNil(t, got.Samples)
}

func TestPrometheusRecorderGather(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)
	r.ObserveStageDuration("process_notes", 150*time.Millisecond)
	r.ObserveBuildDuration(time.Second)
	r.IncStageResult("process_notes", ResultSuccess)
	r.IncBuildOutcome(BuildOutcomeSuccess)
	r.AddItems("process_notes", 4, 1)
	r.ObserveResources(Sample{CPUPercent: 12.5, RSSBytes: 4096})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"notesbuild_stage_duration_seconds",
		"notesbuild_build_duration_seconds",
		"notesbuild_stage_results_total",
		"notesbuild_build_outcomes_total",
		"notesbuild_stage_items_total",
		"notesbuild_process_cpu_percent",
		"notesbuild_process_resident_memory_bytes",
		"notesbuild_last_success_timestamp_seconds",
	} {
		assert.True(t, names[want], want)
	}

	out := filepath.Join(t.TempDir(), "notesbuild.prom")
	require.NoError(t, r.WriteTextfile(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `notesbuild_stage_items_total{result="failed",stage="process_notes"} 1`)
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveResources(Sample{})
	r.IncBuildOutcome(BuildOutcomeFailed)
}
