package metrics

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/xianyu564/tobacco-notes/internal/logfields"
)

// TaskRecord is one timed unit of work.
type TaskRecord struct {
	Name     string         `json:"name"`
	Start    time.Time      `json:"start"`
	Duration time.Duration  `json:"duration_ns"`
	Meta     map[string]any `json:"meta,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Monitor collects stage timings and periodic resource samples for one build.
type Monitor struct {
	mu       sync.Mutex
	sampler  Sampler
	recorder Recorder
	logger   *slog.Logger

	started time.Time
	records []TaskRecord
	samples []Sample

	sched   gocron.Scheduler
	stopped bool

	untimed func(error) bool
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithSampler overrides the resource sampler.
func WithSampler(s Sampler) MonitorOption {
	return func(m *Monitor) { m.sampler = s }
}

// WithRecorder forwards samples and timings to a Recorder.
func WithRecorder(r Recorder) MonitorOption {
	return func(m *Monitor) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithUntimed sets a predicate for errors that mark work as not done; such
// calls to TimeStage leave no record.
func WithUntimed(fn func(error) bool) MonitorOption {
	return func(m *Monitor) { m.untimed = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMonitor creates a monitor. The clock for Summary's total duration starts now.
func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		recorder: NoopRecorder{},
		logger:   slog.Default(),
		started:  time.Now(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.sampler == nil {
		m.sampler = NewProcSampler()
	}
	return m
}

// Record appends a completed task record.
func (m *Monitor) Record(rec TaskRecord) {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	m.recorder.ObserveStageDuration(rec.Name, rec.Duration)
}

// TimeStage runs fn and records its duration under name together with the
// meta fn returns. fn's results are passed through unchanged.
func (m *Monitor) TimeStage(name string, fn func() (map[string]any, error)) (map[string]any, error) {
	start := time.Now()
	meta, err := fn()
	if err != nil && m.untimed != nil && m.untimed(err) {
		return meta, err
	}
	rec := TaskRecord{Name: name, Start: start, Duration: time.Since(start), Meta: meta}
	if err != nil {
		rec.Error = err.Error()
	}
	m.Record(rec)
	return meta, err
}

// Start begins sampling at interval on a background scheduler. A sample is
// taken immediately. Calling Start twice or after Stop is a no-op.
func (m *Monitor) Start(interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sched != nil || m.stopped {
		return nil
	}
	if interval <= 0 {
		interval = time.Second
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.sampleOnce),
		gocron.WithName("resource-sampler"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	s.Start()
	m.sched = s
	return nil
}

func (m *Monitor) sampleOnce() {
	s, err := m.sampler.Sample()
	if err != nil {
		m.logger.Debug("Resource sample incomplete", logfields.Error(err))
	}
	if s.Time.IsZero() {
		return
	}
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.samples = append(m.samples, s)
	m.mu.Unlock()
	m.recorder.ObserveResources(s)
}

// Stop halts sampling. Safe to call more than once and without Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	s := m.sched
	m.sched = nil
	m.mu.Unlock()

	if s != nil {
		if err := s.Shutdown(); err != nil {
			m.logger.Warn("Resource sampler shutdown failed", logfields.Error(err))
		}
	}
}

// Records returns a copy of the task records in completion order.
func (m *Monitor) Records() []TaskRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TaskRecord(nil), m.records...)
}

// Samples returns a copy of the resource samples in time order.
func (m *Monitor) Samples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sample(nil), m.samples...)
}

// Summary aggregates records and samples collected so far.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Summarize(m.records, m.samples, time.Since(m.started))
}
