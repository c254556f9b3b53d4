package metrics

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// StageStats aggregates the records sharing one name. Times are seconds.
type StageStats struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Total   float64 `json:"total_seconds"`
	Average float64 `json:"average_seconds"`
	Min     float64 `json:"min_seconds"`
	Max     float64 `json:"max_seconds"`
}

// ResourceStats aggregates resource samples.
type ResourceStats struct {
	Samples        int     `json:"samples"`
	CPUAverage     float64 `json:"cpu_average_percent"`
	CPUPeak        float64 `json:"cpu_peak_percent"`
	RSSPeakBytes   uint64  `json:"rss_peak_bytes"`
	RSSAverage     float64 `json:"rss_average_bytes"`
	DiskReadBytes  uint64  `json:"disk_read_bytes"`
	DiskWriteBytes uint64  `json:"disk_write_bytes"`
}

// Summary is the aggregate view of a monitored build.
type Summary struct {
	TotalSeconds float64       `json:"total_seconds"`
	Stages       []StageStats  `json:"stages"`
	Resources    ResourceStats `json:"resources"`
}

// Summarize computes per-stage statistics in first-seen order and resource
// statistics over samples. Disk figures are deltas between the first and last sample.
func Summarize(records []TaskRecord, samples []Sample, total time.Duration) Summary {
	sum := Summary{TotalSeconds: total.Seconds(), Stages: []StageStats{}}

	idx := map[string]int{}
	for _, r := range records {
		secs := r.Duration.Seconds()
		i, ok := idx[r.Name]
		if !ok {
			idx[r.Name] = len(sum.Stages)
			sum.Stages = append(sum.Stages, StageStats{Name: r.Name, Min: secs, Max: secs})
			i = len(sum.Stages) - 1
		}
		st := &sum.Stages[i]
		st.Count++
		st.Total += secs
		st.Min = min(st.Min, secs)
		st.Max = max(st.Max, secs)
	}
	for i := range sum.Stages {
		sum.Stages[i].Average = sum.Stages[i].Total / float64(sum.Stages[i].Count)
	}

	if n := len(samples); n > 0 {
		rs := ResourceStats{Samples: n}
		var cpu, rss float64
		for _, s := range samples {
			cpu += s.CPUPercent
			rss += float64(s.RSSBytes)
			rs.CPUPeak = max(rs.CPUPeak, s.CPUPercent)
			rs.RSSPeakBytes = max(rs.RSSPeakBytes, s.RSSBytes)
		}
		rs.CPUAverage = cpu / float64(n)
		rs.RSSAverage = rss / float64(n)
		first, last := samples[0], samples[n-1]
		rs.DiskReadBytes = delta(first.ReadBytes, last.ReadBytes)
		rs.DiskWriteBytes = delta(first.WriteBytes, last.WriteBytes)
		sum.Resources = rs
	}
	return sum
}

func delta(a, b uint64) uint64 {
	if b < a {
		return 0
	}
	return b - a
}

// Report is the persisted form of a monitored build.
type Report struct {
	BuildID   string         `json:"build_id"`
	Timestamp time.Time      `json:"timestamp"`
	Outcome   string         `json:"outcome"`
	Summary   Summary        `json:"summary"`
	Tasks     []TaskRecord   `json:"tasks"`
	Samples   []Sample       `json:"samples"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// NewReport snapshots m into a report.
func NewReport(buildID, outcome string, m *Monitor) *Report {
	return &Report{
		BuildID:   buildID,
		Timestamp: time.Now().UTC(),
		Outcome:   outcome,
		Summary:   m.Summary(),
		Tasks:     nonNil(m.Records()),
		Samples:   nonNil(m.Samples()),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Persist writes report_<unix>.json and latest.json into dir and returns the
// path of the timestamped file.
func (r *Report) Persist(dir string) (string, error) {
	name := fmt.Sprintf("report_%d.json", r.Timestamp.Unix())
	path := filepath.Join(dir, name)
	if err := storage.WriteJSON(path, r); err != nil {
		return "", fmt.Errorf("write metrics report: %w", err)
	}
	if err := storage.WriteJSON(filepath.Join(dir, "latest.json"), r); err != nil {
		return "", fmt.Errorf("write latest metrics report: %w", err)
	}
	return path, nil
}

// SlowestStages returns up to n stage stats ordered by total time, descending.
func (s Summary) SlowestStages(n int) []StageStats {
	out := append([]StageStats(nil), s.Stages...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
