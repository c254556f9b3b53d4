package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("notes/pipe/%04d.md", i)
	}
	return out
}

func TestProcessFilesCollectsEveryFailure(t *testing.T) {
	d := New(WithWorkers(4))
	files := paths(25)

	out := d.ProcessFiles(context.Background(), files, Task{Name: "fail", Fn: func(context.Context, string) error {
		return errors.New("bad note")
	}}, PoolThread, 0)

	require.Len(t, out.Failures, len(files))
	assert.Equal(t, 25, out.Processed)
	assert.False(t, out.OK())
	seen := map[string]bool{}
	for _, f := range out.Failures {
		seen[f.Path] = true
		assert.EqualError(t, f.Err, "bad note")
	}
	assert.Len(t, seen, 25)
	assert.ErrorContains(t, out.Err(), "notes/pipe/0003.md: bad note")
}

func TestProcessFilesChunkedVisitsEachOnce(t *testing.T) {
	d := New(WithWorkers(8))
	files := paths(23)

	var mu sync.Mutex
	visits := map[string]int{}
	out := d.ProcessFiles(context.Background(), files, Task{Name: "record", Fn: func(_ context.Context, p string) error {
		mu.Lock()
		visits[p]++
		mu.Unlock()
		return nil
	}}, PoolThread, 5)

	require.True(t, out.OK())
	assert.Equal(t, 5, out.Chunks)
	require.Len(t, visits, len(files))
	for _, f := range files {
		assert.Equal(t, 1, visits[f], f)
	}
}

func TestProcessFilesChunksAreSequentialRounds(t *testing.T) {
	d := New(WithWorkers(16))
	files := paths(12)
	index := map[string]int{}
	for i, f := range files {
		index[f] = i
	}

	var inFlight, peak int32
	var finished atomic.Int32
	var violations atomic.Int32
	out := d.ProcessFiles(context.Background(), files, Task{Name: "rounds", Fn: func(_ context.Context, p string) error {
		chunk := int32(index[p] / 4)
		if finished.Load() < chunk*4 {
			violations.Add(1)
		}
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		finished.Add(1)
		return nil
	}}, PoolThread, 4)

	require.True(t, out.OK())
	assert.Zero(t, violations.Load(), "an item started before the previous chunk finished")
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestProcessFilesRecoversPanics(t *testing.T) {
	d := New(WithWorkers(2))
	out := d.ProcessFiles(context.Background(), []string{"a", "b"}, Task{Name: "panic", Fn: func(_ context.Context, p string) error {
		if p == "a" {
			panic("corrupt image")
		}
		return nil
	}}, PoolThread, 0)

	require.Len(t, out.Failures, 1)
	assert.Equal(t, "a", out.Failures[0].Path)
	assert.Contains(t, out.Failures[0].Err.Error(), "corrupt image")
}

func TestProcessFilesStopsBetweenChunksOnCancel(t *testing.T) {
	d := New(WithWorkers(2))
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	out := d.ProcessFiles(ctx, paths(6), Task{Name: "cancel", Fn: func(context.Context, string) error {
		if calls.Add(1) == 2 {
			cancel()
		}
		return nil
	}}, PoolThread, 2)

	assert.Equal(t, int32(2), calls.Load(), "first chunk runs to completion, later chunks never start")
	assert.Equal(t, 2, out.Processed)
	require.Len(t, out.Failures, 4)
	assert.ErrorIs(t, out.Failures[0].Err, context.Canceled)
}

func TestProcessFilesEmptyInput(t *testing.T) {
	out := New().ProcessFiles(context.Background(), nil, Task{Name: "noop"}, PoolThread, 10)
	assert.True(t, out.OK())
	assert.Zero(t, out.Processed)
}

func TestProcessPoolUsesSpawner(t *testing.T) {
	var spawned []string
	var mu sync.Mutex
	d := New(WithWorkers(3), WithSpawner(SpawnerFunc(func(_ context.Context, task, p string) error {
		mu.Lock()
		spawned = append(spawned, task+":"+p)
		mu.Unlock()
		if strings.HasSuffix(p, "bad.png") {
			return errors.New("exit status 1")
		}
		return nil
	})))

	out := d.ProcessFiles(context.Background(), []string{"x.png", "bad.png"}, Task{Name: "image", Fn: func(context.Context, string) error {
		t.Error("in-process handler must not run for the process pool")
		return nil
	}}, PoolProcess, 0)

	assert.ElementsMatch(t, []string{"image:x.png", "image:bad.png"}, spawned)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "bad.png", out.Failures[0].Path)
}

func TestProcessPoolWithoutSpawnerRunsInProcess(t *testing.T) {
	var ran atomic.Int32
	out := New().ProcessFiles(context.Background(), []string{"a.jpg"}, Task{Name: "image", Fn: func(context.Context, string) error {
		ran.Add(1)
		return nil
	}}, PoolProcess, 0)
	assert.True(t, out.OK())
	assert.Equal(t, int32(1), ran.Load())
}

func TestProcessTasks(t *testing.T) {
	d := New()
	out := d.ProcessTasks(context.Background(), []Job{
		{Name: "rss", Run: func(context.Context) error { return nil }},
		{Name: "atom", Run: func(context.Context) error { return errors.New("disk full") }},
		{Run: func(context.Context) error { return nil }},
	})
	assert.Equal(t, 3, out.Processed)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "atom", out.Failures[0].Path)
}

func TestProcessTasksDuplicateNames(t *testing.T) {
	var first, second atomic.Int32
	out := New().ProcessTasks(context.Background(), []Job{
		{Name: "x", Run: func(context.Context) error { first.Add(1); return nil }},
		{Name: "x", Run: func(context.Context) error { second.Add(1); return errors.New("boom") }},
		{Run: func(context.Context) error { return errors.New("unnamed") }},
	})
	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
	assert.Equal(t, 3, out.Processed)
	require.Len(t, out.Failures, 2)
	assert.Equal(t, "job-2", out.Failures[0].Path)
	assert.Equal(t, "x", out.Failures[1].Path)
	assert.EqualError(t, out.Failures[1].Err, "boom")
}

func TestOptimalChunkSize(t *testing.T) {
	tests := []struct {
		total, cores, want int
	}{
		{0, 8, 0},
		{99, 8, 99},
		{100, 8, 6},
		{999, 4, 124},
		{150, 100, 1},
		{1000, 8, 100},
		{50000, 2, 100},
		{500, 0, 250},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OptimalChunkSize(tt.total, tt.cores), "total=%d cores=%d", tt.total, tt.cores)
	}
}

func TestDefaultWorkersBounded(t *testing.T) {
	w := DefaultWorkers()
	assert.GreaterOrEqual(t, w, 5)
	assert.LessOrEqual(t, w, 32)
	assert.Equal(t, 7, New(WithWorkers(7)).Workers())
	assert.Equal(t, w, New(WithWorkers(0)).Workers())
}

func TestSizeExtensionPolicy(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "scan.tiff")
	require.NoError(t, os.WriteFile(big, make([]byte, 2048), 0o644))
	small := filepath.Join(dir, "thumb.tiff")
	require.NoError(t, os.WriteFile(small, make([]byte, 10), 0o644))
	jpg := filepath.Join(dir, "band.JPG")
	require.NoError(t, os.WriteFile(jpg, make([]byte, 10), 0o644))

	p := SizeExtensionPolicy{ThresholdBytes: 1024, Extensions: []string{".jpg"}}
	proc, thread := Partition([]string{big, small, jpg}, p)
	assert.Equal(t, []string{big, jpg}, proc)
	assert.Equal(t, []string{small}, thread)

	p.Invert = true
	proc, thread = Partition([]string{big, small, jpg}, p)
	assert.Equal(t, []string{small}, proc)
	assert.Equal(t, []string{big, jpg}, thread)

	always := PolicyFunc(func(string) PoolKind { return PoolThread })
	proc, thread = Partition([]string{big}, always)
	assert.Empty(t, proc)
	assert.Equal(t, []string{big}, thread)
}
