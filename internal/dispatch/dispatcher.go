package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/xianyu564/tobacco-notes/internal/logfields"
)

// PoolKind selects where items execute.
type PoolKind string

const (
	// PoolThread runs items on goroutines in this process.
	PoolThread PoolKind = "thread"
	// PoolProcess runs each item in a separate OS process.
	PoolProcess PoolKind = "process"
)

// Handler processes one input path.
type Handler func(ctx context.Context, path string) error

// Task is a named handler. The name lets a child process find the same handler.
type Task struct {
	Name string
	Fn   Handler
}

// Job is a zero-argument unit of work for ProcessTasks.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher owns the worker bound and the process spawner for a build.
type Dispatcher struct {
	workers  int
	spawner  Spawner
	logger   *slog.Logger
	warnOnce sync.Once
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers overrides the worker count. Non-positive values keep the default.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithSpawner sets the process-pool spawner.
func WithSpawner(s Spawner) Option {
	return func(d *Dispatcher) { d.spawner = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// DefaultWorkers is min(32, cores+4).
func DefaultWorkers() int {
	return min(32, runtime.NumCPU()+4)
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{workers: DefaultWorkers(), logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Workers returns the configured worker bound.
func (d *Dispatcher) Workers() int { return d.workers }

// ProcessFiles runs task over files and never fails as a whole: each item
// error (or panic) becomes an ItemFailure. chunkSize <= 0 disables chunking.
// Cancellation is observed between chunks only; items of a cancelled run that
// never started are reported as failures carrying the context error.
func (d *Dispatcher) ProcessFiles(ctx context.Context, files []string, task Task, pool PoolKind, chunkSize int) Outcome {
	start := time.Now()
	out := Outcome{Total: len(files)}
	if len(files) == 0 {
		return out
	}

	fn := task.Fn
	if pool == PoolProcess {
		fn = d.processHandler(task)
	}

	for i, chunk := range chunks(files, chunkSize) {
		if err := ctx.Err(); err != nil {
			for _, rest := range files[out.Processed:] {
				out.Failures = append(out.Failures, ItemFailure{Path: rest, Err: err})
			}
			break
		}
		failures := d.runRound(ctx, chunk, fn)
		out.Processed += len(chunk)
		out.Chunks++
		out.Failures = append(out.Failures, failures...)
		d.logger.Debug("Dispatch chunk complete",
			logfields.Task(task.Name), logfields.Pool(string(pool)), logfields.Chunk(i),
			logfields.Count(len(chunk)), logfields.Failed(len(failures)))
	}

	for _, f := range out.Failures {
		d.logger.Warn("Item failed", logfields.Task(task.Name), logfields.Path(f.Path), logfields.Error(f.Err))
	}
	out.Duration = time.Since(start)
	return out
}

// ProcessTasks runs independent jobs on the thread pool. Jobs are dispatched by
// position, so duplicate names still run once each; failures carry the job name.
func (d *Dispatcher) ProcessTasks(ctx context.Context, jobs []Job) Outcome {
	keys := make([]string, len(jobs))
	for i := range jobs {
		keys[i] = strconv.Itoa(i)
	}
	out := d.ProcessFiles(ctx, keys, Task{Name: "jobs", Fn: func(ctx context.Context, key string) error {
		i, _ := strconv.Atoi(key)
		return jobs[i].Run(ctx)
	}}, PoolThread, 0)
	for n, f := range out.Failures {
		i, _ := strconv.Atoi(f.Path)
		out.Failures[n].Path = jobName(jobs[i], i)
	}
	sort.SliceStable(out.Failures, func(a, b int) bool { return out.Failures[a].Path < out.Failures[b].Path })
	return out
}

func jobName(j Job, i int) string {
	if j.Name == "" {
		return fmt.Sprintf("job-%d", i)
	}
	return j.Name
}

func (d *Dispatcher) processHandler(task Task) Handler {
	if d.spawner == nil {
		d.warnOnce.Do(func() {
			d.logger.Warn("No process spawner configured; running process-pool items in-process", logfields.Task(task.Name))
		})
		return task.Fn
	}
	return func(ctx context.Context, path string) error {
		return d.spawner.Spawn(ctx, task.Name, path)
	}
}

// runRound executes one chunk to completion on min(workers, len(items)) goroutines.
func (d *Dispatcher) runRound(ctx context.Context, items []string, fn Handler) []ItemFailure {
	concurrency := min(d.workers, len(items))
	if concurrency < 1 {
		concurrency = 1
	}

	tasks := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []ItemFailure

	worker := func() {
		defer wg.Done()
		for path := range tasks {
			if err := safeCall(ctx, fn, path); err != nil {
				mu.Lock()
				failures = append(failures, ItemFailure{Path: path, Err: err})
				mu.Unlock()
			}
		}
	}
	wg.Add(concurrency)
	for range concurrency {
		go worker()
	}
	for _, it := range items {
		tasks <- it
	}
	close(tasks)
	wg.Wait()

	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	return failures
}

func safeCall(ctx context.Context, fn Handler, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, path)
}

func chunks(files []string, size int) [][]string {
	if size <= 0 || len(files) <= size {
		return [][]string{files}
	}
	out := make([][]string, 0, (len(files)+size-1)/size)
	for i := 0; i < len(files); i += size {
		out = append(out, files[i:min(i+size, len(files))])
	}
	return out
}

// OptimalChunkSize is a deterministic batch-size heuristic: everything at once
// below 100 items, total/(2*cores) up to 1000, then fixed batches of 100.
func OptimalChunkSize(total, cores int) int {
	if cores < 1 {
		cores = 1
	}
	switch {
	case total < 100:
		return total
	case total < 1000:
		return max(1, total/(2*cores))
	default:
		return 100
	}
}
