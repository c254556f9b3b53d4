package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
)

// Spawner runs one item of a named task in a separate OS process.
type Spawner interface {
	Spawn(ctx context.Context, task, path string) error
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(ctx context.Context, task, path string) error

func (f SpawnerFunc) Spawn(ctx context.Context, task, path string) error { return f(ctx, task, path) }

// WorkerCommand is the hidden CLI subcommand a child process runs.
const WorkerCommand = "worker"

// ExecSpawner re-executes a binary as `<exe> <Args...> worker --task <task> <path>`.
type ExecSpawner struct {
	Executable string
	Args       []string
	Env        []string
}

// NewExecSpawner targets the running executable.
func NewExecSpawner(args ...string) (*ExecSpawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &ExecSpawner{Executable: exe, Args: args}, nil
}

// Spawn runs the child and maps a non-zero exit to an error carrying its stderr.
func (s *ExecSpawner) Spawn(ctx context.Context, task, path string) error {
	args := append(append([]string{}, s.Args...), WorkerCommand, "--task", task, path)
	cmd := exec.CommandContext(ctx, s.Executable, args...)
	cmd.Env = append(os.Environ(), s.Env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("worker process: %w", err)
		}
		return fmt.Errorf("worker process: %w: %s", err, lastLine(msg))
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Registry maps task names to handlers so a worker process can find them.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Handler
}

// NewRegistry creates a Registry holding tasks.
func NewRegistry(tasks ...Task) *Registry {
	r := &Registry{tasks: make(map[string]Handler, len(tasks))}
	for _, t := range tasks {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a task.
func (r *Registry) Register(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Name] = t.Fn
}

// Names lists registered task names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tasks))
	for n := range r.tasks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Run executes task name on path.
func (r *Registry) Run(ctx context.Context, name, path string) error {
	r.mu.RLock()
	fn, ok := r.tasks[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown task %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return safeCall(ctx, fn, path)
}
