package dispatch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "DISPATCH_WANT_HELPER_PROCESS=1"

// TestHelperProcess is re-executed by ExecSpawner tests as a fake worker binary.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("DISPATCH_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	// -- worker --task <name> <path>
	if len(args) != 5 || args[1] != WorkerCommand || args[2] != "--task" {
		fmt.Fprintf(os.Stderr, "bad args %v\n", args)
		os.Exit(2)
	}
	if strings.Contains(args[4], "fail") {
		fmt.Fprintf(os.Stderr, "decode %s: unexpected EOF\n", args[4])
		os.Exit(3)
	}
	os.Exit(0)
}

func TestExecSpawner(t *testing.T) {
	s := &ExecSpawner{
		Executable: os.Args[0],
		Args:       []string{"-test.run=TestHelperProcess", "--"},
		Env:        []string{helperEnv},
	}
	d := New(WithWorkers(2), WithSpawner(s))

	out := d.ProcessFiles(context.Background(), []string{"ok.png", "fail.png"}, Task{Name: "image"}, PoolProcess, 0)

	require.Len(t, out.Failures, 1)
	assert.Equal(t, "fail.png", out.Failures[0].Path)
	assert.Contains(t, out.Failures[0].Err.Error(), "decode fail.png: unexpected EOF")
}

func TestRegistryRun(t *testing.T) {
	var got string
	r := NewRegistry(Task{Name: "note", Fn: func(_ context.Context, p string) error {
		got = p
		return nil
	}})

	require.NoError(t, r.Run(context.Background(), "note", "notes/pipe/a.md"))
	assert.Equal(t, "notes/pipe/a.md", got)
	assert.Equal(t, []string{"note"}, r.Names())

	err := r.Run(context.Background(), "image", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown task "image"`)
}
