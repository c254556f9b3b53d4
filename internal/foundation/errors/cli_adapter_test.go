package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad front matter").Build(), expected: 2},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "not found", err: NewError(CategoryNotFound, "no such build").Build(), expected: 4},
		{name: "stage", err: NewError(CategoryStage, "build_feeds failed").Build(), expected: 11},
		{name: "wrapped images", err: fmt.Errorf("run: %w", ImagesError("x").Build()), expected: 11},
		{name: "notify", err: NewError(CategoryNotify, "nats down").Build(), expected: 8},
		{name: "runtime", err: NewError(CategoryRuntime, "signal").Build(), expected: 12},
		{name: "internal", err: NewError(CategoryInternal, "bug").Build(), expected: 10},
		{name: "unclassified", err: errors.New("unknown error"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())

	cause := errors.New("notes/pipe/a.md: missing date")
	err := WrapError(cause, CategoryStage, "stage process_notes failed").Build()

	assert.Empty(t, quiet.FormatError(nil))
	assert.Equal(t, "Error: stage process_notes failed: notes/pipe/a.md: missing date", quiet.FormatError(err))
	assert.Contains(t, verbose.FormatError(err), "[stage:error]")
	assert.Equal(t, "Error: boom", quiet.FormatError(errors.New("boom")))
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out bytes.Buffer
	var logs bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(NewError(CategoryBuild, "build failed").Fatal().NextBuild().WithContext("build_id", "abc").Build())

	assert.Equal(t, 11, code)
	assert.Contains(t, out.String(), "build failed")
	assert.Contains(t, out.String(), "next build retries")
	assert.Contains(t, logs.String(), "build_id=abc")
	assert.Contains(t, logs.String(), "retry=next_build")
}

func TestHint(t *testing.T) {
	assert.Empty(t, Hint(errors.New("plain")))
	assert.Empty(t, Hint(NewError(CategoryNotify, "down").Retryable().Build()))
	assert.Contains(t, Hint(ValidationError("bad").Build()), "Fix the reported input")
}
