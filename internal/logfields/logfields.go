package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyCategory   = "category"
	KeyCount      = "count"
	KeyFailed     = "failed"
	KeyPool       = "pool"
	KeyChunk      = "chunk"
	KeyWorkers    = "workers"
	KeyTask       = "task"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Category(c string) slog.Attr     { return slog.String(KeyCategory, c) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Failed(n int) slog.Attr          { return slog.Int(KeyFailed, n) }
func Pool(kind string) slog.Attr      { return slog.String(KeyPool, kind) }
func Chunk(i int) slog.Attr           { return slog.Int(KeyChunk, i) }
func Workers(n int) slog.Attr         { return slog.Int(KeyWorkers, n) }
func Task(name string) slog.Attr      { return slog.String(KeyTask, name) }

// Elapsed converts a duration to the canonical milliseconds field.
func Elapsed(d time.Duration) slog.Attr {
	return DurationMS(float64(d.Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
