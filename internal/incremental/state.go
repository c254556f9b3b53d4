package incremental

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// ErrCorruptState is returned when the state file exists but does not hold a number.
var ErrCorruptState = errors.New("last-build state is corrupt")

// BuildState is the completion time of the last successful build, as
// floating-point seconds since the Unix epoch.
type BuildState struct {
	LastBuild float64
}

// NewBuildState captures t.
func NewBuildState(t time.Time) *BuildState {
	return &BuildState{LastBuild: epochSeconds(t)}
}

// Time converts the stored epoch back to a time.Time.
func (s *BuildState) Time() time.Time {
	sec, frac := math.Modf(s.LastBuild)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9)))
}

// LoadState reads the state file. An absent file returns (nil, nil).
func LoadState(path string) (*BuildState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read build state: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil, fmt.Errorf("%w: %q", ErrCorruptState, strings.TrimSpace(string(data)))
	}
	return &BuildState{LastBuild: v}, nil
}

// SaveState atomically writes t as the new last-build timestamp.
func SaveState(path string, t time.Time) (*BuildState, error) {
	s := NewBuildState(t)
	text := strconv.FormatFloat(s.LastBuild, 'f', -1, 64)
	if err := storage.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write build state: %w", err)
	}
	return s, nil
}
