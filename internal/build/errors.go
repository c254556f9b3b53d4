package build

import (
	"errors"
	"fmt"

	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
	"github.com/xianyu564/tobacco-notes/internal/pipeline"
)

// ErrBuildLocked is returned when another build holds the lock file.
var ErrBuildLocked = errors.New("another build is running")

// Error is the single aggregated failure of a build. Stage is empty when the
// failure happened outside the stage pipeline (lock, state commit).
type Error struct {
	BuildID string
	Stage   pipeline.StageName
	Err     error
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("build %s failed: %v", e.BuildID, e.Err)
	}
	return fmt.Sprintf("build %s failed in stage %s: %v", e.BuildID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify wraps a build failure for the CLI error adapter.
func classify(buildID string, err error) error {
	be := &Error{BuildID: buildID, Err: err}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		be.Stage = se.Stage
	}
	category := foundationerrors.CategoryBuild
	if se != nil && se.Kind == pipeline.StageErrorCanceled {
		category = foundationerrors.CategoryRuntime
	}
	b := foundationerrors.WrapError(be, category, "build failed").
		WithContext("build_id", buildID).
		NextBuild()
	if be.Stage != "" {
		b = b.WithContext("stage", string(be.Stage))
	}
	return b.Build()
}
