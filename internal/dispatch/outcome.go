package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// ItemFailure attributes a handler error to the input that produced it.
type ItemFailure struct {
	Path string
	Err  error
}

func (f ItemFailure) Error() string { return fmt.Sprintf("%s: %v", f.Path, f.Err) }

func (f ItemFailure) Unwrap() error { return f.Err }

// Outcome is the result of a dispatch: how many items ran and which failed.
type Outcome struct {
	Total     int
	Processed int
	Chunks    int
	Failures  []ItemFailure
	Duration  time.Duration
}

// OK reports whether every item succeeded.
func (o Outcome) OK() bool { return len(o.Failures) == 0 }

// Err joins all item failures, or returns nil.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	errs := make([]error, len(o.Failures))
	for i, f := range o.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Merge folds other into o.
func (o Outcome) Merge(other Outcome) Outcome {
	return Outcome{
		Total:     o.Total + other.Total,
		Processed: o.Processed + other.Processed,
		Chunks:    o.Chunks + other.Chunks,
		Failures:  append(append([]ItemFailure{}, o.Failures...), other.Failures...),
		Duration:  o.Duration + other.Duration,
	}
}
