//go:build !unix

package metrics

import (
	"errors"
	"time"
)

// ProcSampler reports timestamps only on platforms without getrusage or /proc.
type ProcSampler struct{}

// NewProcSampler creates a sampler.
func NewProcSampler() *ProcSampler { return &ProcSampler{} }

// Sample implements Sampler.
func (*ProcSampler) Sample() (Sample, error) {
	return Sample{Time: time.Now()}, errors.New("resource sampling unsupported on this platform")
}
