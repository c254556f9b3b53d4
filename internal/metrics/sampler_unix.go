//go:build unix

package metrics

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// ProcSampler samples the current process: CPU from getrusage, memory and
// disk I/O from /proc when available.
type ProcSampler struct {
	mu       sync.Mutex
	lastCPU  time.Duration
	lastWall time.Time
	proc     *procfs.Proc
}

// NewProcSampler creates a sampler whose first CPU reading covers the time since creation.
func NewProcSampler() *ProcSampler {
	s := &ProcSampler{lastWall: time.Now()}
	s.lastCPU, _ = cpuTime()
	if p, err := procfs.Self(); err == nil {
		s.proc = &p
	}
	return s
}

func cpuTime() (time.Duration, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, fmt.Errorf("getrusage: %w", err)
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), nil
}

// Sample implements Sampler. Missing /proc data is reported as an error
// alongside whatever fields could be filled.
func (s *ProcSampler) Sample() (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	out := Sample{Time: now}
	var errs []error

	cpu, err := cpuTime()
	if err != nil {
		errs = append(errs, err)
	} else {
		if wall := now.Sub(s.lastWall); wall > 0 {
			out.CPUPercent = float64(cpu-s.lastCPU) / float64(wall) * 100
		}
		s.lastCPU, s.lastWall = cpu, now
	}

	if s.proc == nil {
		return out, errors.Join(append(errs, errors.New("procfs unavailable"))...)
	}
	if st, err := s.proc.Stat(); err == nil {
		out.RSSBytes = uint64(max(st.ResidentMemory(), 0))
		out.VMSBytes = uint64(st.VirtualMemory())
	} else {
		errs = append(errs, fmt.Errorf("proc stat: %w", err))
	}
	if io, err := s.proc.IO(); err == nil {
		out.ReadBytes = io.ReadBytes
		out.WriteBytes = io.WriteBytes
	} else {
		errs = append(errs, fmt.Errorf("proc io: %w", err))
	}
	return out, errors.Join(errs...)
}
