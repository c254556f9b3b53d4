package dispatch

import (
	"os"
	"path/filepath"
	"strings"
)

// Policy decides which pool an input goes to.
type Policy interface {
	Classify(path string) PoolKind
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(path string) PoolKind

func (f PolicyFunc) Classify(path string) PoolKind { return f(path) }

// SizeExtensionPolicy sends "heavy" files (a listed extension, or larger than
// ThresholdBytes) to the process pool and everything else to the thread pool.
// Invert swaps the two destinations.
type SizeExtensionPolicy struct {
	ThresholdBytes int64
	Extensions     []string
	Invert         bool
}

// Classify implements Policy. Files that cannot be stat'ed are judged by extension alone.
func (p SizeExtensionPolicy) Classify(path string) PoolKind {
	heavy := p.hasExtension(path)
	if !heavy && p.ThresholdBytes > 0 {
		if info, err := os.Stat(path); err == nil && info.Size() > p.ThresholdBytes {
			heavy = true
		}
	}
	if heavy != p.Invert {
		return PoolProcess
	}
	return PoolThread
}

func (p SizeExtensionPolicy) hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Partition splits files by policy, preserving input order within each side.
func Partition(files []string, policy Policy) (process, thread []string) {
	for _, f := range files {
		if policy.Classify(f) == PoolProcess {
			process = append(process, f)
		} else {
			thread = append(thread, f)
		}
	}
	return process, thread
}
