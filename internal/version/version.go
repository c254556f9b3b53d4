// Package version carries build metadata set through ldflags:
//
//	go build -ldflags "-X github.com/xianyu564/tobacco-notes/internal/version.Version=v0.3.0" ./cmd/notesbuild
package version

import "fmt"

var Version = "unknown"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	if GitCommit == "unknown" {
		return "notesbuild " + Version
	}
	return fmt.Sprintf("notesbuild %s (%s, built %s)", Version, GitCommit, BuildTime)
}
