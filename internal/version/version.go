// Package version holds build metadata injected with -ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/tutorguard/internal/version.Version=v0.3.0"
package version

import "fmt"

// Version is the release tag of the binary.
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return fmt.Sprintf("tutorguard %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
