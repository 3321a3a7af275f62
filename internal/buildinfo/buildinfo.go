// Package buildinfo holds version metadata injected with -ldflags at release time.
package buildinfo

import "fmt"

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String formats the build metadata for banners and the status endpoint.
func String() string {
	return fmt.Sprintf("Claudio %s (commit %s, built %s)", Version, Commit, BuildDate)
}
