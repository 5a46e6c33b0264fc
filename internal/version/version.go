// Package version holds build information set with -ldflags.
package version

var (
	GitTag    = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
