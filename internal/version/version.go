// Package version exposes build metadata injected at link time.
package version

// Set via -ldflags "-X bookpipe/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns the human-readable version string.
func String() string {
	return Version + " (" + Commit + ")"
}
