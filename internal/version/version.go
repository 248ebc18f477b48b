// Package version holds the build-time version of bingrep.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/timmattison/bingrep/internal/version.GitHash=$(git rev-parse --short=7 HEAD) \
//	                   -X github.com/timmattison/bingrep/internal/version.GitDirty=$(if git diff --quiet 2>/dev/null; then echo clean; else echo dirty; fi) \
//	                   -X github.com/timmattison/bingrep/internal/version.Version=0.1.0" ./cmd/bingrep
package version

import "fmt"

// Plain `go build` keeps these defaults.
var (
	// Version is the semantic version (e.g., "0.1.0").
	Version = "0.1.0"
	// GitHash is the short git commit hash (e.g., "abc1234").
	GitHash = "unknown"
	// GitDirty is "dirty", "clean", or "unknown".
	GitDirty = "unknown"
)

// String returns "toolname 0.1.0 (abc1234, clean)".
func String(toolName string) string {
	return fmt.Sprintf("%s %s", toolName, Short())
}

// Short returns "0.1.0 (abc1234, clean)".
func Short() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitHash, GitDirty)
}

// IsRelease reports whether the binary was built with version ldflags.
func IsRelease() bool {
	return GitHash != "unknown"
}
