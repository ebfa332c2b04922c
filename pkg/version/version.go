// Package version reports build information for projectmind.
package version

import (
	"fmt"
	"runtime"
)

// Version is set with -ldflags "-X github.com/Nik0lay1/project-mind-mcp/pkg/version.Version=...".
var Version = "dev"

var (
	// Commit is the short git commit hash, set via ldflags.
	Commit = "unknown"

	// Date is the RFC3339 build date, set via ldflags.
	Date = "unknown"
)

// Name is the program and MCP server name.
const Name = "projectmind"

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line version string with all build info.
func String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s)",
		Name, Version, Commit, Date, runtime.Version())
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
