package contracts

import (
	"fmt"
	"runtime"
)

const (
	Version      = "1.0.0"
	VersionStage = "stable"

	// APIVersion versions the REST routes and websocket message envelopes.
	APIVersion = "v1"

	// LayoutFormatVersion versions the saved plate layout JSON.
	LayoutFormatVersion = "v1"
)

// Set with -ldflags "-X .../pkg/contracts.BuildTime=..." by build.go.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is served by GET /version and printed by flipr-analyze -version.
type VersionInfo struct {
	Version      string `json:"version"`
	Stage        string `json:"stage"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	LayoutFormat string `json:"layout_format"`
	APIVersion   string `json:"api_version"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		Stage:        VersionStage,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		LayoutFormat: LayoutFormatVersion,
		APIVersion:   APIVersion,
	}
}

// String renders a one-line summary, e.g.
// "1.0.0 (api v1, commit abc123, go1.23.4 linux/amd64)".
func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (api %s, commit %s, %s %s/%s)",
		v.Version, v.APIVersion, v.GitCommit, v.GoVersion, v.OS, v.Architecture)
}
