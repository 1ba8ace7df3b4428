// Package version holds build metadata injected with -ldflags.
package version

var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Build is the JSON shape reported by the status endpoint.
type Build struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

// Current returns the metadata of the running binary.
func Current() Build {
	return Build{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}

// Info returns a one-line human readable version string.
func Info() string {
	return Version + " (" + GitCommit + ") built at " + BuildTime
}
