package config

import "fmt"

// Set at build time, e.g.:
//
//	go build -ldflags "-X garasiku/internal/config.version=1.4.0 \
//	    -X garasiku/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X garasiku/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/reminder
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reads the linker-injected variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}

// String renders the build as "version (commit, built time)" for startup
// logs and the job-runner banner.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, built %s)", b.Version, b.Commit, b.BuildTime)
}
