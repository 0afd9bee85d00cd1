package version

import (
	"fmt"
	"runtime"
)

// Name is the program name reported in build info
const Name = "azure-resource-explorer"

// Build information. Populated at build-time via ldflags:
//
//	-X github.com/zgpcy/azure-resource-explorer/internal/version.Version=v1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information as metric labels
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// String returns a one-line build description for -version and startup logs
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", Name, Version, GitCommit, BuildDate, runtime.Version())
}
