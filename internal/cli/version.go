package cli

import (
	"fmt"
	"runtime"
)

// Build metadata, injected through -ldflags at release time. A plain
// `go build` binary reports the defaults.
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// SetBuildInfo configures build metadata for the CLI.
func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

func versionString() string {
	return fmt.Sprintf("lingua %s\n  commit:  %s\n  built:   %s\n  runtime: %s %s/%s",
		buildVersion, buildCommit, buildDate,
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func cmdVersion() error {
	fmt.Println(versionString())
	return nil
}
