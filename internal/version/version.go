// Package version reports which build of resumechat is running.
//
// Release builds set the variables with -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/resumechat/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/resumechat/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/resumechat/internal/version.BuildDate=2026-01-01"
//
// Plain `go build` leaves them at their defaults; Commit and BuildDate are
// then recovered from the VCS stamp the toolchain embeds, when present.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short git SHA.
	Commit = "unknown"
	// BuildDate is the UTC build or commit time, RFC3339.
	BuildDate = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Resolved returns commit and date, preferring the -ldflags values and
// falling back to the embedded VCS settings.
func Resolved() (commit, date string) {
	commit, date = Commit, BuildDate
	if commit != "unknown" && date != "unknown" {
		return commit, date
	}
	info, ok := readBuildInfo()
	if !ok {
		return commit, date
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && s.Value != "" {
				commit = s.Value
				if len(commit) > 7 {
					commit = commit[:7]
				}
			}
		case "vcs.time":
			if date == "unknown" && s.Value != "" {
				date = s.Value
			}
		}
	}
	return commit, date
}

// String renders the line printed by `resumechat version`.
func String() string {
	commit, date := Resolved()
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, commit, date)
}
