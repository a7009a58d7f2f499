// Package version reports which ntoconfig build is running.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// Release builds set these with -ldflags, for example
//
//	-X github.com/bortok/ixvscripts/pkg/version.Version=v1.2.0
//
// GitCommit and BuildDate fall back to the VCS stamp the go tool embeds.
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

// Info returns "v1.2.0 (abc1234, 2026-01-01T00:00:00Z, go1.24.0)", leaving
// out whatever is unknown.
func Info() string {
	commit, date := GitCommit, BuildDate
	if commit == "" || date == "" {
		rev, at := vcsStamp()
		if commit == "" {
			commit = rev
		}
		if date == "" {
			date = at
		}
	}
	var parts []string
	for _, p := range []string{commit, date, runtime.Version()} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return Version + " (" + strings.Join(parts, ", ") + ")"
}

func vcsStamp() (revision, at string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.time":
			at = s.Value
		}
	}
	return revision, at
}

// UserAgent identifies ntoconfig to the Web API.
func UserAgent() string {
	return "ntoconfig/" + Version
}
