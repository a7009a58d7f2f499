package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = oldVersion, oldCommit, oldDate })

	Version, GitCommit, BuildDate = "v1.2.0", "abc1234", "2026-01-01T00:00:00Z"
	want := "v1.2.0 (abc1234, 2026-01-01T00:00:00Z, " + runtime.Version() + ")"
	if got := Info(); got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
}

func TestInfo_Defaults(t *testing.T) {
	info := Info()
	if !strings.HasPrefix(info, "dev (") || !strings.HasSuffix(info, runtime.Version()+")") {
		t.Errorf("Info() = %q", info)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "ntoconfig/dev" {
		t.Errorf("UserAgent() = %q, want %q", got, "ntoconfig/dev")
	}
}
