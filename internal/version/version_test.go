package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}

	if info.GitCommit == "" {
		t.Error("GitCommit should not be empty")
	}

	if info.GoVersion == "" {
		t.Error("GoVersion should not be empty")
	}
}

func TestString(t *testing.T) {
	info := Info{Version: "v1.2.3", GitCommit: "abc123", BuildDate: "2024-01-01", GoVersion: "go1.24.3"}
	str := info.String()

	if str != "mesos-stats v1.2.3 (commit abc123, built 2024-01-01, go1.24.3)" {
		t.Errorf("unexpected version string %q", str)
	}
}

func TestUserAgent(t *testing.T) {
	ua := Info{Version: "v1.2.3"}.UserAgent()

	if !strings.HasPrefix(ua, "mesos-stats/") || !strings.HasSuffix(ua, "v1.2.3") {
		t.Errorf("unexpected user agent %q", ua)
	}
}
