package version

import (
	"strings"
	"testing"
)

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"dev", Info{Version: "dev"}, "dev"},
		{"commit truncated", Info{Version: "0.2.0", GitCommit: "abcdef0123456"}, "0.2.0-abcdef0"},
		{"short commit", Info{Version: "0.2.0", GitCommit: "abc"}, "0.2.0-abc"},
		{"dirty", Info{Version: "0.2.0", GitCommit: "abcdef0123", IsDirty: true}, "0.2.0-abcdef0-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.want {
				t.Errorf("Short() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetUsesLinkTimeValues(t *testing.T) {
	origVersion, origCommit, origTime := Version, GitCommit, BuildTime
	defer func() { Version, GitCommit, BuildTime = origVersion, origCommit, origTime }()

	Version, GitCommit, BuildTime = "1.0.0", "1234567890", "2026-01-15T10:30:00Z"
	info := Get()
	if info.Version != "1.0.0" || info.GitCommit != "1234567890" || info.BuildTime != "2026-01-15T10:30:00Z" {
		t.Errorf("Get() = %+v", info)
	}
	s := info.String()
	if !strings.HasPrefix(s, "ctckit 1.0.0-1234567") || !strings.Contains(s, "2026-01-15T10:30:00Z") {
		t.Errorf("String() = %q", s)
	}
}
