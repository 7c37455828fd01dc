package versions

import (
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) { //nolint:paralleltest // Modifies global variables
	// Save original values
	origVersion := Version
	origCommit := Commit
	origBuildDate := BuildDate
	t.Cleanup(func() {
		Version = origVersion
		Commit = origCommit
		BuildDate = origBuildDate
	})

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
		wantCheck func(VersionInfo) bool
	}{
		{
			name:      "dev version with unknown commit",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			wantCheck: func(v VersionInfo) bool {
				// The test binary may or may not carry VCS build info, so only
				// the "build-" prefix is stable here.
				return strings.HasPrefix(v.Version, "build-") &&
					v.Commit == unknownStr &&
					v.BuildDate == unknownStr &&
					v.GoVersion == runtime.Version() &&
					v.Platform == fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
			},
		},
		{
			name:      "dev version with commit",
			version:   "dev",
			commit:    "abc123def456789",
			buildDate: unknownStr,
			wantCheck: func(v VersionInfo) bool {
				// When version is "dev" with a commit, version should be "build-abc123de" (8 chars)
				return v.Version == "build-abc123de" &&
					v.Commit == "abc123def456789" &&
					v.BuildDate == unknownStr
			},
		},
		{
			name:      "release version",
			version:   "v1.2.3",
			commit:    "abc123def456789",
			buildDate: "2024-01-15T10:30:00Z",
			wantCheck: func(v VersionInfo) bool {
				return v.Version == "v1.2.3" &&
					v.Commit == "abc123def456789" &&
					v.BuildDate == "2024-01-15 10:30:00 UTC"
			},
		},
		{
			name:      "invalid date format",
			version:   "v2.0.0",
			commit:    "def456",
			buildDate: "not-a-date",
			wantCheck: func(v VersionInfo) bool {
				// Should remain unchanged if not parseable
				return v.Version == "v2.0.0" && v.BuildDate == "not-a-date"
			},
		},
		{
			name:      "dev version with short commit",
			version:   "dev",
			commit:    "short",
			buildDate: unknownStr,
			wantCheck: func(v VersionInfo) bool {
				// Commits shorter than 8 chars are used at full length
				return v.Version == "build-short" && v.Commit == "short"
			},
		},
	}

	for _, tt := range tests { //nolint:paralleltest // Test modifies global variables
		t.Run(tt.name, func(t *testing.T) {
			Version = tt.version
			Commit = tt.commit
			BuildDate = tt.buildDate

			got := GetVersionInfo()

			if !tt.wantCheck(got) {
				t.Errorf("GetVersionInfo() check failed, got = %+v", got)
			}
		})
	}
}

func TestVersionInfoFields(t *testing.T) {
	t.Parallel()
	vi := VersionInfo{
		Version:   "test-version",
		Commit:    "test-commit",
		BuildDate: "test-date",
		GoVersion: "test-go-version",
		Platform:  "test-platform",
	}

	assert.Equal(t, "test-version", vi.Version)
	assert.Equal(t, "test-commit", vi.Commit)
	assert.Equal(t, "test-date", vi.BuildDate)
	assert.Equal(t, "test-go-version", vi.GoVersion)
	assert.Equal(t, "test-platform", vi.Platform)
}
