// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package versions provides version information for the datahive gateway.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknownStr = "unknown"

// Version information set by build using -ldflags.
var (
	// Version is the current version of the gateway.
	Version = "dev"
	// Commit is the git commit hash of the build.
	Commit = unknownStr
	// BuildDate is the date the binary was built, in RFC 3339 format.
	BuildDate = unknownStr
)

// VersionInfo represents the version information of the running binary.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the version information of the running binary.
func GetVersionInfo() VersionInfo {
	version := Version
	if version == "dev" {
		// Unreleased builds derive a pseudo version from the commit.
		version = "build-" + shortCommit(resolveCommit())
	}

	return VersionInfo{
		Version:   version,
		Commit:    Commit,
		BuildDate: formatBuildDate(BuildDate),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// resolveCommit returns the ldflags-injected commit, falling back to the
// VCS revision embedded by the Go toolchain for plain `go build` binaries.
func resolveCommit() string {
	if Commit != unknownStr {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return setting.Value
			}
		}
	}
	return unknownStr
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

// formatBuildDate converts an RFC 3339 build date to a human-readable form.
// Values that do not parse are returned unchanged.
func formatBuildDate(date string) string {
	t, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return date
	}
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}
