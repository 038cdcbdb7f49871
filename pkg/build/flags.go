// SPDX-License-Identifier: MIT
//
// Package build exposes the name, build time, commit and version stamped into
// the binary with -ldflags:
//
//	go build -ldflags "-X eeg/pkg/build.buildName=eegscope \
//	    -X eeg/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	    -X eeg/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X eeg/pkg/build.buildVersion=v0.3.0"
package build

import "fmt"

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

const description = "Live multi-channel EEG filter and signal-strength monitor"

// Populated by -ldflags. Development builds keep the defaults in buildInfo.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        "eegscope",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the ldflags values into the build information. It fails
// when any of them is missing, leaving the development defaults in place.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildInfo.Name = buildName
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildInfo
}
