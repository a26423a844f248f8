// Package version provides the build version of the tool.
package version

import "fmt"

// Build information, set at build time via ldflags.
var (
	// Major and Minor are the release branch version
	Major = 0
	Minor = 1
	// Build is the CI build number
	Build = 0
	// Commit is the git commit hash
	Commit = "dev"
)

// Version describes the release version
type Version struct {
	Major  int
	Minor  int
	Build  int
	Commit string
}

// Current returns the build version
func Current() Version {
	return Version{
		Major:  Major,
		Minor:  Minor,
		Build:  Build,
		Commit: Commit,
	}
}

// String returns the version in semver format
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d-%s", v.Major, v.Minor, v.Build, v.Commit)
}
