// Package version reports the build version of rig and compares it with release tags.
package version

import (
	"strings"

	"github.com/carlmjohnson/versioninfo"
	goversion "github.com/hashicorp/go-version"
)

var (
	// Version of rig, set during the build
	Version = versioninfo.Version
	// GitCommit is set during the build
	GitCommit = versioninfo.Revision
)

// IsPre is true when the current version is a prerelease
func IsPre() bool {
	return strings.Contains(Version, "-")
}

// Current parses Version. Development builds ("devel", "unknown") yield nil.
func Current() *goversion.Version {
	v, err := goversion.NewVersion(strings.TrimPrefix(Version, "v"))
	if err != nil {
		return nil
	}
	return v
}

// UpToDate reports whether the running build is at least latest. A build whose version
// is unknown is never up to date.
func UpToDate(latest *goversion.Version) bool {
	cur := Current()
	if cur == nil || latest == nil {
		return false
	}
	return cur.GreaterThanOrEqual(latest)
}
