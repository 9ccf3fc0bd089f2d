package version

import "fmt"

// Set at link time, e.g. -ldflags "-X github.com/buildbeaver/autopin/common/version.Version=1.2.0".
var (
	Version string
	Commit  string
)

// VersionToString describes the build as "version - commit", or returns "" when neither was set at link time.
func VersionToString() string {
	if Version == "" && Commit == "" {
		return ""
	}
	return fmt.Sprintf("%s - %s", Version, Commit)
}

// VersionOrDev is VersionToString with "dev" for unversioned builds.
func VersionOrDev() string {
	s := VersionToString()
	if s == "" {
		return "dev"
	}
	return s
}
