package models

import "strings"

const (
	BuildStatusSuccess BuildStatus = "SUCCESS"
	BuildStatusFailure BuildStatus = "FAILURE"
	BuildStatusError   BuildStatus = "ERROR"
	BuildStatusUnknown BuildStatus = "UNKNOWN"
)

var buildStatuses = map[BuildStatus]struct{}{
	BuildStatusSuccess: {},
	BuildStatusFailure: {},
	BuildStatusError:   {},
	BuildStatusUnknown: {},
}

// BuildStatus is the outcome of a finished build, as reported by the build server.
type BuildStatus string

// NormalizeBuildStatus upper-cases a status string; unrecognised values become BuildStatusUnknown.
func NormalizeBuildStatus(str string) BuildStatus {
	s := BuildStatus(strings.ToUpper(strings.TrimSpace(str)))
	if !s.Valid() {
		return BuildStatusUnknown
	}
	return s
}

func (s BuildStatus) Valid() bool {
	_, ok := buildStatuses[s]
	return ok
}

// IsSuccessful returns true only for a normal, successful build. Every other status,
// including UNKNOWN, counts as not successful.
func (s BuildStatus) IsSuccessful() bool {
	return s == BuildStatusSuccess
}

func (s BuildStatus) String() string {
	return string(s)
}
