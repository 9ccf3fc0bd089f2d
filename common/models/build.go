package models

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// BuildID identifies a build on the build server.
type BuildID int64

func (id BuildID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id BuildID) Valid() bool {
	return id > 0
}

// ParseBuildID parses a build ID from its decimal string form.
func ParseBuildID(str string) (BuildID, error) {
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "error parsing build id %q", str)
	}
	id := BuildID(n)
	if !id.Valid() {
		return 0, fmt.Errorf("error build id must be positive: %d", n)
	}
	return id, nil
}

// Build is a finished build as seen by the pin rules. Builds are read fresh from the build server for
// every build finished event and never cached.
type Build struct {
	ID          BuildID     `json:"id"`
	Number      string      `json:"number,omitempty"`
	BuildTypeID string      `json:"build_type_id,omitempty"`
	Status      BuildStatus `json:"status"`
	// Branch is the logical branch name; empty when the build configuration has no branches.
	Branch      string `json:"branch,omitempty"`
	Tags        []Tag  `json:"tags,omitempty"`
	TriggeredBy *User  `json:"triggered_by,omitempty"`
	Pinned      bool   `json:"pinned"`
	// DependencyIDs lists the transitive dependencies of the build. nil means they have not been
	// resolved yet and must be read from the build history.
	DependencyIDs []BuildID `json:"dependency_ids,omitempty"`
}

// HasTag returns true if the build carries the specified tag.
func (b *Build) HasTag(tag Tag) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (b *Build) Validate() error {
	if !b.ID.Valid() {
		return fmt.Errorf("error build id must be positive: %d", b.ID)
	}
	if b.Status != "" && !b.Status.Valid() {
		return fmt.Errorf("error unknown build status: %s", b.Status)
	}
	return nil
}

// BuildFinishedEvent is the notification sent by the build server when a build finishes.
type BuildFinishedEvent struct {
	BuildID BuildID `json:"build_id"`
	// TriggeredBy optionally overrides the user the build server reports as having triggered the build.
	TriggeredBy *User `json:"triggered_by,omitempty"`
}

func (e *BuildFinishedEvent) Validate() error {
	if !e.BuildID.Valid() {
		return fmt.Errorf("error build_id must be positive: %d", e.BuildID)
	}
	return nil
}
