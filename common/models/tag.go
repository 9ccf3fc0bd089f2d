package models

const (
	// TagPin requests that the build is pinned.
	TagPin Tag = "autopin"
	// TagPinIncludeDependencies requests that the build and all of its dependencies are pinned.
	TagPinIncludeDependencies Tag = "autopin_include_dependencies"
)

// AutopinTags are removed from a build once they have been acted upon.
var AutopinTags = []Tag{TagPin, TagPinIncludeDependencies}

// Tag is a free-form label attached to a build, e.g. by a service message.
type Tag string

func (t Tag) String() string {
	return string(t)
}
