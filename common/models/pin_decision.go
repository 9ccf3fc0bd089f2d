package models

const (
	DecisionSourceTag  DecisionSource = "tag"
	DecisionSourceRule DecisionSource = "rule"
)

// DecisionSource records what caused a build to be pinned.
type DecisionSource string

func (s DecisionSource) String() string {
	return string(s)
}

// PinDecision is the outcome of evaluating one tag check or one pin rule against a build.
type PinDecision struct {
	Pin     bool   `json:"pin"`
	Cascade bool   `json:"cascade"`
	Comment string `json:"comment"`

	Source DecisionSource `json:"source"`
	// RuleID is set for decisions produced by a pin rule.
	RuleID string `json:"rule_id,omitempty"`
	// RemoveTags must be removed from the build (not its dependencies) once the decision is applied.
	RemoveTags []Tag `json:"remove_tags,omitempty"`
}

// BuildFinishedResult describes what was done in response to a build finished event.
type BuildFinishedResult struct {
	Build     *Build         `json:"build"`
	Decisions []*PinDecision `json:"decisions"`
	// PinnedBuildIDs lists every build pinned, including dependencies, in the order they were pinned.
	// A build pinned by several decisions is listed once per decision.
	PinnedBuildIDs []BuildID `json:"pinned_build_ids"`
	// Err aggregates the failures that didn't prevent the other decisions from being applied.
	Err error `json:"-"`
}
