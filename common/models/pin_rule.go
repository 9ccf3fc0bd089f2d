package models

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/hashstructure/v2"
)

const (
	// PinStatusAny (the unset filter) matches every build status.
	PinStatusAny PinStatusFilter = ""
	// PinStatusSuccessful matches successful builds only.
	PinStatusSuccessful PinStatusFilter = "successful"
	// PinStatusFailed matches every build that is not successful.
	PinStatusFailed PinStatusFilter = "failed"
)

type PinStatusFilter string

func (f PinStatusFilter) Valid() bool {
	return f == PinStatusAny || f == PinStatusSuccessful || f == PinStatusFailed
}

func (f PinStatusFilter) String() string {
	return string(f)
}

// PinRule is one configured set of pin conditions, equivalent to one instance of the autopin build feature.
// Rules are immutable for the duration of an evaluation.
type PinRule struct {
	// ID identifies the rule in logs and pin records. Rules without an ID get one derived from their content.
	ID     string          `json:"id,omitempty" yaml:"id" hash:"ignore"`
	Status PinStatusFilter `json:"status,omitempty" yaml:"status"`
	// BranchPattern, if set, is a regular expression the whole branch name must match.
	BranchPattern   string `json:"branch_pattern,omitempty" yaml:"branch_pattern"`
	PinDependencies bool   `json:"pin_dependencies" yaml:"pin_dependencies"`
	Comment         string `json:"comment" yaml:"comment"`
	// BuildTypes restricts a statically configured rule to the listed build configurations.
	// Empty means all build configurations.
	BuildTypes []string `json:"build_types,omitempty" yaml:"build_types"`
}

// AppliesToBuildType returns true if the rule is configured for the specified build configuration.
func (r *PinRule) AppliesToBuildType(buildTypeID string) bool {
	if len(r.BuildTypes) == 0 {
		return true
	}
	for _, bt := range r.BuildTypes {
		if bt == buildTypeID {
			return true
		}
	}
	return false
}

// Validate checks the parts of the rule that don't need compiling.
// The branch pattern is checked when the rule is evaluated.
func (r *PinRule) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("error unknown status filter %q (expected %q, %q or unset)", r.Status, PinStatusSuccessful, PinStatusFailed)
	}
	return nil
}

// EnsureID fills in the rule's ID from a hash of its content if it does not already have one.
func (r *PinRule) EnsureID() error {
	if r.ID != "" {
		return nil
	}
	hash, err := hashstructure.Hash(r, hashstructure.FormatV2, nil)
	if err != nil {
		return fmt.Errorf("error hashing pin rule: %w", err)
	}
	r.ID = "rule-" + strconv.FormatUint(hash, 16)
	return nil
}

func (r *PinRule) String() string {
	return fmt.Sprintf("rule %s (status=%q, branch_pattern=%q, pin_dependencies=%t)",
		r.ID, r.Status, r.BranchPattern, r.PinDependencies)
}
