package autopin

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/models"
)

const tagPinCommentFormat = "Pinned automatically based on service message (%s) in build #%d"

// EvaluateTagPin decides whether a build must be pinned because of the autopin tags it carries.
// Returns nil if the build has neither tag.
func EvaluateTagPin(build *models.Build) *models.PinDecision {
	pin := build.HasTag(models.TagPin)
	cascade := build.HasTag(models.TagPinIncludeDependencies)
	if !pin && !cascade {
		return nil
	}
	return &models.PinDecision{
		Pin:        true,
		Cascade:    cascade,
		Comment:    fmt.Sprintf(tagPinCommentFormat, models.TagPin, build.ID),
		Source:     models.DecisionSourceTag,
		RemoveTags: append([]models.Tag(nil), models.AutopinTags...),
	}
}

// EvaluateRulePin decides whether a build must be pinned because of a pin rule. Every filter configured on
// the rule must hold; unset filters always hold. Returns nil if the rule does not match.
// An error is returned (and no decision) if the rule can't be evaluated, so a broken rule never pins.
func EvaluateRulePin(build *models.Build, rule *models.PinRule) (*models.PinDecision, error) {
	switch rule.Status {
	case models.PinStatusSuccessful:
		if !build.Status.IsSuccessful() {
			return nil, nil
		}
	case models.PinStatusFailed:
		if build.Status.IsSuccessful() {
			return nil, nil
		}
	}
	if rule.BranchPattern != "" {
		matcher, err := compileBranchPattern(rule.BranchPattern)
		if err != nil {
			return nil, gerror.NewErrInvalidPinRule(fmt.Sprintf("Invalid branch pattern in pin rule %s", rule.ID), err).
				EDetail("branch_pattern", rule.BranchPattern)
		}
		if !matcher.MatchString(build.Branch) {
			return nil, nil
		}
	}
	return &models.PinDecision{
		Pin:     true,
		Cascade: rule.PinDependencies,
		Comment: rule.Comment,
		Source:  models.DecisionSourceRule,
		RuleID:  rule.ID,
	}, nil
}

// Evaluate returns every pin decision for a finished build: the tag decision first (if any), then one
// decision per matching rule in rule order. Rules that fail to evaluate are skipped and their errors are
// returned together, alongside the decisions of all the other rules.
func Evaluate(build *models.Build, rules []*models.PinRule) ([]*models.PinDecision, error) {
	var (
		decisions []*models.PinDecision
		result    *multierror.Error
	)
	if decision := EvaluateTagPin(build); decision != nil {
		decisions = append(decisions, decision)
	}
	for _, rule := range rules {
		decision, err := EvaluateRulePin(build, rule)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if decision != nil {
			decisions = append(decisions, decision)
		}
	}
	return decisions, result.ErrorOrNil()
}

// compileBranchPattern compiles a branch pattern so that it must match the entire branch name.
// The pattern must be valid on its own before it is anchored, otherwise "a)|(b" would be accepted.
func compileBranchPattern(pattern string) (*regexp.Regexp, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, err
	}
	return regexp.Compile("^(?:" + pattern + ")$")
}
