package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/models"
)

// RulesFilePath is the path of a YAML file of statically configured pin rules. Empty means no file.
type RulesFilePath string

type rulesFile struct {
	Rules []*models.PinRule `yaml:"rules"`
}

// StaticRuleProvider serves pin rules read once from a YAML rules file.
type StaticRuleProvider struct {
	rules []*models.PinRule
	logger.Log
}

// NewStaticRuleProvider reads and validates the rules file at path. An empty path gives a provider with no rules.
func NewStaticRuleProvider(path RulesFilePath, logFactory logger.LogFactory) (*StaticRuleProvider, error) {
	p := &StaticRuleProvider{Log: logFactory("StaticRuleProvider")}
	if path == "" {
		p.Debugf("No rules file configured")
		return p, nil
	}
	data, err := os.ReadFile(string(path))
	if err != nil {
		return nil, fmt.Errorf("error reading rules file %q: %w", path, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("error loading rules file %q: %w", path, err)
	}
	p.rules = rules
	p.Infof("Loaded %d pin rule(s) from %s", len(rules), path)
	return p, nil
}

// NewStaticRuleProviderFromRules serves the supplied rules, which must already be valid.
func NewStaticRuleProviderFromRules(rules []*models.PinRule, logFactory logger.LogFactory) *StaticRuleProvider {
	return &StaticRuleProvider{rules: rules, Log: logFactory("StaticRuleProvider")}
}

// ParseRules parses a YAML rules document, validating each rule and giving every rule an ID.
// Unknown fields are rejected so that misspelt filters don't silently widen a rule.
func ParseRules(data []byte) ([]*models.PinRule, error) {
	file := &rulesFile{}
	err := yaml.UnmarshalStrict(data, file)
	if err != nil {
		return nil, gerror.NewErrValidationFailed("Invalid rules file").Wrap(err)
	}
	seen := make(map[string]int, len(file.Rules))
	for i, rule := range file.Rules {
		if rule == nil {
			return nil, gerror.NewErrValidationFailed(fmt.Sprintf("Rule %d is empty", i+1))
		}
		err = rule.Validate()
		if err != nil {
			return nil, gerror.NewErrValidationFailed(fmt.Sprintf("Rule %d is invalid", i+1)).Wrap(err)
		}
		err = rule.EnsureID()
		if err != nil {
			return nil, err
		}
		if j, ok := seen[rule.ID]; ok {
			return nil, gerror.NewErrValidationFailed(fmt.Sprintf("Rules %d and %d have the same id %q", j+1, i+1, rule.ID))
		}
		seen[rule.ID] = i
	}
	return file.Rules, nil
}

// RulesForBuild returns the static rules that apply to the build's configuration.
func (p *StaticRuleProvider) RulesForBuild(ctx context.Context, build *models.Build) ([]*models.PinRule, error) {
	var rules []*models.PinRule
	for _, rule := range p.rules {
		if rule.AppliesToBuildType(build.BuildTypeID) {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}
