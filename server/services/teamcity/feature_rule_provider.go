package teamcity

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/models"
)

// FeatureRuleProvider reads pin rules from the autopin build features of a build's configuration.
type FeatureRuleProvider struct {
	client *Client
	logger.Log
}

func NewFeatureRuleProvider(client *Client, logFactory logger.LogFactory) *FeatureRuleProvider {
	return &FeatureRuleProvider{
		client: client,
		Log:    logFactory("FeatureRuleProvider"),
	}
}

// RulesForBuild returns one rule per enabled autopin build feature on the build's configuration, as the
// configuration is now rather than as it was when the build ran. A feature's ID is used as the rule ID.
func (p *FeatureRuleProvider) RulesForBuild(ctx context.Context, build *models.Build) ([]*models.PinRule, error) {
	if build.BuildTypeID == "" {
		p.Warnf("Build %d has no build configuration; no build feature rules apply", build.ID)
		return nil, nil
	}
	doc := &featuresDocument{}
	path := fmt.Sprintf("app/rest/buildTypes/id:%s/features", url.PathEscape(build.BuildTypeID))
	err := p.client.getJSON(ctx, path, url.Values{"fields": {"count,feature(id,type,disabled,properties(property(name,value)))"}}, doc)
	if err != nil {
		return nil, fmt.Errorf("error reading build features of %s: %w", build.BuildTypeID, err)
	}
	var rules []*models.PinRule
	for i := range doc.Feature {
		feature := &doc.Feature[i]
		if feature.Type != featureTypeAutopin {
			continue
		}
		if feature.Disabled {
			p.Debugf("Ignoring disabled autopin feature %s on %s", feature.ID, build.BuildTypeID)
			continue
		}
		rules = append(rules, feature.toPinRule(build.BuildTypeID))
	}
	return rules, nil
}

func (f *featureDocument) toPinRule(buildTypeID string) *models.PinRule {
	params := f.params()
	return &models.PinRule{
		ID:              fmt.Sprintf("%s/%s", buildTypeID, f.ID),
		Status:          models.PinStatusFilter(params[featureParamStatus]),
		BranchPattern:   params[featureParamBranchPattern],
		PinDependencies: strings.EqualFold(params[featureParamPinDependencies], "true"),
		Comment:         params[featureParamComment],
	}
}
