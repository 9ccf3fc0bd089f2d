package rules

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/buildbeaver/autopin/common/models"
	"github.com/buildbeaver/autopin/server/services"
)

// CompositeRuleProvider merges the rules of several providers, in provider order.
// A failing provider doesn't hide the rules of the others.
type CompositeRuleProvider struct {
	providers []services.RuleProvider
}

func NewCompositeRuleProvider(providers ...services.RuleProvider) *CompositeRuleProvider {
	return &CompositeRuleProvider{providers: providers}
}

func (p *CompositeRuleProvider) RulesForBuild(ctx context.Context, build *models.Build) ([]*models.PinRule, error) {
	var (
		rules []*models.PinRule
		errs  *multierror.Error
	)
	for i, provider := range p.providers {
		provided, err := provider.RulesForBuild(ctx, build)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("error reading rules from provider %d: %w", i+1, err))
		}
		rules = append(rules, provided...)
	}
	return rules, errs.ErrorOrNil()
}
