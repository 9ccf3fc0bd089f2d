package autopin

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/models"
	"github.com/buildbeaver/autopin/server/services"
	"github.com/buildbeaver/autopin/server/store"
)

type AutopinService struct {
	buildHistory   services.BuildHistory
	ruleProvider   services.RuleProvider
	pinRecordStore store.PinRecordStore
	clock          clock.Clock
	logger.Log
}

func NewAutopinService(
	buildHistory services.BuildHistory,
	ruleProvider services.RuleProvider,
	pinRecordStore store.PinRecordStore,
	clock clock.Clock,
	logFactory logger.LogFactory,
) *AutopinService {
	return &AutopinService{
		buildHistory:   buildHistory,
		ruleProvider:   ruleProvider,
		pinRecordStore: pinRecordStore,
		clock:          clock,
		Log:            logFactory("AutopinService"),
	}
}

// HandleBuildFinished evaluates and applies every pin decision for a finished build: the autopin tags
// first, then each configured pin rule independently.
// An error is returned only if the event could not be processed at all (e.g. the build does not exist);
// failures of individual rules, pins or tag removals are logged and reported in the result's Err.
func (s *AutopinService) HandleBuildFinished(ctx context.Context, event *models.BuildFinishedEvent) (*models.BuildFinishedResult, error) {
	err := event.Validate()
	if err != nil {
		return nil, gerror.NewErrValidationFailed(err.Error())
	}
	log := s.WithField("build_id", event.BuildID)
	log.Infof("Build finished")

	build, err := s.buildHistory.FindEntry(ctx, event.BuildID)
	if err != nil {
		log.Errorf("Unable to find finished build in build history: %v", err)
		return nil, fmt.Errorf("error finding finished build %d: %w", event.BuildID, err)
	}
	user := build.TriggeredBy
	if event.TriggeredBy != nil {
		user = event.TriggeredBy
	}

	var (
		errs   *multierror.Error
		result = &models.BuildFinishedResult{Build: build}
	)
	apply := func(decision *models.PinDecision) {
		result.Decisions = append(result.Decisions, decision)
		pinned, err := s.ApplyDecision(ctx, build, decision, user)
		result.PinnedBuildIDs = append(result.PinnedBuildIDs, pinned...)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if decision := EvaluateTagPin(build); decision != nil {
		log.Infof("Build is tagged for pinning (include dependencies: %t)", decision.Cascade)
		apply(decision)
	}

	rules, err := s.ruleProvider.RulesForBuild(ctx, build)
	if err != nil {
		log.Errorf("Error reading pin rules; continuing with the %d rule(s) that could be read: %v", len(rules), err)
		errs = multierror.Append(errs, err)
	}
	for _, rule := range rules {
		if !rule.Status.Valid() {
			log.Warnf("Pin rule %s has unknown status filter %q; treating it as unset", rule.ID, rule.Status)
		}
		decision, err := EvaluateRulePin(build, rule)
		if err != nil {
			log.Warnf("Skipping pin rule that can't be evaluated: %v", err)
			errs = multierror.Append(errs, err)
			continue
		}
		if decision == nil {
			log.Debugf("Pin rule %s does not match", rule.ID)
			continue
		}
		log.Infof("Pin rule %s matches (include dependencies: %t)", rule.ID, decision.Cascade)
		apply(decision)
	}

	result.Err = errs.ErrorOrNil()
	return result, nil
}

// ApplyDecision pins the build with the decision's comment, attributed to user. If the decision cascades,
// every transitive dependency of the build is pinned too, whatever its own status or branch; a failure to
// pin one dependency does not stop the others. Tags consumed by the decision are then removed from the
// build (never from its dependencies), unless the build itself could not be pinned. All failures are returned together.
// Returns the IDs of the builds that were successfully pinned.
func (s *AutopinService) ApplyDecision(
	ctx context.Context,
	build *models.Build,
	decision *models.PinDecision,
	user *models.User,
) ([]models.BuildID, error) {
	if decision == nil || !decision.Pin {
		return nil, nil
	}
	var (
		errs   *multierror.Error
		pinned []models.BuildID
		log    = s.WithFields(logger.Fields{"build_id": build.ID, "source": decision.Source, "rule_id": decision.RuleID})
	)
	pin := func(buildID models.BuildID) {
		err := s.buildHistory.SetPinned(ctx, buildID, true, user, decision.Comment)
		if err != nil {
			err = gerror.NewErrPinFailed(fmt.Sprintf("Error pinning build %d", buildID), err)
			log.Errorf("%v", err)
			errs = multierror.Append(errs, err)
		} else {
			log.Infof("Pinned build %d", buildID)
			pinned = append(pinned, buildID)
		}
		s.recordPin(ctx, buildID, build.ID, decision, user, err)
	}

	pin(build.ID)
	rootPinned := len(pinned) == 1

	if decision.Cascade {
		dependencies, err := s.resolveDependencies(ctx, build)
		if err != nil {
			log.Errorf("Unable to pin dependencies: %v", err)
			errs = multierror.Append(errs, err)
		}
		for _, dependencyID := range dependencies {
			pin(dependencyID)
		}
	}

	if !rootPinned {
		if len(decision.RemoveTags) > 0 {
			log.Warnf("Leaving tags %v on build %d as it was not pinned", decision.RemoveTags, build.ID)
		}
		return pinned, errs.ErrorOrNil()
	}
	for _, tag := range decision.RemoveTags {
		err := s.buildHistory.RemoveTag(ctx, build.ID, tag)
		if err != nil {
			err = fmt.Errorf("error removing tag %q from build %d: %w", tag, build.ID, err)
			log.Errorf("%v", err)
			errs = multierror.Append(errs, err)
		}
	}

	return pinned, errs.ErrorOrNil()
}

// Evaluate returns the pin decisions for a build and set of rules without applying them.
func (s *AutopinService) Evaluate(ctx context.Context, build *models.Build, rules []*models.PinRule) ([]*models.PinDecision, error) {
	err := build.Validate()
	if err != nil {
		return nil, gerror.NewErrValidationFailed(err.Error())
	}
	for _, rule := range rules {
		err = rule.Validate()
		if err != nil {
			return nil, gerror.NewErrValidationFailed(err.Error())
		}
		err = rule.EnsureID()
		if err != nil {
			return nil, err
		}
	}
	decisions, err := Evaluate(build, rules)
	if err != nil {
		s.Warnf("Dry-run evaluation of build %d skipped invalid rules: %v", build.ID, err)
	}
	return decisions, err
}

// ListPinRecords returns the pins recorded against a build, oldest first.
func (s *AutopinService) ListPinRecords(ctx context.Context, buildID models.BuildID) ([]*models.PinRecord, error) {
	return s.pinRecordStore.ListByBuild(ctx, nil, buildID)
}

// resolveDependencies returns the transitive dependencies of the build, asking the build history only the
// first time so that several cascading decisions for the same build share one lookup.
func (s *AutopinService) resolveDependencies(ctx context.Context, build *models.Build) ([]models.BuildID, error) {
	if build.DependencyIDs != nil {
		return build.DependencyIDs, nil
	}
	dependencies, err := s.buildHistory.GetAllDependencies(ctx, build.ID)
	if err != nil {
		return nil, fmt.Errorf("error finding dependencies of build %d: %w", build.ID, err)
	}
	// Each build is pinned at most once per decision, and never as a dependency of itself
	seen := map[models.BuildID]bool{build.ID: true}
	unique := make([]models.BuildID, 0, len(dependencies))
	for _, id := range dependencies {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	build.DependencyIDs = unique
	return unique, nil
}

// recordPin writes an audit record for a pin attempt. The record is best effort: failing to write it
// never fails the pin.
func (s *AutopinService) recordPin(
	ctx context.Context,
	buildID models.BuildID,
	rootBuildID models.BuildID,
	decision *models.PinDecision,
	user *models.User,
	pinErr error,
) {
	record := models.NewPinRecord(models.NewTime(s.clock.Now()), buildID, rootBuildID, decision, user, pinErr)
	err := s.pinRecordStore.Create(ctx, nil, record)
	if err != nil {
		s.Warnf("Error recording pin of build %d: %v", buildID, err)
	}
}
