package services

import (
	"context"

	"github.com/buildbeaver/autopin/common/models"
)

// BuildHistory is the build server's record of finished builds. Pinning and tag removal are idempotent
// on the build server; calling them twice has no further effect.
type BuildHistory interface {
	// FindEntry reads a finished build. Returns gerror.ErrNotFound if the build does not exist.
	FindEntry(ctx context.Context, buildID models.BuildID) (*models.Build, error)
	// SetPinned pins or unpins a build, attributing the change to user with the supplied comment.
	SetPinned(ctx context.Context, buildID models.BuildID, pinned bool, user *models.User, comment string) error
	// GetAllDependencies returns the IDs of every build the specified build depends on, directly or transitively.
	GetAllDependencies(ctx context.Context, buildID models.BuildID) ([]models.BuildID, error)
	// RemoveTag removes a tag from a build. Removing a tag the build does not carry is a no-op.
	RemoveTag(ctx context.Context, buildID models.BuildID, tag models.Tag) error
}

// RuleProvider supplies the pin rules configured for a build.
type RuleProvider interface {
	// RulesForBuild returns the pin rules that apply to build. If an error is returned alongside rules then
	// some (but not all) rule sources failed and the returned rules should still be evaluated.
	RulesForBuild(ctx context.Context, build *models.Build) ([]*models.PinRule, error)
}

type AutopinService interface {
	// HandleBuildFinished evaluates and applies every pin decision for a finished build.
	// An error is returned only if the event could not be processed at all; failures in individual
	// decisions are reported in the result.
	HandleBuildFinished(ctx context.Context, event *models.BuildFinishedEvent) (*models.BuildFinishedResult, error)
	// ApplyDecision pins the build (and its dependencies if the decision cascades) and removes any tags
	// the decision consumed. Returns the IDs of the builds that were pinned.
	ApplyDecision(ctx context.Context, build *models.Build, decision *models.PinDecision, user *models.User) ([]models.BuildID, error)
	// Evaluate returns the pin decisions for a build and set of rules without applying them.
	Evaluate(ctx context.Context, build *models.Build, rules []*models.PinRule) ([]*models.PinDecision, error)
	// ListPinRecords returns the pins recorded against a build, oldest first.
	ListPinRecords(ctx context.Context, buildID models.BuildID) ([]*models.PinRecord, error)
}
