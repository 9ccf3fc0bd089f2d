package documents

import (
	"errors"

	"github.com/hashicorp/go-multierror"

	"github.com/buildbeaver/autopin/common/models"
)

// BuildFinishedRequest is the body of the build finished webhook.
type BuildFinishedRequest struct {
	BuildID models.BuildID `json:"build_id"`
	// TriggeredBy optionally names the user the pins are made on behalf of.
	TriggeredBy string `json:"triggered_by,omitempty"`
}

func (d *BuildFinishedRequest) ToEvent() *models.BuildFinishedEvent {
	event := &models.BuildFinishedEvent{BuildID: d.BuildID}
	if d.TriggeredBy != "" {
		event.TriggeredBy = &models.User{Username: d.TriggeredBy}
	}
	return event
}

type BuildFinishedResponse struct {
	Build          *models.Build         `json:"build"`
	Decisions      []*models.PinDecision `json:"decisions"`
	PinnedBuildIDs []models.BuildID      `json:"pinned_build_ids"`
	// Errors lists the failures that did not stop the other decisions being applied.
	Errors []string `json:"errors"`
}

func MakeBuildFinishedResponse(result *models.BuildFinishedResult) *BuildFinishedResponse {
	return &BuildFinishedResponse{
		Build:          result.Build,
		Decisions:      nonNilDecisions(result.Decisions),
		PinnedBuildIDs: nonNilBuildIDs(result.PinnedBuildIDs),
		Errors:         ErrorMessages(result.Err),
	}
}

// EvaluateRequest asks which pin decisions would be made for a build and set of rules.
type EvaluateRequest struct {
	Build *models.Build     `json:"build"`
	Rules []*models.PinRule `json:"rules"`
}

type EvaluateResponse struct {
	Decisions []*models.PinDecision `json:"decisions"`
	// Errors lists the rules that could not be evaluated.
	Errors []string `json:"errors"`
}

func MakeEvaluateResponse(decisions []*models.PinDecision, err error) *EvaluateResponse {
	return &EvaluateResponse{
		Decisions: nonNilDecisions(decisions),
		Errors:    ErrorMessages(err),
	}
}

type PinRecordsResponse struct {
	BuildID    models.BuildID      `json:"build_id"`
	PinRecords []*models.PinRecord `json:"pin_records"`
}

// ErrorMessages flattens an aggregated error into one message per failure. Never nil.
func ErrorMessages(err error) []string {
	messages := []string{}
	if err == nil {
		return messages
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			messages = append(messages, e.Error())
		}
		return messages
	}
	return append(messages, err.Error())
}

func nonNilDecisions(decisions []*models.PinDecision) []*models.PinDecision {
	if decisions == nil {
		return []*models.PinDecision{}
	}
	return decisions
}

func nonNilBuildIDs(ids []models.BuildID) []models.BuildID {
	if ids == nil {
		return []models.BuildID{}
	}
	return ids
}
