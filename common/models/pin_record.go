package models

import (
	"fmt"

	"github.com/google/uuid"
)

const pinRecordIDPrefix = "pin-record"

type PinRecordID string

func NewPinRecordID() PinRecordID {
	return PinRecordID(fmt.Sprintf("%s:%s", pinRecordIDPrefix, uuid.New().String()))
}

func (id PinRecordID) String() string {
	return string(id)
}

// PinRecord is an audit entry for one build pinned (or that failed to pin) as the result of a decision.
type PinRecord struct {
	ID        PinRecordID `json:"id" db:"pin_record_id"`
	CreatedAt Time        `json:"created_at" db:"pin_record_created_at"`
	// BuildID is the build that was pinned.
	BuildID BuildID `json:"build_id" db:"pin_record_build_id"`
	// RootBuildID is the finished build the decision was made for. Equal to BuildID unless Dependency is set.
	RootBuildID BuildID        `json:"root_build_id" db:"pin_record_root_build_id"`
	Dependency  bool           `json:"dependency" db:"pin_record_dependency"`
	Source      DecisionSource `json:"source" db:"pin_record_source"`
	RuleID      string         `json:"rule_id" db:"pin_record_rule_id"`
	Comment     string         `json:"comment" db:"pin_record_comment"`
	User        string         `json:"user" db:"pin_record_user"`
	// Error is empty when the pin succeeded.
	Error string `json:"error,omitempty" db:"pin_record_error"`
}

func NewPinRecord(
	now Time,
	buildID BuildID,
	rootBuildID BuildID,
	decision *PinDecision,
	user *User,
	pinErr error,
) *PinRecord {
	record := &PinRecord{
		ID:          NewPinRecordID(),
		CreatedAt:   now,
		BuildID:     buildID,
		RootBuildID: rootBuildID,
		Dependency:  buildID != rootBuildID,
		Source:      decision.Source,
		RuleID:      decision.RuleID,
		Comment:     decision.Comment,
		User:        user.String(),
	}
	if pinErr != nil {
		record.Error = pinErr.Error()
	}
	return record
}

func (r *PinRecord) Succeeded() bool {
	return r.Error == ""
}
