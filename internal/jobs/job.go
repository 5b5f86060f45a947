// Package jobs runs sync workflows as background jobs and tracks their status.
package jobs

import (
	"errors"
	"fmt"
	"time"
)

type Action string

const (
	ActionSyncProposal           Action = "synchronize_proposal"
	ActionSyncProposalTypes      Action = "synchronize_proposal_types"
	ActionSyncProposalsForCycle  Action = "synchronize_proposals_for_cycle"
	ActionSyncCycles             Action = "synchronize_cycles"
	ActionUpdateCycleInformation Action = "update_cycle_information"
)

var Actions = []Action{
	ActionSyncProposal,
	ActionSyncProposalTypes,
	ActionSyncProposalsForCycle,
	ActionSyncCycles,
	ActionUpdateCycleInformation,
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransition encodes pending -> running -> succeeded|failed. A job that
// cannot start goes from pending straight to failed. Terminal states accept
// nothing.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusSucceeded || to == StatusFailed
	default:
		return false
	}
}

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrInvalidParams     = errors.New("invalid job parameters")
	ErrUnknownAction     = errors.New("unknown job action")
)

// Params carries the per-action parameters. Only the fields an action uses
// are set.
type Params struct {
	ProposalID string `json:"proposal_id,omitempty"`
	Facility   string `json:"facility,omitempty"`
	Cycle      string `json:"cycle,omitempty"`
	SyncSource string `json:"sync_source,omitempty"`
}

func (p Params) Validate(action Action) error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidParams, action, field)
	}
	switch action {
	case ActionSyncProposal:
		if p.ProposalID == "" {
			return missing("proposal_id")
		}
	case ActionSyncProposalTypes, ActionSyncCycles, ActionUpdateCycleInformation:
		if p.Facility == "" {
			return missing("facility")
		}
	case ActionSyncProposalsForCycle:
		if p.Cycle == "" {
			return missing("cycle")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return nil
}

type Job struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Params    Params    `json:"sync_parameters"`
	Status    Status    `json:"processing_status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
