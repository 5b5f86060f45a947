package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface shared by the Postgres and in-memory
// implementations.
type Store interface {
	SaveFacility(ctx context.Context, facility Facility) error
	SaveBeamline(ctx context.Context, beamline Beamline) error
	GetFacility(ctx context.Context, id string) (Facility, error)
	FacilityByPassID(ctx context.Context, passFacilityID string) (Facility, error)
	BeamlineByPassID(ctx context.Context, passResourceID string) (Beamline, error)
	ListFacilities(ctx context.Context) ([]Facility, error)

	UpsertCycle(ctx context.Context, update CycleUpdate) (Cycle, error)
	AddCycleProposals(ctx context.Context, cycleName string, proposalIDs []string, updatedAt time.Time) error
	GetCycle(ctx context.Context, name string) (Cycle, error)
	ListCycles(ctx context.Context, facilityID string) ([]Cycle, error)

	UpsertProposalType(ctx context.Context, proposalType ProposalType) error
	ListProposalTypes(ctx context.Context, facilityID string) ([]ProposalType, error)

	UpsertProposal(ctx context.Context, update ProposalUpdate) error
	GetProposal(ctx context.Context, proposalID string) (Proposal, error)
	AddProposalCycle(ctx context.Context, proposalID, cycleName string, updatedAt time.Time) error

	Ping(ctx context.Context) error
}

// union appends the members of add that are not already in base, keeping the
// existing order stable.
func union(base []string, add ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, value := range base {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	for _, value := range add {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
