// Package reconcile pulls cycles, proposal types and proposals from PASS and
// merges them into the local store.
//
// Every workflow iterates its remote lists sequentially. Nothing here locks
// an entity across jobs: two jobs reconciling the same proposal or cycle at
// the same time interleave and the last write wins.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"facilitysync/internal/identity"
	"facilitysync/internal/pass"
	"facilitysync/internal/store"
)

// Remote is the subset of the PASS client the engine calls.
type Remote interface {
	GetProposal(ctx context.Context, facilityCode, proposalID string) (pass.Proposal, error)
	GetProposalTypes(ctx context.Context, facilityCode string) ([]pass.ProposalType, error)
	GetSAFsByProposal(ctx context.Context, facilityCode, proposalID string) ([]pass.SAF, error)
	GetProposalsByType(ctx context.Context, facilityCode, year, proposalTypeID string) ([]pass.Proposal, error)
	GetCycles(ctx context.Context, facilityCode string) ([]pass.Cycle, error)
	GetProposalsAllocatedByCycle(ctx context.Context, facilityCode, cycle string) ([]pass.AllocatedProposal, error)
}

// Indexer receives every proposal after it is stored. Implementations must
// not block the caller.
type Indexer interface {
	IndexProposal(proposal store.Proposal)
}

type Options struct {
	// DefaultFacility is used when a proposal sync names no facility.
	DefaultFacility string
	Indexer         Indexer
	Logger          *slog.Logger
	Now             func() time.Time
}

type Engine struct {
	remote          Remote
	store           store.Store
	resolver        *identity.Resolver
	indexer         Indexer
	logger          *slog.Logger
	now             func() time.Time
	defaultFacility string
}

func New(remote Remote, st store.Store, resolver *identity.Resolver, opts Options) *Engine {
	e := &Engine{
		remote:          remote,
		store:           st,
		resolver:        resolver,
		indexer:         opts.Indexer,
		logger:          opts.Logger,
		now:             opts.Now,
		defaultFacility: opts.DefaultFacility,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.defaultFacility == "" {
		e.defaultFacility = "nsls2"
	}
	return e
}

// Summary describes what a workflow touched.
type Summary struct {
	Synced  int      `json:"synced"`
	Linked  int      `json:"linked,omitempty"`
	Skipped int      `json:"skipped,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func (s *Summary) add(other Summary) {
	s.Synced += other.Synced
	s.Linked += other.Linked
	s.Skipped += other.Skipped
	s.Missing = append(s.Missing, other.Missing...)
}

// DataSession derives the storage label of a proposal.
func DataSession(proposalID string) string {
	return "pass-" + proposalID
}

func elapsed(started time.Time) string {
	return time.Since(started).Round(10 * time.Millisecond).String()
}
