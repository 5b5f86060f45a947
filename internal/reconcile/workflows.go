package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"facilitysync/internal/identity"
	"facilitysync/internal/logger"
	"facilitysync/internal/pass"
	"facilitysync/internal/store"
)

// Source names where cycle membership is read from.
type Source string

const SourcePASS Source = "pass"

// UpdateCycleInformation runs the linker over one cycle of the facility, or
// over all of them when cycleName is empty. A source other than PASS makes
// every cycle a no-op.
func (e *Engine) UpdateCycleInformation(ctx context.Context, facilityID, cycleName string, source Source) (Summary, error) {
	started := time.Now()
	log := logger.FromContext(ctx, e.logger)

	if _, err := e.resolver.Facility(ctx, facilityID); err != nil {
		return Summary{}, err
	}
	if source == "" {
		source = SourcePASS
	}

	cycles, err := e.selectCycles(ctx, facilityID, cycleName)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, cycle := range cycles {
		if source != SourcePASS {
			log.Warn("unsupported sync source, skipping cycle", "cycle", cycle.Name, "sync_source", string(source))
			summary.Skipped++
			continue
		}
		log.Info("updating proposals with cycle information", "cycle", cycle.Name, "sync_source", string(source))
		linked, err := e.linkCycle(ctx, cycle)
		summary.add(linked)
		if err != nil {
			return summary, err
		}
	}

	log.Info("proposal/cycle information populated",
		"facility", facilityID, "cycles", len(cycles), "duration", elapsed(started))
	return summary, nil
}

// selectCycles returns the named cycle when it belongs to the facility, or
// every cycle of the facility. A name that matches nothing selects nothing.
func (e *Engine) selectCycles(ctx context.Context, facilityID, cycleName string) ([]store.Cycle, error) {
	if cycleName == "" {
		cycles, err := e.store.ListCycles(ctx, facilityID)
		if err != nil {
			return nil, fmt.Errorf("list cycles for %s: %w", facilityID, err)
		}
		return cycles, nil
	}
	cycle, err := e.store.GetCycle(ctx, cycleName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cycle %s: %w", cycleName, err)
	}
	if cycle.FacilityID != facilityID {
		return nil, nil
	}
	return []store.Cycle{cycle}, nil
}

// ProposalsForCycle reconciles every proposal allocated to the cycle, then
// the commissioning proposals of the cycle's year, and finally links the
// cycle's stored membership. Commissioning proposals outside that membership
// are synced but not linked to the cycle.
func (e *Engine) ProposalsForCycle(ctx context.Context, cycleName string) (Summary, error) {
	started := time.Now()
	log := logger.FromContext(ctx, e.logger).With("cycle", cycleName)

	cycle, err := e.store.GetCycle(ctx, cycleName)
	if err != nil {
		return Summary{}, identity.AsLookup(err, identity.KindCycle, cycleName)
	}
	facility, err := e.resolver.Facility(ctx, cycle.FacilityID)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	log.Info("synchronizing proposals for cycle", "proposals", len(cycle.Proposals))
	for _, proposalID := range cycle.Proposals {
		if err := e.syncProposal(ctx, facility, proposalID); err != nil {
			return summary, err
		}
		summary.Synced++
	}

	commissioning, err := e.remote.GetProposalsByType(ctx, facility.PassCode, cycle.Year, pass.CommissioningProposalTypeID)
	if err != nil {
		return summary, fmt.Errorf("retrieve commissioning proposals for %s: %w", cycle.Year, err)
	}
	log.Info("synchronizing commissioning proposals", "year", cycle.Year, "proposals", len(commissioning))
	for _, proposal := range commissioning {
		if err := e.syncProposal(ctx, facility, proposal.ProposalID.String()); err != nil {
			return summary, err
		}
		summary.Synced++
	}

	// Re-read the cycle: the linker works from the stored membership.
	cycle, err = e.store.GetCycle(ctx, cycleName)
	if err != nil {
		return summary, identity.AsLookup(err, identity.KindCycle, cycleName)
	}
	linked, err := e.linkCycle(ctx, cycle)
	summary.Linked = linked.Synced
	summary.Missing = append(summary.Missing, linked.Missing...)
	if err != nil {
		return summary, err
	}

	log.Info("proposals for cycle synchronized",
		"synced", summary.Synced, "linked", summary.Linked, "duration", elapsed(started))
	return summary, nil
}
