package reconcile

import (
	"context"
	"fmt"
	"time"

	"facilitysync/internal/logger"
	"facilitysync/internal/pass"
	"facilitysync/internal/store"
)

// SyncCycles upserts every PASS cycle of the facility and grows each cycle's
// proposal set with the proposals PASS currently allocates to it. Proposals
// PASS no longer allocates are kept.
func (e *Engine) SyncCycles(ctx context.Context, facilityID string) (Summary, error) {
	started := time.Now()
	log := logger.FromContext(ctx, e.logger)

	facility, err := e.resolver.Facility(ctx, facilityID)
	if err != nil {
		return Summary{}, err
	}
	remoteCycles, err := e.remote.GetCycles(ctx, facility.PassCode)
	if err != nil {
		log.Error("retrieving cycles from PASS failed", "facility", facility.ID, "error", err)
		return Summary{}, fmt.Errorf("retrieve cycles for %s: %w", facility.ID, err)
	}

	var summary Summary
	for _, remote := range remoteCycles {
		if err := e.syncCycle(ctx, facility, remote); err != nil {
			return summary, err
		}
		summary.Synced++
	}

	log.Info("cycle information synchronized",
		"facility", facility.ID, "cycles", summary.Synced, "duration", elapsed(started))
	return summary, nil
}

func (e *Engine) syncCycle(ctx context.Context, requested store.Facility, remote pass.Cycle) error {
	// The cycle's own facility is authoritative; an unknown one aborts the sync.
	owner, err := e.resolver.FacilityByPassID(ctx, remote.UserFacilityID.String())
	if err != nil {
		return fmt.Errorf("cycle %s: %w", remote.Name, err)
	}
	logger.FromContext(ctx, e.logger).Info("synchronizing cycle", "cycle", remote.Name, "facility", owner.ID)

	cycle, err := e.store.UpsertCycle(ctx, store.CycleUpdate{
		Name:               remote.Name,
		FacilityID:         owner.ID,
		Year:               remote.Year.String(),
		StartDate:          remote.StartDate.Time,
		EndDate:            remote.EndDate.Time,
		AcceptingProposals: remote.Active,
		PassDescription:    remote.Description,
		PassID:             remote.ID.String(),
		LastUpdated:        e.now(),
	})
	if err != nil {
		return fmt.Errorf("upsert cycle %s: %w", remote.Name, err)
	}

	allocated, err := e.remote.GetProposalsAllocatedByCycle(ctx, requested.PassCode, cycle.Name)
	if err != nil {
		return fmt.Errorf("retrieve proposals allocated to %s: %w", cycle.Name, err)
	}
	ids := pass.ProposalIDs(allocated)
	if len(ids) == 0 {
		return nil
	}
	if err := e.store.AddCycleProposals(ctx, cycle.Name, ids, e.now()); err != nil {
		return fmt.Errorf("add proposals to cycle %s: %w", cycle.Name, err)
	}
	return nil
}
