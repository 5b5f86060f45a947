package reconcile

import (
	"context"
	"fmt"
	"time"

	"facilitysync/internal/identity"
	"facilitysync/internal/logger"
	"facilitysync/internal/store"
)

// SyncProposalTypes upserts the facility's PASS proposal types. A type whose
// facility cannot be resolved is logged and skipped.
func (e *Engine) SyncProposalTypes(ctx context.Context, facilityID string) (Summary, error) {
	started := time.Now()
	log := logger.FromContext(ctx, e.logger)

	facility, err := e.resolver.Facility(ctx, facilityID)
	if err != nil {
		return Summary{}, err
	}
	remoteTypes, err := e.remote.GetProposalTypes(ctx, facility.PassCode)
	if err != nil {
		log.Error("retrieving proposal types from PASS failed", "facility", facility.ID, "error", err)
		return Summary{}, fmt.Errorf("retrieve proposal types for %s: %w", facility.ID, err)
	}

	var summary Summary
	for _, remote := range remoteTypes {
		owner, err := e.resolver.FacilityByPassID(ctx, remote.UserFacilityID.String())
		if identity.IsLookup(err, identity.KindFacility) {
			log.Warn("skipping proposal type with unknown facility",
				"proposal_type", remote.ID.String(), "pass_facility_id", remote.UserFacilityID.String())
			summary.Skipped++
			continue
		}
		if err != nil {
			return summary, err
		}
		err = e.store.UpsertProposalType(ctx, store.ProposalType{
			PassID:          remote.ID.String(),
			Code:            remote.Code,
			FacilityID:      owner.ID,
			Description:     remote.Description,
			PassDescription: remote.Description,
			LastUpdated:     e.now(),
		})
		if err != nil {
			return summary, fmt.Errorf("upsert proposal type %s: %w", remote.ID, err)
		}
		summary.Synced++
	}

	log.Info("proposal type information synchronized",
		"facility", facility.ID, "proposal_types", summary.Synced, "skipped", summary.Skipped,
		"duration", elapsed(started))
	return summary, nil
}
