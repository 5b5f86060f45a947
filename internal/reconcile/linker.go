package reconcile

import (
	"context"
	"errors"
	"fmt"

	"facilitysync/internal/identity"
	"facilitysync/internal/logger"
	"facilitysync/internal/store"
)

// LinkCycle adds the cycle's name to every proposal listed in the cycle's
// proposal set. Proposals missing from the store are reported and skipped.
func (e *Engine) LinkCycle(ctx context.Context, cycleName string) (Summary, error) {
	cycle, err := e.store.GetCycle(ctx, cycleName)
	if err != nil {
		return Summary{}, identity.AsLookup(err, identity.KindCycle, cycleName)
	}
	return e.linkCycle(ctx, cycle)
}

func (e *Engine) linkCycle(ctx context.Context, cycle store.Cycle) (Summary, error) {
	log := logger.FromContext(ctx, e.logger).With("cycle", cycle.Name)
	log.Info("linking proposals to cycle", "proposals", len(cycle.Proposals))

	var summary Summary
	for _, proposalID := range cycle.Proposals {
		err := e.store.AddProposalCycle(ctx, proposalID, cycle.Name, e.now())
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("proposal not found while linking cycle", "proposal_id", proposalID)
			summary.Missing = append(summary.Missing, proposalID)
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("link proposal %s to cycle %s: %w", proposalID, cycle.Name, err)
		}
		summary.Synced++
	}
	return summary, nil
}
