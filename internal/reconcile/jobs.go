package reconcile

import (
	"context"

	"facilitysync/internal/jobs"
)

// Workflows binds each job action to the engine method that runs it.
func (e *Engine) Workflows() map[jobs.Action]jobs.Workflow {
	return map[jobs.Action]jobs.Workflow{
		jobs.ActionSyncProposal: func(ctx context.Context, p jobs.Params) (any, error) {
			return e.SyncProposal(ctx, p.Facility, p.ProposalID)
		},
		jobs.ActionSyncProposalTypes: func(ctx context.Context, p jobs.Params) (any, error) {
			return e.SyncProposalTypes(ctx, p.Facility)
		},
		jobs.ActionSyncProposalsForCycle: func(ctx context.Context, p jobs.Params) (any, error) {
			return e.ProposalsForCycle(ctx, p.Cycle)
		},
		jobs.ActionSyncCycles: func(ctx context.Context, p jobs.Params) (any, error) {
			return e.SyncCycles(ctx, p.Facility)
		},
		jobs.ActionUpdateCycleInformation: func(ctx context.Context, p jobs.Params) (any, error) {
			return e.UpdateCycleInformation(ctx, p.Facility, p.Cycle, Source(p.SyncSource))
		},
	}
}
