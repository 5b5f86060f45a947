package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facilitysync/internal/jobs"
	"facilitysync/internal/logger"
	"facilitysync/internal/pass"
)

func TestWorkflowsCoverEveryAction(t *testing.T) {
	f := newFixture(t)
	workflows := f.engine.Workflows()
	for _, action := range jobs.Actions {
		assert.Contains(t, workflows, action)
	}
}

func TestWorkflowsRunThroughDispatcher(t *testing.T) {
	f := newFixture(t)
	f.remote.cycles = []pass.Cycle{remoteCycle("2024-1")}
	f.remote.allocated["2024-1"] = []pass.AllocatedProposal{{ProposalID: "300100"}}

	dispatcher := jobs.NewDispatcher(jobs.NewMemoryStore(), f.engine.Workflows(), jobs.Options{Logger: logger.Discard()})
	ctx := context.Background()

	job, err := dispatcher.CreateJob(ctx, jobs.ActionSyncCycles, jobs.Params{Facility: "nsls2"})
	require.NoError(t, err)
	dispatcher.Wait()

	done, err := dispatcher.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSucceeded, done.Status)

	cycle, err := f.store.GetCycle(ctx, "2024-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"300100"}, cycle.Proposals)

	job, err = dispatcher.CreateJob(ctx, jobs.ActionSyncCycles, jobs.Params{Facility: "als"})
	require.NoError(t, err)
	dispatcher.Wait()

	failed, err := dispatcher.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "als")
}
