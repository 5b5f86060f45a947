package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func newJob(id string) Job {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return Job{
		ID:        id,
		Action:    ActionSyncCycles,
		Params:    Params{Facility: "nsls2"},
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// storeContract exercises the behaviour both implementations share.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = store.Transition(ctx, "missing", StatusRunning, "", at)
	assert.ErrorIs(t, err, ErrJobNotFound)

	require.NoError(t, store.Create(ctx, newJob("job-1")))
	assert.Error(t, store.Create(ctx, newJob("job-1")), "duplicate ids must be rejected")

	_, err = store.Transition(ctx, "job-1", StatusSucceeded, "", at)
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending cannot skip running")

	job, err := store.Transition(ctx, "job-1", StatusRunning, "", at)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)

	job, err = store.Transition(ctx, "job-1", StatusFailed, "pass GetCycles: unexpected status 503", at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)

	for _, next := range []Status{StatusRunning, StatusSucceeded, StatusPending} {
		_, err = store.Transition(ctx, "job-1", next, "", at)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}

	stored, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, "pass GetCycles: unexpected status 503", stored.Error)
	assert.Equal(t, Params{Facility: "nsls2"}, stored.Params)
	assert.True(t, stored.UpdatedAt.Equal(at.Add(time.Minute)))
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestRedisStoreContract(t *testing.T) {
	store, _ := setupTestRedis(t)
	storeContract(t, store)
}

func TestRedisStoreTTL(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newJob("job-ttl")))

	s.FastForward(2 * time.Hour)

	_, err := store.Get(ctx, "job-ttl")
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestRedisStoreCorruptValue(t *testing.T) {
	store, s := setupTestRedis(t)
	require.NoError(t, s.Set("job:bad", "{not json"))

	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrJobNotFound))
}

func TestNewRedisStoreBadURL(t *testing.T) {
	_, err := NewRedisStore("://nope", 0)
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusRunning}:   true,
		{StatusPending, StatusFailed}:    true,
		{StatusRunning, StatusSucceeded}: true,
		{StatusRunning, StatusFailed}:    true,
	}
	all := []Status{StatusPending, StatusRunning, StatusSucceeded, StatusFailed}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, Params{ProposalID: "300100"}.Validate(ActionSyncProposal))
	assert.ErrorIs(t, Params{}.Validate(ActionSyncProposal), ErrInvalidParams)
	assert.ErrorIs(t, Params{}.Validate(ActionSyncCycles), ErrInvalidParams)
	assert.NoError(t, Params{Cycle: "2024-1"}.Validate(ActionSyncProposalsForCycle))
	assert.ErrorIs(t, Params{}.Validate(Action("drop_tables")), ErrUnknownAction)
}
