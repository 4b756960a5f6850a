package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuehub/venue-booking/internal/clock"
	"github.com/venuehub/venue-booking/internal/model"
)

func TestSchedulerFiresDueJobsOnce(t *testing.T) {
	clk := clock.NewFake(baseNow)
	jobs := newMemSchedule()
	sched := NewScheduler(jobs, clk, 30*time.Second)

	fired := make(map[uint64]int)
	sched.Register("test_kind", func(_ context.Context, entityID uint64) error {
		fired[entityID]++
		return nil
	})

	ctx := context.Background()
	require.NoError(t, sched.Arm(ctx, "test_kind", 1, baseNow.Add(time.Minute)))
	require.NoError(t, sched.Arm(ctx, "test_kind", 2, baseNow.Add(time.Hour)))

	// Nothing is due yet.
	sched.Sweep(ctx)
	assert.Empty(t, fired)

	clk.Advance(2 * time.Minute)
	sched.Sweep(ctx)
	assert.Equal(t, 1, fired[1])
	assert.Zero(t, fired[2])

	// The fired row is gone; sweeping again does not re-fire.
	sched.Sweep(ctx)
	assert.Equal(t, 1, fired[1])
}

func TestSchedulerArmReplacesDeadline(t *testing.T) {
	clk := clock.NewFake(baseNow)
	jobs := newMemSchedule()
	sched := NewScheduler(jobs, clk, 30*time.Second)

	fired := 0
	sched.Register("test_kind", func(context.Context, uint64) error {
		fired++
		return nil
	})

	ctx := context.Background()
	require.NoError(t, sched.Arm(ctx, "test_kind", 1, baseNow.Add(time.Minute)))
	require.NoError(t, sched.Arm(ctx, "test_kind", 1, baseNow.Add(time.Hour)))

	// Only the replacement deadline exists.
	clk.Advance(2 * time.Minute)
	sched.Sweep(ctx)
	assert.Zero(t, fired)

	clk.Advance(time.Hour)
	sched.Sweep(ctx)
	assert.Equal(t, 1, fired)
}

func TestSchedulerDisarm(t *testing.T) {
	clk := clock.NewFake(baseNow)
	jobs := newMemSchedule()
	sched := NewScheduler(jobs, clk, 30*time.Second)

	fired := 0
	sched.Register("test_kind", func(context.Context, uint64) error {
		fired++
		return nil
	})

	ctx := context.Background()
	require.NoError(t, sched.Arm(ctx, "test_kind", 1, baseNow.Add(time.Minute)))
	require.NoError(t, sched.Disarm(ctx, "test_kind", 1))

	// Disarming an unknown job is a no-op.
	require.NoError(t, sched.Disarm(ctx, "test_kind", 42))

	clk.Advance(time.Hour)
	sched.Sweep(ctx)
	assert.Zero(t, fired)
}

func TestSchedulerDropsUnregisteredKind(t *testing.T) {
	clk := clock.NewFake(baseNow)
	jobs := newMemSchedule()
	sched := NewScheduler(jobs, clk, 30*time.Second)

	ctx := context.Background()
	require.NoError(t, sched.Arm(ctx, "unknown_kind", 1, baseNow))

	clk.Advance(time.Minute)
	sched.Sweep(ctx)

	// The row is consumed even without a handler so the sweep never
	// spins on it.
	assert.Nil(t, jobs.pending("unknown_kind", 1))
}

func TestSchedulerPicksUpPreexistingRows(t *testing.T) {
	// Rows armed by a previous process are plain storage rows; a freshly
	// constructed scheduler must fire them without re-arming.
	clk := clock.NewFake(baseNow)
	jobs := newMemSchedule()
	ctx := context.Background()
	require.NoError(t, jobs.Arm(ctx, model.ScheduledJob{
		Kind:     "test_kind",
		EntityID: 9,
		FireAt:   baseNow.Add(-time.Minute),
	}))

	sched := NewScheduler(jobs, clk, 30*time.Second)
	fired := 0
	sched.Register("test_kind", func(context.Context, uint64) error {
		fired++
		return nil
	})

	sched.Sweep(ctx)
	assert.Equal(t, 1, fired)
}
