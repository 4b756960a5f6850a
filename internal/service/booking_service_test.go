package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuehub/venue-booking/internal/clock"
	"github.com/venuehub/venue-booking/internal/model"
	"github.com/venuehub/venue-booking/internal/queue"
	"github.com/venuehub/venue-booking/internal/repository"
)

// testEnv wires the services against in-memory stores and a fake clock.
type testEnv struct {
	clk      *clock.Fake
	bookings *memBookings
	entries  *memWaitlist
	jobs     *memSchedule
	sink     *memSink
	sched    *Scheduler
	booking  *BookingService
	waitlist *WaitlistService
}

func newTestEnv(now time.Time) *testEnv {
	env := &testEnv{
		clk:      clock.NewFake(now),
		bookings: newMemBookings(),
		entries:  newMemWaitlist(),
		jobs:     newMemSchedule(),
		sink:     &memSink{},
	}
	env.sched = NewScheduler(env.jobs, env.clk, 30*time.Second)
	locks := NewSlotLocks()
	env.booking = NewBookingService(env.bookings, env.sched, env.sink, env.clk, locks)
	env.waitlist = NewWaitlistService(env.entries, env.bookings, env.sched, env.sink, env.clk, locks)
	env.booking.BindWaitlist(env.waitlist)
	return env
}

var baseNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func testSlot() model.Slot {
	return model.Slot{VenueID: 1, Date: "2025-06-10", StartTime: "18:00", EndTime: "20:00"}
}

func TestCreateBooking(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	b, err := env.booking.Create(ctx, testSlot(), 7, "team offsite")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, b.Status)
	assert.False(t, b.Confirmed, "a new booking starts unconfirmed")
	assert.False(t, b.ReminderSent)

	start := testSlot().StartAt()
	cancelJob := env.jobs.pending(model.JobKindAutoCancel, b.ID)
	require.NotNil(t, cancelJob)
	assert.Equal(t, start.Add(-ConfirmLead), cancelJob.FireAt)

	remindJob := env.jobs.pending(model.JobKindReminder, b.ID)
	require.NotNil(t, remindJob)
	assert.Equal(t, start.Add(-ReminderLead), remindJob.FireAt)

	assert.Contains(t, env.sink.kinds(), queue.KindBookingConfirmed)
}

func TestCreateBookingConflicts(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	_, err := env.booking.Create(ctx, testSlot(), 1, "")
	require.NoError(t, err)

	// Overlapping interval on the same venue and date is rejected.
	overlapping := model.Slot{VenueID: 1, Date: "2025-06-10", StartTime: "19:00", EndTime: "21:00"}
	_, err = env.booking.Create(ctx, overlapping, 2, "")
	assert.ErrorIs(t, err, repository.ErrSlotConflict)

	// Back-to-back is fine: intervals are half-open.
	adjacent := model.Slot{VenueID: 1, Date: "2025-06-10", StartTime: "20:00", EndTime: "22:00"}
	_, err = env.booking.Create(ctx, adjacent, 2, "")
	assert.NoError(t, err)

	// Same interval on another venue never conflicts.
	otherVenue := model.Slot{VenueID: 2, Date: "2025-06-10", StartTime: "18:00", EndTime: "20:00"}
	_, err = env.booking.Create(ctx, otherVenue, 2, "")
	assert.NoError(t, err)
}

func TestCreateBookingValidation(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	past := model.Slot{VenueID: 1, Date: "2025-05-01", StartTime: "10:00", EndTime: "11:00"}
	_, err := env.booking.Create(ctx, past, 1, "")
	assert.ErrorIs(t, err, ErrValidation)

	farAhead := model.Slot{VenueID: 1, Date: "2025-12-01", StartTime: "10:00", EndTime: "11:00"}
	_, err = env.booking.Create(ctx, farAhead, 1, "")
	assert.ErrorIs(t, err, ErrValidation)

	malformed := model.Slot{VenueID: 1, Date: "2025-06-10", StartTime: "18:00", EndTime: "17:00"}
	_, err = env.booking.Create(ctx, malformed, 1, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateInsideReminderWindow(t *testing.T) {
	// Booking less than 24h before the event: the reminder goes out
	// immediately instead of being scheduled.
	env := newTestEnv(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	b, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)
	assert.True(t, b.ReminderSent)
	assert.Nil(t, env.jobs.pending(model.JobKindReminder, b.ID))
	assert.Contains(t, env.sink.kinds(), queue.KindReminder)

	// The auto-cancel deadline is still armed at start minus two hours.
	cancelJob := env.jobs.pending(model.JobKindAutoCancel, b.ID)
	require.NotNil(t, cancelJob)
	assert.Equal(t, testSlot().StartAt().Add(-ConfirmLead), cancelJob.FireAt)
}

func TestConcurrentCreateSameSlot(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.booking.Create(ctx, testSlot(), uint64(i+1), "")
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrSlotConflict):
			conflict++
		}
	}
	assert.Equal(t, 1, ok, "exactly one create must win")
	assert.Equal(t, 1, conflict)
}

func TestConfirmBooking(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	b, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)

	_, err = env.booking.Confirm(ctx, b.ID, 99)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	got, err := env.booking.Confirm(ctx, b.ID, 7)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	require.NotNil(t, got.ConfirmedAt)
	assert.Nil(t, env.jobs.pending(model.JobKindAutoCancel, b.ID), "confirming disarms the deadline")

	_, err = env.booking.Confirm(ctx, b.ID, 7)
	assert.ErrorIs(t, err, repository.ErrAlreadyConfirmed)
}

func TestCancelBooking(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	b, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)

	_, err = env.booking.Cancel(ctx, b.ID, 99, "not mine")
	assert.ErrorIs(t, err, repository.ErrForbidden)

	got, err := env.booking.Cancel(ctx, b.ID, 7, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "plans changed", *got.CancellationReason)
	assert.False(t, got.AutoCancelled)
	assert.Nil(t, env.jobs.pending(model.JobKindAutoCancel, b.ID))
	assert.Nil(t, env.jobs.pending(model.JobKindReminder, b.ID))

	_, err = env.booking.Cancel(ctx, b.ID, 7, "again")
	assert.ErrorIs(t, err, repository.ErrAlreadyCancelled)

	_, err = env.booking.Confirm(ctx, b.ID, 7)
	assert.ErrorIs(t, err, repository.ErrAlreadyCancelled)
}

func TestCancelWindowCloses(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	b, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)
	_, err = env.booking.Confirm(ctx, b.ID, 7)
	require.NoError(t, err)

	// 90 minutes before the event a requester can no longer cancel.
	env.clk.Set(testSlot().StartAt().Add(-90 * time.Minute))
	_, err = env.booking.Cancel(ctx, b.ID, 7, "too late")
	assert.ErrorIs(t, err, repository.ErrCancelWindowClosed)

	// The system is not bound by the window.
	_, err = env.booking.Cancel(ctx, b.ID, SystemRequester, "venue closed")
	assert.NoError(t, err)
}

func TestAutoCancelUnconfirmed(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	b, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)

	env.clk.Set(testSlot().StartAt().Add(-ConfirmLead).Add(time.Minute))
	env.sched.Sweep(ctx)

	got, err := env.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)
	assert.True(t, got.AutoCancelled)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, model.AutoCancelReason, *got.CancellationReason)
	assert.Contains(t, env.sink.kinds(), queue.KindAutoCancelled)
}

func TestAutoCancelImmediateInsideLead(t *testing.T) {
	// Booking created one hour before the event: the deadline clamps to
	// "now" and the next sweep cancels it unless it was confirmed.
	env := newTestEnv(testSlot().StartAt().Add(-time.Hour))
	ctx := context.Background()

	b, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)

	cancelJob := env.jobs.pending(model.JobKindAutoCancel, b.ID)
	require.NotNil(t, cancelJob)
	assert.Equal(t, env.clk.Now(), cancelJob.FireAt)

	env.sched.Sweep(ctx)
	got, err := env.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)
	assert.True(t, got.AutoCancelled)
}

func TestAutoCancelSkipsConfirmed(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	b, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)
	_, err = env.booking.Confirm(ctx, b.ID, 7)
	require.NoError(t, err)

	// Even a stray fire after the deadline must not touch a confirmed
	// booking.
	env.clk.Set(testSlot().StartAt().Add(-time.Minute))
	require.NoError(t, env.booking.FireAutoCancel(ctx, b.ID))
	env.sched.Sweep(ctx)

	got, err := env.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)
	assert.True(t, got.Confirmed)
}

func TestReminderFires(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	b, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)

	env.clk.Set(testSlot().StartAt().Add(-ReminderLead).Add(time.Minute))
	env.sched.Sweep(ctx)

	got, err := env.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)
	assert.Contains(t, env.sink.kinds(), queue.KindReminder)

	// A duplicate fire is a no-op.
	require.NoError(t, env.booking.FireReminder(ctx, b.ID))
	reminders := 0
	for _, k := range env.sink.kinds() {
		if k == queue.KindReminder {
			reminders++
		}
	}
	assert.Equal(t, 1, reminders)
}

func TestReminderFireSkipsConcurrentlyCancelled(t *testing.T) {
	// A user cancel committing between the reminder handler's unlocked
	// pre-read and its lock-guarded write must win: the stale live copy
	// is never written back over the cancelled row.
	clk := clock.NewFake(baseNow)
	base := newMemBookings()
	bookings := &hookedBookings{memBookings: base}
	jobs := newMemSchedule()
	sink := &memSink{}
	sched := NewScheduler(jobs, clk, 30*time.Second)
	locks := NewSlotLocks()
	bsvc := NewBookingService(bookings, sched, sink, clk, locks)
	bsvc.BindWaitlist(NewWaitlistService(newMemWaitlist(), bookings, sched, sink, clk, locks))

	ctx := context.Background()
	b, err := bsvc.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)

	now := clk.Now()
	bookings.onGet = func() {
		row, err := base.GetByID(ctx, b.ID)
		require.NoError(t, err)
		reason := "plans changed"
		row.Status = model.BookingStatusCancelled
		row.CancelledAt = &now
		row.CancellationReason = &reason
		require.NoError(t, base.Update(ctx, row))
	}

	require.NoError(t, bsvc.FireReminder(ctx, b.ID))

	got, err := base.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)
	assert.False(t, got.ReminderSent)
}

func TestCreateReleasesSlotWhenArmFails(t *testing.T) {
	// If the confirmation deadline cannot be armed, the fresh booking
	// must not keep holding the slot with no way to ever auto-cancel.
	clk := clock.NewFake(baseNow)
	bookings := newMemBookings()
	jobs := &failingArms{memSchedule: newMemSchedule(), failKind: model.JobKindAutoCancel}
	sink := &memSink{}
	sched := NewScheduler(jobs, clk, 30*time.Second)
	locks := NewSlotLocks()
	bsvc := NewBookingService(bookings, sched, sink, clk, locks)
	bsvc.BindWaitlist(NewWaitlistService(newMemWaitlist(), bookings, sched, sink, clk, locks))

	ctx := context.Background()
	_, err := bsvc.Create(ctx, testSlot(), 7, "")
	require.ErrorIs(t, err, errArmUnavailable)

	res, err := bsvc.CheckAvailability(ctx, testSlot())
	require.NoError(t, err)
	assert.True(t, res.Available, "the failed booking must not hold the slot")
	assert.Empty(t, res.Conflicts)
}

func TestCheckAvailability(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	res, err := env.booking.CheckAvailability(ctx, testSlot())
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Empty(t, res.Conflicts)

	b, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)

	res, err = env.booking.CheckAvailability(ctx, testSlot())
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, b.ID, res.Conflicts[0].ID)
}

func TestGetMyBookings(t *testing.T) {
	env := newTestEnv(baseNow)
	ctx := context.Background()

	_, err := env.booking.Create(ctx, testSlot(), 7, "")
	require.NoError(t, err)
	other := model.Slot{VenueID: 3, Date: "2025-06-11", StartTime: "09:00", EndTime: "10:00"}
	_, err = env.booking.Create(ctx, other, 8, "")
	require.NoError(t, err)

	mine, err := env.booking.GetMyBookings(ctx, 7)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, uint64(7), mine[0].RequesterID)
}
