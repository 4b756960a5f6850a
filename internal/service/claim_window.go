package service

import (
	"context"
	"fmt"
	"log"

	"github.com/venuehub/venue-booking/internal/model"
	"github.com/venuehub/venue-booking/internal/queue"
	"github.com/venuehub/venue-booking/internal/repository"
)

// Claim window mechanics.  When a slot frees up, the head of its
// queue is promoted to the notified state and holds an exclusive
// 15-minute right to convert the entry into a booking.  The slot is
// hard-reserved for the holder: direct bookings by anyone else fail
// with a slot conflict until the window is claimed, surrendered or
// expired.
//
// Expiry is enforced twice: eagerly by a scheduled claim_expiry job,
// and lazily by re-checking the stored deadline at the moment of any
// competing action.  Correctness never depends on the timer firing on
// time.

// promoteNextLocked hands the slot to the next waiting entrant.  The
// caller must hold the slot lock.  A still-active claim window leaves
// the queue untouched; a stale one is expired first, so the cascade
// never skips an entrant and never double-promotes.
func (s *WaitlistService) promoteNextLocked(ctx context.Context, slot model.Slot) error {
	now := s.clk.Now()

	hold, err := s.entries.ActiveNotified(ctx, slot)
	if err != nil {
		return err
	}
	if hold != nil {
		if !hold.DeadlinePassed(now) {
			return nil // window still open, slot stays reserved
		}
		if err := s.expireLocked(ctx, hold); err != nil {
			return err
		}
	}

	next, err := s.entries.FirstWaiting(ctx, slot)
	if err != nil {
		return err
	}
	if next == nil {
		return nil // queue empty, slot stays free
	}

	deadline := now.Add(model.ClaimWindow)
	next.State = model.WaitlistStateNotified
	next.NotifiedAt = &now
	next.ClaimDeadline = &deadline
	if err := s.entries.Update(ctx, next); err != nil {
		return err
	}
	if err := s.sched.Arm(ctx, model.JobKindClaimExpiry, next.ID, deadline); err != nil {
		return err
	}

	ev := newEvent(now, queue.KindSlotAvailable, next.RequesterID, slot,
		"Slot available",
		fmt.Sprintf("%s is now available. You have %d minutes to claim it.",
			slot, int(model.ClaimWindow.Minutes())))
	ev.EntryID = next.ID
	ev.DeadlineAt = deadline.Format("2006-01-02T15:04:05Z07:00")
	s.sink.Notify(ctx, ev)
	return nil
}

// currentHoldLocked returns an entry whose claim window is open for an
// interval overlapping the slot, after lazily expiring stale ones
// (which cascades promotion within each stale hold's own queue).  A
// window reserves its whole interval, so holds on overlapping slot
// keys count, not just the exact key.  The caller must hold the slot
// lock; overlapping intervals share one lock key, so the scan is race
// free.
func (s *WaitlistService) currentHoldLocked(ctx context.Context, slot model.Slot) (*model.WaitlistEntry, error) {
	holds, err := s.entries.ActiveNotifiedOverlapping(ctx, slot)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	cascaded := false
	for i := range holds {
		if !holds[i].DeadlinePassed(now) {
			continue
		}
		// Stale window: expire it and let its queue cascade before
		// answering.
		if err := s.expireLocked(ctx, &holds[i]); err != nil {
			return nil, err
		}
		if err := s.promoteNextLocked(ctx, holds[i].Slot); err != nil {
			return nil, err
		}
		cascaded = true
	}
	if cascaded {
		holds, err = s.entries.ActiveNotifiedOverlapping(ctx, slot)
		if err != nil {
			return nil, err
		}
	}
	for i := range holds {
		if !holds[i].DeadlinePassed(now) {
			return &holds[i], nil
		}
	}
	return nil, nil
}

// Claim converts a notified entry into a booking.  The claimed
// booking is confirmed immediately; it never enters the unconfirmed
// auto-cancel flow.  A claim arriving after the deadline is rejected
// even when the expiry timer has not fired yet, and the rejection
// itself promotes the next entrant.
func (s *WaitlistService) Claim(ctx context.Context, entryID, requesterID uint64) (*model.Booking, error) {
	e, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.RequesterID != requesterID {
		return nil, repository.ErrForbidden
	}

	release := s.locks.Acquire(e.Slot.LockKey())
	defer release()

	e, err = s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	switch e.State {
	case model.WaitlistStateNotified:
		// proceed
	case model.WaitlistStateExpired:
		return nil, repository.ErrDeadlineExpired
	default:
		return nil, repository.ErrNotNotified
	}

	now := s.clk.Now()
	if e.DeadlinePassed(now) {
		// Lazy expiry: the timer has not fired yet but the window is
		// over.  Settle the entry and move the queue along.
		if err := s.expireLocked(ctx, e); err != nil {
			return nil, err
		}
		if err := s.promoteNextLocked(ctx, e.Slot); err != nil {
			log.Printf("waitlist entry %d: promotion after lazy expiry failed: %v", e.ID, err)
		}
		return nil, repository.ErrDeadlineExpired
	}

	// Defensive re-check: the slot is held reserved for this entrant,
	// so a conflict here indicates a bug elsewhere, but we refuse to
	// double-book regardless.
	conflicts, err := s.bookings.ListConfirmedOverlapping(ctx, e.Slot)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, repository.ErrSlotConflict
	}

	b := &model.Booking{
		Slot:        e.Slot,
		RequesterID: e.RequesterID,
		Status:      model.BookingStatusConfirmed,
		Confirmed:   true,
		ConfirmedAt: &now,
		CreatedAt:   now,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}

	e.State = model.WaitlistStateClaimed
	e.ClaimedAt = &now
	if err := s.entries.Update(ctx, e); err != nil {
		return nil, err
	}
	if err := s.sched.Disarm(ctx, model.JobKindClaimExpiry, e.ID); err != nil {
		log.Printf("waitlist entry %d: disarming claim expiry failed: %v", e.ID, err)
	}

	ev := newEvent(now, queue.KindClaimConfirmed, e.RequesterID, e.Slot,
		"Slot claimed",
		fmt.Sprintf("You claimed %s. The booking is confirmed.", e.Slot))
	ev.BookingID = b.ID
	ev.EntryID = e.ID
	s.sink.Notify(ctx, ev)
	return b, nil
}

// FireClaimExpiry is the scheduler handler for claim-window deadlines.
// It re-validates the entry before acting: entries already claimed,
// left or expired make the fire a no-op, so duplicate or late timer
// deliveries never double-promote the queue.
func (s *WaitlistService) FireClaimExpiry(ctx context.Context, entryID uint64) error {
	e, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil
		}
		return err
	}
	if e.State != model.WaitlistStateNotified {
		return nil // settled by claim, leave or an earlier fire
	}

	release := s.locks.Acquire(e.Slot.LockKey())
	defer release()

	e, err = s.entries.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if e.State != model.WaitlistStateNotified {
		return nil
	}
	now := s.clk.Now()
	if !e.DeadlinePassed(now) {
		// Fired early (clock skew): push the deadline row back and let
		// the next sweep try again.
		return s.sched.Arm(ctx, model.JobKindClaimExpiry, e.ID, *e.ClaimDeadline)
	}
	if err := s.expireLocked(ctx, e); err != nil {
		return err
	}
	return s.promoteNextLocked(ctx, e.Slot)
}

// expireLocked settles a notified entry whose window closed.  The
// caller must hold the slot lock and is responsible for promoting the
// next entrant afterwards where appropriate.
func (s *WaitlistService) expireLocked(ctx context.Context, e *model.WaitlistEntry) error {
	e.State = model.WaitlistStateExpired
	if err := s.entries.Update(ctx, e); err != nil {
		return err
	}
	if err := s.sched.Disarm(ctx, model.JobKindClaimExpiry, e.ID); err != nil {
		log.Printf("waitlist entry %d: disarming claim expiry failed: %v", e.ID, err)
	}
	return nil
}
