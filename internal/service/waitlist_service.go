package service

import (
	"context"
	"fmt"
	"log"

	"github.com/venuehub/venue-booking/internal/clock"
	"github.com/venuehub/venue-booking/internal/model"
	"github.com/venuehub/venue-booking/internal/notifier"
	"github.com/venuehub/venue-booking/internal/repository"
)

// WaitlistService owns the waitlist lifecycle: joining and leaving a
// slot's queue, strict-FIFO promotion when the slot frees up, and the
// time-boxed exclusive claim window (see claim_window.go).
type WaitlistService struct {
	entries  WaitlistStore
	bookings BookingStore
	sched    *Scheduler
	sink     notifier.Sink
	clk      clock.Clock
	locks    *SlotLocks
}

// NewWaitlistService constructs a WaitlistService and registers its
// claim-expiry handler on the scheduler.  It must share SlotLocks
// with the BookingService.
func NewWaitlistService(entries WaitlistStore, bookings BookingStore, sched *Scheduler, sink notifier.Sink, clk clock.Clock, locks *SlotLocks) *WaitlistService {
	s := &WaitlistService{
		entries:  entries,
		bookings: bookings,
		sched:    sched,
		sink:     sink,
		clk:      clk,
		locks:    locks,
	}
	sched.Register(model.JobKindClaimExpiry, s.FireClaimExpiry)
	return s
}

// WaitlistEntryView is the read model for a requester's entries; for
// notified entries it carries the seconds left in the claim window.
type WaitlistEntryView struct {
	model.WaitlistEntry
	TimeRemainingSeconds int64 `json:"time_remaining_seconds"`
}

// Join appends the requester to the queue for the exact slot.  The
// slot must actually be full (a confirmed booking or an active claim
// hold covers it); joining a free slot fails with ErrSlotNotFull so
// the caller books directly instead.  The FIFO rank comes from the
// slot's monotonic counter and is never reused.
func (s *WaitlistService) Join(ctx context.Context, slot model.Slot, requesterID uint64) (*model.WaitlistEntry, error) {
	if err := slot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	now := s.clk.Now()
	if !slot.StartAt().After(now) {
		return nil, fmt.Errorf("%w: slot is in the past", ErrValidation)
	}

	release := s.locks.Acquire(slot.LockKey())
	defer release()

	existing, err := s.entries.LiveByRequester(ctx, slot, requesterID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, repository.ErrAlreadyOnWaitlist
	}

	conflicts, err := s.bookings.ListConfirmedOverlapping(ctx, slot)
	if err != nil {
		return nil, err
	}
	if len(conflicts) == 0 {
		hold, err := s.currentHoldLocked(ctx, slot)
		if err != nil {
			return nil, err
		}
		if hold == nil {
			return nil, repository.ErrSlotNotFull
		}
	}

	priority, err := s.entries.NextPriority(ctx, slot)
	if err != nil {
		return nil, err
	}
	e := &model.WaitlistEntry{
		Slot:        slot,
		RequesterID: requesterID,
		Priority:    priority,
		State:       model.WaitlistStateWaiting,
		CreatedAt:   now,
	}
	if err := s.entries.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Leave withdraws the requester's entry.  Leaving while notified
// surrenders the claim window and is treated exactly like expiry: the
// next waiting entrant is promoted immediately.
func (s *WaitlistService) Leave(ctx context.Context, entryID, requesterID uint64) error {
	e, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if e.RequesterID != requesterID {
		return repository.ErrForbidden
	}

	release := s.locks.Acquire(e.Slot.LockKey())
	defer release()

	e, err = s.entries.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if e.Terminal() {
		return repository.ErrAlreadyTerminal
	}
	hadWindow := e.State == model.WaitlistStateNotified

	e.State = model.WaitlistStateLeft
	if err := s.entries.Update(ctx, e); err != nil {
		return err
	}
	if hadWindow {
		if err := s.sched.Disarm(ctx, model.JobKindClaimExpiry, e.ID); err != nil {
			log.Printf("waitlist entry %d: disarming claim expiry failed: %v", e.ID, err)
		}
		if err := s.promoteNextLocked(ctx, e.Slot); err != nil {
			log.Printf("waitlist entry %d: promotion after leave failed: %v", e.ID, err)
		}
	}
	return nil
}

// OnSlotFreed promotes the head of the slot's queue after a confirmed
// booking was released.  Exposed for callers outside the booking
// cancel path; the cancel path itself calls promoteNextLocked while
// already holding the slot lock.
func (s *WaitlistService) OnSlotFreed(ctx context.Context, slot model.Slot) error {
	release := s.locks.Acquire(slot.LockKey())
	defer release()
	return s.promoteNextLocked(ctx, slot)
}

// GetMyEntries returns the requester's waitlist entries, newest
// first, with the remaining claim time computed as of now.
func (s *WaitlistService) GetMyEntries(ctx context.Context, requesterID uint64) ([]WaitlistEntryView, error) {
	entries, err := s.entries.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	views := make([]WaitlistEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, WaitlistEntryView{
			WaitlistEntry:        e,
			TimeRemainingSeconds: e.TimeRemaining(now),
		})
	}
	return views, nil
}
