package service

import (
	"context"
	"fmt"
	"log"

	"github.com/venuehub/venue-booking/internal/clock"
	"github.com/venuehub/venue-booking/internal/model"
	"github.com/venuehub/venue-booking/internal/notifier"
	"github.com/venuehub/venue-booking/internal/queue"
	"github.com/venuehub/venue-booking/internal/repository"
)

// AvailabilityResult reports whether a slot can be booked directly.
// HeldForClaim is true when the slot is free of confirmed bookings but
// reserved for a notified waitlist entrant's claim window.
type AvailabilityResult struct {
	Available    bool            `json:"available"`
	HeldForClaim bool            `json:"held_for_claim"`
	Conflicts    []model.Booking `json:"conflicts"`
}

// BookingService owns the booking lifecycle: availability checks,
// creation with a confirmation deadline, explicit confirmation and
// cancellation, and the scheduler-driven auto-cancel and reminder
// fires.  Freed slots are handed to the bound WaitlistService for
// promotion.
type BookingService struct {
	bookings BookingStore
	sched    *Scheduler
	sink     notifier.Sink
	clk      clock.Clock
	locks    *SlotLocks
	waitlist *WaitlistService
}

// NewBookingService constructs a BookingService.  Bind the waitlist
// side with BindWaitlist before serving requests; scheduler handlers
// are registered here.
func NewBookingService(bookings BookingStore, sched *Scheduler, sink notifier.Sink, clk clock.Clock, locks *SlotLocks) *BookingService {
	s := &BookingService{
		bookings: bookings,
		sched:    sched,
		sink:     sink,
		clk:      clk,
		locks:    locks,
	}
	sched.Register(model.JobKindAutoCancel, s.FireAutoCancel)
	sched.Register(model.JobKindReminder, s.FireReminder)
	return s
}

// BindWaitlist wires the waitlist service that receives slot-freed
// hand-offs.  Both services must share the same SlotLocks.
func (s *BookingService) BindWaitlist(w *WaitlistService) { s.waitlist = w }

// CheckAvailability returns the confirmed bookings overlapping the
// slot and whether the slot is open for a direct booking.  A slot
// held for a notified waitlist entrant counts as unavailable even
// with no confirmed conflict.
func (s *BookingService) CheckAvailability(ctx context.Context, slot model.Slot) (*AvailabilityResult, error) {
	if err := slot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	release := s.locks.Acquire(slot.LockKey())
	defer release()

	conflicts, err := s.bookings.ListConfirmedOverlapping(ctx, slot)
	if err != nil {
		return nil, err
	}
	hold, err := s.waitlist.currentHoldLocked(ctx, slot)
	if err != nil {
		return nil, err
	}
	return &AvailabilityResult{
		Available:    len(conflicts) == 0 && hold == nil,
		HeldForClaim: hold != nil,
		Conflicts:    conflicts,
	}, nil
}

// Create books the slot for the requester.  The availability check
// and the insert run under the slot lock, so two concurrent creates
// for overlapping intervals cannot both succeed.  The booking starts
// live but unconfirmed: an auto-cancel deadline is armed at event
// start minus two hours (or immediately when already inside that
// window), and a confirmation reminder at event start minus 24 hours.
func (s *BookingService) Create(ctx context.Context, slot model.Slot, requesterID uint64, eventName string) (*model.Booking, error) {
	if err := slot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	now := s.clk.Now()
	start := slot.StartAt()
	if !start.After(now) {
		return nil, fmt.Errorf("%w: cannot book a slot in the past", ErrValidation)
	}
	if start.Sub(now) > MaxAdvance {
		return nil, fmt.Errorf("%w: cannot book more than 90 days in advance", ErrValidation)
	}

	release := s.locks.Acquire(slot.LockKey())
	defer release()

	conflicts, err := s.bookings.ListConfirmedOverlapping(ctx, slot)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, repository.ErrSlotConflict
	}
	// The slot may be free of bookings yet reserved for a notified
	// waitlist entrant; direct creation must not steal the window.
	// The claimant themselves goes through Claim, never through here.
	hold, err := s.waitlist.currentHoldLocked(ctx, slot)
	if err != nil {
		return nil, err
	}
	if hold != nil {
		return nil, repository.ErrSlotConflict
	}

	b := &model.Booking{
		Slot:        slot,
		RequesterID: requesterID,
		EventName:   eventName,
		Status:      model.BookingStatusConfirmed,
		CreatedAt:   now,
	}

	remindAt := start.Add(-ReminderLead)
	immediateReminder := !remindAt.After(now)
	if immediateReminder {
		// Created inside the reminder window: the confirmation nudge
		// goes out right away instead of being scheduled.
		b.ReminderSent = true
		b.ReminderSentAt = &now
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}

	cancelAt := start.Add(-ConfirmLead)
	if cancelAt.Before(now) {
		cancelAt = now
	}
	if err := s.sched.Arm(ctx, model.JobKindAutoCancel, b.ID, cancelAt); err != nil {
		// Without the deadline row the booking could hold the slot
		// forever unconfirmed.  Release the slot instead of stranding
		// it.
		reason := "cancelled: could not schedule confirmation deadline"
		b.Status = model.BookingStatusCancelled
		b.CancelledAt = &now
		b.CancellationReason = &reason
		if uerr := s.bookings.Update(ctx, b); uerr != nil {
			log.Printf("booking %d: compensating cancel failed: %v", b.ID, uerr)
		}
		return nil, err
	}
	if !immediateReminder {
		// The reminder is a best-effort nudge; a failed arm must not
		// fail the booking.
		if err := s.sched.Arm(ctx, model.JobKindReminder, b.ID, remindAt); err != nil {
			log.Printf("booking %d: arming reminder failed: %v", b.ID, err)
		}
	}

	ev := newEvent(now, queue.KindBookingConfirmed, requesterID, slot,
		"Booking created",
		fmt.Sprintf("Your booking for %s is in. Confirm it before %s or it will be released.",
			slot, cancelAt.Format("15:04 MST")))
	ev.BookingID = b.ID
	s.sink.Notify(ctx, ev)
	if immediateReminder {
		rev := newEvent(now, queue.KindReminder, requesterID, slot,
			"Confirm your booking",
			fmt.Sprintf("Your event at %s starts soon. Please confirm the booking.", slot))
		rev.BookingID = b.ID
		s.sink.Notify(ctx, rev)
	}
	return b, nil
}

// Confirm marks the booking as confirmed by its owner and disarms the
// auto-cancel deadline.
func (s *BookingService) Confirm(ctx context.Context, bookingID, requesterID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.RequesterID != requesterID {
		return nil, repository.ErrForbidden
	}

	release := s.locks.Acquire(b.Slot.LockKey())
	defer release()

	// Re-read under the lock: a scheduler fire may have cancelled the
	// booking while we waited.
	b, err = s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Live() {
		return nil, repository.ErrAlreadyCancelled
	}
	if b.Confirmed {
		return nil, repository.ErrAlreadyConfirmed
	}

	now := s.clk.Now()
	b.Confirmed = true
	b.ConfirmedAt = &now
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}
	if err := s.sched.Disarm(ctx, model.JobKindAutoCancel, b.ID); err != nil {
		log.Printf("booking %d: disarming auto-cancel failed: %v", b.ID, err)
	}
	return b, nil
}

// Cancel transitions the booking to cancelled, disarms its deadlines
// and hands the freed slot to the waitlist.  Requesters may only
// cancel their own bookings and only until two hours before the event
// starts; SystemRequester bypasses both guards.
func (s *BookingService) Cancel(ctx context.Context, bookingID, requesterID uint64, reason string) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	system := requesterID == SystemRequester
	if !system && b.RequesterID != requesterID {
		return nil, repository.ErrForbidden
	}

	release := s.locks.Acquire(b.Slot.LockKey())
	defer release()

	b, err = s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Live() {
		return nil, repository.ErrAlreadyCancelled
	}
	now := s.clk.Now()
	if !system && b.Slot.StartAt().Sub(now) <= ConfirmLead {
		return nil, repository.ErrCancelWindowClosed
	}

	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &now
	b.CancellationReason = &reason
	b.AutoCancelled = system
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}
	s.disarmAll(ctx, b.ID)

	kind := queue.KindBookingCancelled
	title := "Booking cancelled"
	if system {
		kind = queue.KindAutoCancelled
		title = "Booking auto-cancelled"
	}
	ev := newEvent(now, kind, b.RequesterID, b.Slot, title,
		fmt.Sprintf("Your booking for %s was cancelled: %s", b.Slot, reason))
	ev.BookingID = b.ID
	s.sink.Notify(ctx, ev)

	if err := s.waitlist.promoteNextLocked(ctx, b.Slot); err != nil {
		log.Printf("booking %d: waitlist promotion after cancel failed: %v", b.ID, err)
	}
	return b, nil
}

// FireAutoCancel is the scheduler handler for the confirmation
// deadline.  It re-checks that the booking is still live and still
// unconfirmed before cancelling; a booking confirmed or cancelled in
// the meantime makes the fire a harmless no-op.
func (s *BookingService) FireAutoCancel(ctx context.Context, bookingID uint64) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil
		}
		return err
	}
	if !b.Live() || b.Confirmed {
		return nil // stale timer: confirmed or cancelled by other means
	}
	_, err = s.Cancel(ctx, bookingID, SystemRequester, model.AutoCancelReason)
	if err == repository.ErrAlreadyCancelled {
		return nil
	}
	return err
}

// FireReminder is the scheduler handler for the 24-hour confirmation
// reminder.  Late or duplicate fires no-op once the reminder is
// recorded as sent.  The write happens under the slot lock so a manual
// cancel or confirm committing concurrently is never overwritten with
// the stale pre-read copy.
func (s *BookingService) FireReminder(ctx context.Context, bookingID uint64) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil
		}
		return err
	}
	if !b.Live() || b.ReminderSent {
		return nil
	}

	release := s.locks.Acquire(b.Slot.LockKey())
	defer release()

	b, err = s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if !b.Live() || b.ReminderSent {
		return nil
	}
	now := s.clk.Now()
	b.ReminderSent = true
	b.ReminderSentAt = &now
	if err := s.bookings.Update(ctx, b); err != nil {
		return err
	}
	ev := newEvent(now, queue.KindReminder, b.RequesterID, b.Slot,
		"Confirm your booking",
		fmt.Sprintf("Your event at %s starts in a day. Please confirm the booking.", b.Slot))
	ev.BookingID = b.ID
	s.sink.Notify(ctx, ev)
	return nil
}

// GetMyBookings returns the requester's bookings, newest event first.
func (s *BookingService) GetMyBookings(ctx context.Context, requesterID uint64) ([]model.Booking, error) {
	return s.bookings.ListByRequester(ctx, requesterID)
}

func (s *BookingService) disarmAll(ctx context.Context, bookingID uint64) {
	if err := s.sched.Disarm(ctx, model.JobKindAutoCancel, bookingID); err != nil {
		log.Printf("booking %d: disarming auto-cancel failed: %v", bookingID, err)
	}
	if err := s.sched.Disarm(ctx, model.JobKindReminder, bookingID); err != nil {
		log.Printf("booking %d: disarming reminder failed: %v", bookingID, err)
	}
}
