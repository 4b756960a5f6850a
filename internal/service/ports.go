// Package service implements the booking and waitlist lifecycle: slot
// availability, booking confirmation with auto-cancellation deadlines,
// and first-come-first-served waitlist promotion with time-boxed
// exclusive claim windows.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/venuehub/venue-booking/internal/model"
)

// Policy durations for the confirmation and reminder deadlines.
const (
	// ConfirmLead is how long before the event start an unconfirmed
	// booking is auto-cancelled.
	ConfirmLead = 2 * time.Hour
	// ReminderLead is how long before the event start the
	// confirmation reminder goes out.
	ReminderLead = 24 * time.Hour
	// MaxAdvance is the furthest ahead a booking may be placed.
	MaxAdvance = 90 * 24 * time.Hour
)

// SystemRequester is the requester ID used when the scheduler, rather
// than a user, performs a cancellation.  It bypasses ownership and
// cancellation-window checks.
const SystemRequester uint64 = 0

// ErrValidation wraps request-shape failures (malformed slots, dates
// in the past, bookings too far ahead).  Handlers map it to HTTP 400.
var ErrValidation = errors.New("invalid request")

// BookingStore is the persistence port for bookings.  Implementations
// need no internal locking for correctness: callers serialize all
// conflicting access through SlotLocks.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	Update(ctx context.Context, b *model.Booking) error
	ListConfirmedOverlapping(ctx context.Context, slot model.Slot) ([]model.Booking, error)
	ListByRequester(ctx context.Context, requesterID uint64) ([]model.Booking, error)
}

// WaitlistStore is the persistence port for waitlist entries and the
// per-slot priority counters.
type WaitlistStore interface {
	NextPriority(ctx context.Context, slot model.Slot) (int, error)
	Create(ctx context.Context, e *model.WaitlistEntry) error
	GetByID(ctx context.Context, id uint64) (*model.WaitlistEntry, error)
	Update(ctx context.Context, e *model.WaitlistEntry) error
	FirstWaiting(ctx context.Context, slot model.Slot) (*model.WaitlistEntry, error)
	ActiveNotified(ctx context.Context, slot model.Slot) (*model.WaitlistEntry, error)
	ActiveNotifiedOverlapping(ctx context.Context, slot model.Slot) ([]model.WaitlistEntry, error)
	LiveByRequester(ctx context.Context, slot model.Slot, requesterID uint64) (*model.WaitlistEntry, error)
	ListByRequester(ctx context.Context, requesterID uint64) ([]model.WaitlistEntry, error)
}

// ScheduleStore is the persistence port for durable deadline rows.
type ScheduleStore interface {
	Arm(ctx context.Context, job model.ScheduledJob) error
	Disarm(ctx context.Context, kind string, entityID uint64) error
	Due(ctx context.Context, now time.Time) ([]model.ScheduledJob, error)
	Delete(ctx context.Context, id uint64) error
}
