package model

import "time"

// Booking status values.  A cancelled booking is never deleted; the
// row is kept as an audit trail and only transitions status.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// AutoCancelReason is recorded when the scheduler cancels a booking
// whose owner never confirmed it before the confirmation deadline.
const AutoCancelReason = "auto-cancelled: not confirmed"

// Booking records a reservation of one slot by one requester.
//
// A booking with Status confirmed and Confirmed false is live but
// unconfirmed: it holds the slot, yet it will be auto-cancelled two
// hours before the event starts unless the requester confirms it.
//
// Fields:
//
//	ID                 – primary key identifier.
//	Slot               – venue/date/time interval being booked.
//	RequesterID        – user who made the booking.
//	EventName          – optional title shown in notifications.
//	Status             – confirmed or cancelled.
//	Confirmed          – whether the requester confirmed attendance.
//	ConfirmedAt        – when the booking was confirmed (nullable).
//	CancelledAt        – when the booking was cancelled (nullable).
//	CancellationReason – reason supplied at cancellation (nullable).
//	AutoCancelled      – whether the system performed the cancellation.
//	ReminderSent       – whether the 24-hour reminder went out.
//	ReminderSentAt     – when the reminder went out (nullable).
//	CreatedAt          – creation timestamp.
type Booking struct {
	ID                 uint64     `json:"id"`
	Slot               Slot       `json:"slot"`
	RequesterID        uint64     `json:"requester_id"`
	EventName          string     `json:"event_name,omitempty"`
	Status             string     `json:"status"`
	Confirmed          bool       `json:"confirmed"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	AutoCancelled      bool       `json:"auto_cancelled"`
	ReminderSent       bool       `json:"reminder_sent"`
	ReminderSentAt     *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Live reports whether the booking still holds its slot.
func (b *Booking) Live() bool {
	return b.Status == BookingStatusConfirmed
}
