// Package queue defines message payloads exchanged over the message
// broker and the background consumer that drains them.
package queue

// Notification kinds published by the booking and waitlist services.
const (
	KindBookingConfirmed = "booking_confirmed"
	KindBookingCancelled = "booking_cancelled"
	KindAutoCancelled    = "auto_cancelled"
	KindReminder         = "reminder"
	KindSlotAvailable    = "slot_available"
	KindClaimConfirmed   = "claim_confirmed"
)

// NotificationEvent is published whenever a booking or waitlist state
// transition should reach the requester.  It carries enough context
// for downstream consumers to render an email or in-app message
// without querying the primary database.  Delivery is fire-and-forget:
// a lost event never rolls back the transition that produced it.
type NotificationEvent struct {
	EventID     string `json:"event_id"`
	RequesterID uint64 `json:"requester_id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	VenueID     uint64 `json:"venue_id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	BookingID   uint64 `json:"booking_id,omitempty"`
	EntryID     uint64 `json:"entry_id,omitempty"`
	// DeadlineAt is set on slot_available events: the instant the
	// exclusive claim window closes, RFC 3339.
	DeadlineAt string `json:"deadline_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}
