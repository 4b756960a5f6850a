package model

import "time"

// Waitlist entry states.  Claimed, expired and left are terminal.
const (
	WaitlistStateWaiting  = "waiting"
	WaitlistStateNotified = "notified"
	WaitlistStateClaimed  = "claimed"
	WaitlistStateExpired  = "expired"
	WaitlistStateLeft     = "left"
)

// ClaimWindow is how long a notified entrant holds the exclusive
// right to convert their entry into a booking.
const ClaimWindow = 15 * time.Minute

// WaitlistEntry is one requester waiting for an exact slot to free
// up.  Priority is the FIFO rank assigned at join time from a
// per-slot monotonic counter; it is never reused, so ordering stays
// unambiguous even after entries leave.
//
// At most one entry per slot may be in the notified state: that
// entry holds the active claim window and the slot is reserved for
// it until it claims, leaves, or the window expires.
type WaitlistEntry struct {
	ID            uint64     `json:"id"`
	Slot          Slot       `json:"slot"`
	RequesterID   uint64     `json:"requester_id"`
	Priority      int        `json:"priority"`
	State         string     `json:"state"`
	NotifiedAt    *time.Time `json:"notified_at,omitempty"`
	ClaimDeadline *time.Time `json:"claim_deadline,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Terminal reports whether the entry reached a final state.
func (e *WaitlistEntry) Terminal() bool {
	switch e.State {
	case WaitlistStateClaimed, WaitlistStateExpired, WaitlistStateLeft:
		return true
	}
	return false
}

// DeadlinePassed reports whether the claim window has closed as of
// now.  Entries that were never notified have no deadline.
func (e *WaitlistEntry) DeadlinePassed(now time.Time) bool {
	return e.ClaimDeadline != nil && now.After(*e.ClaimDeadline)
}

// TimeRemaining returns the seconds left in the claim window, for
// read models.  Zero for anything not currently notified.
func (e *WaitlistEntry) TimeRemaining(now time.Time) int64 {
	if e.State != WaitlistStateNotified || e.ClaimDeadline == nil {
		return 0
	}
	remaining := e.ClaimDeadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}
