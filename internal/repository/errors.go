// Package repository provides MySQL data access for bookings,
// waitlist entries and scheduled jobs.  Sentinel error values defined
// here are shared with the service layer so that handlers can map
// each failure to the right HTTP status without string matching.
package repository

import "errors"

// ErrNotFound is returned when the requested booking or waitlist
// entry does not exist.  Handlers translate it to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller acts on a record owned by
// another requester.  Handlers translate it to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrSlotConflict is returned when availability was lost between the
// caller's check and the insert, including when the slot is held
// reserved for a notified waitlist entrant.  HTTP 409.
var ErrSlotConflict = errors.New("slot conflict")

// ErrAlreadyConfirmed is returned when confirming a booking that the
// requester already confirmed.  HTTP 409.
var ErrAlreadyConfirmed = errors.New("booking already confirmed")

// ErrAlreadyCancelled is returned when confirming or cancelling a
// booking that is already cancelled.  HTTP 409.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

// ErrAlreadyOnWaitlist is returned when the requester already has a
// live entry for the exact slot they are joining.  HTTP 409.
var ErrAlreadyOnWaitlist = errors.New("already on waitlist")

// ErrSlotNotFull is returned when joining a waitlist for a slot that
// is actually free; the caller should book it directly.  HTTP 400.
var ErrSlotNotFull = errors.New("slot is not fully booked")

// ErrNotNotified is returned when claiming an entry that does not
// hold an active claim window.  HTTP 400.
var ErrNotNotified = errors.New("waitlist entry not notified")

// ErrDeadlineExpired is returned when the claim window has closed,
// whether or not the expiry timer has fired yet.  HTTP 400.
var ErrDeadlineExpired = errors.New("claim deadline expired")

// ErrAlreadyTerminal is returned when leaving a waitlist entry that
// already reached a final state.  HTTP 409.
var ErrAlreadyTerminal = errors.New("waitlist entry already settled")

// ErrCancelWindowClosed is returned when a manual cancellation is
// attempted within two hours of the event start or after it.  HTTP 409.
var ErrCancelWindowClosed = errors.New("too late to cancel")
