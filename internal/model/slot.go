package model

import (
	"errors"
	"fmt"
	"time"
)

// Date and time-of-day layouts used across the slot fields.  Times are
// stored as normalized strings so that lexicographic comparison matches
// chronological comparison within a single day.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot identifies one bookable unit: a venue on a date for a
// half-open [StartTime, EndTime) interval.  Exact equality of all
// four fields groups waitlist entries; interval overlap on the same
// venue and date detects booking conflicts.
type Slot struct {
	VenueID   uint64 `json:"venue_id"`
	Date      string `json:"date"`       // "2006-01-02"
	StartTime string `json:"start_time"` // "15:04"
	EndTime   string `json:"end_time"`   // "15:04"
}

// Validate checks that the slot fields parse and that the interval is
// non-empty.  It does not check booking-policy rules such as "not in
// the past"; those belong to the service layer where a clock is
// available.
func (s Slot) Validate() error {
	if s.VenueID == 0 {
		return errors.New("venue_id is required")
	}
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s.Date)
	}
	start, err := time.Parse(TimeLayout, s.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start_time %q: expected HH:MM", s.StartTime)
	}
	end, err := time.Parse(TimeLayout, s.EndTime)
	if err != nil {
		return fmt.Errorf("invalid end_time %q: expected HH:MM", s.EndTime)
	}
	if !end.After(start) {
		return errors.New("end_time must be after start_time")
	}
	return nil
}

// Overlaps reports whether two slots occupy intersecting intervals on
// the same venue and date.  Both slots must be validated; the string
// comparison is correct because HH:MM sorts chronologically.
func (s Slot) Overlaps(other Slot) bool {
	if s.VenueID != other.VenueID || s.Date != other.Date {
		return false
	}
	return s.StartTime < other.EndTime && other.StartTime < s.EndTime
}

// Equal reports exact slot identity, used for waitlist grouping.
func (s Slot) Equal(other Slot) bool {
	return s == other
}

// StartAt combines the date and start time into a UTC instant.
func (s Slot) StartAt() time.Time {
	t, _ := time.Parse(DateLayout+" "+TimeLayout, s.Date+" "+s.StartTime)
	return t.UTC()
}

// EndAt combines the date and end time into a UTC instant.
func (s Slot) EndAt() time.Time {
	t, _ := time.Parse(DateLayout+" "+TimeLayout, s.Date+" "+s.EndTime)
	return t.UTC()
}

// LockKey returns the serialization scope for this slot.  All slots on
// the same venue and date share one scope so that overlapping-interval
// checks are race free; slots on different venues or dates never
// contend.
func (s Slot) LockKey() string {
	return fmt.Sprintf("%d|%s", s.VenueID, s.Date)
}

// String renders the slot for logs and notification payloads.
func (s Slot) String() string {
	return fmt.Sprintf("venue %d on %s %s-%s", s.VenueID, s.Date, s.StartTime, s.EndTime)
}
