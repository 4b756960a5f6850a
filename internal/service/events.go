package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/venuehub/venue-booking/internal/model"
	"github.com/venuehub/venue-booking/internal/queue"
)

// newEvent assembles a notification payload for the given transition.
// Callers fill in booking/entry specifics before handing it to the
// sink.
func newEvent(now time.Time, kind string, requesterID uint64, slot model.Slot, title, message string) queue.NotificationEvent {
	return queue.NotificationEvent{
		EventID:     uuid.NewString(),
		RequesterID: requesterID,
		Kind:        kind,
		Title:       title,
		Message:     message,
		VenueID:     slot.VenueID,
		Date:        slot.Date,
		StartTime:   slot.StartTime,
		EndTime:     slot.EndTime,
		CreatedAt:   now.UTC().Format(time.RFC3339),
	}
}
