// Package notifier delivers notification events to requesters.
// Delivery is fire-and-forget: errors are logged and returned for the
// caller's information, but the booking or waitlist transition that
// produced the event never rolls back because of them.
package notifier

import (
	"context"
	"log"

	"github.com/venuehub/venue-booking/internal/queue"
)

// Sink receives notification events.  Implementations must not block
// the request path longer than a single publish attempt and must
// tolerate being called concurrently.
type Sink interface {
	Notify(ctx context.Context, event queue.NotificationEvent)
}

// LogSink writes events to the process log.  It is the fallback when
// no broker is configured and keeps development setups dependency
// free.
type LogSink struct{}

// Notify logs the event.
func (LogSink) Notify(_ context.Context, event queue.NotificationEvent) {
	log.Printf("notify: kind=%s requester=%d %s", event.Kind, event.RequesterID, event.Message)
}
