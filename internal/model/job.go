package model

import "time"

// Scheduled job kinds.  Each kind pairs with the entity the job acts
// on: auto_cancel and reminder reference a booking, claim_expiry a
// waitlist entry.
const (
	JobKindAutoCancel  = "auto_cancel"
	JobKindClaimExpiry = "claim_expiry"
	JobKindReminder    = "reminder"
)

// ScheduledJob is one durable deadline row.  Jobs survive process
// restarts; the scheduler sweep re-reads due rows from storage, so an
// in-process timer is only an eager optimization.  Every fire
// re-validates entity state before acting, which makes duplicate or
// late deliveries harmless.
type ScheduledJob struct {
	ID       uint64    `json:"id"`
	Kind     string    `json:"kind"`
	EntityID uint64    `json:"entity_id"`
	FireAt   time.Time `json:"fire_at"`
}
