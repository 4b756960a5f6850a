package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/venuehub/venue-booking/internal/model"
)

// WaitlistRepo provides data access to the waitlist_entries table and
// the per-slot priority counters.  Priorities come from a monotonic
// counter keyed by the exact slot; values are never reused even after
// entries leave, so FIFO ordering cannot collide.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a WaitlistRepo bound to the provided database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `id, venue_id, date, start_time, end_time, requester_id,
	priority, state, notified_at, claim_deadline, claimed_at, created_at`

// NextPriority reserves and returns the next FIFO rank for the exact
// slot.  The caller must hold the slot lock; the upsert itself is a
// single statement, so concurrent slots never interfere with each
// other's counters.
func (r *WaitlistRepo) NextPriority(ctx context.Context, slot model.Slot) (int, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO waitlist_counters (venue_id, date, start_time, end_time, next_priority)
		 VALUES (?, ?, ?, ?, 1)
		 ON DUPLICATE KEY UPDATE next_priority = next_priority + 1`,
		slot.VenueID, slot.Date, slot.StartTime, slot.EndTime,
	)
	if err != nil {
		return 0, err
	}
	var next int
	err = r.db.QueryRowContext(ctx,
		`SELECT next_priority FROM waitlist_counters
		 WHERE venue_id = ? AND date = ? AND start_time = ? AND end_time = ?`,
		slot.VenueID, slot.Date, slot.StartTime, slot.EndTime,
	).Scan(&next)
	if err != nil {
		return 0, err
	}
	// Counter stores the count handed out so far; ranks start at zero.
	return next - 1, nil
}

// Create inserts the entry and fills in its generated ID.
func (r *WaitlistRepo) Create(ctx context.Context, e *model.WaitlistEntry) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO waitlist_entries
		 (venue_id, date, start_time, end_time, requester_id, priority, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Slot.VenueID, e.Slot.Date, e.Slot.StartTime, e.Slot.EndTime,
		e.RequesterID, e.Priority, e.State, e.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// GetByID loads one entry.  Returns ErrNotFound when no row exists.
func (r *WaitlistRepo) GetByID(ctx context.Context, id uint64) (*model.WaitlistEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = ?`, id)
	e, err := scanWaitlistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Update persists the mutable entry fields.  Slot, requester and
// priority are immutable after creation.
func (r *WaitlistRepo) Update(ctx context.Context, e *model.WaitlistEntry) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE waitlist_entries
		 SET state = ?, notified_at = ?, claim_deadline = ?, claimed_at = ?
		 WHERE id = ?`,
		e.State, nullTime(e.NotifiedAt), nullTime(e.ClaimDeadline),
		nullTime(e.ClaimedAt), e.ID,
	)
	return err
}

// FirstWaiting returns the lowest-priority waiting entry for the exact
// slot, or nil when the queue is empty.
func (r *WaitlistRepo) FirstWaiting(ctx context.Context, slot model.Slot) (*model.WaitlistEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE venue_id = ? AND date = ? AND start_time = ? AND end_time = ?
		   AND state = ?
		 ORDER BY priority ASC
		 LIMIT 1`,
		slot.VenueID, slot.Date, slot.StartTime, slot.EndTime,
		model.WaitlistStateWaiting,
	)
	e, err := scanWaitlistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ActiveNotified returns the entry currently holding the claim window
// for the exact slot, or nil when no window is open.  At most one such
// entry can exist at a time.
func (r *WaitlistRepo) ActiveNotified(ctx context.Context, slot model.Slot) (*model.WaitlistEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE venue_id = ? AND date = ? AND start_time = ? AND end_time = ?
		   AND state = ?
		 LIMIT 1`,
		slot.VenueID, slot.Date, slot.StartTime, slot.EndTime,
		model.WaitlistStateNotified,
	)
	e, err := scanWaitlistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ActiveNotifiedOverlapping returns every notified entry whose interval
// intersects the given slot on the same venue and date.  A claim window
// reserves its whole interval, so conflict checks must see holds on
// overlapping slots, not just the exact key.  The half-open interval
// comparison mirrors model.Slot.Overlaps.
func (r *WaitlistRepo) ActiveNotifiedOverlapping(ctx context.Context, slot model.Slot) ([]model.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE venue_id = ? AND date = ? AND state = ?
		   AND start_time < ? AND end_time > ?
		 ORDER BY start_time`,
		slot.VenueID, slot.Date, model.WaitlistStateNotified,
		slot.EndTime, slot.StartTime,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// LiveByRequester returns the requester's non-terminal entry for the
// exact slot, or nil.  Used to reject duplicate joins.
func (r *WaitlistRepo) LiveByRequester(ctx context.Context, slot model.Slot, requesterID uint64) (*model.WaitlistEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE venue_id = ? AND date = ? AND start_time = ? AND end_time = ?
		   AND requester_id = ? AND state IN (?, ?)
		 LIMIT 1`,
		slot.VenueID, slot.Date, slot.StartTime, slot.EndTime,
		requesterID, model.WaitlistStateWaiting, model.WaitlistStateNotified,
	)
	e, err := scanWaitlistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ListByRequester returns all of the requester's entries, newest
// first, for the my-waitlist read model.
func (r *WaitlistRepo) ListByRequester(ctx context.Context, requesterID uint64) ([]model.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE requester_id = ?
		 ORDER BY created_at DESC, id DESC`,
		requesterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanWaitlistEntry(s scanner) (*model.WaitlistEntry, error) {
	var (
		e             model.WaitlistEntry
		notifiedAt    sql.NullTime
		claimDeadline sql.NullTime
		claimedAt     sql.NullTime
	)
	err := s.Scan(
		&e.ID, &e.Slot.VenueID, &e.Slot.Date, &e.Slot.StartTime, &e.Slot.EndTime,
		&e.RequesterID, &e.Priority, &e.State,
		&notifiedAt, &claimDeadline, &claimedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notifiedAt.Valid {
		t := notifiedAt.Time.UTC()
		e.NotifiedAt = &t
	}
	if claimDeadline.Valid {
		t := claimDeadline.Time.UTC()
		e.ClaimDeadline = &t
	}
	if claimedAt.Valid {
		t := claimedAt.Time.UTC()
		e.ClaimedAt = &t
	}
	return &e, nil
}
