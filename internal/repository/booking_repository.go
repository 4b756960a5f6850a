package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/venuehub/venue-booking/internal/model"
)

// BookingRepo provides data access to the bookings table.  Rows are
// never deleted: cancellation only transitions status, keeping the
// full audit trail.  All timestamps are stored and compared in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, venue_id, date, start_time, end_time, requester_id, event_name,
	status, confirmed, confirmed_at, cancelled_at, cancellation_reason,
	auto_cancelled, reminder_sent, reminder_sent_at, created_at`

// Create inserts the booking and fills in its generated ID.  The
// caller must hold the slot lock so that the availability check it
// performed beforehand is still valid at insert time.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings
		 (venue_id, date, start_time, end_time, requester_id, event_name,
		  status, confirmed, confirmed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Slot.VenueID, b.Slot.Date, b.Slot.StartTime, b.Slot.EndTime,
		b.RequesterID, b.EventName, b.Status, b.Confirmed,
		nullTime(b.ConfirmedAt), b.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID loads one booking.  Returns ErrNotFound when no row exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// Update persists the mutable booking fields.  The slot and requester
// are immutable after creation.
func (r *BookingRepo) Update(ctx context.Context, b *model.Booking) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings
		 SET status = ?, confirmed = ?, confirmed_at = ?, cancelled_at = ?,
		     cancellation_reason = ?, auto_cancelled = ?, reminder_sent = ?,
		     reminder_sent_at = ?
		 WHERE id = ?`,
		b.Status, b.Confirmed, nullTime(b.ConfirmedAt), nullTime(b.CancelledAt),
		nullString(b.CancellationReason), b.AutoCancelled, b.ReminderSent,
		nullTime(b.ReminderSentAt), b.ID,
	)
	return err
}

// ListConfirmedOverlapping returns every live booking whose interval
// intersects the given slot on the same venue and date.  The half-open
// interval comparison mirrors model.Slot.Overlaps.
func (r *BookingRepo) ListConfirmedOverlapping(ctx context.Context, slot model.Slot) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE venue_id = ? AND date = ? AND status = ?
		   AND start_time < ? AND end_time > ?
		 ORDER BY start_time`,
		slot.VenueID, slot.Date, model.BookingStatusConfirmed,
		slot.EndTime, slot.StartTime,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListByRequester returns the requester's bookings, most recent event
// first.
func (r *BookingRepo) ListByRequester(ctx context.Context, requesterID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE requester_id = ?
		 ORDER BY date DESC, start_time DESC`,
		requesterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*model.Booking, error) {
	var (
		b                  model.Booking
		confirmedAt        sql.NullTime
		cancelledAt        sql.NullTime
		cancellationReason sql.NullString
		reminderSentAt     sql.NullTime
	)
	err := s.Scan(
		&b.ID, &b.Slot.VenueID, &b.Slot.Date, &b.Slot.StartTime, &b.Slot.EndTime,
		&b.RequesterID, &b.EventName, &b.Status, &b.Confirmed,
		&confirmedAt, &cancelledAt, &cancellationReason,
		&b.AutoCancelled, &b.ReminderSent, &reminderSentAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		b.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		b.CancelledAt = &t
	}
	if cancellationReason.Valid {
		b.CancellationReason = &cancellationReason.String
	}
	if reminderSentAt.Valid {
		t := reminderSentAt.Time.UTC()
		b.ReminderSentAt = &t
	}
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
