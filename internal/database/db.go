package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the booking, waitlist and scheduler tables when
// they do not exist yet.  Dates and times-of-day are stored as fixed
// width strings so that range comparisons in SQL match the string
// comparisons done in Go.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			venue_id BIGINT UNSIGNED NOT NULL,
			date CHAR(10) NOT NULL,
			start_time CHAR(5) NOT NULL,
			end_time CHAR(5) NOT NULL,
			requester_id BIGINT UNSIGNED NOT NULL,
			event_name VARCHAR(200) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			confirmed TINYINT(1) NOT NULL DEFAULT 0,
			confirmed_at DATETIME NULL,
			cancelled_at DATETIME NULL,
			cancellation_reason TEXT NULL,
			auto_cancelled TINYINT(1) NOT NULL DEFAULT 0,
			reminder_sent TINYINT(1) NOT NULL DEFAULT 0,
			reminder_sent_at DATETIME NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (id),
			KEY idx_bookings_slot (venue_id, date, status),
			KEY idx_bookings_requester (requester_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS waitlist_entries (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			venue_id BIGINT UNSIGNED NOT NULL,
			date CHAR(10) NOT NULL,
			start_time CHAR(5) NOT NULL,
			end_time CHAR(5) NOT NULL,
			requester_id BIGINT UNSIGNED NOT NULL,
			priority INT NOT NULL,
			state VARCHAR(20) NOT NULL,
			notified_at DATETIME NULL,
			claim_deadline DATETIME NULL,
			claimed_at DATETIME NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (id),
			KEY idx_waitlist_slot_state (venue_id, date, start_time, end_time, state, priority),
			KEY idx_waitlist_requester (requester_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS waitlist_counters (
			venue_id BIGINT UNSIGNED NOT NULL,
			date CHAR(10) NOT NULL,
			start_time CHAR(5) NOT NULL,
			end_time CHAR(5) NOT NULL,
			next_priority INT NOT NULL,
			PRIMARY KEY (venue_id, date, start_time, end_time)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			kind VARCHAR(32) NOT NULL,
			entity_id BIGINT UNSIGNED NOT NULL,
			fire_at DATETIME NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_jobs_kind_entity (kind, entity_id),
			KEY idx_jobs_fire_at (fire_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
