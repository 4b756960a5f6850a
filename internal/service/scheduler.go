package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/venuehub/venue-booking/internal/clock"
	"github.com/venuehub/venue-booking/internal/model"
)

// Scheduler fires durable one-shot deadlines: auto-cancellation of
// unconfirmed bookings, claim-window expiry and confirmation
// reminders.  Deadlines live in a ScheduleStore, so they survive
// process restarts; the periodic sweep re-reads due rows from storage
// rather than trusting any in-memory timer state.
//
// Every registered handler re-validates entity state before acting.
// The sweep may therefore fire late, twice, or after the action was
// preempted by a manual request, and the outcome is still correct.
type Scheduler struct {
	store    ScheduleStore
	clk      clock.Clock
	interval time.Duration

	mu       sync.RWMutex
	handlers map[string]func(ctx context.Context, entityID uint64) error
}

// NewScheduler builds a scheduler sweeping at the given interval.
func NewScheduler(store ScheduleStore, clk clock.Clock, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		store:    store,
		clk:      clk,
		interval: interval,
		handlers: make(map[string]func(context.Context, uint64) error),
	}
}

// Register binds a job kind to its handler.  Must be called before
// Run; jobs of an unregistered kind are logged and dropped.
func (s *Scheduler) Register(kind string, fn func(ctx context.Context, entityID uint64) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = fn
}

// Arm schedules a one-shot job, replacing any pending deadline for
// the same kind and entity.
func (s *Scheduler) Arm(ctx context.Context, kind string, entityID uint64, fireAt time.Time) error {
	return s.store.Arm(ctx, model.ScheduledJob{Kind: kind, EntityID: entityID, FireAt: fireAt.UTC()})
}

// Disarm cancels a pending job.  Disarming a fired or unknown job is
// a no-op.
func (s *Scheduler) Disarm(ctx context.Context, kind string, entityID uint64) error {
	return s.store.Disarm(ctx, kind, entityID)
}

// Run sweeps due jobs until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("scheduler started: sweeping deadlines every %s", s.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep dispatches every job whose deadline has passed.  The row is
// deleted before dispatch: handlers are idempotent re-checks, so a
// handler failure is logged rather than retried in a tight loop.
func (s *Scheduler) Sweep(ctx context.Context) {
	due, err := s.store.Due(ctx, s.clk.Now())
	if err != nil {
		log.Printf("scheduler: fetching due jobs failed: %v", err)
		return
	}

	for _, job := range due {
		if err := s.store.Delete(ctx, job.ID); err != nil {
			log.Printf("scheduler: deleting job %d failed: %v", job.ID, err)
			continue
		}
		s.mu.RLock()
		fn := s.handlers[job.Kind]
		s.mu.RUnlock()
		if fn == nil {
			log.Printf("scheduler: no handler for kind %q, dropping job %d", job.Kind, job.ID)
			continue
		}
		if err := fn(ctx, job.EntityID); err != nil {
			log.Printf("scheduler: %s for entity %d failed: %v", job.Kind, job.EntityID, err)
		}
	}
}
