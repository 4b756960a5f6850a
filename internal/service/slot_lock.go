package service

import "sync"

// SlotLocks serializes every read-then-write of availability or queue
// state for one venue/date scope.  Bookings on different venues or
// dates never contend; overlapping intervals on the same venue and
// date always go through the same mutex, so "check availability, then
// insert" and "check notified, then claim" are atomic with respect to
// each other.
//
// Lock entries are never reaped: one mutex per venue-day ever touched
// is a negligible footprint next to the booking rows themselves.
type SlotLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSlotLocks returns an empty lock table.
func NewSlotLocks() *SlotLocks {
	return &SlotLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the scope identified by key is exclusively
// held and returns the release function, which must be called exactly
// once.
func (l *SlotLocks) Acquire(key string) (release func()) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
