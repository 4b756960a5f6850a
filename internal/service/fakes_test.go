package service

// In-memory store and sink implementations for the service tests.  They
// mirror the SQL repositories' contracts: Create fills in IDs, lookups
// return copies, GetByID returns ErrNotFound, and the queue lookups
// return nil rather than an error when nothing matches.

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/venuehub/venue-booking/internal/model"
	"github.com/venuehub/venue-booking/internal/queue"
	"github.com/venuehub/venue-booking/internal/repository"
)

type memBookings struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Booking
}

func newMemBookings() *memBookings {
	return &memBookings{nextID: 1, rows: make(map[uint64]model.Booking)}
}

func (m *memBookings) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.nextID
	m.nextID++
	m.rows[b.ID] = *b
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m *memBookings) Update(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[b.ID]; !ok {
		return repository.ErrNotFound
	}
	m.rows[b.ID] = *b
	return nil
}

func (m *memBookings) ListConfirmedOverlapping(_ context.Context, slot model.Slot) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.rows {
		if b.Status == model.BookingStatusConfirmed && slot.Overlaps(b.Slot) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) ListByRequester(_ context.Context, requesterID uint64) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.rows {
		if b.RequesterID == requesterID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memWaitlist struct {
	mu       sync.Mutex
	nextID   uint64
	rows     map[uint64]model.WaitlistEntry
	counters map[model.Slot]int
}

func newMemWaitlist() *memWaitlist {
	return &memWaitlist{
		nextID:   1,
		rows:     make(map[uint64]model.WaitlistEntry),
		counters: make(map[model.Slot]int),
	}
}

func (m *memWaitlist) NextPriority(_ context.Context, slot model.Slot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.counters[slot]
	m.counters[slot] = p + 1
	return p, nil
}

func (m *memWaitlist) Create(_ context.Context, e *model.WaitlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	m.rows[e.ID] = *e
	return nil
}

func (m *memWaitlist) GetByID(_ context.Context, id uint64) (*model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (m *memWaitlist) Update(_ context.Context, e *model.WaitlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ID]; !ok {
		return repository.ErrNotFound
	}
	m.rows[e.ID] = *e
	return nil
}

func (m *memWaitlist) FirstWaiting(_ context.Context, slot model.Slot) (*model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.WaitlistEntry
	for id := range m.rows {
		e := m.rows[id]
		if e.State != model.WaitlistStateWaiting || !e.Slot.Equal(slot) {
			continue
		}
		if best == nil || e.Priority < best.Priority {
			c := e
			best = &c
		}
	}
	return best, nil
}

func (m *memWaitlist) ActiveNotified(_ context.Context, slot model.Slot) (*model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.rows {
		e := m.rows[id]
		if e.State == model.WaitlistStateNotified && e.Slot.Equal(slot) {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *memWaitlist) ActiveNotifiedOverlapping(_ context.Context, slot model.Slot) ([]model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.WaitlistEntry
	for _, e := range m.rows {
		if e.State == model.WaitlistStateNotified && slot.Overlaps(e.Slot) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.StartTime < out[j].Slot.StartTime })
	return out, nil
}

func (m *memWaitlist) LiveByRequester(_ context.Context, slot model.Slot, requesterID uint64) (*model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.rows {
		e := m.rows[id]
		if e.RequesterID != requesterID || !e.Slot.Equal(slot) {
			continue
		}
		if e.State == model.WaitlistStateWaiting || e.State == model.WaitlistStateNotified {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *memWaitlist) ListByRequester(_ context.Context, requesterID uint64) ([]model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.WaitlistEntry
	for _, e := range m.rows {
		if e.RequesterID == requesterID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memSchedule struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.ScheduledJob
}

func newMemSchedule() *memSchedule {
	return &memSchedule{nextID: 1, rows: make(map[uint64]model.ScheduledJob)}
}

func (m *memSchedule) Arm(_ context.Context, job model.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.rows {
		if j.Kind == job.Kind && j.EntityID == job.EntityID {
			j.FireAt = job.FireAt
			m.rows[id] = j
			return nil
		}
	}
	job.ID = m.nextID
	m.nextID++
	m.rows[job.ID] = job
	return nil
}

func (m *memSchedule) Disarm(_ context.Context, kind string, entityID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.rows {
		if j.Kind == kind && j.EntityID == entityID {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *memSchedule) Due(_ context.Context, now time.Time) ([]model.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ScheduledJob
	for _, j := range m.rows {
		if !j.FireAt.After(now) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (m *memSchedule) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

// pending returns the armed job for kind+entity, or nil.
func (m *memSchedule) pending(kind string, entityID uint64) *model.ScheduledJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.rows {
		if j.Kind == kind && j.EntityID == entityID {
			c := j
			return &c
		}
	}
	return nil
}

// hookedBookings runs a one-shot callback after the next GetByID,
// simulating a concurrent writer committing between an unlocked read
// and the lock-guarded re-read.
type hookedBookings struct {
	*memBookings
	mu    sync.Mutex
	onGet func()
}

func (h *hookedBookings) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := h.memBookings.GetByID(ctx, id)
	h.mu.Lock()
	fn := h.onGet
	h.onGet = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return b, err
}

var errArmUnavailable = errors.New("deadline store unavailable")

// failingArms rejects Arm calls for one job kind, simulating the
// deadline store going away mid-request.
type failingArms struct {
	*memSchedule
	failKind string
}

func (f *failingArms) Arm(ctx context.Context, job model.ScheduledJob) error {
	if job.Kind == f.failKind {
		return errArmUnavailable
	}
	return f.memSchedule.Arm(ctx, job)
}

// memSink records every notification event in order.
type memSink struct {
	mu     sync.Mutex
	events []queue.NotificationEvent
}

func (s *memSink) Notify(_ context.Context, event queue.NotificationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *memSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

func (s *memSink) lastOfKind(kind string) *queue.NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Kind == kind {
			c := s.events[i]
			return &c
		}
	}
	return nil
}
