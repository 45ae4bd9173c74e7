package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// MemoryStore keeps events, bookings and reviews in process memory.
// It honours the same unit-of-work contract as the Postgres stores: LockEvent
// takes a per-event lock held until WithTx returns, writes made inside a unit
// of work are applied together on success and dropped on error.
type MemoryStore struct {
	mu       sync.RWMutex
	events   map[string]model.Event
	bookings map[string]model.Booking
	reviews  []model.Review
	locks    map[string]chan struct{}

	lockWait time.Duration
}

type memTx struct {
	held     []chan struct{}
	inserts  []model.Booking
	cancels  map[string]time.Time
	lockedBy map[string]bool
}

type memTxKey struct{}

// NewMemoryStore constructs an empty store. lockWait bounds how long
// LockEvent waits for a busy event before failing with ErrConflict.
func NewMemoryStore(lockWait time.Duration) *MemoryStore {
	return &MemoryStore{
		events:   make(map[string]model.Event),
		bookings: make(map[string]model.Booking),
		locks:    make(map[string]chan struct{}),
		lockWait: lockWait,
	}
}

func memTxFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

// ─── Event catalog ────────────────────────────────────────────────────────────

// CreateEvent inserts a new event.
func (s *MemoryStore) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = *e
	return nil
}

// ListEvents returns all events ordered by creation time descending.
func (s *MemoryStore) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetEvent returns a single event or ErrNotFound.
func (s *MemoryStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// ─── Ledger ───────────────────────────────────────────────────────────────────

// WithTx runs fn as one all-or-nothing unit of work.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if memTxFrom(ctx) != nil {
		return fn(ctx)
	}

	tx := &memTx{cancels: make(map[string]time.Time), lockedBy: make(map[string]bool)}
	defer func() {
		for i := len(tx.held) - 1; i >= 0; i-- {
			<-tx.held[i]
		}
	}()

	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range tx.inserts {
		s.bookings[b.ID] = b
	}
	for id, at := range tx.cancels {
		b := s.bookings[id]
		b.Status = model.BookingCancelled
		b.CancelledAt = &at
		s.bookings[id] = b
	}
	return nil
}

func (s *MemoryStore) eventLock(eventID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[eventID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[eventID] = ch
	}
	return ch
}

// LockEvent takes the per-event lock for the enclosing unit of work and
// returns the event.
func (s *MemoryStore) LockEvent(ctx context.Context, eventID string) (*model.Event, error) {
	tx := memTxFrom(ctx)
	if tx == nil {
		return nil, errors.New("lock event: no transaction in context")
	}
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	if !tx.lockedBy[eventID] {
		ch := s.eventLock(eventID)
		var timeout <-chan time.Time
		if s.lockWait > 0 {
			t := time.NewTimer(s.lockWait)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case ch <- struct{}{}:
		case <-timeout:
			return nil, ErrConflict
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		tx.held = append(tx.held, ch)
		tx.lockedBy[eventID] = true
	}

	return s.GetEvent(ctx, eventID)
}

// SumConfirmedTickets returns Σ tickets over confirmed bookings of an event,
// including writes pending in the caller's unit of work.
func (s *MemoryStore) SumConfirmedTickets(ctx context.Context, eventID string) (int, error) {
	tx := memTxFrom(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for id, b := range s.bookings {
		if b.EventID != eventID || b.Status != model.BookingConfirmed {
			continue
		}
		if tx != nil {
			if _, cancelled := tx.cancels[id]; cancelled {
				continue
			}
		}
		total += b.Tickets
	}
	if tx != nil {
		for _, b := range tx.inserts {
			if b.EventID == eventID {
				total += b.Tickets
			}
		}
	}
	return total, nil
}

// InsertBooking appends a booking to the ledger.
func (s *MemoryStore) InsertBooking(ctx context.Context, b *model.Booking) error {
	if tx := memTxFrom(ctx); tx != nil {
		tx.inserts = append(tx.inserts, *b)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = *b
	return nil
}

// GetBooking returns a booking or ErrNotFound.
func (s *MemoryStore) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// CancelBooking moves a confirmed booking to cancelled. It reports false,
// with no change, when the booking was already cancelled.
func (s *MemoryStore) CancelBooking(ctx context.Context, id string, at time.Time) (bool, error) {
	tx := memTxFrom(ctx)

	if tx == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}

	b, ok := s.bookings[id]
	if !ok {
		return false, ErrNotFound
	}
	if b.Status != model.BookingConfirmed {
		return false, nil
	}

	if tx != nil {
		if _, pending := tx.cancels[id]; pending {
			return false, nil
		}
		tx.cancels[id] = at
		return true, nil
	}

	b.Status = model.BookingCancelled
	b.CancelledAt = &at
	s.bookings[id] = b
	return true, nil
}

// ListBookingsByUser returns a user's bookings newest first, joined with
// their event summary.
func (s *MemoryStore) ListBookingsByUser(_ context.Context, email string) ([]model.BookingWithEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.BookingWithEvent
	for _, b := range s.bookings {
		if b.UserEmail != email {
			continue
		}
		summary := model.EventSummary{ID: b.EventID}
		if e, ok := s.events[b.EventID]; ok {
			summary.Name = e.Name
			summary.StartsAt = e.StartsAt
		}
		out = append(out, model.BookingWithEvent{Booking: b, Event: summary})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountBookings counts a user's bookings for an event, optionally only
// confirmed ones.
func (s *MemoryStore) CountBookings(_ context.Context, email, eventID string, activeOnly bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.bookings {
		if b.UserEmail != email || b.EventID != eventID {
			continue
		}
		if activeOnly && b.Status != model.BookingConfirmed {
			continue
		}
		n++
	}
	return n, nil
}

// ─── Reviews ──────────────────────────────────────────────────────────────────

// InsertReview stores a review.
func (s *MemoryStore) InsertReview(_ context.Context, rv *model.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, *rv)
	return nil
}

// ListReviews returns an event's reviews newest first.
func (s *MemoryStore) ListReviews(_ context.Context, eventID string) ([]model.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Review
	for i := len(s.reviews) - 1; i >= 0; i-- {
		if s.reviews[i].EventID == eventID {
			out = append(out, s.reviews[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
