package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var (
	alice = model.Identity{Email: "alice@example.com", Role: model.RoleUser}
	bob   = model.Identity{Email: "bob@example.com", Role: model.RoleUser}
	admin = model.Identity{Email: "admin@event.com", Role: model.RoleAdmin}
)

func newStore(t *testing.T, events ...model.Event) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore(5 * time.Second)
	for i := range events {
		require.NoError(t, store.CreateEvent(context.Background(), &events[i]))
	}
	return store
}

func newBookingService(ledger LedgerStore, opts ...BookingOption) *BookingService {
	return NewBookingService(ledger, append([]BookingOption{WithClock(fixedClock{testNow})}, opts...)...)
}

func book(eventID string, tickets int) model.CreateBookingRequest {
	return model.CreateBookingRequest{EventID: eventID, Tickets: tickets}
}

func TestBookingService_CreateBooking(t *testing.T) {
	ctx := context.Background()
	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	t.Run("admits within capacity", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 5})
		svc := newBookingService(store)

		b, err := svc.CreateBooking(ctx, alice, model.CreateBookingRequest{
			EventID: "e1", Tickets: 3, Phone: "+1 555 0100", PaymentMethod: "card",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, b.ID)
		assert.Equal(t, model.BookingConfirmed, b.Status)
		assert.Equal(t, "alice@example.com", b.UserEmail)
		assert.Equal(t, 3, b.Tickets)
		assert.Equal(t, testNow, b.CreatedAt)

		total, err := svc.TotalActiveTickets(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, 3, total)
	})

	t.Run("capacity scenario with cancellation", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 2})
		svc := newBookingService(store)

		a, err := svc.CreateBooking(ctx, alice, book("e1", 2))
		require.NoError(t, err)

		_, err = svc.CreateBooking(ctx, bob, book("e1", 1))
		require.ErrorIs(t, err, ErrCapacityExceeded)

		_, err = svc.CancelBooking(ctx, alice, a.ID)
		require.NoError(t, err)

		_, err = svc.CreateBooking(ctx, bob, book("e1", 1))
		require.NoError(t, err)

		total, err := svc.TotalActiveTickets(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("deadline passed rejects even with seats left", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 10, RegistrationDeadline: &past})
		svc := newBookingService(store)

		_, err := svc.CreateBooking(ctx, alice, book("e1", 1))
		assert.ErrorIs(t, err, ErrDeadlineExpired)
	})

	t.Run("deadline in the future admits", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 10, RegistrationDeadline: &future})
		svc := newBookingService(store)

		_, err := svc.CreateBooking(ctx, alice, book("e1", 1))
		assert.NoError(t, err)
	})

	t.Run("preconditions are checked in order", func(t *testing.T) {
		store := newStore(t,
			model.Event{ID: "open", Capacity: 10},
			model.Event{ID: "closed", Capacity: 10, RegistrationDeadline: &past},
		)
		svc := newBookingService(store)

		_, err := svc.CreateBooking(ctx, alice, book("missing", 0))
		assert.ErrorIs(t, err, repository.ErrNotFound)

		_, err = svc.CreateBooking(ctx, alice, book("closed", 0))
		assert.ErrorIs(t, err, ErrDeadlineExpired)

		_, err = svc.CreateBooking(ctx, alice, book("open", 0))
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, err = svc.CreateBooking(ctx, alice, book("open", -3))
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("malformed fields are invalid", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 10})
		svc := newBookingService(store)

		_, err := svc.CreateBooking(ctx, alice, model.CreateBookingRequest{EventID: "e1", Tickets: 1, Phone: strings.Repeat("9", 40)})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, err = svc.CreateBooking(ctx, alice, model.CreateBookingRequest{EventID: "e1", Tickets: 1, PaymentMethod: "barter"})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, err = svc.CreateBooking(ctx, admin, model.CreateBookingRequest{EventID: "e1", Tickets: 1, UserEmail: "not-an-email"})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown or closed event is reported before payload problems", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "closed", Capacity: 10, RegistrationDeadline: &past})
		svc := newBookingService(store)

		for _, req := range []model.CreateBookingRequest{
			{Tickets: 1},
			{EventID: "missing", Tickets: 1, UserEmail: "not-an-email"},
			{EventID: "missing", Tickets: 1, UserEmail: "bob@example.com"},
			{EventID: "missing", Tickets: 1, PaymentMethod: "barter"},
		} {
			_, err := svc.CreateBooking(ctx, alice, req)
			assert.ErrorIs(t, err, repository.ErrNotFound, "%+v", req)
		}

		_, err := svc.CreateBooking(ctx, alice, model.CreateBookingRequest{
			EventID: "closed", Tickets: 1, UserEmail: "bob@example.com", PaymentMethod: "barter",
		})
		assert.ErrorIs(t, err, ErrDeadlineExpired)
	})

	t.Run("zero capacity admits nothing", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 0})
		svc := newBookingService(store)

		_, err := svc.CreateBooking(ctx, alice, book("e1", 1))
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})

	t.Run("booking for someone else requires admin", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 10})
		svc := newBookingService(store)

		req := book("e1", 1)
		req.UserEmail = "Bob@Example.com"

		_, err := svc.CreateBooking(ctx, alice, req)
		assert.ErrorIs(t, err, ErrForbidden)

		b, err := svc.CreateBooking(ctx, admin, req)
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", b.UserEmail)
	})

	t.Run("unauthenticated caller is forbidden", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 10})
		svc := newBookingService(store)

		_, err := svc.CreateBooking(ctx, model.Identity{}, book("e1", 1))
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestBookingService_ConcurrentAdmission(t *testing.T) {
	const capacity, requests = 10, 60

	store := newStore(t, model.Event{ID: "e1", Capacity: capacity})
	svc := newBookingService(store)

	var admitted, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := model.Identity{Email: fmt.Sprintf("user%d@example.com", i), Role: model.RoleUser}
			<-start
			_, err := svc.CreateBooking(context.Background(), caller, book("e1", 1))
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, ErrCapacityExceeded):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(capacity), admitted.Load())
	assert.Equal(t, int32(requests-capacity), rejected.Load())

	total, err := svc.TotalActiveTickets(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, capacity, total)
}

func TestBookingService_ConcurrentEventsDoNotBlockEachOther(t *testing.T) {
	store := newStore(t, model.Event{ID: "slow", Capacity: 1}, model.Event{ID: "fast", Capacity: 1})
	svc := newBookingService(store)
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithTx(ctx, func(txCtx context.Context) error {
			_, _ = store.LockEvent(txCtx, "slow")
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer close(release)

	done := make(chan error, 1)
	go func() {
		_, err := svc.CreateBooking(ctx, alice, book("fast", 1))
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("admission on an unrelated event was blocked")
	}
}

// conflictingLedger fails the first n units of work with ErrConflict.
type conflictingLedger struct {
	LedgerStore
	failures int
	calls    int
}

func (l *conflictingLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	l.calls++
	if l.calls <= l.failures {
		return fmt.Errorf("%w: lock wait timeout", repository.ErrConflict)
	}
	return l.LedgerStore.WithTx(ctx, fn)
}

func TestBookingService_Contention(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient conflicts", func(t *testing.T) {
		ledger := &conflictingLedger{LedgerStore: newStore(t, model.Event{ID: "e1", Capacity: 1}), failures: 2}
		svc := newBookingService(ledger, WithMaxAttempts(3))

		_, err := svc.CreateBooking(ctx, alice, book("e1", 1))
		require.NoError(t, err)
		assert.Equal(t, 3, ledger.calls)
	})

	t.Run("gives up with ErrContention", func(t *testing.T) {
		ledger := &conflictingLedger{LedgerStore: newStore(t, model.Event{ID: "e1", Capacity: 1}), failures: 100}
		svc := newBookingService(ledger, WithMaxAttempts(3))

		_, err := svc.CreateBooking(ctx, alice, book("e1", 1))
		require.ErrorIs(t, err, ErrContention)
		assert.Equal(t, 3, ledger.calls)

		total, err := svc.TotalActiveTickets(ctx, "e1")
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("busy event lock surfaces as contention", func(t *testing.T) {
		store := repository.NewMemoryStore(5 * time.Millisecond)
		require.NoError(t, store.CreateEvent(ctx, &model.Event{ID: "e1", Capacity: 1}))
		svc := newBookingService(store, WithMaxAttempts(2))

		locked := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = store.WithTx(ctx, func(txCtx context.Context) error {
				_, _ = store.LockEvent(txCtx, "e1")
				close(locked)
				<-release
				return nil
			})
		}()
		<-locked

		_, err := svc.CreateBooking(ctx, alice, book("e1", 1))
		assert.ErrorIs(t, err, ErrContention)

		close(release)
		<-done

		_, err = svc.CreateBooking(ctx, alice, book("e1", 1))
		assert.NoError(t, err)
	})
}

func TestBookingService_CancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 5})
		svc := newBookingService(store)

		b, err := svc.CreateBooking(ctx, alice, book("e1", 2))
		require.NoError(t, err)

		first, err := svc.CancelBooking(ctx, alice, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, first.Status)
		require.NotNil(t, first.CancelledAt)

		second, err := svc.CancelBooking(ctx, alice, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, second.Status)
		assert.Equal(t, *first.CancelledAt, *second.CancelledAt)

		total, err := svc.TotalActiveTickets(ctx, "e1")
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("frees exactly the booking's tickets", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 5})
		svc := newBookingService(store)

		three, err := svc.CreateBooking(ctx, alice, book("e1", 3))
		require.NoError(t, err)
		_, err = svc.CreateBooking(ctx, bob, book("e1", 2))
		require.NoError(t, err)

		_, err = svc.CreateBooking(ctx, bob, book("e1", 1))
		require.ErrorIs(t, err, ErrCapacityExceeded)

		_, err = svc.CancelBooking(ctx, alice, three.ID)
		require.NoError(t, err)

		_, err = svc.CreateBooking(ctx, bob, book("e1", 4))
		require.ErrorIs(t, err, ErrCapacityExceeded)
		_, err = svc.CreateBooking(ctx, bob, book("e1", 3))
		require.NoError(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		svc := newBookingService(newStore(t))
		_, err := svc.CancelBooking(ctx, alice, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("only owner or admin", func(t *testing.T) {
		store := newStore(t, model.Event{ID: "e1", Capacity: 5})
		svc := newBookingService(store)

		b, err := svc.CreateBooking(ctx, alice, book("e1", 1))
		require.NoError(t, err)

		_, err = svc.CancelBooking(ctx, bob, b.ID)
		require.ErrorIs(t, err, ErrForbidden)

		got, err := store.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, got.Status)

		_, err = svc.CancelBooking(ctx, admin, b.ID)
		require.NoError(t, err)
	})
}

func TestBookingService_ListUserBookings(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, model.Event{ID: "e1", Name: "Gala", Capacity: 5})
	svc := newBookingService(store)

	_, err := svc.CreateBooking(ctx, alice, book("e1", 1))
	require.NoError(t, err)

	list, err := svc.ListUserBookings(ctx, alice, "ALICE@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Gala", list[0].Event.Name)

	_, err = svc.ListUserBookings(ctx, bob, alice.Email)
	assert.ErrorIs(t, err, ErrForbidden)

	list, err = svc.ListUserBookings(ctx, admin, alice.Email)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type memCache struct {
	mu          sync.Mutex
	values      map[string]int
	generations map[string]int64
	invalidated []string

	// beforeSet, when set, runs at the start of every SetIfCurrent.
	beforeSet func()
}

func newMemCache() *memCache {
	return &memCache{values: map[string]int{}, generations: map[string]int64{}}
}

func (c *memCache) Get(_ context.Context, id string) (int, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[id]
	return v, c.generations[id], ok, nil
}

func (c *memCache) SetIfCurrent(_ context.Context, id string, n int, gen int64) error {
	if c.beforeSet != nil {
		c.beforeSet()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[id] == gen {
		c.values[id] = n
	}
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[id]++
	delete(c.values, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type recordingPublisher struct {
	confirmed []string
	cancelled []string
}

func (p *recordingPublisher) BookingConfirmed(_ context.Context, b *model.Booking) error {
	p.confirmed = append(p.confirmed, b.ID)
	return nil
}

func (p *recordingPublisher) BookingCancelled(_ context.Context, b *model.Booking) error {
	p.cancelled = append(p.cancelled, b.ID)
	return errors.New("broker down")
}

func TestBookingService_SideEffects(t *testing.T) {
	ctx := context.Background()
	event := model.Event{ID: "e1", Capacity: 5}
	store := newStore(t, event)
	cache := newMemCache()
	pub := &recordingPublisher{}
	svc := newBookingService(store, WithSeatsCache(cache), WithPublisher(pub))

	left, err := svc.RemainingSeats(ctx, &event)
	require.NoError(t, err)
	assert.Equal(t, 5, left)
	assert.Equal(t, 5, cache.values["e1"])

	b, err := svc.CreateBooking(ctx, alice, book("e1", 2))
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, pub.confirmed)
	assert.NotContains(t, cache.values, "e1")

	left, err = svc.RemainingSeats(ctx, &event)
	require.NoError(t, err)
	assert.Equal(t, 3, left)

	// Publish failures do not fail the cancellation.
	_, err = svc.CancelBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	_, err = svc.CancelBooking(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, pub.cancelled)
	assert.Equal(t, []string{"e1", "e1"}, cache.invalidated)
}

func TestBookingService_CacheFillRacingBooking(t *testing.T) {
	ctx := context.Background()
	event := model.Event{ID: "e1", Capacity: 5}
	store := newStore(t, event)
	cache := newMemCache()
	svc := newBookingService(store, WithSeatsCache(cache))

	// Hold the first fill after the reader has computed 5 seats left.
	filling := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	cache.beforeSet = func() {
		once.Do(func() {
			close(filling)
			<-release
		})
	}

	readerDone := make(chan int)
	go func() {
		left, err := svc.RemainingSeats(ctx, &event)
		assert.NoError(t, err)
		readerDone <- left
	}()

	<-filling
	_, err := svc.CreateBooking(ctx, alice, book("e1", 2))
	require.NoError(t, err)
	close(release)
	assert.Equal(t, 5, <-readerDone)

	total, err := svc.TotalActiveTickets(ctx, "e1")
	require.NoError(t, err)
	left, err := svc.RemainingSeats(ctx, &event)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 3, left, "seats left must reflect the completed booking")
	assert.Equal(t, 3, cache.values["e1"])
}
