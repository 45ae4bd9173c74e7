package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// EventStore is the event catalog as seen by the services.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
}

// LedgerStore is the reservation ledger.
//
// LockEvent must be called inside WithTx; it serialises units of work per
// event until WithTx returns. Retryable clashes surface as
// repository.ErrConflict with no changes applied.
type LedgerStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockEvent(ctx context.Context, eventID string) (*model.Event, error)
	SumConfirmedTickets(ctx context.Context, eventID string) (int, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	CancelBooking(ctx context.Context, id string, at time.Time) (bool, error)
	ListBookingsByUser(ctx context.Context, email string) ([]model.BookingWithEvent, error)
	BookingCounter
}

// BookingCounter answers review-eligibility lookups.
type BookingCounter interface {
	CountBookings(ctx context.Context, email, eventID string, activeOnly bool) (int, error)
}

// ReviewStore persists reviews.
type ReviewStore interface {
	InsertReview(ctx context.Context, r *model.Review) error
	ListReviews(ctx context.Context, eventID string) ([]model.Review, error)
}

// SeatsCache caches the display-only seats-left figure per event.
//
// Every Invalidate bumps the event's generation. Get reports the generation
// current at read time, and SetIfCurrent stores a figure only while that
// generation is still current, so a fill computed before a write cannot
// land after the write's invalidation.
type SeatsCache interface {
	Get(ctx context.Context, eventID string) (seatsLeft int, generation int64, ok bool, err error)
	SetIfCurrent(ctx context.Context, eventID string, seatsLeft int, generation int64) error
	Invalidate(ctx context.Context, eventID string) error
}

// BookingPublisher announces booking lifecycle changes to other services.
type BookingPublisher interface {
	BookingConfirmed(ctx context.Context, b *model.Booking) error
	BookingCancelled(ctx context.Context, b *model.Booking) error
}

// Clock allows injecting time into the services.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
