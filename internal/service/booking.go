package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/logger"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultMaxAttempts = 5
	baseBackoff        = 10 * time.Millisecond
)

// BookingService admits, cancels and lists bookings.
type BookingService struct {
	ledger      LedgerStore
	clock       Clock
	maxAttempts int
	cache       SeatsCache
	publisher   BookingPublisher
	metrics     *metrics.Metrics
}

// BookingOption customises a BookingService.
type BookingOption func(*BookingService)

// WithClock overrides the system clock.
func WithClock(c Clock) BookingOption {
	return func(s *BookingService) { s.clock = c }
}

// WithMaxAttempts bounds how many times a conflicting unit of work is tried
// before the request fails with ErrContention.
func WithMaxAttempts(n int) BookingOption {
	return func(s *BookingService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithSeatsCache enables the seats-left display cache.
func WithSeatsCache(c SeatsCache) BookingOption {
	return func(s *BookingService) { s.cache = c }
}

// WithPublisher enables booking lifecycle messages.
func WithPublisher(p BookingPublisher) BookingOption {
	return func(s *BookingService) { s.publisher = p }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) BookingOption {
	return func(s *BookingService) { s.metrics = m }
}

// NewBookingService constructs a BookingService over the ledger.
func NewBookingService(ledger LedgerStore, opts ...BookingOption) *BookingService {
	s := &BookingService{
		ledger:      ledger,
		clock:       SystemClock(),
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBooking admits a reservation request and records the booking.
//
// Anonymous callers are refused up front. The remaining checks run in order:
// event exists, registration still open, at least one ticket, caller may book
// for user_email, remaining fields well formed, enough seats left. The
// capacity read and the insert happen under the event's lock, so concurrent
// admissions for one event apply one at a time and never exceed capacity.
// On failure the ledger is unchanged.
func (s *BookingService) CreateBooking(ctx context.Context, caller model.Identity, req model.CreateBookingRequest) (*model.Booking, error) {
	start := time.Now()
	b, err := s.createBooking(ctx, caller, req)
	s.metrics.ObserveAdmission(admissionOutcome(err), time.Since(start))

	log := logger.WithContext(ctx)
	switch {
	case err == nil:
		log.Info("booking admitted",
			"booking_id", b.ID, "event_id", b.EventID, "tickets", b.Tickets)
	case errors.Is(err, ErrContention):
		log.Warn("booking rejected under contention", "event_id", req.EventID, "error", err)
	default:
		log.Debug("booking rejected", "event_id", req.EventID, "error", err)
	}
	return b, err
}

func (s *BookingService) createBooking(ctx context.Context, caller model.Identity, req model.CreateBookingRequest) (*model.Booking, error) {
	if caller.Email == "" {
		return nil, ErrForbidden
	}

	req.UserEmail = model.NormalizeEmail(req.UserEmail)
	if req.UserEmail == "" {
		req.UserEmail = model.NormalizeEmail(caller.Email)
	}

	var booking *model.Booking
	err := s.retry(ctx, func() error {
		booking = nil
		return s.ledger.WithTx(ctx, func(txCtx context.Context) error {
			b, err := s.admit(txCtx, caller, req)
			if err != nil {
				return err
			}
			booking = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, booking.EventID)
	if s.publisher != nil {
		if err := s.publisher.BookingConfirmed(ctx, booking); err != nil {
			logger.WithContext(ctx).Error("failed to publish booking confirmed",
				"booking_id", booking.ID, "error", err)
		}
	}
	return booking, nil
}

// admit runs inside a unit of work. The remaining payload checks come after
// the ticket count so an unknown or closed event is reported first.
func (s *BookingService) admit(ctx context.Context, caller model.Identity, req model.CreateBookingRequest) (*model.Booking, error) {
	event, err := s.ledger.LockEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if event.RegistrationClosed(now) {
		return nil, ErrDeadlineExpired
	}
	if req.Tickets < 1 {
		return nil, fmt.Errorf("%w: ticket_count must be at least 1", ErrInvalidRequest)
	}
	if !caller.CanAccess(req.UserEmail) {
		return nil, ErrForbidden
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	total, err := s.ledger.SumConfirmedTickets(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	remaining := event.Capacity - total
	if req.Tickets > remaining {
		return nil, fmt.Errorf("%w: requested %d, remaining %d", ErrCapacityExceeded, req.Tickets, max(remaining, 0))
	}

	b := &model.Booking{
		ID:            uuid.NewString(),
		EventID:       event.ID,
		UserEmail:     req.UserEmail,
		Tickets:       req.Tickets,
		Phone:         req.Phone,
		PaymentMethod: req.PaymentMethod,
		Status:        model.BookingConfirmed,
		CreatedAt:     now,
	}
	if err := s.ledger.InsertBooking(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// CancelBooking moves a booking to cancelled, freeing its seats.
// Cancelling an already-cancelled booking succeeds without changes.
func (s *BookingService) CancelBooking(ctx context.Context, caller model.Identity, bookingID string) (*model.Booking, error) {
	b, err := s.ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(b.UserEmail) {
		return nil, ErrForbidden
	}
	if !b.IsActive() {
		s.metrics.IncCancellation(metrics.CancelAlreadyCancelled)
		return b, nil
	}

	now := s.clock.Now()
	var changed bool
	err = s.retry(ctx, func() error {
		return s.ledger.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := s.ledger.LockEvent(txCtx, b.EventID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			var err error
			changed, err = s.ledger.CancelBooking(txCtx, b.ID, now)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		// A concurrent cancel got there first.
		s.metrics.IncCancellation(metrics.CancelAlreadyCancelled)
		return s.ledger.GetBooking(ctx, b.ID)
	}

	b.Status = model.BookingCancelled
	b.CancelledAt = &now
	s.metrics.IncCancellation(metrics.CancelCancelled)
	s.invalidate(ctx, b.EventID)
	logger.WithContext(ctx).Info("booking cancelled",
		"booking_id", b.ID, "event_id", b.EventID, "tickets", b.Tickets)

	if s.publisher != nil {
		if err := s.publisher.BookingCancelled(ctx, b); err != nil {
			logger.WithContext(ctx).Error("failed to publish booking cancelled",
				"booking_id", b.ID, "error", err)
		}
	}
	return b, nil
}

// ListUserBookings returns the bookings of email. Callers may list their own
// bookings; admins may list anyone's.
func (s *BookingService) ListUserBookings(ctx context.Context, caller model.Identity, email string) ([]model.BookingWithEvent, error) {
	email = model.NormalizeEmail(email)
	if !caller.CanAccess(email) {
		return nil, ErrForbidden
	}
	return s.ledger.ListBookingsByUser(ctx, email)
}

// TotalActiveTickets returns the confirmed ticket total for an event as of
// the latest committed write.
func (s *BookingService) TotalActiveTickets(ctx context.Context, eventID string) (int, error) {
	return s.ledger.SumConfirmedTickets(ctx, eventID)
}

// RemainingSeats returns the seats left for display. It may be served from
// the cache and is never used for admission.
func (s *BookingService) RemainingSeats(ctx context.Context, event *model.Event) (int, error) {
	var generation int64
	fill := false
	if s.cache != nil {
		left, gen, ok, err := s.cache.Get(ctx, event.ID)
		switch {
		case err != nil:
			logger.WithContext(ctx).Warn("seats cache read failed", "event_id", event.ID, "error", err)
		case ok:
			return left, nil
		default:
			generation, fill = gen, true
		}
	}

	// The generation is read before the total, so a write committed after
	// this point bumps it and the fill below is discarded.
	total, err := s.TotalActiveTickets(ctx, event.ID)
	if err != nil {
		return 0, err
	}
	left := event.Remaining(total)

	if fill {
		if err := s.cache.SetIfCurrent(ctx, event.ID, left, generation); err != nil {
			logger.WithContext(ctx).Warn("seats cache write failed", "event_id", event.ID, "error", err)
		}
	}
	return left, nil
}

// retry runs op until it succeeds, fails with a non-conflict error, or the
// attempt budget is spent.
func (s *BookingService) retry(ctx context.Context, op func() error) error {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !errors.Is(err, repository.ErrConflict) {
			return err
		}
		if attempt >= s.maxAttempts {
			return fmt.Errorf("%w: gave up after %d attempts: %v", ErrContention, attempt, err)
		}
		s.metrics.IncRetry()

		// Linear backoff with jitter.
		wait := time.Duration(attempt)*baseBackoff + rand.N(baseBackoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *BookingService) invalidate(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		logger.WithContext(ctx).Warn("seats cache invalidate failed", "event_id", eventID, "error", err)
	}
}

func admissionOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeAdmitted
	case errors.Is(err, ErrCapacityExceeded):
		return metrics.OutcomeCapacityExceeded
	case errors.Is(err, ErrDeadlineExpired):
		return metrics.OutcomeDeadlineExpired
	case errors.Is(err, ErrInvalidRequest):
		return metrics.OutcomeInvalid
	case errors.Is(err, repository.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrContention):
		return metrics.OutcomeContention
	case errors.Is(err, ErrForbidden):
		return metrics.OutcomeForbidden
	default:
		return metrics.OutcomeError
	}
}
