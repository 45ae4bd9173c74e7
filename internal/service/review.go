package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-booking/internal/logger"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/google/uuid"
)

// ReviewPolicy configures which bookings qualify a user to review.
type ReviewPolicy struct {
	// RequireActiveBooking ignores cancelled bookings. When false any
	// booking, cancelled or not, qualifies.
	RequireActiveBooking bool
}

// ReviewGate decides whether a user may review an event.
type ReviewGate struct {
	bookings BookingCounter
	policy   ReviewPolicy
}

// NewReviewGate constructs a ReviewGate.
func NewReviewGate(bookings BookingCounter, policy ReviewPolicy) *ReviewGate {
	return &ReviewGate{bookings: bookings, policy: policy}
}

// Check returns ErrNotEligible unless email holds a qualifying booking for eventID.
func (g *ReviewGate) Check(ctx context.Context, email, eventID string) error {
	n, err := g.bookings.CountBookings(ctx, model.NormalizeEmail(email), eventID, g.policy.RequireActiveBooking)
	if err != nil {
		return fmt.Errorf("check review eligibility: %w", err)
	}
	if n == 0 {
		return ErrNotEligible
	}
	return nil
}

// ReviewService records and lists reviews.
type ReviewService struct {
	events  EventStore
	reviews ReviewStore
	gate    *ReviewGate
	clock   Clock
}

// NewReviewService constructs a ReviewService.
func NewReviewService(events EventStore, reviews ReviewStore, gate *ReviewGate, clock Clock) *ReviewService {
	return &ReviewService{events: events, reviews: reviews, gate: gate, clock: clock}
}

// SubmitReview stores the caller's review of an event they booked.
func (s *ReviewService) SubmitReview(ctx context.Context, caller model.Identity, eventID string, req model.SubmitReviewRequest) (*model.Review, error) {
	if caller.Email == "" {
		return nil, ErrForbidden
	}
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, caller.Email, eventID); err != nil {
		return nil, err
	}

	review := &model.Review{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserEmail: model.NormalizeEmail(caller.Email),
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: s.clock.Now(),
	}
	if err := s.reviews.InsertReview(ctx, review); err != nil {
		return nil, fmt.Errorf("submit review: %w", err)
	}

	logger.WithContext(ctx).Info("review submitted", "review_id", review.ID, "event_id", eventID, "rating", review.Rating)
	return review, nil
}

// ListReviews returns an event's reviews newest first.
func (s *ReviewService) ListReviews(ctx context.Context, eventID string) ([]model.Review, error) {
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.reviews.ListReviews(ctx, eventID)
}
