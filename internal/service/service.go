// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the storage layer: the event catalog, the
// inventory accountant that admits bookings, ledger operations, and the
// review gate.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-booking/internal/logger"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/google/uuid"
)

// SeatCounter reports the seats left for an event.
type SeatCounter interface {
	RemainingSeats(ctx context.Context, event *model.Event) (int, error)
}

// EventService orchestrates event catalog operations.
type EventService struct {
	events EventStore
	seats  SeatCounter
	clock  Clock
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, seats SeatCounter, clock Clock) *EventService {
	return &EventService{events: events, seats: seats, clock: clock}
}

// CreateEvent validates the request and stores a new event. Admins only.
func (s *EventService) CreateEvent(ctx context.Context, caller model.Identity, req model.CreateEventRequest) (*model.Event, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.RegistrationDeadline != nil && req.StartsAt != nil && req.RegistrationDeadline.After(*req.StartsAt) {
		return nil, fmt.Errorf("%w: registration_deadline must not be after starts_at", ErrInvalidRequest)
	}

	event := &model.Event{
		ID:                   uuid.NewString(),
		Name:                 req.Name,
		Description:          strings.TrimSpace(req.Description),
		Location:             strings.TrimSpace(req.Location),
		StartsAt:             req.StartsAt,
		RegistrationDeadline: req.RegistrationDeadline,
		Capacity:             req.Capacity,
		RegistrationFee:      req.RegistrationFee,
		CreatedAt:            s.clock.Now(),
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	logger.WithContext(ctx).Info("event created", "event_id", event.ID, "capacity", event.Capacity)
	return event, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.ListEvents(ctx)
}

// GetEvent returns a single event with its seats left.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.EventView, error) {
	if id == "" {
		return nil, repository.ErrNotFound
	}
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	left, err := s.seats.RemainingSeats(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("remaining seats: %w", err)
	}
	return &model.EventView{Event: *event, SeatsLeft: left}, nil
}
