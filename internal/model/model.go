// Package model defines the core domain types for the event booking system.
package model

import "time"

// Event represents a bookable event published by an organizer.
// The reservation engine only reads events; capacity edits belong to the catalog.
type Event struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	Location             string     `json:"location"`
	StartsAt             *time.Time `json:"starts_at,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Capacity             int        `json:"capacity"`
	RegistrationFee      int64      `json:"registration_fee"`
	CreatedAt            time.Time  `json:"created_at"`
}

// RegistrationClosed reports whether the registration deadline has passed at now.
// Events without a deadline never close.
func (e *Event) RegistrationClosed(now time.Time) bool {
	return e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline)
}

// Remaining returns the number of seats left given the confirmed ticket total.
func (e *Event) Remaining(totalActive int) int {
	if left := e.Capacity - totalActive; left > 0 {
		return left
	}
	return 0
}

// EventView is an event as presented to clients, with its current seat count.
type EventView struct {
	Event
	SeatsLeft int `json:"seats_left"`
}

// EventSummary is the slice of an event joined onto booking listings.
type EventSummary struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name                 string     `json:"name" validate:"required,max=200"`
	Description          string     `json:"description" validate:"max=5000"`
	Location             string     `json:"location" validate:"max=200"`
	StartsAt             *time.Time `json:"starts_at"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	Capacity             int        `json:"capacity" validate:"gte=0,lte=100000"`
	RegistrationFee      int64      `json:"registration_fee" validate:"gte=0"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
