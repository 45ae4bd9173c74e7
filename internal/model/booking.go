package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is one admitted reservation of Tickets seats for an event.
// Only Status (and CancelledAt with it) changes after creation, and only
// from confirmed to cancelled.
type Booking struct {
	ID            string        `json:"id"`
	EventID       string        `json:"event_id"`
	UserEmail     string        `json:"user_email"`
	Tickets       int           `json:"ticket_count"`
	Phone         string        `json:"phone,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
}

// IsActive reports whether the booking still holds seats.
func (b *Booking) IsActive() bool {
	return b.Status == BookingConfirmed
}

// BookingWithEvent is a booking listed together with its event summary.
type BookingWithEvent struct {
	Booking
	Event EventSummary `json:"event"`
}

// CreateBookingRequest is the payload for reserving seats.
// UserEmail defaults to the caller; only admins may book for someone else.
type CreateBookingRequest struct {
	EventID       string `json:"event_id" validate:"required,max=64"`
	Tickets       int    `json:"ticket_count"`
	UserEmail     string `json:"user_email" validate:"omitempty,email,max=254"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=card cash bank_transfer"`
}
