package model

import "time"

// Review is a user's rating of an event they booked.
type Review struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserEmail string    `json:"user_email"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitReviewRequest is the payload for posting a review.
type SubmitReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}
