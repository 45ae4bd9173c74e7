package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewRepository handles persistence for reviews.
type ReviewRepository struct {
	db *pgxpool.Pool
}

// NewReviewRepository constructs a ReviewRepository.
func NewReviewRepository(db *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// InsertReview stores a review.
func (r *ReviewRepository) InsertReview(ctx context.Context, rv *model.Review) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO reviews (id, event_id, user_email, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rv.ID, rv.EventID, rv.UserEmail, rv.Rating, rv.Comment, rv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// ListReviews returns an event's reviews newest first.
func (r *ReviewRepository) ListReviews(ctx context.Context, eventID string) ([]model.Review, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT id, event_id, user_email, rating, comment, created_at
		 FROM reviews
		 WHERE event_id = $1
		 ORDER BY created_at DESC, id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.EventID, &rv.UserEmail, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
