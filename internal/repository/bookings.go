package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BookingRepository is the Postgres reservation ledger.
type BookingRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewBookingRepository constructs a BookingRepository. lockTimeout bounds how
// long a unit of work waits for an event lock before failing with ErrConflict;
// zero leaves the server default.
func NewBookingRepository(db *pgxpool.Pool, lockTimeout time.Duration) *BookingRepository {
	return &BookingRepository{db: db, lockTimeout: lockTimeout}
}

// WithTx runs fn as one all-or-nothing unit of work.
func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, r.lockTimeout, fn)
}

// LockEvent takes the per-event critical section and returns the event.
//
// ─────────────────────────────────────────────────────────────────────────────
// WHY THE EVENT ROW IS LOCKED
// ─────────────────────────────────────────────────────────────────────────────
//
// Admission is read-then-write: sum the confirmed tickets, compare with
// capacity, insert a booking. Two transactions reading the same sum before
// either inserts would both admit and overbook.
//
// SELECT … FOR UPDATE takes a row-level exclusive lock on the event that is
// held until COMMIT or ROLLBACK. Every admission and cancellation for the
// event takes it first, so they apply one at a time per event while other
// events proceed in parallel. The wait is bounded by lock_timeout; a timeout
// surfaces as ErrConflict.
//
// ─────────────────────────────────────────────────────────────────────────────
func (r *BookingRepository) LockEvent(ctx context.Context, eventID string) (*model.Event, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, errors.New("lock event: no transaction in context")
	}

	e, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify(fmt.Errorf("lock event row: %w", err))
	}
	return e, nil
}

// SumConfirmedTickets returns Σ ticket_count over confirmed bookings of an event.
func (r *BookingRepository) SumConfirmedTickets(ctx context.Context, eventID string) (int, error) {
	var total int
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COALESCE(SUM(ticket_count), 0)
		 FROM bookings
		 WHERE event_id = $1 AND status = 'confirmed'`,
		eventID,
	).Scan(&total)
	if err != nil {
		return 0, classify(fmt.Errorf("sum confirmed tickets: %w", err))
	}
	return total, nil
}

// InsertBooking appends a booking to the ledger.
func (r *BookingRepository) InsertBooking(ctx context.Context, b *model.Booking) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO bookings (id, event_id, user_email, ticket_count, phone, payment_method, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.EventID, b.UserEmail, b.Tickets, b.Phone, b.PaymentMethod, string(b.Status), b.CreatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert booking: %w", err))
	}
	return nil
}

const bookingColumns = `b.id, b.event_id, b.user_email, b.ticket_count, b.phone, b.payment_method,
	b.status, b.created_at, b.cancelled_at`

func scanBooking(row pgx.Row, extra ...any) (*model.Booking, error) {
	var b model.Booking
	var status string
	dest := append([]any{&b.ID, &b.EventID, &b.UserEmail, &b.Tickets, &b.Phone,
		&b.PaymentMethod, &status, &b.CreatedAt, &b.CancelledAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}

// GetBooking returns a booking or ErrNotFound.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// CancelBooking moves a confirmed booking to cancelled. It reports false,
// with no change, when the booking was already cancelled.
func (r *BookingRepository) CancelBooking(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE bookings
		 SET status = 'cancelled', cancelled_at = $2
		 WHERE id = $1 AND status = 'confirmed'`,
		id, at,
	)
	if err != nil {
		return false, classify(fmt.Errorf("cancel booking: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListBookingsByUser returns a user's bookings newest first, joined with
// their event summary.
func (r *BookingRepository) ListBookingsByUser(ctx context.Context, email string) ([]model.BookingWithEvent, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT `+bookingColumns+`, COALESCE(e.name, ''), e.starts_at
		 FROM bookings b
		 LEFT JOIN events e ON e.id = b.event_id
		 WHERE b.user_email = $1
		 ORDER BY b.created_at DESC, b.id`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []model.BookingWithEvent
	for rows.Next() {
		var name string
		var startsAt *time.Time
		b, err := scanBooking(rows, &name, &startsAt)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, model.BookingWithEvent{
			Booking: *b,
			Event:   model.EventSummary{ID: b.EventID, Name: name, StartsAt: startsAt},
		})
	}
	return out, rows.Err()
}

// CountBookings counts a user's bookings for an event, optionally only
// confirmed ones.
func (r *BookingRepository) CountBookings(ctx context.Context, email, eventID string, activeOnly bool) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM bookings
		 WHERE user_email = $1 AND event_id = $2
		   AND (NOT $3 OR status = 'confirmed')`,
		email, eventID, activeOnly,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}
