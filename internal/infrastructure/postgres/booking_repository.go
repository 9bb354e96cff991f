package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/transaction"
)

const bookingColumns = `id, event_id, seat_number, user_id, status,
	COALESCE(reservation_id, '') AS reservation_id, COALESCE(payment_id, '') AS payment_id,
	price, created_at, confirmed_at, updated_at`

type bookingRow struct {
	ID            string     `db:"id"`
	EventID       string     `db:"event_id"`
	SeatNumber    string     `db:"seat_number"`
	UserID        string     `db:"user_id"`
	Status        string     `db:"status"`
	ReservationID string     `db:"reservation_id"`
	PaymentID     string     `db:"payment_id"`
	Price         int64      `db:"price"`
	CreatedAt     time.Time  `db:"created_at"`
	ConfirmedAt   *time.Time `db:"confirmed_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// BookingRepository は PostgreSQL の予約ストア
type BookingRepository struct {
	db        *sqlx.DB
	txManager transaction.Manager
	now       func() time.Time
}

func NewBookingRepository(db *sqlx.DB, txm transaction.Manager) *BookingRepository {
	return &BookingRepository{db: db, txManager: txm, now: time.Now}
}

func (r *BookingRepository) Put(ctx context.Context, b *booking.Booking) error {
	query := `INSERT INTO bookings (id, event_id, seat_number, user_id, status, reservation_id, payment_id, price, created_at, confirmed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.EventID, b.SeatNumber, b.UserID, string(b.Status),
		b.ReservationID, b.PaymentID, b.Price, b.CreatedAt, b.ConfirmedAt, b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return booking.ErrDuplicateBooking
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// UpdateStatus は行ロックを取って現在の状態を検証してから更新する
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, change booking.StatusChange) (*booking.Booking, error) {
	return r.updateLocked(ctx, id, func(b *booking.Booking) error {
		return b.TransitionTo(change, r.now())
	})
}

// MarkReleased は解放待ちの仮押さえIDを外す
func (r *BookingRepository) MarkReleased(ctx context.Context, id string) (*booking.Booking, error) {
	return r.updateLocked(ctx, id, func(b *booking.Booking) error {
		return b.MarkReleased(r.now())
	})
}

func (r *BookingRepository) updateLocked(ctx context.Context, id string, apply func(*booking.Booking) error) (*booking.Booking, error) {
	var updated *booking.Booking
	err := WithTx(ctx, r.txManager, func(tx *sqlx.Tx) error {
		var row bookingRow
		if err := tx.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return booking.ErrBookingNotFound
			}
			return fmt.Errorf("予約取得に失敗: %w", err)
		}

		b := row.toEntity()
		if err := apply(b); err != nil {
			return err
		}

		query := `UPDATE bookings SET status = $1, reservation_id = NULLIF($2, ''), payment_id = NULLIF($3, ''),
			confirmed_at = $4, updated_at = $5 WHERE id = $6`
		if _, err := tx.ExecContext(ctx, query,
			string(b.Status), b.ReservationID, b.PaymentID, b.ConfirmedAt, b.UpdatedAt, b.ID,
		); err != nil {
			return fmt.Errorf("予約更新に失敗: %w", err)
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*booking.Booking, error) {
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *BookingRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*booking.Booking, error) {
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = $1 AND created_at < $2 ORDER BY created_at LIMIT $3`,
		string(booking.StatusPending), cutoff, limit,
	); err != nil {
		return nil, fmt.Errorf("期限切れ候補の取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *BookingRepository) ListUnreleased(ctx context.Context, limit int) ([]*booking.Booking, error) {
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE status IN ($1, $2) AND reservation_id IS NOT NULL ORDER BY updated_at LIMIT $3`,
		string(booking.StatusCancelled), string(booking.StatusExpired), limit,
	); err != nil {
		return nil, fmt.Errorf("解放待ち予約の取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (row *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID:            row.ID,
		EventID:       row.EventID,
		SeatNumber:    row.SeatNumber,
		UserID:        row.UserID,
		Status:        booking.Status(row.Status),
		ReservationID: row.ReservationID,
		PaymentID:     row.PaymentID,
		Price:         row.Price,
		CreatedAt:     row.CreatedAt.UTC(),
		ConfirmedAt:   row.ConfirmedAt,
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func toEntities(rows []bookingRow) []*booking.Booking {
	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

var _ booking.Repository = (*BookingRepository)(nil)
