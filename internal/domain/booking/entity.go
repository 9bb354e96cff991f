package booking

import (
	"strings"
	"time"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// IsTerminal は終端状態かを返す
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusExpired
}

// IsValid は既知の状態かを返す
func (s Status) IsValid() bool {
	return s == StatusPending || s.IsTerminal()
}

// CanTransitionTo は PENDING から終端状態への遷移のみ許可する
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

// Booking は予約レコードを表す
type Booking struct {
	ID            string     `json:"booking_id"`
	EventID       string     `json:"event_id"`
	SeatNumber    string     `json:"seat_number"`
	UserID        string     `json:"user_id"`
	Status        Status     `json:"status"`
	ReservationID string     `json:"reservation_id,omitempty"`
	PaymentID     string     `json:"payment_id,omitempty"`
	Price         int64      `json:"price"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewBooking は座席確保済みの PENDING 予約を作成する
func NewBooking(id, eventID, seatNumber, userID, reservationID string, price int64, now time.Time) *Booking {
	now = now.UTC()
	return &Booking{
		ID:            id,
		EventID:       eventID,
		SeatNumber:    seatNumber,
		UserID:        userID,
		Status:        StatusPending,
		ReservationID: reservationID,
		Price:         price,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsOwnedBy は予約の所有者かを返す
func (b *Booking) IsOwnedBy(userID string) bool {
	return b.UserID == userID
}

// IsPending は予約が保留中かを返す
func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

// StatusChange は状態遷移の要求
type StatusChange struct {
	Status    Status
	PaymentID string
	// SeatReleased は在庫側で座席の解放が完了したかどうか。
	// CANCELLED/EXPIRED でも false の間は reservation_id を残し、後で解放を再試行する
	SeatReleased bool
}

// ToConfirmed は確定への遷移
func ToConfirmed(paymentID string) StatusChange {
	return StatusChange{Status: StatusConfirmed, PaymentID: paymentID}
}

// ToCancelled はキャンセルへの遷移。released は座席解放に成功したかどうか
func ToCancelled(released bool) StatusChange {
	return StatusChange{Status: StatusCancelled, SeatReleased: released}
}

// ToExpired は期限切れへの遷移。座席の解放後にのみ行う
func ToExpired() StatusChange {
	return StatusChange{Status: StatusExpired, SeatReleased: true}
}

// TransitionTo は状態を遷移させる。
// CONFIRMED では payment_id と confirmed_at を設定し、
// CANCELLED/EXPIRED では座席の解放が完了している場合のみ reservation_id を外す。
func (b *Booking) TransitionTo(change StatusChange, now time.Time) error {
	if !b.Status.CanTransitionTo(change.Status) {
		return ErrInvalidTransition
	}
	now = now.UTC()
	switch change.Status {
	case StatusConfirmed:
		if change.PaymentID == "" {
			return ErrPaymentIDRequired
		}
		b.PaymentID = change.PaymentID
		b.ConfirmedAt = &now
	case StatusCancelled, StatusExpired:
		if change.SeatReleased {
			b.ReservationID = ""
		}
	}
	b.Status = change.Status
	b.UpdatedAt = now
	return nil
}

// HasUnreleasedHold は終了した予約に解放されていない仮押さえが残っているかを返す
func (b *Booking) HasUnreleasedHold() bool {
	return (b.Status == StatusCancelled || b.Status == StatusExpired) && b.ReservationID != ""
}

// MarkReleased は残っていた仮押さえの解放完了を記録する
func (b *Booking) MarkReleased(now time.Time) error {
	if !b.HasUnreleasedHold() {
		return ErrNoUnreleasedHold
	}
	b.ReservationID = ""
	b.UpdatedAt = now.UTC()
	return nil
}

// Clone は予約のコピーを返す
func (b *Booking) Clone() *Booking {
	c := *b
	if b.ConfirmedAt != nil {
		t := *b.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}

// CreateParams は予約作成の入力
type CreateParams struct {
	EventID    string
	SeatNumber string
	UserID     string
	Price      int64
}

// Validate は予約作成の入力を検証する
func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.EventID) == "" {
		return ErrEventIDRequired
	}
	if strings.TrimSpace(p.SeatNumber) == "" {
		return ErrSeatNumberRequired
	}
	if strings.TrimSpace(p.UserID) == "" {
		return ErrUserIDRequired
	}
	if p.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}
