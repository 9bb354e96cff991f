package booking

import "time"

// 予約イベントのトピック
const (
	TopicBookingCreated   = "booking.created"
	TopicBookingConfirmed = "booking.confirmed"
	TopicBookingCancelled = "booking.cancelled"
	TopicBookingExpired   = "booking.expired"
)

// DomainEvent は発行するイベント。type で種類を判別する平坦なJSON
type DomainEvent struct {
	Type       string `json:"type"`
	BookingID  string `json:"booking_id"`
	EventID    string `json:"event_id,omitempty"`
	PaymentID  string `json:"payment_id,omitempty"`
	UserID     string `json:"user_id"`
	SeatNumber string `json:"seat_number"`
	Timestamp  string `json:"timestamp"`
}

// NewEvent は予約からイベントを作る。confirmed は event_id の代わりに payment_id を持つ
func NewEvent(topic string, b *Booking, at time.Time) DomainEvent {
	ev := DomainEvent{
		Type:       topic,
		BookingID:  b.ID,
		UserID:     b.UserID,
		SeatNumber: b.SeatNumber,
		Timestamp:  at.UTC().Format(time.RFC3339),
	}
	if topic == TopicBookingConfirmed {
		ev.PaymentID = b.PaymentID
	} else {
		ev.EventID = b.EventID
	}
	return ev
}
