package handler

import (
	"context"

	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
)

// BookingServiceInterface は予約サーガのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	ConfirmBooking(ctx context.Context, input application.ConfirmBookingInput) (*booking.Booking, error)
	CancelBooking(ctx context.Context, bookingID, userID string) error
	GetBooking(ctx context.Context, bookingID, userID string) (*booking.Booking, error)
	ListBookings(ctx context.Context, userID string) ([]*booking.Booking, error)
}

// ReadinessCheck は依存先の疎通確認
type ReadinessCheck func(ctx context.Context) error
