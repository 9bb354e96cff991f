package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
)

// MockInventoryClient implements inventory.Client
type MockInventoryClient struct {
	mock.Mock
}

func (m *MockInventoryClient) ReserveSeat(ctx context.Context, eventID, seatNumber, userID string) (string, error) {
	args := m.Called(ctx, eventID, seatNumber, userID)
	return args.String(0), args.Error(1)
}

func (m *MockInventoryClient) ConfirmReservation(ctx context.Context, reservationID, userID, paymentID string) error {
	args := m.Called(ctx, reservationID, userID, paymentID)
	return args.Error(0)
}

func (m *MockInventoryClient) ReleaseSeat(ctx context.Context, eventID, seatNumber, userID string) error {
	args := m.Called(ctx, eventID, seatNumber, userID)
	return args.Error(0)
}

// MockBookingRepository implements booking.Repository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Put(ctx context.Context, b *booking.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) Get(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id string, change booking.StatusChange) (*booking.Booking, error) {
	args := m.Called(ctx, id, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID string) ([]*booking.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*booking.Booking, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListUnreleased(ctx context.Context, limit int) ([]*booking.Booking, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) MarkReleased(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

// MockEventPublisher implements booking.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic string, event booking.DomainEvent) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}
