package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/inventory"
)

type holdStatus int

const (
	holdReserved holdStatus = iota
	holdConfirmed
)

type seatKey struct {
	eventID    string
	seatNumber string
}

type hold struct {
	reservationID string
	key           seatKey
	userID        string
	status        holdStatus
	paymentID     string
}

// Inventory はインメモリの座席在庫。確保は座席単位で原子的に行う
type Inventory struct {
	mu           sync.Mutex
	seats        map[seatKey]*hold
	reservations map[string]*hold
}

// NewInventory は空の在庫を作成する
func NewInventory() *Inventory {
	return &Inventory{
		seats:        make(map[seatKey]*hold),
		reservations: make(map[string]*hold),
	}
}

func (i *Inventory) ReserveSeat(ctx context.Context, eventID, seatNumber, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", inventory.ErrUnavailable
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	key := seatKey{eventID: eventID, seatNumber: seatNumber}
	if _, held := i.seats[key]; held {
		return "", inventory.ErrSeatUnavailable
	}
	h := &hold{reservationID: uuid.NewString(), key: key, userID: userID}
	i.seats[key] = h
	i.reservations[h.reservationID] = h
	return h.reservationID, nil
}

func (i *Inventory) ConfirmReservation(ctx context.Context, reservationID, userID, paymentID string) error {
	if err := ctx.Err(); err != nil {
		return inventory.ErrUnavailable
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	h, ok := i.reservations[reservationID]
	if !ok {
		return inventory.ErrReservationNotFound
	}
	if h.userID != userID {
		return inventory.ErrRejected
	}
	if h.status == holdConfirmed {
		if h.paymentID == paymentID {
			return inventory.ErrAlreadyConfirmed
		}
		return inventory.ErrRejected
	}
	h.status = holdConfirmed
	h.paymentID = paymentID
	return nil
}

func (i *Inventory) ReleaseSeat(ctx context.Context, eventID, seatNumber, userID string) error {
	if err := ctx.Err(); err != nil {
		return inventory.ErrUnavailable
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	key := seatKey{eventID: eventID, seatNumber: seatNumber}
	h, ok := i.seats[key]
	// 空席と他ユーザーの座席は何もしない
	if !ok || h.userID != userID {
		return nil
	}
	if h.status == holdConfirmed {
		return inventory.ErrAlreadyConfirmed
	}
	delete(i.seats, key)
	delete(i.reservations, h.reservationID)
	return nil
}

// IsHeld は座席が確保（または確定）されているかを返す
func (i *Inventory) IsHeld(eventID, seatNumber string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.seats[seatKey{eventID: eventID, seatNumber: seatNumber}]
	return ok
}

// IsConfirmed は仮押さえが確定済みかを返す
func (i *Inventory) IsConfirmed(reservationID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	h, ok := i.reservations[reservationID]
	return ok && h.status == holdConfirmed
}

var _ inventory.Client = (*Inventory)(nil)
