// Package memory はテストとローカル実行用のインメモリ実装を提供する。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
)

// BookingStore はインメモリの予約ストア
type BookingStore struct {
	mu        sync.RWMutex
	bookings  map[string]*booking.Booking
	userIndex map[string][]string
	now       func() time.Time
}

// NewBookingStore は空のストアを作成する
func NewBookingStore() *BookingStore {
	return &BookingStore{
		bookings:  make(map[string]*booking.Booking),
		userIndex: make(map[string][]string),
		now:       time.Now,
	}
}

func (s *BookingStore) Put(ctx context.Context, b *booking.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[b.ID]; ok {
		return booking.ErrDuplicateBooking
	}
	s.bookings[b.ID] = b.Clone()
	s.userIndex[b.UserID] = append(s.userIndex[b.UserID], b.ID)
	return nil
}

func (s *BookingStore) Get(ctx context.Context, id string) (*booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (s *BookingStore) UpdateStatus(ctx context.Context, id string, change booking.StatusChange) (*booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	updated := current.Clone()
	if err := updated.TransitionTo(change, s.now()); err != nil {
		return nil, err
	}
	s.bookings[id] = updated
	return updated.Clone(), nil
}

func (s *BookingStore) ListByUser(ctx context.Context, userID string) ([]*booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userIndex[userID]
	result := make([]*booking.Booking, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.bookings[id].Clone())
	}
	sortNewestFirst(result)
	return result, nil
}

func (s *BookingStore) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*booking.Booking
	for _, b := range s.bookings {
		if b.IsPending() && b.CreatedAt.Before(cutoff) {
			result = append(result, b.Clone())
		}
	}
	// 古い順
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *BookingStore) ListUnreleased(ctx context.Context, limit int) ([]*booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*booking.Booking
	for _, b := range s.bookings {
		if b.HasUnreleasedHold() {
			result = append(result, b.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.Before(result[j].UpdatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *BookingStore) MarkReleased(ctx context.Context, id string) (*booking.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	updated := current.Clone()
	if err := updated.MarkReleased(s.now()); err != nil {
		return nil, err
	}
	s.bookings[id] = updated
	return updated.Clone(), nil
}

// Len は保存済みの予約数を返す
func (s *BookingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}

func sortNewestFirst(bs []*booking.Booking) {
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].CreatedAt.After(bs[j].CreatedAt) })
}

var _ booking.Repository = (*BookingStore)(nil)
