package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/errs"
)

const (
	bookingKeyPrefix     = "booking:"
	userBookingKeyPrefix = "user_bookings:"
	pendingBookingsKey   = "bookings:pending"
	// 座席解放に失敗した終端予約。スコアは更新日時
	unreleasedBookingsKey = "bookings:unreleased"

	updateLockTTL     = 5 * time.Second
	updateLockRetries = 5
	updateLockDelay   = 20 * time.Millisecond
)

// 予約本体・ユーザー索引・保留索引を同時に書き込む
const putScript = `
if redis.call("SET", KEYS[1], ARGV[1], "NX") then
	redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
	if ARGV[4] == "PENDING" then
		redis.call("ZADD", KEYS[3], ARGV[2], ARGV[3])
	end
	return 1
end
return 0
`

// BookingStore は Redis を使用した予約ストア。
// 状態更新は予約ごとの分散ロックで直列化する。
type BookingStore struct {
	client redis.Cmdable
	locks  *LockManager
	now    func() time.Time
}

func NewBookingStore(client redis.Cmdable, locks *LockManager) *BookingStore {
	return &BookingStore{client: client, locks: locks, now: time.Now}
}

func bookingKey(id string) string          { return bookingKeyPrefix + id }
func userBookingsKey(userID string) string { return userBookingKeyPrefix + userID }

func (s *BookingStore) Put(ctx context.Context, b *booking.Booking) error {
	data, err := json.Marshal(b)
	if err != nil {
		return errs.Wrap(err, "予約のシリアライズに失敗")
	}
	keys := []string{bookingKey(b.ID), userBookingsKey(b.UserID), pendingBookingsKey}
	created, err := s.client.Eval(ctx, putScript, keys,
		string(data), b.CreatedAt.UnixMilli(), b.ID, string(b.Status)).Int()
	if err != nil {
		return errs.Wrap(err, "予約の保存に失敗")
	}
	if created == 0 {
		return booking.ErrDuplicateBooking
	}
	return nil
}

func (s *BookingStore) Get(ctx context.Context, id string) (*booking.Booking, error) {
	data, err := s.client.Get(ctx, bookingKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, booking.ErrBookingNotFound
	}
	if err != nil {
		return nil, errs.Wrap(err, "予約の取得に失敗")
	}
	return decodeBooking(data)
}

func (s *BookingStore) UpdateStatus(ctx context.Context, id string, change booking.StatusChange) (*booking.Booking, error) {
	return s.updateLocked(ctx, id,
		func(b *booking.Booking) error { return b.TransitionTo(change, s.now()) },
		func(pipe redis.Pipeliner, b *booking.Booking) {
			pipe.ZRem(ctx, pendingBookingsKey, id)
			if b.HasUnreleasedHold() {
				pipe.ZAdd(ctx, unreleasedBookingsKey, redis.Z{Score: float64(b.UpdatedAt.UnixMilli()), Member: id})
			}
		})
}

// MarkReleased は解放待ちの仮押さえIDを外し、再試行索引から除く
func (s *BookingStore) MarkReleased(ctx context.Context, id string) (*booking.Booking, error) {
	return s.updateLocked(ctx, id,
		func(b *booking.Booking) error { return b.MarkReleased(s.now()) },
		func(pipe redis.Pipeliner, _ *booking.Booking) {
			pipe.ZRem(ctx, unreleasedBookingsKey, id)
		})
}

func (s *BookingStore) updateLocked(
	ctx context.Context,
	id string,
	apply func(*booking.Booking) error,
	index func(redis.Pipeliner, *booking.Booking),
) (*booking.Booking, error) {
	lock, err := s.locks.AcquireLockWithRetry(ctx, bookingKey(id), updateLockTTL, updateLockRetries, updateLockDelay)
	if err != nil {
		return nil, errs.Wrapf(err, "予約ロックの取得に失敗: %s", id)
	}
	defer func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(current); err != nil {
		return nil, err
	}
	data, err := json.Marshal(current)
	if err != nil {
		return nil, errs.Wrap(err, "予約のシリアライズに失敗")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, bookingKey(id), string(data), 0)
		index(pipe, current)
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(err, "予約状態の更新に失敗")
	}
	return current, nil
}

// ListByUser は作成日時の新しい順に返す
func (s *BookingStore) ListByUser(ctx context.Context, userID string) ([]*booking.Booking, error) {
	ids, err := s.client.ZRevRange(ctx, userBookingsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, errs.Wrap(err, "ユーザー予約一覧の取得に失敗")
	}
	return s.loadMany(ctx, ids, nil)
}

// ListPendingCreatedBefore は cutoff より前に作成された保留中の予約を古い順に返す
func (s *BookingStore) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*booking.Booking, error) {
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, pendingBookingsKey, opt).Result()
	if err != nil {
		return nil, errs.Wrap(err, "保留中予約の取得に失敗")
	}
	return s.loadMany(ctx, ids, func(b *booking.Booking) bool { return b.IsPending() })
}

// ListUnreleased は座席解放に失敗した終端予約を更新の古い順に返す
func (s *BookingStore) ListUnreleased(ctx context.Context, limit int) ([]*booking.Booking, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRange(ctx, unreleasedBookingsKey, 0, stop).Result()
	if err != nil {
		return nil, errs.Wrap(err, "解放待ち予約の取得に失敗")
	}
	return s.loadMany(ctx, ids, func(b *booking.Booking) bool { return b.HasUnreleasedHold() })
}

func (s *BookingStore) loadMany(ctx context.Context, ids []string, keep func(*booking.Booking) bool) ([]*booking.Booking, error) {
	result := make([]*booking.Booking, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = bookingKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errs.Wrap(err, "予約の一括取得に失敗")
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// 索引だけ残っているキーは無視
			continue
		}
		b, err := decodeBooking([]byte(raw))
		if err != nil {
			return nil, err
		}
		if keep != nil && !keep(b) {
			continue
		}
		result = append(result, b)
	}
	return result, nil
}

func decodeBooking(data []byte) (*booking.Booking, error) {
	var b booking.Booking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("予約のデシリアライズに失敗: %w", err)
	}
	return &b, nil
}
