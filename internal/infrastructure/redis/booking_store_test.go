package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/errs"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

var storeNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*BookingStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	locks := NewLockManager(db, metrics.NewNop())
	locks.newToken = func() string { return "token-1" }
	store := NewBookingStore(db, locks)
	store.now = func() time.Time { return storeNow }
	return store, mock
}

func pendingBooking(id, userID string, createdAt time.Time) *booking.Booking {
	return booking.NewBooking(id, "E1", "A-1", userID, "R-"+id, 5000, createdAt)
}

func mustJSON(t *testing.T, b *booking.Booking) string {
	t.Helper()
	data, err := json.Marshal(b)
	require.NoError(t, err)
	return string(data)
}

func TestBookingStore_Put(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	b := pendingBooking("B1", "U1", storeNow.Add(-time.Minute))

	mock.ExpectEval(putScript, []string{"booking:B1", "user_bookings:U1", "bookings:pending"},
		mustJSON(t, b), b.CreatedAt.UnixMilli(), "B1", "PENDING").SetVal(int64(1))

	require.NoError(t, store.Put(ctx, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_Put_Duplicate(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	b := pendingBooking("B1", "U1", storeNow)

	mock.ExpectEval(putScript, []string{"booking:B1", "user_bookings:U1", "bookings:pending"},
		mustJSON(t, b), b.CreatedAt.UnixMilli(), "B1", "PENDING").SetVal(int64(0))

	err := store.Put(ctx, b)
	assert.ErrorIs(t, err, booking.ErrDuplicateBooking)
}

func TestBookingStore_Get(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	b := pendingBooking("B1", "U1", storeNow)

	mock.ExpectGet("booking:B1").SetVal(mustJSON(t, b))
	mock.ExpectGet("booking:B404").RedisNil()

	got, err := store.Get(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "B1", got.ID)
	assert.Equal(t, booking.StatusPending, got.Status)
	assert.Equal(t, "R-B1", got.ReservationID)
	assert.True(t, b.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Get(ctx, "B404")
	assert.True(t, errs.Is(err, booking.ErrBookingNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_UpdateStatus_Confirm(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	b := pendingBooking("B1", "U1", storeNow.Add(-time.Minute))

	want := b.Clone()
	require.NoError(t, want.TransitionTo(booking.ToConfirmed("P1"), storeNow))

	mock.ExpectSetNX("lock:booking:B1", "token-1", updateLockTTL).SetVal(true)
	mock.ExpectGet("booking:B1").SetVal(mustJSON(t, b))
	mock.ExpectTxPipeline()
	mock.ExpectSet("booking:B1", mustJSON(t, want), 0).SetVal("OK")
	mock.ExpectZRem("bookings:pending", "B1").SetVal(1)
	mock.ExpectTxPipelineExec()
	mock.ExpectEval(releaseScript, []string{"lock:booking:B1"}, "token-1").SetVal(int64(1))

	got, err := store.UpdateStatus(ctx, "B1", booking.ToConfirmed("P1"))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, got.Status)
	assert.Equal(t, "P1", got.PaymentID)
	require.NotNil(t, got.ConfirmedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_UpdateStatus_FromTerminal(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	b := pendingBooking("B1", "U1", storeNow.Add(-time.Minute))
	require.NoError(t, b.TransitionTo(booking.ToCancelled(true), storeNow))

	mock.ExpectSetNX("lock:booking:B1", "token-1", updateLockTTL).SetVal(true)
	mock.ExpectGet("booking:B1").SetVal(mustJSON(t, b))
	mock.ExpectEval(releaseScript, []string{"lock:booking:B1"}, "token-1").SetVal(int64(1))

	_, err := store.UpdateStatus(ctx, "B1", booking.ToExpired())
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_UpdateStatus_LockError(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)

	mock.ExpectSetNX("lock:booking:B1", "token-1", updateLockTTL).SetErr(errors.New("connection refused"))

	_, err := store.UpdateStatus(ctx, "B1", booking.ToCancelled(true))
	require.Error(t, err)
	assert.False(t, errs.Is(err, booking.ErrInvalidTransition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_UpdateStatus_CancelWithoutRelease(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	b := pendingBooking("B1", "U1", storeNow.Add(-time.Minute))

	want := b.Clone()
	require.NoError(t, want.TransitionTo(booking.ToCancelled(false), storeNow))

	mock.ExpectSetNX("lock:booking:B1", "token-1", updateLockTTL).SetVal(true)
	mock.ExpectGet("booking:B1").SetVal(mustJSON(t, b))
	mock.ExpectTxPipeline()
	mock.ExpectSet("booking:B1", mustJSON(t, want), 0).SetVal("OK")
	mock.ExpectZRem("bookings:pending", "B1").SetVal(1)
	mock.ExpectZAdd("bookings:unreleased", redis.Z{Score: float64(storeNow.UnixMilli()), Member: "B1"}).SetVal(1)
	mock.ExpectTxPipelineExec()
	mock.ExpectEval(releaseScript, []string{"lock:booking:B1"}, "token-1").SetVal(int64(1))

	got, err := store.UpdateStatus(ctx, "B1", booking.ToCancelled(false))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, "R-B1", got.ReservationID, "解放できなかった仮押さえIDは残る")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_ListUnreleasedAndMarkReleased(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	unreleased := pendingBooking("B1", "U1", storeNow.Add(-time.Hour))
	require.NoError(t, unreleased.TransitionTo(booking.ToCancelled(false), storeNow.Add(-time.Minute)))
	// 索引に残っているが既に解放済みの予約
	released := pendingBooking("B2", "U1", storeNow.Add(-time.Hour))
	require.NoError(t, released.TransitionTo(booking.ToCancelled(true), storeNow.Add(-time.Minute)))

	mock.ExpectZRange("bookings:unreleased", 0, 9).SetVal([]string{"B1", "B2"})
	mock.ExpectMGet("booking:B1", "booking:B2").
		SetVal([]interface{}{mustJSON(t, unreleased), mustJSON(t, released)})

	got, err := store.ListUnreleased(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B1", got[0].ID)

	want := unreleased.Clone()
	require.NoError(t, want.MarkReleased(storeNow))

	mock.ExpectSetNX("lock:booking:B1", "token-1", updateLockTTL).SetVal(true)
	mock.ExpectGet("booking:B1").SetVal(mustJSON(t, unreleased))
	mock.ExpectTxPipeline()
	mock.ExpectSet("booking:B1", mustJSON(t, want), 0).SetVal("OK")
	mock.ExpectZRem("bookings:unreleased", "B1").SetVal(1)
	mock.ExpectTxPipelineExec()
	mock.ExpectEval(releaseScript, []string{"lock:booking:B1"}, "token-1").SetVal(int64(1))

	marked, err := store.MarkReleased(ctx, "B1")
	require.NoError(t, err)
	assert.Empty(t, marked.ReservationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_MarkReleased_NothingToRelease(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	b := pendingBooking("B1", "U1", storeNow.Add(-time.Minute))

	mock.ExpectSetNX("lock:booking:B1", "token-1", updateLockTTL).SetVal(true)
	mock.ExpectGet("booking:B1").SetVal(mustJSON(t, b))
	mock.ExpectEval(releaseScript, []string{"lock:booking:B1"}, "token-1").SetVal(int64(1))

	_, err := store.MarkReleased(ctx, "B1")
	assert.ErrorIs(t, err, booking.ErrNoUnreleasedHold)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_ListByUser(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	older := pendingBooking("B1", "U1", storeNow.Add(-2*time.Minute))
	newer := pendingBooking("B2", "U1", storeNow.Add(-time.Minute))

	mock.ExpectZRevRange("user_bookings:U1", 0, -1).SetVal([]string{"B2", "B1", "B-gone"})
	mock.ExpectMGet("booking:B2", "booking:B1", "booking:B-gone").
		SetVal([]interface{}{mustJSON(t, newer), mustJSON(t, older), nil})

	got, err := store.ListByUser(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B2", got[0].ID)
	assert.Equal(t, "B1", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_ListByUser_Empty(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)

	mock.ExpectZRevRange("user_bookings:U9", 0, -1).SetVal([]string{})

	got, err := store.ListByUser(ctx, "U9")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingStore_ListPendingCreatedBefore(t *testing.T) {
	ctx := context.Background()
	store, mock := newTestStore(t)
	stale := pendingBooking("B1", "U1", storeNow.Add(-20*time.Minute))
	confirmed := pendingBooking("B2", "U2", storeNow.Add(-19*time.Minute))
	require.NoError(t, confirmed.TransitionTo(booking.ToConfirmed("P2"), storeNow))
	cutoff := storeNow.Add(-15 * time.Minute)

	mock.ExpectZRangeByScore("bookings:pending", &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
		Count: 10,
	}).SetVal([]string{"B1", "B2"})
	mock.ExpectMGet("booking:B1", "booking:B2").
		SetVal([]interface{}{mustJSON(t, stale), mustJSON(t, confirmed)})

	got, err := store.ListPendingCreatedBefore(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
