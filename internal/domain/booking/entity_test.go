package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateParams_Validate(t *testing.T) {
	tests := []struct {
		name        string
		params      CreateParams
		errExpected error
	}{
		{name: "正常", params: CreateParams{EventID: "E1", SeatNumber: "A1", UserID: "U1", Price: 5000}},
		{name: "価格0は許可", params: CreateParams{EventID: "E1", SeatNumber: "A1", UserID: "U1"}},
		{name: "イベントID未指定", params: CreateParams{SeatNumber: "A1", UserID: "U1"}, errExpected: ErrEventIDRequired},
		{name: "座席番号が空白", params: CreateParams{EventID: "E1", SeatNumber: "  ", UserID: "U1"}, errExpected: ErrSeatNumberRequired},
		{name: "ユーザーID未指定", params: CreateParams{EventID: "E1", SeatNumber: "A1"}, errExpected: ErrUserIDRequired},
		{name: "負の価格", params: CreateParams{EventID: "E1", SeatNumber: "A1", UserID: "U1", Price: -1}, errExpected: ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.errExpected != nil {
				assert.ErrorIs(t, err, tt.errExpected)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewBooking(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.FixedZone("JST", 9*60*60))
	b := NewBooking("B1", "E1", "A1", "U1", "R1", 5000, now)

	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, "R1", b.ReservationID)
	assert.Empty(t, b.PaymentID)
	assert.Nil(t, b.ConfirmedAt)
	assert.Equal(t, time.UTC, b.CreatedAt.Location())
	assert.True(t, b.CreatedAt.Equal(now))
}

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusExpired}
	for _, from := range all {
		for _, to := range all {
			want := from == StatusPending && to != StatusPending
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, Status("UNKNOWN").IsValid())
}

func TestBooking_TransitionTo(t *testing.T) {
	now := time.Now()

	t.Run("確定で決済IDと確定日時が設定される", func(t *testing.T) {
		b := NewBooking("B1", "E1", "A1", "U1", "R1", 0, now)
		require.NoError(t, b.TransitionTo(ToConfirmed("P1"), now))

		assert.Equal(t, StatusConfirmed, b.Status)
		assert.Equal(t, "P1", b.PaymentID)
		require.NotNil(t, b.ConfirmedAt)
		assert.Equal(t, "R1", b.ReservationID)
	})

	t.Run("確定には決済IDが必要", func(t *testing.T) {
		b := NewBooking("B1", "E1", "A1", "U1", "R1", 0, now)
		assert.ErrorIs(t, b.TransitionTo(ToConfirmed(""), now), ErrPaymentIDRequired)
		assert.Equal(t, StatusPending, b.Status)
	})

	t.Run("解放済みのキャンセルと期限切れで仮押さえIDが外れる", func(t *testing.T) {
		for _, change := range []StatusChange{ToCancelled(true), ToExpired()} {
			b := NewBooking("B1", "E1", "A1", "U1", "R1", 0, now)
			require.NoError(t, b.TransitionTo(change, now))
			assert.Equal(t, change.Status, b.Status)
			assert.Empty(t, b.ReservationID)
			assert.Empty(t, b.PaymentID)
			assert.Nil(t, b.ConfirmedAt)
			assert.False(t, b.HasUnreleasedHold())
		}
	})

	t.Run("解放に失敗したキャンセルは仮押さえIDを残す", func(t *testing.T) {
		b := NewBooking("B1", "E1", "A1", "U1", "R1", 0, now)
		require.NoError(t, b.TransitionTo(ToCancelled(false), now))

		assert.Equal(t, StatusCancelled, b.Status)
		assert.Equal(t, "R1", b.ReservationID)
		assert.True(t, b.HasUnreleasedHold())
	})

	t.Run("終端状態からは遷移できない", func(t *testing.T) {
		b := NewBooking("B1", "E1", "A1", "U1", "R1", 0, now)
		require.NoError(t, b.TransitionTo(ToConfirmed("P1"), now))

		assert.ErrorIs(t, b.TransitionTo(ToCancelled(true), now), ErrInvalidTransition)
		assert.ErrorIs(t, b.TransitionTo(ToConfirmed("P2"), now), ErrInvalidTransition)
		assert.Equal(t, "P1", b.PaymentID)
	})
}

func TestBooking_MarkReleased(t *testing.T) {
	now := time.Now()

	b := NewBooking("B1", "E1", "A1", "U1", "R1", 0, now)
	assert.ErrorIs(t, b.MarkReleased(now), ErrNoUnreleasedHold)

	require.NoError(t, b.TransitionTo(ToCancelled(false), now))
	later := now.Add(time.Minute)
	require.NoError(t, b.MarkReleased(later))
	assert.Empty(t, b.ReservationID)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.True(t, b.UpdatedAt.Equal(later))

	// 二度目は対象外
	assert.ErrorIs(t, b.MarkReleased(later), ErrNoUnreleasedHold)

	confirmed := NewBooking("B2", "E1", "A2", "U1", "R2", 0, now)
	require.NoError(t, confirmed.TransitionTo(ToConfirmed("P1"), now))
	assert.False(t, confirmed.HasUnreleasedHold())
	assert.ErrorIs(t, confirmed.MarkReleased(now), ErrNoUnreleasedHold)
}

func TestBooking_Clone(t *testing.T) {
	now := time.Now()
	b := NewBooking("B1", "E1", "A1", "U1", "R1", 0, now)
	require.NoError(t, b.TransitionTo(ToConfirmed("P1"), now))

	c := b.Clone()
	c.Status = StatusCancelled
	*c.ConfirmedAt = now.Add(time.Hour)

	assert.Equal(t, StatusConfirmed, b.Status)
	assert.True(t, b.ConfirmedAt.Equal(now))
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBooking("B1", "E1", "A1", "U1", "R1", 0, at)

	created := NewEvent(TopicBookingCreated, b, at)
	assert.Equal(t, DomainEvent{
		Type: "booking.created", BookingID: "B1", EventID: "E1",
		UserID: "U1", SeatNumber: "A1", Timestamp: "2025-03-01T12:00:00Z",
	}, created)

	require.NoError(t, b.TransitionTo(ToConfirmed("P1"), at))
	confirmed := NewEvent(TopicBookingConfirmed, b, at)
	assert.Equal(t, "P1", confirmed.PaymentID)
	assert.Empty(t, confirmed.EventID)
}
