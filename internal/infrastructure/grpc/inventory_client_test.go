package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/errs"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

// startServer は在庫サービスを bufconn 上の gRPC サーバーで公開する
func startServer(t *testing.T, inv inventory.Client, opts ...grpc.ServerOption) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	RegisterInventoryServer(srv, inv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestInventoryClient_ReserveConfirmRelease(t *testing.T) {
	ctx := context.Background()
	inv := memory.NewInventory()
	m := metrics.NewNop()
	client := NewInventoryClient(startServer(t, inv), time.Second, m)

	reservationID, err := client.ReserveSeat(ctx, "E1", "A-1", "U1")
	require.NoError(t, err)
	assert.NotEmpty(t, reservationID)
	assert.True(t, inv.IsHeld("E1", "A-1"))

	require.NoError(t, client.ConfirmReservation(ctx, reservationID, "U1", "P1"))
	assert.True(t, inv.IsConfirmed(reservationID))

	// 販売済み座席は解放されず ALREADY_CONFIRMED が返る
	err = client.ReleaseSeat(ctx, "E1", "A-1", "U1")
	assert.True(t, errs.Is(err, inventory.ErrAlreadyConfirmed))
	assert.False(t, errs.Is(err, inventory.ErrUnavailable))
	assert.True(t, inv.IsHeld("E1", "A-1"))

	// ReserveSeat と ConfirmBooking の success 系列、ReleaseSeat の rejected 系列
	assert.Equal(t, 3, testutil.CollectAndCount(m.InventoryCallDuration))
}

func TestInventoryClient_BusinessRejections(t *testing.T) {
	ctx := context.Background()
	inv := memory.NewInventory()
	client := NewInventoryClient(startServer(t, inv), time.Second, nil)

	reservationID, err := client.ReserveSeat(ctx, "E1", "A-1", "U1")
	require.NoError(t, err)

	t.Run("確保済みの座席", func(t *testing.T) {
		_, err := client.ReserveSeat(ctx, "E1", "A-1", "U2")
		assert.True(t, errs.Is(err, inventory.ErrSeatUnavailable))
		assert.False(t, errs.Is(err, inventory.ErrUnavailable))
	})

	t.Run("存在しない仮押さえ", func(t *testing.T) {
		err := client.ConfirmReservation(ctx, "missing", "U1", "P1")
		assert.True(t, errs.Is(err, inventory.ErrReservationNotFound))
	})

	t.Run("他ユーザーによる確定", func(t *testing.T) {
		err := client.ConfirmReservation(ctx, reservationID, "U2", "P1")
		assert.True(t, errs.Is(err, inventory.ErrRejected))
	})

	t.Run("確定済みの再確定", func(t *testing.T) {
		require.NoError(t, client.ConfirmReservation(ctx, reservationID, "U1", "P1"))
		err := client.ConfirmReservation(ctx, reservationID, "U1", "P1")
		assert.True(t, errs.Is(err, inventory.ErrAlreadyConfirmed))
	})
}

// slowInventory は呼び出し元の期限まで応答しない
type slowInventory struct {
	inventory.Client
}

func (slowInventory) ReserveSeat(ctx context.Context, _, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestInventoryClient_DeadlineIsUnavailable(t *testing.T) {
	m := metrics.NewNop()
	client := NewInventoryClient(startServer(t, slowInventory{}), 50*time.Millisecond, m)

	_, err := client.ReserveSeat(context.Background(), "E1", "A-1", "U1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, inventory.ErrUnavailable))
	assert.Equal(t, 1, testutil.CollectAndCount(m.InventoryCallDuration))
}

func TestInventoryClient_ServerDown(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	_ = lis.Close()
	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	defer conn.Close()

	client := NewInventoryClient(conn, 200*time.Millisecond, nil)
	err = client.ReleaseSeat(context.Background(), "E1", "A-1", "U1")
	assert.True(t, errs.Is(err, inventory.ErrUnavailable))
}

func TestMapRPCError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"Unavailable", status.Error(codes.Unavailable, "down"), inventory.ErrUnavailable},
		{"DeadlineExceeded", status.Error(codes.DeadlineExceeded, "slow"), inventory.ErrUnavailable},
		{"Canceled", status.Error(codes.Canceled, "canceled"), inventory.ErrUnavailable},
		{"context", context.DeadlineExceeded, inventory.ErrUnavailable},
		{"AlreadyExists", status.Error(codes.AlreadyExists, "taken"), inventory.ErrSeatUnavailable},
		{"NotFound", status.Error(codes.NotFound, "gone"), inventory.ErrReservationNotFound},
		{"FailedPrecondition", status.Error(codes.FailedPrecondition, "done"), inventory.ErrAlreadyConfirmed},
		{"InvalidArgument", status.Error(codes.InvalidArgument, "bad seat"), inventory.ErrRejected},
		{"PermissionDenied", status.Error(codes.PermissionDenied, "closed"), inventory.ErrRejected},
		{"Internal", status.Error(codes.Internal, "boom"), inventory.ErrUnavailable},
		{"Unknown", status.Error(codes.Unknown, "panic"), inventory.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapRPCError(tt.err), tt.want)
		})
	}
}

func TestBusinessError(t *testing.T) {
	assert.ErrorIs(t, businessError(codeSeatUnavailable, ""), inventory.ErrSeatUnavailable)
	assert.ErrorIs(t, businessError(codeReservationNotFound, "x"), inventory.ErrReservationNotFound)
	assert.ErrorIs(t, businessError(codeAlreadyConfirmed, "x"), inventory.ErrAlreadyConfirmed)
	assert.ErrorIs(t, businessError("PAYMENT_MISMATCH", "x"), inventory.ErrRejected)
}
