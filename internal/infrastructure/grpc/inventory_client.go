// Package grpc は在庫サービスの gRPC クライアントを提供する。
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

// DefaultCallTimeout は呼び出し元に期限がない場合の既定タイムアウト
const DefaultCallTimeout = 3 * time.Second

// Dial は在庫サービスへの接続を作成する
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("在庫サービスへの接続作成に失敗: %w", err)
	}
	return conn, nil
}

// InventoryClient は inventory.Client の gRPC 実装
type InventoryClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
	metrics *metrics.Metrics
}

var _ inventory.Client = (*InventoryClient)(nil)

func NewInventoryClient(conn grpc.ClientConnInterface, timeout time.Duration, m *metrics.Metrics) *InventoryClient {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &InventoryClient{conn: conn, timeout: timeout, metrics: m}
}

func (c *InventoryClient) ReserveSeat(ctx context.Context, eventID, seatNumber, userID string) (string, error) {
	req := &reserveSeatRequest{EventID: eventID, SeatNumber: seatNumber, UserID: userID}
	var resp reserveSeatResponse
	err := c.invoke(ctx, "ReserveSeat", methodReserveSeat, req, &resp, func() error {
		if !resp.Success {
			return businessError(resp.ErrorCode, resp.Message)
		}
		if resp.ReservationID == "" {
			return fmt.Errorf("%w: 仮押さえIDが返されませんでした", inventory.ErrRejected)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return resp.ReservationID, nil
}

func (c *InventoryClient) ConfirmReservation(ctx context.Context, reservationID, userID, paymentID string) error {
	req := &confirmBookingRequest{ReservationID: reservationID, UserID: userID, PaymentID: paymentID}
	var resp confirmBookingResponse
	return c.invoke(ctx, "ConfirmBooking", methodConfirmBooking, req, &resp, func() error {
		if !resp.Success {
			return businessError(resp.ErrorCode, resp.Message)
		}
		return nil
	})
}

func (c *InventoryClient) ReleaseSeat(ctx context.Context, eventID, seatNumber, userID string) error {
	req := &releaseSeatRequest{EventID: eventID, SeatNumber: seatNumber, UserID: userID}
	var resp releaseSeatResponse
	return c.invoke(ctx, "ReleaseSeat", methodReleaseSeat, req, &resp, func() error {
		if !resp.Success {
			return businessError(resp.ErrorCode, resp.Message)
		}
		return nil
	})
}

// invoke は期限付きで RPC を呼び出し、check で応答本文を検証する
func (c *InventoryClient) invoke(ctx context.Context, name, method string, req, resp any, check func() error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(codecName))
	if err != nil {
		err = mapRPCError(err)
	} else {
		err = check()
	}

	label := "success"
	switch {
	case err == nil:
	case errors.Is(err, inventory.ErrUnavailable):
		label = "unavailable"
	default:
		label = "rejected"
	}
	if c.metrics != nil {
		c.metrics.InventoryCallDuration.WithLabelValues(name, label).Observe(time.Since(start).Seconds())
	}
	return err
}

// mapRPCError は通信失敗と業務拒否を区別して在庫エラーに変換する
func mapRPCError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", inventory.ErrUnavailable, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", inventory.ErrUnavailable, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", inventory.ErrUnavailable, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", inventory.ErrSeatUnavailable, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", inventory.ErrReservationNotFound, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", inventory.ErrAlreadyConfirmed, st.Message())
	case codes.InvalidArgument, codes.PermissionDenied, codes.OutOfRange:
		return fmt.Errorf("%w: %s", inventory.ErrRejected, st.Message())
	default:
		// Internal や Unknown はサーバー側の障害
		return fmt.Errorf("%w: %s", inventory.ErrUnavailable, st.Message())
	}
}

func businessError(code, message string) error {
	var kind error
	switch code {
	case codeSeatUnavailable:
		kind = inventory.ErrSeatUnavailable
	case codeReservationNotFound:
		kind = inventory.ErrReservationNotFound
	case codeAlreadyConfirmed:
		kind = inventory.ErrAlreadyConfirmed
	default:
		kind = inventory.ErrRejected
	}
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
