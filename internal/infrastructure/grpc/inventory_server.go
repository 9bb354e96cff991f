package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/inventory"
)

// inventoryServer は inventory.Client を在庫サービスの RPC 契約で公開する。
// ローカル実行時のスタブ在庫サービスと結合テストで使用する。
type inventoryServer struct {
	inv inventory.Client
}

// RegisterInventoryServer は在庫サービスを gRPC サーバーに登録する
func RegisterInventoryServer(s grpc.ServiceRegistrar, inv inventory.Client) {
	s.RegisterService(&inventoryServiceDesc, &inventoryServer{inv: inv})
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReserveSeat", Handler: reserveSeatHandler},
		{MethodName: "ConfirmBooking", Handler: confirmBookingHandler},
		{MethodName: "ReleaseSeat", Handler: releaseSeatHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func (s *inventoryServer) reserveSeat(ctx context.Context, req *reserveSeatRequest) (*reserveSeatResponse, error) {
	id, err := s.inv.ReserveSeat(ctx, req.EventID, req.SeatNumber, req.UserID)
	if err != nil {
		code, rpcErr := errorCode(err)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return &reserveSeatResponse{Success: false, Message: err.Error(), ErrorCode: code}, nil
	}
	return &reserveSeatResponse{Success: true, ReservationID: id}, nil
}

func (s *inventoryServer) confirmBooking(ctx context.Context, req *confirmBookingRequest) (*confirmBookingResponse, error) {
	if err := s.inv.ConfirmReservation(ctx, req.ReservationID, req.UserID, req.PaymentID); err != nil {
		code, rpcErr := errorCode(err)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return &confirmBookingResponse{Success: false, Message: err.Error(), ErrorCode: code}, nil
	}
	return &confirmBookingResponse{Success: true, BookingID: req.ReservationID}, nil
}

func (s *inventoryServer) releaseSeat(ctx context.Context, req *releaseSeatRequest) (*releaseSeatResponse, error) {
	if err := s.inv.ReleaseSeat(ctx, req.EventID, req.SeatNumber, req.UserID); err != nil {
		code, rpcErr := errorCode(err)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return &releaseSeatResponse{Success: false, Message: err.Error(), ErrorCode: code}, nil
	}
	return &releaseSeatResponse{Success: true}, nil
}

// errorCode は業務拒否を応答コードに、通信系の失敗を gRPC ステータスに変換する
func errorCode(err error) (string, error) {
	switch {
	case errors.Is(err, inventory.ErrSeatUnavailable):
		return codeSeatUnavailable, nil
	case errors.Is(err, inventory.ErrReservationNotFound):
		return codeReservationNotFound, nil
	case errors.Is(err, inventory.ErrAlreadyConfirmed):
		return codeAlreadyConfirmed, nil
	case errors.Is(err, inventory.ErrRejected):
		return codeRejected, nil
	default:
		return "", status.Error(codes.Unavailable, err.Error())
	}
}

func reserveSeatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(reserveSeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*inventoryServer)
	if interceptor == nil {
		return s.reserveSeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodReserveSeat}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return s.reserveSeat(ctx, req.(*reserveSeatRequest))
	})
}

func confirmBookingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(confirmBookingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*inventoryServer)
	if interceptor == nil {
		return s.confirmBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodConfirmBooking}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return s.confirmBooking(ctx, req.(*confirmBookingRequest))
	})
}

func releaseSeatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(releaseSeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*inventoryServer)
	if interceptor == nil {
		return s.releaseSeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodReleaseSeat}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return s.releaseSeat(ctx, req.(*releaseSeatRequest))
	})
}
