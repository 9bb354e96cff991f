// Package inventory は座席在庫サービスとの契約を定義する。
// 座席の一意性はこのサービスの原子的な確保だけが保証する。
package inventory

import (
	"context"
	"errors"
)

// メッセージは booking パッケージの種別と重複させない（errs.Is はメッセージで同一視するため）
var (
	ErrSeatUnavailable     = errors.New("在庫サービス: 座席は確保済みです")
	ErrReservationNotFound = errors.New("仮押さえが存在しないか解放済みです")
	ErrAlreadyConfirmed    = errors.New("仮押さえは既に確定済みです")
	ErrRejected            = errors.New("在庫サービスが要求を拒否しました")
	// ErrUnavailable は通信失敗（接続不可・期限切れ）を表し、業務上の拒否とは区別する
	ErrUnavailable = errors.New("在庫サービスに接続できません")
)

// Client は在庫サービスのクライアント
type Client interface {
	// ReserveSeat は座席を原子的に確保し、仮押さえIDを返す
	ReserveSeat(ctx context.Context, eventID, seatNumber, userID string) (string, error)

	// ConfirmReservation は仮押さえを確定する
	ConfirmReservation(ctx context.Context, reservationID, userID, paymentID string) error

	// ReleaseSeat は座席を解放する。冪等であり、空席や他ユーザーの座席に対してはエラーにしない。
	// 呼び出し元の仮押さえが既に確定（販売済み）の場合は解放せず ErrAlreadyConfirmed を返す
	ReleaseSeat(ctx context.Context, eventID, seatNumber, userID string) error
}
