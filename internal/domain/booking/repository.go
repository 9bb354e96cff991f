package booking

import (
	"context"
	"time"
)

// Repository は予約ストアのインターフェース
type Repository interface {
	// Put は新しい予約を保存する。同じIDが存在する場合は ErrDuplicateBooking
	Put(ctx context.Context, b *Booking) error

	// Get はIDから予約を取得する
	Get(ctx context.Context, id string) (*Booking, error)

	// UpdateStatus は状態を遷移させて更新後の予約を返す。
	// 終端状態からの遷移は ErrInvalidTransition
	UpdateStatus(ctx context.Context, id string, change StatusChange) (*Booking, error)

	// ListByUser はユーザーの予約を新しい順に返す（終端状態を含む）
	ListByUser(ctx context.Context, userID string) ([]*Booking, error)

	// ListPendingCreatedBefore は cutoff より前に作成された PENDING 予約を返す
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)

	// ListUnreleased は座席解放に失敗したまま終了した予約を更新日時の古い順に返す
	ListUnreleased(ctx context.Context, limit int) ([]*Booking, error)

	// MarkReleased は残っていた仮押さえの解放完了を記録し、reservation_id を外す。
	// 解放待ちでない予約は ErrNoUnreleasedHold
	MarkReleased(ctx context.Context, id string) (*Booking, error)
}
