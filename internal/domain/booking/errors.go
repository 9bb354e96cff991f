package booking

import "errors"

// サーガが呼び出し元へ返すエラー種別
var (
	ErrSeatUnavailable          = errors.New("座席は既に確保されています")
	ErrReservationRejected      = errors.New("在庫サービスが座席の確保を拒否しました")
	ErrReservationNotFound      = errors.New("座席の仮押さえが見つかりません")
	ErrReservationConfirmFailed = errors.New("在庫サービスで座席を確定できませんでした")
	ErrBookingNotFound          = errors.New("予約が見つかりません")
	ErrForbidden                = errors.New("この予約を操作する権限がありません")
	ErrInvalidState             = errors.New("予約は保留中ではありません")
	ErrCannotCancelConfirmed    = errors.New("確定済みの予約はキャンセルできません")
	ErrBookingPersistenceFailed = errors.New("予約の保存に失敗しました")
	ErrDependencyUnavailable    = errors.New("依存サービスが利用できません")
	ErrInvalidInput             = errors.New("入力が不正です")
)

// ストアが返すエラー
var (
	ErrDuplicateBooking  = errors.New("同じIDの予約が既に存在します")
	ErrInvalidTransition = errors.New("終端状態からは遷移できません")
	ErrNoUnreleasedHold  = errors.New("解放待ちの仮押さえはありません")
)

// 入力検証エラー
var (
	ErrEventIDRequired    = errors.New("イベントIDは必須です")
	ErrSeatNumberRequired = errors.New("座席番号は必須です")
	ErrUserIDRequired     = errors.New("ユーザーIDは必須です")
	ErrPaymentIDRequired  = errors.New("決済IDは必須です")
	ErrBookingIDRequired  = errors.New("予約IDは必須です")
	ErrInvalidPrice       = errors.New("価格は0以上である必要があります")
)
