// Package transaction は予約ストアの読み取りと状態更新を一つの単位で扱うための抽象。
// ドメイン層が sqlx などのインフラ実装に依存しないようにする。
package transaction

import "context"

// Tx は開始済みのトランザクション
type Tx interface {
	Commit() error
	// Rollback はコミット後に呼ばれても無害であること
	Rollback() error
}

// Manager はトランザクションを開始する
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}
