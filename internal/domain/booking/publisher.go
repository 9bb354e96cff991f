package booking

import "context"

// EventPublisher はイベントバスへの発行を表す。
// 失敗は呼び出し元へ伝えるが、サーガの結果には影響させない
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event DomainEvent) error
}
