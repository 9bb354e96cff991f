package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/rabbitmq"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

var BrokerModule = fx.Module("broker",
	fx.Provide(NewEventPublisher),
)

// NewEventPublisher は RabbitMQ への発行を非同期化して返す。
// ブローカーに接続できない場合はイベントを捨てて起動を続ける
func NewEventPublisher(lc fx.Lifecycle, cfg *config.Config, m *metrics.Metrics, log *zap.Logger) booking.EventPublisher {
	var (
		next   booking.EventPublisher
		closer func() error
	)
	pub, err := rabbitmq.Dial(cfg.Broker.URL, cfg.Broker.Exchange)
	if err != nil {
		log.Warn("RabbitMQに接続できないためイベント発行を無効化", zap.Error(err))
		next = rabbitmq.NewNoopPublisher(log)
	} else {
		log.Info("RabbitMQ接続完了", zap.String("exchange", cfg.Broker.Exchange))
		next = pub
		closer = pub.Close
	}

	async := rabbitmq.NewAsyncPublisher(next, cfg.Broker.BufferSize, cfg.Broker.PublishTimeout, log, m)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := async.Close(ctx); err != nil {
				log.Warn("イベント送信キューの排出が完了しませんでした", zap.Error(err))
			}
			if closer != nil {
				return closer()
			}
			return nil
		},
	})
	return async
}
