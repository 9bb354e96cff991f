package rabbitmq

import (
	"context"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
)

// NoopPublisher はブローカーに接続できない場合の代替
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, topic string, event booking.DomainEvent) error {
	p.logger.Debug("イベント発行をスキップ", zap.String("topic", topic), zap.String("booking_id", event.BookingID))
	return nil
}
