package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

var (
	ErrBufferFull      = errors.New("イベント送信バッファが満杯です")
	ErrPublisherClosed = errors.New("イベント発行は停止済みです")
)

type envelope struct {
	topic string
	event booking.DomainEvent
}

// AsyncPublisher は発行をバックグラウンドで行う。
// Publish はブロックせず、バッファが満杯なら ErrBufferFull を返す。
type AsyncPublisher struct {
	next    booking.EventPublisher
	queue   chan envelope
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ booking.EventPublisher = (*AsyncPublisher)(nil)

func NewAsyncPublisher(next booking.EventPublisher, bufferSize int, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *AsyncPublisher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &AsyncPublisher{
		next:    next,
		queue:   make(chan envelope, bufferSize),
		timeout: timeout,
		logger:  logger,
		metrics: m,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) Publish(_ context.Context, topic string, event booking.DomainEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- envelope{topic: topic, event: event}:
		return nil
	default:
		return ErrBufferFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for env := range p.queue {
		p.deliver(env)
	}
}

func (p *AsyncPublisher) deliver(env envelope) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	err := p.next.Publish(ctx, env.topic, env.event)
	if err == nil {
		return
	}
	reason := "publish_error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	p.logger.Warn("イベント発行に失敗",
		zap.String("topic", env.topic),
		zap.String("booking_id", env.event.BookingID),
		zap.String("reason", reason),
		zap.Error(err),
	)
	if p.metrics != nil {
		p.metrics.EventPublishFailuresTotal.WithLabelValues(env.topic, reason).Inc()
	}
}

// Close は受付を止め、残りのイベントを ctx の期限まで送信する
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("未送信のイベントを残して停止", zap.Int("pending", len(p.queue)))
		return ctx.Err()
	}
}
