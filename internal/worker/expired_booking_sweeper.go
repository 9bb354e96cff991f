package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

const sweepLockKey = "booking-expiry-sweep"

// BookingExpirer は期限切れの保留予約を失効させ、取り残された座席を解放するインターフェース
type BookingExpirer interface {
	ExpirePendingBookings(ctx context.Context, ttl time.Duration) (int, error)
	ReleaseUnreleasedHolds(ctx context.Context) (int, error)
}

// SweepLocker は複数レプリカで同時にスイープしないためのロック
type SweepLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// ExpiredBookingSweeper は一定間隔で期限切れ予約を失効させるワーカー
type ExpiredBookingSweeper struct {
	expirer  BookingExpirer
	locker   SweepLocker
	interval time.Duration
	ttl      time.Duration
	lockTTL  time.Duration
	log      *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

type SweeperOption func(*ExpiredBookingSweeper)

// WithLocker はスイープごとに分散ロックを取得する
func WithLocker(l SweepLocker) SweeperOption {
	return func(s *ExpiredBookingSweeper) { s.locker = l }
}

// WithLockTTL はスイープロックの有効期限を設定する。1回のスイープより長くする
func WithLockTTL(d time.Duration) SweeperOption {
	return func(s *ExpiredBookingSweeper) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

func WithSweeperLogger(l *zap.Logger) SweeperOption {
	return func(s *ExpiredBookingSweeper) { s.log = l }
}

// NewExpiredBookingSweeper は新しいスイーパーを作成
func NewExpiredBookingSweeper(expirer BookingExpirer, interval, ttl time.Duration, opts ...SweeperOption) *ExpiredBookingSweeper {
	s := &ExpiredBookingSweeper{
		expirer:  expirer,
		interval: interval,
		ttl:      ttl,
		lockTTL:  interval,
		log:      logger.Get(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start はスイーパーを開始し、停止までブロックする
func (s *ExpiredBookingSweeper) Start(ctx context.Context) {
	s.log.Info("期限切れ予約スイーパー開始",
		zap.Duration("interval", s.interval),
		zap.Duration("ttl", s.ttl),
		zap.Bool("distributed_lock", s.locker != nil),
		zap.Duration("lock_ttl", s.lockTTL),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("期限切れ予約スイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			s.log.Info("期限切れ予約スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止し、実行中のスイープの完了を待つ
func (s *ExpiredBookingSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *ExpiredBookingSweeper) sweep(ctx context.Context) {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL)
		if err != nil {
			s.log.Warn("スイープロックの取得に失敗", zap.Error(err))
			return
		}
		if !ok {
			s.log.Debug("他のインスタンスがスイープ中")
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("スイープロックの解放に失敗", zap.Error(err))
			}
		}()
	}

	s.log.Debug("期限切れ予約のスイープ開始")
	count, err := s.expirer.ExpirePendingBookings(ctx, s.ttl)
	if err != nil {
		s.log.Error("期限切れ予約のスイープ失敗", zap.Int("expired", count), zap.Error(err))
		return
	}
	if count > 0 {
		s.log.Info("期限切れ予約を失効", zap.Int("count", count))
	} else {
		s.log.Debug("期限切れ予約なし")
	}

	released, err := s.expirer.ReleaseUnreleasedHolds(ctx)
	if err != nil {
		s.log.Error("取り残された座席の解放に失敗", zap.Int("released", released), zap.Error(err))
		return
	}
	if released > 0 {
		s.log.Info("取り残された座席を解放", zap.Int("count", released))
	}
}
