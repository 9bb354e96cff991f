package bootstrap

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	infraredis "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-booking/internal/worker"
)

var WorkerModule = fx.Module("worker",
	fx.Provide(NewExpiredBookingSweeper),
	fx.Invoke(StartSweeper),
)

func NewExpiredBookingSweeper(cfg *config.Config, expirer worker.BookingExpirer, locks *infraredis.LockManager, log *zap.Logger) *worker.ExpiredBookingSweeper {
	opts := []worker.SweeperOption{worker.WithSweeperLogger(log)}
	if cfg.Saga.SweepLock && locks != nil {
		opts = append(opts, worker.WithLocker(locks), worker.WithLockTTL(sweepLockTTL(cfg.Saga)))
	}
	return worker.NewExpiredBookingSweeper(expirer, cfg.Saga.SweepInterval, cfg.Saga.ExpiryTTL, opts...)
}

// sweepLockTTL は失効と再解放の2巡で全件が呼び出し期限まで待った場合も切れない長さ
func sweepLockTTL(saga config.SagaConfig) time.Duration {
	return saga.SweepInterval + 2*time.Duration(saga.SweepBatch)*saga.CallTimeout
}

// StartSweeper はスイーパーをバックグラウンドで起動し、停止時に完了を待つ
func StartSweeper(lc fx.Lifecycle, s *worker.ExpiredBookingSweeper) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			s.Stop()
			cancel()
			return nil
		},
	})
}
