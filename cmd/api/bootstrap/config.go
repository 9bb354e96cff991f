package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/tracing"
)

var ConfigModule = fx.Module("config",
	fx.Provide(config.Load),
)

var ObservabilityModule = fx.Module("observability",
	fx.Provide(
		NewLogger,
		NewMetrics,
	),
	fx.Invoke(StartTracing),
)

// NewLogger はグローバルロガーを設定し、停止時にフラッシュする
func NewLogger(lc fx.Lifecycle, cfg *config.Config) *zap.Logger {
	log := logger.Setup(cfg.Env)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// stdout/stderr の Sync は環境によって失敗するため無視
			_ = log.Sync()
			return nil
		},
	})
	return log
}

func NewMetrics() *metrics.Metrics {
	return metrics.Init()
}

// StartTracing はトレーサーを初期化し、停止時にエクスポーターを閉じる
func StartTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) {
	var shutdown tracing.ShutdownFunc
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Env)
			if err != nil {
				return err
			}
			log.Info("トレーシング初期化",
				zap.String("endpoint", cfg.Tracing.Endpoint),
				zap.Bool("enabled", cfg.Tracing.Endpoint != ""),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}
