package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/cmd/api/bootstrap"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

const stopTimeout = 30 * time.Second

func main() {
	app := fx.New(
		bootstrap.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.StopTimeout(stopTimeout),
	)

	if err := app.Start(context.Background()); err != nil {
		logger.Error("アプリケーションの起動に失敗しました", zap.Error(err))
		os.Exit(1)
	}

	// SIGINT / SIGTERM を待機
	sig := <-app.Done()
	logger.Info("シグナル受信", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		logger.Error("アプリケーションの停止に失敗しました", zap.Error(err))
		return
	}

	logger.Info("アプリケーションが正常に停止しました")
}
