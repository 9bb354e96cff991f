package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api"
	"github.com/sanosuguru/go-event-ticket-booking/internal/api/handler"
	"github.com/sanosuguru/go-event-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

var ServerModule = fx.Module("server",
	fx.Provide(
		handler.NewBookingHandler,
		NewHealthHandler,
		NewEcho,
	),
	fx.Invoke(StartServer),
)

type HealthParams struct {
	fx.In

	Checks []NamedCheck `group:"readiness"`
}

func NewHealthHandler(p HealthParams) *handler.HealthHandler {
	checks := make(map[string]handler.ReadinessCheck, len(p.Checks))
	for _, c := range p.Checks {
		checks[c.Name] = c.Check
	}
	return handler.NewHealthHandler(checks)
}

// NewEcho はミドルウェアとルートを設定した Echo を作成する
func NewEcho(cfg *config.Config, m *metrics.Metrics, bookings *handler.BookingHandler, health *handler.HealthHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(m))

	e.GET("/health", health.Check)
	e.GET("/ready", health.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	bookings.Register(e.Group("/api/v1"))
	return e
}

// StartServer は HTTP サーバーを起動し、停止時にグレースフルシャットダウンする
func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			addr := ":" + cfg.Server.Port
			log.Info("サーバーを起動します", zap.String("address", addr), zap.String("env", cfg.Env))
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("サーバー起動エラー", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("サーバーをシャットダウンしています...")
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	})
}
