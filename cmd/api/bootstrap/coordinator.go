package bootstrap

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api/handler"
	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/tracing"
	"github.com/sanosuguru/go-event-ticket-booking/internal/worker"
)

var CoordinatorModule = fx.Module("coordinator",
	fx.Provide(
		NewBookingCoordinator,
		func(c *application.BookingCoordinator) handler.BookingServiceInterface { return c },
		func(c *application.BookingCoordinator) worker.BookingExpirer { return c },
	),
)

func NewBookingCoordinator(
	cfg *config.Config,
	inv inventory.Client,
	store booking.Repository,
	pub booking.EventPublisher,
	m *metrics.Metrics,
	log *zap.Logger,
) *application.BookingCoordinator {
	return application.NewBookingCoordinator(inv, store, pub,
		application.WithLogger(log),
		application.WithMetrics(m),
		application.WithTracer(tracing.Tracer()),
		application.WithCallTimeout(cfg.Saga.CallTimeout),
		application.WithSweepBatch(cfg.Saga.SweepBatch),
	)
}
