// Package bootstrap は fx で依存関係とライフサイクルを組み立てる。
package bootstrap

import (
	"go.uber.org/fx"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api/handler"
)

var Module = fx.Options(
	ConfigModule,
	ObservabilityModule,
	StoreModule,
	InventoryModule,
	BrokerModule,
	CoordinatorModule,
	WorkerModule,
	ServerModule,
)

// NamedCheck は /ready で確認する依存先
type NamedCheck struct {
	Name  string
	Check handler.ReadinessCheck
}
