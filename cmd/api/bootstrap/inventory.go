package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc/connectivity"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/inventory"
	infragrpc "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/grpc"
	"github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

var InventoryModule = fx.Module("inventory",
	fx.Provide(NewInventoryClient),
)

type InventoryResult struct {
	fx.Out

	Client    inventory.Client
	Readiness []NamedCheck `group:"readiness,flatten"`
}

// NewInventoryClient は INVENTORY_MODE に応じた在庫サービスクライアントを作成する
func NewInventoryClient(lc fx.Lifecycle, cfg *config.Config, m *metrics.Metrics, log *zap.Logger) (InventoryResult, error) {
	if cfg.Inventory.Mode == "memory" {
		log.Warn("インメモリの在庫サービスを使用します")
		return InventoryResult{Client: memory.NewInventory()}, nil
	}

	conn, err := infragrpc.Dial(cfg.Inventory.Addr)
	if err != nil {
		return InventoryResult{}, err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// 接続は遅延確立。起動時に待たない
			conn.Connect()
			log.Info("在庫サービス接続", zap.String("addr", cfg.Inventory.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return conn.Close()
		},
	})

	return InventoryResult{
		Client: infragrpc.NewInventoryClient(conn, cfg.Inventory.CallTimeout, m),
		Readiness: []NamedCheck{{
			Name: "inventory",
			Check: func(context.Context) error {
				if s := conn.GetState(); s == connectivity.TransientFailure || s == connectivity.Shutdown {
					return fmt.Errorf("在庫サービス接続状態: %s", s)
				}
				return nil
			},
		}},
	}, nil
}
