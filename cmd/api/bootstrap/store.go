package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/postgres"
	infraredis "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

var StoreModule = fx.Module("store",
	fx.Provide(
		NewRedis,
		NewBookingRepository,
	),
)

// RedisResult は Redis を使う場合のみ値を持つ
type RedisResult struct {
	fx.Out

	Client    *goredis.Client
	Locks     *infraredis.LockManager
	Readiness []NamedCheck `group:"readiness,flatten"`
}

// NewRedis は予約ストアまたはスイープロックで Redis を使う場合に接続する
func NewRedis(lc fx.Lifecycle, cfg *config.Config, m *metrics.Metrics, log *zap.Logger) RedisResult {
	if cfg.BookingStore != "redis" && !cfg.Saga.SweepLock {
		return RedisResult{}
	}

	client := infraredis.NewClient(&cfg.Redis)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := infraredis.Ping(ctx, client); err != nil {
				return err
			}
			log.Info("Redis接続完了", zap.String("addr", cfg.Redis.Addr()))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return RedisResult{
		Client: client,
		Locks:  infraredis.NewLockManager(client, m),
		Readiness: []NamedCheck{{
			Name:  "redis",
			Check: func(ctx context.Context) error { return infraredis.Ping(ctx, client) },
		}},
	}
}

type StoreParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *zap.Logger
	Redis     *goredis.Client
	Locks     *infraredis.LockManager
}

type StoreResult struct {
	fx.Out

	Repository booking.Repository
	Readiness  []NamedCheck `group:"readiness,flatten"`
}

// NewBookingRepository は BOOKING_STORE に応じた予約ストアを作成する
func NewBookingRepository(p StoreParams) (StoreResult, error) {
	switch p.Config.BookingStore {
	case "postgres":
		return newPostgresStore(p)
	case "redis":
		return StoreResult{Repository: infraredis.NewBookingStore(p.Redis, p.Locks)}, nil
	case "memory":
		p.Logger.Warn("インメモリの予約ストアを使用します（再起動で消えます）")
		return StoreResult{Repository: memory.NewBookingStore()}, nil
	default:
		return StoreResult{}, fmt.Errorf("不明な予約ストア: %s", p.Config.BookingStore)
	}
}

func newPostgresStore(p StoreParams) (StoreResult, error) {
	db, err := postgres.NewConnection(&p.Config.Database)
	if err != nil {
		return StoreResult{}, err
	}
	version, err := postgres.RunMigrations(db.DB, p.Config.Database.MigrationsPath)
	if err != nil {
		_ = db.Close()
		return StoreResult{}, err
	}
	p.Logger.Info("データベース接続完了",
		zap.String("host", p.Config.Database.Host),
		zap.String("dbname", p.Config.Database.DBName),
		zap.Uint("schema_version", version),
	)

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})

	return StoreResult{
		Repository: postgres.NewBookingRepository(db, postgres.NewTxManager(db)),
		Readiness: []NamedCheck{{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) },
		}},
	}, nil
}
