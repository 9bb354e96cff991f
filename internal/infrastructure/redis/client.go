package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/errs"
)

// clientName は CLIENT LIST でコーディネーターの接続を見分けるための名前
const clientName = "booking-coordinator"

// NewClient は予約ストアとスイープロックが共有する Redis クライアントを作成する
func NewClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       cfg.Addr(),
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		ClientName: clientName,
	})
}

// Ping は readiness 用の疎通確認
func Ping(ctx context.Context, client redis.Cmdable) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return errs.Wrap(err, "予約ストアの Redis に接続できません")
	}
	return nil
}
