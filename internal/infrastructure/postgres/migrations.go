package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// bookingMigrationsTable は在庫サービスなど同居するスキーマと履歴を分ける
const bookingMigrationsTable = "booking_schema_migrations"

// RunMigrations は bookings テーブルを最新にし、適用済みのバージョンを返す。
// 途中で失敗して dirty のままならエラーにする
func RunMigrations(db *sql.DB, migrationsPath string) (uint, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: bookingMigrationsTable})
	if err != nil {
		return 0, fmt.Errorf("予約スキーマのマイグレーションドライバー作成に失敗: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("予約スキーマのマイグレーション読み込みに失敗 (%s): %w", migrationsPath, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("予約スキーマのマイグレーションに失敗: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("予約スキーマのバージョン取得に失敗: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("予約スキーマのバージョン %d が dirty です", version)
	}
	return version, nil
}
