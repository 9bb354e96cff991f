package postgres

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
)

func TestConfigurePool(t *testing.T) {
	// Open は接続しない
	db, err := sqlx.Open("postgres", "host=localhost dbname=ticket_booking sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	configurePool(db, &config.DatabaseConfig{MaxOpenConns: 12, MaxIdleConns: 3, ConnMaxLifetime: time.Minute})

	assert.Equal(t, 12, db.Stats().MaxOpenConnections)
}

func TestConfigurePool_ZeroKeepsDriverDefault(t *testing.T) {
	db, err := sqlx.Open("postgres", "host=localhost dbname=ticket_booking sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	configurePool(db, &config.DatabaseConfig{})

	// 0 は無制限
	assert.Equal(t, 0, db.Stats().MaxOpenConnections)
}
