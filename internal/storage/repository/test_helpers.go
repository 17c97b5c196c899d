package repository

import (
	"context"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и создаёт схему.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(wait.ForAll(
			wait.ForListeningPort(nat.Port("5432/tcp")),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(3*time.Minute)),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	_, err = storage.DB.Exec(`
        DROP TABLE IF EXISTS payments CASCADE;
        DROP TABLE IF EXISTS entitlements CASCADE;

        CREATE TABLE entitlements (
            user_id BIGINT PRIMARY KEY,
            is_vip BOOLEAN NOT NULL DEFAULT FALSE,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE payments (
            payment_id TEXT PRIMARY KEY,
            user_id BIGINT NOT NULL,
            plan_id INTEGER NOT NULL,
            amount NUMERIC(10, 2) NOT NULL,
            status TEXT NOT NULL,
            outcome TEXT NOT NULL,
            processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE INDEX idx_payments_user_id ON payments (user_id);
    `)
	require.NoError(t, err, "failed to create schema")

	cleanup := func() {
		_ = storage.DB.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return storage, cleanup
}
