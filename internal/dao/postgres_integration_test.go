//go:build integration

package dao_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
)

// setupPostgresContainer starts a real Postgres instance, runs the engine's
// reference schema against it, and returns a Store backed by it. Modeled on
// the teacher's tests/integration/testcontainers.go helper.
func setupPostgresContainer(t *testing.T) dao.Store {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("enrichment_test"),
		tcpostgres.WithUsername("enrichment_test"),
		tcpostgres.WithPassword("enrichment_test"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp").WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &dao.PostgresConfig{
		Host:     host,
		Port:     port.Port(),
		User:     "enrichment_test",
		Password: "enrichment_test",
		Name:     "enrichment_test",
		SSLMode:  "disable",
	}

	applySchema(t, cfg)

	store, err := dao.NewPostgresStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// applySchema runs the reference schema over a plain database/sql
// connection, independent of the Store abstraction under test.
func applySchema(t *testing.T, cfg *dao.PostgresConfig) {
	t.Helper()
	schemaPath, err := filepath.Abs("../../migrations/0001_reference_schema.sql")
	require.NoError(t, err)
	schema, err := os.ReadFile(schemaPath)
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping())
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
}

func TestPostgresStore_SaveFindLoadDeleteRoundTrip(t *testing.T) {
	store := setupPostgresContainer(t)
	ctx := context.Background()

	row := dao.Row{"code": "EUR", "name": "Euro", "symbol": "€", "decimal_places": "2", "status": models.StatusActive}
	require.NoError(t, store.SaveOrUpdate(ctx, "currency_master", row))
	require.NotEmpty(t, row["id"])

	loaded, ok, err := store.Load(ctx, "currency_master", row["id"])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "EUR", loaded["code"])

	found, err := store.Find(ctx, "currency_master", "code = ?", []interface{}{"EUR"}, "", false, 0, 1)
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, store.Delete(ctx, "currency_master", row["id"]))
	_, ok, err = store.Load(ctx, "currency_master", row["id"])
	require.NoError(t, err)
	require.False(t, ok)
}
