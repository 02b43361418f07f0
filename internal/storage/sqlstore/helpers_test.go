package sqlstore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vladislavdragonenkov/storefront/internal/storage/sqlstore"
)

// openSQLite создаёт мигрированную базу во временном каталоге теста.
func openSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "storefront.db")
	require.NoError(t, sqlstore.Migrate(ctx, sqlstore.DriverSQLite, path, nil))

	store, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// postgresDSN возвращает DSN из STOREFRONT_POSTGRES_TEST_DSN либо поднимает
// контейнер. Без Docker тест пропускается.
func postgresDSN(t *testing.T) string {
	t.Helper()

	if dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN")); dsn != "" {
		return dsn
	}
	if testing.Short() {
		t.Skip("postgres integration tests are skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container is not available: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// openPostgres возвращает хранилище с чистой схемой.
func openPostgres(t *testing.T) *sqlstore.Store {
	t.Helper()

	dsn := postgresDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrator, err := sqlstore.NewMigrator(sqlstore.DriverPostgres, dsn, nil)
	require.NoError(t, err)
	require.NoError(t, migrator.Reset(ctx))
	require.NoError(t, migrator.Up(ctx, 0))
	require.NoError(t, migrator.Close())

	store, err := sqlstore.Open(ctx, sqlstore.DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
