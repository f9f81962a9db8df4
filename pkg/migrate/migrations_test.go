package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech4loop/marketplace-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsContainSchemas(t *testing.T) {
	cases := map[string][]string{
		"create_profiles_and_categories": {
			"CREATE TABLE IF NOT EXISTS profiles",
			"service_regions TEXT[]",
			"CREATE TABLE IF NOT EXISTS categories",
			"DROP TABLE IF EXISTS profiles",
		},
		"create_products_table": {
			"CREATE TABLE IF NOT EXISTS products",
			"CHECK (stock IS NULL OR stock >= 0)",
			"price NUMERIC(12,2) NOT NULL",
			"DROP TABLE IF EXISTS products",
		},
		"create_orders_tables": {
			"CREATE TABLE IF NOT EXISTS orders",
			"CREATE TABLE IF NOT EXISTS order_items",
			"CHECK (quantity >= 1)",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_payment_id",
			"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		},
		"create_stock_holds": {
			"CREATE TABLE IF NOT EXISTS stock_holds",
			"CHECK (status IN ('active', 'confirmed', 'released'))",
			"CREATE INDEX IF NOT EXISTS idx_stock_holds_active_expiry",
			"DROP TABLE IF EXISTS stock_holds",
		},
		"create_outbox_tables": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
			"payload JSONB NOT NULL",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_outbox_dlq_event",
		},
	}

	for suffix, checks := range cases {
		t.Run(suffix, func(t *testing.T) {
			content := readMigration(t, suffix)
			for _, sub := range checks {
				assert.Contains(t, content, sub)
			}
		})
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Tracking Index")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_tracking_index.sql"))
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	assert.Error(t, migrate.ValidateDir(dir))
}
