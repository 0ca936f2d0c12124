package migrate_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/bistro-backend/pkg/migrate"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	err := migrate.ValidateDir(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid migration filename")
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Table Notes!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_table_notes.sql"), path)
	require.NoError(t, migrate.ValidateDir(dir))
}

func TestReservationMigrationHasActiveSlotIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_reservations.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_reservations_active_slot",
		"WHERE status <> 'cancelled'",
		"DROP TABLE IF EXISTS reservations",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRunEmbeddedUpAndDownOnSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	require.NoError(t, migrate.RunEmbedded(ctx, sqlDB, migrate.DialectSQLite, "up"))

	for _, table := range []string{"users", "reservations", "inventory_items", "inventory_logs", "purchase_orders", "outbox_events", "outbox_dlq"} {
		require.True(t, conn.Migrator().HasTable(table), "missing table %s", table)
	}

	require.NoError(t, migrate.RunEmbedded(ctx, sqlDB, migrate.DialectSQLite, "reset"))
	require.False(t, conn.Migrator().HasTable("reservations"))
}

func TestDialectFor(t *testing.T) {
	require.Equal(t, migrate.DialectSQLite, migrate.DialectFor(true))
	require.Equal(t, migrate.DialectPostgres, migrate.DialectFor(false))
}

func TestValidateEmbedded(t *testing.T) {
	require.NoError(t, migrate.ValidateEmbedded())
}

func TestValidateDirRejectsPostgresOnlySQL(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nCREATE TYPE mood AS ENUM ('ok');\n-- +goose Down\nDROP TYPE mood;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_mood.sql"), []byte(body), 0o644))
	err := migrate.ValidateDir(dir)
	require.ErrorContains(t, err, "CREATE TYPE")
}

func TestValidateDirRejectsZonedTimestamps(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nCREATE TABLE visits (seen_at TIMESTAMPTZ);\n-- +goose Down\nDROP TABLE visits;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_visits.sql"), []byte(body), 0o644))
	require.ErrorContains(t, migrate.ValidateDir(dir), "TIMESTAMPTZ")
}

func TestCreateSQLMigrationTableSkeleton(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "create waitlist")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS waitlist")
	require.Contains(t, string(data), "DROP TABLE IF EXISTS waitlist;")
	require.Equal(t, "add_table_notes", migrate.Slug("  Add Table Notes! "))
}
