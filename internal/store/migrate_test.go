package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := NewSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func columns(t *testing.T, db *DB) []string {
	t.Helper()
	tx, err := db.Client.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	cols, err := tableColumns(context.Background(), tx, db.Dialect, "attendance")
	require.NoError(t, err)
	return cols
}

func TestEnsureSchemaFreshDatabase(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	require.NoError(t, db.EnsureSchema(ctx))
	assert.True(t, db.Ready())
	assert.Equal(t, []string{"roll", "name", "date", "time", "subject", "branch"}, columns(t, db))

	var n int
	require.NoError(t, db.Client.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(migrations), n)

	// second run is a no-op
	require.NoError(t, db.EnsureSchema(ctx))
}

func TestEnsureSchemaUpgradesLegacyTable(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	for _, s := range []string{
		`CREATE TABLE admin (username TEXT, password TEXT)`,
		`INSERT INTO admin VALUES ('admin', 'admin123')`,
		`CREATE TABLE attendance (id INTEGER PRIMARY KEY, roll TEXT, name TEXT, date TEXT, time TEXT)`,
		`INSERT INTO attendance (roll, name, date, time) VALUES ('21A1', 'Asha', '2024-01-05', '09:00:00')`,
	} {
		_, err := db.Client.Exec(s)
		require.NoError(t, err)
	}

	require.NoError(t, db.EnsureSchema(ctx))
	assert.Equal(t, []string{"roll", "name", "date", "time", "subject", "branch"}, columns(t, db))

	var subject, branch string
	require.NoError(t, db.Client.QueryRow(`SELECT subject, branch FROM attendance WHERE roll = '21A1'`).Scan(&subject, &branch))
	assert.Equal(t, "", subject)
	assert.Equal(t, "", branch)

	var admins int
	require.NoError(t, db.Client.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'admin'`).Scan(&admins))
	assert.Zero(t, admins)
}

func TestEnsureSchemaNormalizesLegacySubject(t *testing.T) {
	db := openMemory(t)
	_, err := db.Client.Exec(`CREATE TABLE attendance (roll TEXT, name TEXT, date TEXT, time TEXT, subject TEXT)`)
	require.NoError(t, err)
	_, err = db.Client.Exec(`INSERT INTO attendance VALUES ('1', 'A', '2024-01-01', '10:00:00', 'P&S')`)
	require.NoError(t, err)

	require.NoError(t, db.EnsureSchema(context.Background()))

	var subject string
	require.NoError(t, db.Client.QueryRow(`SELECT subject FROM attendance`).Scan(&subject))
	assert.Equal(t, "P and S", subject)
}

func TestScopeIndexRejectsDuplicates(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, db.EnsureSchema(context.Background()))

	insert := `INSERT INTO attendance (roll, name, date, time, subject, branch) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := db.Client.Exec(insert, "1", "A", "2024-01-01", "10:00:00", "DBMS", "CSE-A")
	require.NoError(t, err)
	_, err = db.Client.Exec(insert, "1", "A", "2024-01-01", "10:01:00", "DBMS", "CSE-A")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestScopeIndexFallsBackWithLegacyDuplicates(t *testing.T) {
	db := openMemory(t)
	for _, s := range []string{
		`CREATE TABLE attendance (roll TEXT, name TEXT, date TEXT, time TEXT, subject TEXT, branch TEXT)`,
		`INSERT INTO attendance VALUES ('1', 'A', '2024-01-01', '10:00:00', 'DBMS', NULL)`,
		`INSERT INTO attendance VALUES ('1', 'A', '2024-01-01', '10:00:05', 'DBMS', NULL)`,
	} {
		_, err := db.Client.Exec(s)
		require.NoError(t, err)
	}

	require.NoError(t, db.EnsureSchema(context.Background()))

	var uniq int
	require.NoError(t, db.Client.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'attendance_scope_uniq'`).Scan(&uniq))
	assert.Zero(t, uniq)
}
