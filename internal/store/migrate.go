package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type migration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sql.Tx, d *DB) error
}

// Migrations bring any earlier attendance table, including ones created before
// subject and branch existed, to the fixed column set every query relies on.
var migrations = []migration{
	{1, "create_attendance", createAttendance},
	{2, "add_subject", addColumn("subject")},
	{3, "add_branch", addColumn("branch")},
	{4, "normalize_scope", normalizeScope},
	{5, "scope_index", scopeIndex},
	{6, "drop_admin_table", dropAdminTable},
}

func migrate(ctx context.Context, d *DB) error {
	if _, err := d.Client.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := d.Client.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := runMigration(ctx, d, m); err != nil {
			return fmt.Errorf("migration %d %s: %w", m.version, m.name, err)
		}
		d.logger().Info("migration applied", zap.Int("version", m.version), zap.String("name", m.name))
	}
	return nil
}

func runMigration(ctx context.Context, d *DB, m migration) error {
	tx, err := d.Client.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx, d); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
		m.version, m.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

func createAttendance(ctx context.Context, tx *sql.Tx, d *DB) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance (
			roll TEXT,
			name TEXT,
			date TEXT,
			time TEXT
		)`); err != nil {
		return err
	}
	if d.Dialect != SQLite {
		return nil
	}

	// very old SQLite files carried a surrogate id column; rebuild without it
	cols, err := tableColumns(ctx, tx, d.Dialect, "attendance")
	if err != nil {
		return err
	}
	if !contains(cols, "id") {
		return nil
	}
	var keep []string
	for _, c := range cols {
		if c != "id" {
			keep = append(keep, c)
		}
	}
	colList := strings.Join(keep, ", ")
	defs := make([]string, len(keep))
	for i, c := range keep {
		defs[i] = c + " TEXT"
	}
	stmts := []string{
		`DROP TABLE IF EXISTS attendance_new`,
		`CREATE TABLE attendance_new (` + strings.Join(defs, ", ") + `)`,
		`INSERT INTO attendance_new (` + colList + `) SELECT ` + colList + ` FROM attendance`,
		`DROP TABLE attendance`,
		`ALTER TABLE attendance_new RENAME TO attendance`,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func addColumn(name string) func(ctx context.Context, tx *sql.Tx, d *DB) error {
	return func(ctx context.Context, tx *sql.Tx, d *DB) error {
		cols, err := tableColumns(ctx, tx, d.Dialect, "attendance")
		if err != nil {
			return err
		}
		if contains(cols, name) {
			return nil
		}
		_, err = tx.ExecContext(ctx, `ALTER TABLE attendance ADD COLUMN `+name+` TEXT`)
		return err
	}
}

func normalizeScope(ctx context.Context, tx *sql.Tx, _ *DB) error {
	stmts := []string{
		`UPDATE attendance SET subject = '' WHERE subject IS NULL`,
		`UPDATE attendance SET branch = '' WHERE branch IS NULL`,
		`UPDATE attendance SET subject = 'P and S' WHERE subject = 'P&S'`,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// scopeIndex makes (roll, date, subject, branch) unique. Databases that already
// hold duplicates get a plain index and keep the check-then-insert race.
func scopeIndex(ctx context.Context, tx *sql.Tx, d *DB) error {
	var dupes int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT roll FROM attendance
			GROUP BY roll, date, subject, branch
			HAVING COUNT(*) > 1
		) d`).Scan(&dupes); err != nil {
		return err
	}
	if dupes > 0 {
		d.logger().Warn("duplicate attendance rows present, unique scope index not created",
			zap.Int("groups", dupes))
		_, err := tx.ExecContext(ctx,
			`CREATE INDEX IF NOT EXISTS attendance_scope_idx ON attendance (roll, date, subject, branch)`)
		return err
	}
	_, err := tx.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS attendance_scope_uniq ON attendance (roll, date, subject, branch)`)
	return err
}

func dropAdminTable(ctx context.Context, tx *sql.Tx, _ *DB) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS admin`)
	return err
}

func tableColumns(ctx context.Context, tx *sql.Tx, dialect Dialect, table string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if dialect == SQLite {
		rows, err = tx.QueryContext(ctx, `SELECT name FROM pragma_table_info('`+table+`')`)
	} else {
		rows, err = tx.QueryContext(ctx,
			`SELECT column_name FROM information_schema.columns WHERE table_name = $1 AND table_schema = current_schema()`, table)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, strings.ToLower(c))
	}
	return cols, rows.Err()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (d *DB) logger() *zap.Logger {
	if d.log == nil {
		return zap.NewNop()
	}
	return d.log
}
