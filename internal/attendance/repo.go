package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"qrattend/internal/store"
)

const selectColumns = `SELECT roll, name, date, time, COALESCE(subject, ''), COALESCE(branch, '') FROM attendance`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Repository persists attendance rows in Postgres or SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Exists reports whether a row matches roll and date plus every non-empty scope field.
func (r *Repository) Exists(ctx context.Context, roll, date string, scope Scope) (bool, error) {
	w := where{}
	w.eq("roll", roll)
	w.eq("date", date)
	if scope.Subject != "" {
		w.eq("subject", scope.Subject)
	}
	if scope.Branch != "" {
		w.eq("branch", scope.Branch)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT 1 FROM attendance`+w.sql()+` LIMIT 1`, w.args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

// Insert writes a new row. A unique index violation is reported as a DuplicateError.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (roll, name, date, time, subject, branch)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.Roll, rec.Name, rec.Date, rec.Time, rec.Subject, rec.Branch)
	if store.IsUniqueViolation(err) {
		return &DuplicateError{Roll: rec.Roll, Date: rec.Date, Scope: rec.Scope()}
	}
	return err
}

// List returns records matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	return list(ctx, r.db, filterWhere(f))
}

// ListByName returns every record for an exact student name, newest first.
func (r *Repository) ListByName(ctx context.Context, name string) ([]Record, error) {
	w := where{}
	w.eq("name", name)
	return list(ctx, r.db, w)
}

// Delete removes rows matching roll, date and time, and subject when given.
func (r *Repository) Delete(ctx context.Context, roll, date, tm, subject string) (int64, error) {
	w := where{}
	w.eq("roll", roll)
	w.eq("date", date)
	w.eq("time", tm)
	if subject != "" {
		w.eq("subject", subject)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance`+w.sql(), w.args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearScope selects the rows in scope, hands them to snapshot, then deletes
// them, all inside one transaction. A snapshot error aborts the delete.
func (r *Repository) ClearScope(ctx context.Context, scope Scope, snapshot func([]Record) error) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	w := filterWhere(Filter{Subject: scope.Subject, Branch: scope.Branch})
	recs, err := list(ctx, tx, w)
	if err != nil {
		return 0, err
	}
	if snapshot != nil {
		if err := snapshot(recs); err != nil {
			return 0, err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM attendance`+w.sql(), w.args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func filterWhere(f Filter) where {
	w := where{}
	if f.Subject != "" {
		w.eq("subject", f.Subject)
	}
	if f.Branch != "" {
		w.eq("branch", f.Branch)
	}
	if f.Name != "" {
		w.add("LOWER(name) LIKE LOWER(%s)", "%"+f.Name+"%")
	}
	if f.Month != "" {
		w.add("substr(date, 6, 2) = %s", f.Month)
	}
	if f.Day != "" {
		w.add("substr(date, 9, 2) = %s", f.Day)
	}
	return w
}

func list(ctx context.Context, q querier, w where) ([]Record, error) {
	rows, err := q.QueryContext(ctx, selectColumns+w.sql()+` ORDER BY date DESC, time DESC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Roll, &rec.Name, &rec.Date, &rec.Time, &rec.Subject, &rec.Branch); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// where accumulates AND-ed clauses with numbered placeholders.
type where struct {
	clauses []string
	args    []any
}

func (w *where) eq(column string, v any) {
	w.add(column+" = %s", v)
}

func (w *where) add(format string, v any) {
	w.args = append(w.args, v)
	w.clauses = append(w.clauses, fmt.Sprintf(format, fmt.Sprintf("$%d", len(w.args))))
}

func (w where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
