package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"budgetbot/internal/core"
	"budgetbot/internal/ledger"
	ports "budgetbot/internal/sheets"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the ledger and reference data in SQLite. The
// ledger is exposed with sheet semantics: a synthetic header row followed
// by data rows ordered by insertion.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.Backend = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ScanAll implements sheets.LedgerStore
func (r *SQLiteRepository) ScanAll(ctx context.Context) ([][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ts, person, category, amount, note, reserved, month_key, share_a, share_b
		   FROM ledger ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	defer rows.Close()

	out := [][]string{append([]string(nil), ledger.Header...)}
	for rows.Next() {
		var (
			ts, person, category, note, reserved, month string
			amount                                      int64
			shareA, shareB                              sql.NullInt64
		)
		if err := rows.Scan(&ts, &person, &category, &amount, &note, &reserved, &month, &shareA, &shareB); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		row := []string{ts, person, category, strconv.FormatInt(amount, 10), note, reserved, month}
		if shareA.Valid || shareB.Valid {
			row = append(row, strconv.FormatInt(shareA.Int64, 10), strconv.FormatInt(shareB.Int64, 10))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return out, nil
}

// Append implements sheets.LedgerStore
func (r *SQLiteRepository) Append(ctx context.Context, row []string) error {
	tx := ledger.Decode(row, nil)
	if tx.Amount <= 0 {
		return fmt.Errorf("append: %w", core.ErrInvalidAmount)
	}
	var shareA, shareB sql.NullInt64
	if tx.Shares != nil {
		shareA = sql.NullInt64{Int64: tx.Shares.A, Valid: true}
		shareB = sql.NullInt64{Int64: tx.Shares.B, Valid: true}
	}
	reserved := tx.Reserved
	if reserved == "" {
		reserved = "0"
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger (ts, person, category, amount, note, reserved, month_key, share_a, share_b)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		firstCell(row), tx.Person, tx.Category, tx.Amount, tx.Note, reserved, string(tx.Month), shareA, shareB)
	if err != nil {
		return fmt.Errorf("insert ledger row: %w", err)
	}
	id, _ := res.LastInsertId()
	slog.DebugContext(ctx, "Ledger row saved to SQLite", "id", id, "category", tx.Category, "amount", tx.Amount)
	return nil
}

// DeleteAt implements sheets.LedgerStore. Store row n is the (n-1)th data
// row in insertion order.
func (r *SQLiteRepository) DeleteAt(ctx context.Context, row int) error {
	if row < 2 {
		return fmt.Errorf("refusing to delete row %d", row)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM ledger ORDER BY id LIMIT 1 OFFSET ?`, row-2).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("row %d out of range", row)
	}
	if err != nil {
		return fmt.Errorf("locate row %d: %w", row, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete row %d: %w", row, err)
	}
	return tx.Commit()
}

// LoadReference implements sheets.ReferenceSource
func (r *SQLiteRepository) LoadReference(ctx context.Context) (core.Reference, error) {
	ref := core.Reference{
		Contributions:      map[string]map[string]int64{},
		ContributionTotals: map[string]int64{},
	}

	cats, err := r.db.QueryContext(ctx, `SELECT name, monthly_limit, owner FROM categories ORDER BY position`)
	if err != nil {
		return core.Reference{}, fmt.Errorf("get categories: %w", err)
	}
	defer cats.Close()
	for cats.Next() {
		var c core.Category
		if err := cats.Scan(&c.Name, &c.Limit, &c.Owner); err != nil {
			return core.Reference{}, fmt.Errorf("scan category: %w", err)
		}
		ref.Categories = append(ref.Categories, c)
	}
	if err := cats.Err(); err != nil {
		return core.Reference{}, fmt.Errorf("get categories: %w", err)
	}

	persons, err := r.db.QueryContext(ctx, `SELECT identity, name, monthly_limit, contribution FROM persons ORDER BY position`)
	if err != nil {
		return core.Reference{}, fmt.Errorf("get persons: %w", err)
	}
	defer persons.Close()
	for persons.Next() {
		var (
			p     core.Person
			total int64
		)
		if err := persons.Scan(&p.Identity, &p.Name, &p.Limit, &total); err != nil {
			return core.Reference{}, fmt.Errorf("scan person: %w", err)
		}
		ref.Persons = append(ref.Persons, p)
		ref.ContributionTotals[p.Name] = total
	}
	if err := persons.Err(); err != nil {
		return core.Reference{}, fmt.Errorf("get persons: %w", err)
	}

	shares, err := r.db.QueryContext(ctx, `SELECT person, category, amount FROM contributions`)
	if err != nil {
		return core.Reference{}, fmt.Errorf("get contributions: %w", err)
	}
	defer shares.Close()
	for shares.Next() {
		var (
			person, category string
			amount           int64
		)
		if err := shares.Scan(&person, &category, &amount); err != nil {
			return core.Reference{}, fmt.Errorf("scan contribution: %w", err)
		}
		if ref.Contributions[person] == nil {
			ref.Contributions[person] = map[string]int64{}
		}
		ref.Contributions[person][category] = amount
	}
	if err := shares.Err(); err != nil {
		return core.Reference{}, fmt.Errorf("get contributions: %w", err)
	}
	return ref, nil
}

// WriteCategoryLimit implements sheets.ReferenceSource
func (r *SQLiteRepository) WriteCategoryLimit(ctx context.Context, category string, limit int64) error {
	return r.updateLimit(ctx, `UPDATE categories SET monthly_limit = ? WHERE name = ?`, category, limit)
}

// WritePersonLimit implements sheets.ReferenceSource
func (r *SQLiteRepository) WritePersonLimit(ctx context.Context, person string, limit int64) error {
	return r.updateLimit(ctx, `UPDATE persons SET monthly_limit = ? WHERE name = ?`, person, limit)
}

func (r *SQLiteRepository) updateLimit(ctx context.Context, query, name string, limit int64) error {
	res, err := r.db.ExecContext(ctx, query, limit, name)
	if err != nil {
		return fmt.Errorf("update limit of %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update limit of %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%q not found", name)
	}
	return nil
}

// SeedReference inserts reference data when the categories table is empty.
// It reports whether anything was written.
func (r *SQLiteRepository) SeedReference(ctx context.Context, ref core.Reference) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return false, fmt.Errorf("count categories: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, c := range ref.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, monthly_limit, owner) VALUES (?, ?, ?)`,
			c.Name, c.Limit, c.Owner); err != nil {
			return false, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}
	for _, p := range ref.Persons {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO persons (identity, name, monthly_limit, contribution) VALUES (?, ?, ?, ?)`,
			p.Identity, p.Name, p.Limit, ref.ContributionTotals[p.Name]); err != nil {
			return false, fmt.Errorf("seed person %q: %w", p.Name, err)
		}
	}
	for person, cats := range ref.Contributions {
		for category, amount := range cats {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO contributions (person, category, amount) VALUES (?, ?, ?)`,
				person, category, amount); err != nil {
				return false, fmt.Errorf("seed contribution %s/%s: %w", person, category, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}
