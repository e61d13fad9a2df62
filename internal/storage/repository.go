package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hongyan1215/money/internal/core"

	_ "modernc.org/sqlite"
)

// Export states for the spreadsheet backup queue.
const (
	ExportPending = 0
	ExportDone    = 1
	ExportFailed  = 2
)

// SQLiteRepository is the durable ledger store. It is the sole arbiter of
// per-record consistency: every mutation is a single-statement write, and
// callers treat zero affected rows as a lost race, not an error to retry.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

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

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const transactionColumns = "id, owner, kind, amount, category, item, occurred_at, created_at"

func scanTransaction(row interface{ Scan(dest ...any) error }) (core.Transaction, error) {
	var (
		tx                core.Transaction
		kind, category    string
		occurred, created int64
	)
	err := row.Scan(&tx.ID, &tx.Owner, &kind, &tx.Amount, &category, &tx.Item, &occurred, &created)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.Category = core.Category(category)
	tx.OccurredAt = time.Unix(0, occurred)
	tx.CreatedAt = time.Unix(0, created)
	return tx, nil
}

// CreateTransaction persists a single transaction record.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner, kind, amount, category, item, occurred_at, created_at, export_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Owner, string(tx.Kind), tx.Amount, string(tx.Category), tx.Item,
		tx.OccurredAt.UnixNano(), tx.CreatedAt.UnixNano(), ExportPending,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// CountEquivalentSince counts records equal on (owner, item, amount,
// category, kind) whose occurrence date falls inside [since, until].
// Equality is exact and case-sensitive; this backs the duplicate guard,
// so pre-dated future entries must not count against a resend window.
func (r *SQLiteRepository) CountEquivalentSince(ctx context.Context, owner, item string, amount float64, category core.Category, kind core.Kind, since, until time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE owner = ? AND item = ? AND amount = ? AND category = ? AND kind = ?
		  AND occurred_at >= ? AND occurred_at <= ?`,
		owner, item, amount, string(category), string(kind), since.UnixNano(), until.UnixNano(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count equivalent transactions: %w", err)
	}
	return n, nil
}

// SearchByItem returns the owner's newest transactions whose item label
// contains substr, case-insensitively, capped at limit.
func (r *SQLiteRepository) SearchByItem(ctx context.Context, owner, substr string, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE owner = ? AND instr(lower(item), lower(?)) > 0
		ORDER BY created_at DESC LIMIT ?`,
		owner, substr, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search by item: %w", err)
	}
	return collectTransactions(rows)
}

// SearchByAmount returns the owner's newest transactions with exactly the
// given amount, capped at limit.
func (r *SQLiteRepository) SearchByAmount(ctx context.Context, owner string, amount float64, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE owner = ? AND amount = ?
		ORDER BY created_at DESC LIMIT ?`,
		owner, amount, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search by amount: %w", err)
	}
	return collectTransactions(rows)
}

// FindByOffset returns the record at the given position in the owner's
// history ordered by creation time descending (0 = most recent).
// Returns core.ErrNotFound when the history is shorter than offset.
func (r *SQLiteRepository) FindByOffset(ctx context.Context, owner string, offset int) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE owner = ?
		ORDER BY created_at DESC LIMIT 1 OFFSET ?`,
		owner, offset,
	)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find by offset: %w", err)
	}
	return tx, nil
}

// GetTransaction looks up one record by id within the owner's ledger.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE owner = ? AND id = ?`,
		owner, id,
	)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// GetTransactionByID looks up one record by id alone. The export path
// uses it: export requests carry no owner.
func (r *SQLiteRepository) GetTransactionByID(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE id = ?`,
		id,
	)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction by id: %w", err)
	}
	return tx, nil
}

// UpdateTransaction applies the non-empty patch fields to one record and
// reports how many rows changed (0 means the record vanished).
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, owner, id string, patch core.MutationPatch) (int64, error) {
	var (
		sets []string
		args []any
	)
	if patch.Item != "" {
		sets = append(sets, "item = ?")
		args = append(args, patch.Item)
	}
	if patch.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, *patch.Amount)
	}
	if patch.Category != "" {
		sets = append(sets, "category = ?")
		args = append(args, string(patch.Category))
	}
	if len(sets) == 0 {
		return 0, core.ErrEmptyPatch
	}
	args = append(args, owner, id)

	res, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET "+strings.Join(sets, ", ")+" WHERE owner = ? AND id = ?",
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("update transaction: %w", err)
	}
	return res.RowsAffected()
}

// DeleteTransaction removes one record and reports how many rows changed.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE owner = ? AND id = ?",
		owner, id,
	)
	if err != nil {
		return 0, fmt.Errorf("delete transaction: %w", err)
	}
	return res.RowsAffected()
}

// DeleteRange removes every record whose occurrence date lies in the
// inclusive range and returns the deleted count.
func (r *SQLiteRepository) DeleteRange(ctx context.Context, owner string, rng core.DateRange) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE owner = ? AND occurred_at >= ? AND occurred_at <= ?`,
		owner, rng.Start.UnixNano(), rng.End.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete range: %w", err)
	}
	return res.RowsAffected()
}

// ListRange returns the filtered transactions newest-first. A zero Limit
// returns the whole filtered set.
func (r *SQLiteRepository) ListRange(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE owner = ?`
	args := []any{f.Owner}

	// A zero boundary means the caller didn't give one; read paths
	// tolerate open ranges.
	if !f.Range.Start.IsZero() {
		q += " AND occurred_at >= ?"
		args = append(args, f.Range.Start.UnixNano())
	}
	if !f.Range.End.IsZero() {
		q += " AND occurred_at <= ?"
		args = append(args, f.Range.End.UnixNano())
	}
	if f.Category != "" {
		q += " AND category = ?"
		args = append(args, string(f.Category))
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list range: %w", err)
	}
	return collectTransactions(rows)
}

// MonthExpenseTotal sums the owner's expense amounts inside rng, filtered
// to one category unless category is the Total sentinel.
func (r *SQLiteRepository) MonthExpenseTotal(ctx context.Context, owner string, category core.Category, rng core.DateRange) (float64, error) {
	q := `SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE owner = ? AND kind = ? AND occurred_at >= ? AND occurred_at <= ?`
	args := []any{owner, string(core.Expense), rng.Start.UnixNano(), rng.End.UnixNano()}

	if category != core.TotalBudget {
		q += " AND category = ?"
		args = append(args, string(category))
	}

	var total float64
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("month expense total: %w", err)
	}
	return total, nil
}

// UpsertBudget creates or replaces the (owner, category) budget.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (owner, category, limit_amount, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner, category) DO UPDATE SET
			limit_amount = excluded.limit_amount,
			updated_at = excluded.updated_at`,
		b.Owner, string(b.Category), b.Limit, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

// ListBudgets returns every budget the owner has defined, Total first.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, owner string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner, category, limit_amount FROM budgets
		WHERE owner = ?
		ORDER BY CASE category WHEN ? THEN 0 ELSE 1 END, category`,
		owner, string(core.TotalBudget),
	)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var (
			b        core.Budget
			category string
		)
		if err := rows.Scan(&b.Owner, &category, &b.Limit); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Category = core.Category(category)
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// GetBudget looks up the (owner, category) budget; core.ErrNotFound when
// none is set.
func (r *SQLiteRepository) GetBudget(ctx context.Context, owner string, category core.Category) (core.Budget, error) {
	var (
		b   core.Budget
		cat string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT owner, category, limit_amount FROM budgets
		WHERE owner = ? AND category = ?`,
		owner, string(category),
	).Scan(&b.Owner, &cat, &b.Limit)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	b.Category = core.Category(cat)
	return b, nil
}

// PendingExports returns the oldest records not yet appended to the
// spreadsheet backup, for the export worker's recovery scan.
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE export_state = ?
		ORDER BY created_at ASC LIMIT ?`,
		ExportPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending exports: %w", err)
	}
	return collectTransactions(rows)
}

// MarkExported flags a record as successfully backed up.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET export_state = ? WHERE id = ?", ExportDone, id,
	); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// MarkExportFailed flags a record whose backup append failed.
func (r *SQLiteRepository) MarkExportFailed(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET export_state = ? WHERE id = ?", ExportFailed, id,
	); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
