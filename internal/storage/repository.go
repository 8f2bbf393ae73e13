// Package storage is the SQLite-backed ledger store. It owns transaction and
// expense lifecycle and provides the atomic actual-paid commit that
// reconciliation relies on.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ambulatorio/internal/core"
	"ambulatorio/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ledger.Store = (*SQLiteRepository)(nil)

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

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	id, err := r.queries.CreateTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"patient_id", t.PatientID,
		"insurer_id", t.InsurerID,
		"total_billed", t.TotalBilled.String(),
		"payment_method", string(t.Method))

	return id, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, w core.Window) ([]core.Transaction, error) {
	txs, err := r.queries.GetTransactionsInWindow(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) ListInsurerTransactions(ctx context.Context, insurerID int64, w core.Window) ([]core.Transaction, error) {
	txs, err := r.queries.GetInsurerTransactionsInWindow(ctx, insurerID, w)
	if err != nil {
		return nil, fmt.Errorf("list insurer transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	id, err := r.queries.CreateExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"description", e.Description,
		"amount", e.Amount.String(),
		"category", string(e.Category))

	return id, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, w core.Window) ([]core.Expense, error) {
	exps, err := r.queries.GetExpensesInWindow(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return exps, nil
}

func (r *SQLiteRepository) CreateInsurer(ctx context.Context, i core.Insurer) (int64, error) {
	if err := i.Validate(); err != nil {
		return 0, err
	}
	id, err := r.queries.CreateInsurer(ctx, i)
	if err != nil {
		return 0, fmt.Errorf("create insurer: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListInsurers(ctx context.Context) ([]core.Insurer, error) {
	insurers, err := r.queries.GetInsurers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list insurers: %w", err)
	}
	return insurers, nil
}

func (r *SQLiteRepository) GetInsurer(ctx context.Context, id int64) (core.Insurer, error) {
	ins, err := r.queries.GetInsurer(ctx, id)
	if err == sql.ErrNoRows {
		return core.Insurer{}, core.ErrUnknownInsurer
	}
	if err != nil {
		return core.Insurer{}, fmt.Errorf("get insurer: %w", err)
	}
	return ins, nil
}

// CommitActualPaid applies a reconciliation batch in one SQL transaction.
// Every per-row update carries the version stamp observed at read time; a
// single miss rolls everything back and reports core.ErrCommitConflict, so a
// concurrent reconciliation on the same scope can never interleave partial
// writes. The register row is upserted in the same transaction, keyed by the
// reconciliation id, making a re-run overwrite rather than duplicate.
func (r *SQLiteRepository) CommitActualPaid(ctx context.Context, rec ledger.ReconciliationRecord, batch []ledger.ActualPaidUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit batch: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, u := range batch {
		affected, err := q.UpdateActualPaid(ctx, u.TransactionID, u.Version, u.Amount)
		if err != nil {
			return fmt.Errorf("update actual paid for transaction %d: %w", u.TransactionID, err)
		}
		if affected != 1 {
			slog.WarnContext(ctx, "Reconciliation commit conflict",
				"reconciliation_id", rec.ID,
				"transaction_id", u.TransactionID,
				"expected_version", u.Version)
			return core.ErrCommitConflict
		}
	}

	if err := q.UpsertReconciliation(ctx, rec.ID, rec.InsurerID, rec.Window, rec.ReceivedAmount, rec.TransactionCount); err != nil {
		return fmt.Errorf("record reconciliation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Reconciliation committed",
		"reconciliation_id", rec.ID,
		"insurer_id", rec.InsurerID,
		"received", rec.ReceivedAmount.String(),
		"transactions", rec.TransactionCount)

	return nil
}

// GetReconciliation returns one committed register row.
func (r *SQLiteRepository) GetReconciliation(ctx context.Context, id string) (ReconciliationRow, error) {
	row, err := r.queries.GetReconciliation(ctx, id)
	if err != nil {
		return ReconciliationRow{}, fmt.Errorf("get reconciliation: %w", err)
	}
	return row, nil
}

// GetUnexportedReconciliations lists register rows the export worker has not
// yet written to the external audit book, oldest first.
func (r *SQLiteRepository) GetUnexportedReconciliations(ctx context.Context, limit int) ([]ReconciliationRow, error) {
	rows, err := r.queries.GetUnexportedReconciliations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get unexported reconciliations: %w", err)
	}
	return rows, nil
}

// MarkReconciliationExported records that the register row reached the
// external audit book.
func (r *SQLiteRepository) MarkReconciliationExported(ctx context.Context, id string) error {
	if err := r.queries.MarkReconciliationExported(ctx, id); err != nil {
		return fmt.Errorf("mark reconciliation exported: %w", err)
	}
	return nil
}

// CountDistinctPatients counts unique patient ids across the whole window,
// not per month, so report totals never double count returning patients.
func (r *SQLiteRepository) CountDistinctPatients(ctx context.Context, w core.Window) (int, error) {
	n, err := r.queries.CountDistinctPatients(ctx, w)
	if err != nil {
		return 0, fmt.Errorf("count distinct patients: %w", err)
	}
	return n, nil
}
