package storage

import (
	"context"
	"database/sql"
	"time"

	"ambulatorio/internal/core"
)

// DBTX lets queries run against either the pool or an open transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the raw SQL surface of the ledger schema. Timestamps are
// stored as unix seconds in UTC; window filters are half-open [start, end).
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx rebinds the query surface onto an open transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createTransaction = `
INSERT INTO transactions (
    patient_id, insurer_id, total_billed_cents, patient_paid_cents,
    insurance_expected_cents, payment_method, created_at, version
) VALUES (?, ?, ?, ?, ?, ?, ?, 1)`

func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, createTransaction,
		t.PatientID, t.InsurerID, t.TotalBilled.Cents, t.PatientPaid.Cents,
		t.InsuranceExpected.Cents, string(t.Method), t.CreatedAt.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const selectTransactions = `
SELECT id, patient_id, insurer_id, total_billed_cents, patient_paid_cents,
       insurance_expected_cents, insurance_actual_paid_cents, payment_method,
       created_at, version
FROM transactions
WHERE created_at >= ? AND created_at < ?
ORDER BY id`

func (q *Queries) GetTransactionsInWindow(ctx context.Context, w core.Window) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, selectTransactions, w.Start.UTC().Unix(), w.End.UTC().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

const selectInsurerTransactions = `
SELECT id, patient_id, insurer_id, total_billed_cents, patient_paid_cents,
       insurance_expected_cents, insurance_actual_paid_cents, payment_method,
       created_at, version
FROM transactions
WHERE insurer_id = ? AND created_at >= ? AND created_at < ?
ORDER BY id`

func (q *Queries) GetInsurerTransactionsInWindow(ctx context.Context, insurerID int64, w core.Window) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, selectInsurerTransactions,
		insurerID, w.Start.UTC().Unix(), w.End.UTC().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var (
			t         core.Transaction
			actual    sql.NullInt64
			method    string
			createdAt int64
			billed    int64
			patient   int64
			expected  int64
		)
		if err := rows.Scan(&t.ID, &t.PatientID, &t.InsurerID, &billed, &patient,
			&expected, &actual, &method, &createdAt, &t.Version); err != nil {
			return nil, err
		}
		t.TotalBilled = core.FromCents(billed)
		t.PatientPaid = core.FromCents(patient)
		t.InsuranceExpected = core.FromCents(expected)
		if actual.Valid {
			t.InsuranceActualPaid = core.FromCents(actual.Int64)
			t.Reconciled = true
		}
		t.Method = core.PaymentMethod(method)
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

const updateActualPaid = `
UPDATE transactions
SET insurance_actual_paid_cents = ?, version = version + 1
WHERE id = ? AND version = ?`

// UpdateActualPaid overwrites one transaction's reconciled amount guarded by
// its version stamp. Returns the number of rows hit (0 means conflict).
func (q *Queries) UpdateActualPaid(ctx context.Context, id, version int64, amount core.Money) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateActualPaid, amount.Cents, id, version)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createExpense = `
INSERT INTO expenses (description, amount_cents, category, expense_date, reported_by_id)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := q.db.ExecContext(ctx, createExpense,
		e.Description, e.Amount.Cents, string(e.Category), e.ExpenseDate.UTC().Unix(), e.ReportedByID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const selectExpenses = `
SELECT id, description, amount_cents, category, expense_date, reported_by_id
FROM expenses
WHERE expense_date >= ? AND expense_date < ?
ORDER BY id`

func (q *Queries) GetExpensesInWindow(ctx context.Context, w core.Window) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx, selectExpenses, w.Start.UTC().Unix(), w.End.UTC().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e        core.Expense
			amount   int64
			category string
			date     int64
		)
		if err := rows.Scan(&e.ID, &e.Description, &amount, &category, &date, &e.ReportedByID); err != nil {
			return nil, err
		}
		e.Amount = core.FromCents(amount)
		e.Category = core.ExpenseCategory(category)
		e.ExpenseDate = time.Unix(date, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

const createInsurer = `
INSERT INTO insurers (name, coverage_percentage) VALUES (?, ?)`

func (q *Queries) CreateInsurer(ctx context.Context, i core.Insurer) (int64, error) {
	res, err := q.db.ExecContext(ctx, createInsurer, i.Name, i.CoveragePercentage)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const selectInsurers = `
SELECT id, name, coverage_percentage FROM insurers ORDER BY id`

func (q *Queries) GetInsurers(ctx context.Context) ([]core.Insurer, error) {
	rows, err := q.db.QueryContext(ctx, selectInsurers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Insurer
	for rows.Next() {
		var i core.Insurer
		if err := rows.Scan(&i.ID, &i.Name, &i.CoveragePercentage); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

const selectInsurer = `
SELECT id, name, coverage_percentage FROM insurers WHERE id = ?`

func (q *Queries) GetInsurer(ctx context.Context, id int64) (core.Insurer, error) {
	var i core.Insurer
	err := q.db.QueryRowContext(ctx, selectInsurer, id).Scan(&i.ID, &i.Name, &i.CoveragePercentage)
	return i, err
}

const upsertReconciliation = `
INSERT INTO reconciliations (id, insurer_id, window_start, window_end, received_cents, transaction_count, committed_at)
VALUES (?, ?, ?, ?, ?, ?, unixepoch())
ON CONFLICT (id) DO UPDATE SET
    received_cents = excluded.received_cents,
    transaction_count = excluded.transaction_count,
    committed_at = unixepoch(),
    exported_at = NULL`

func (q *Queries) UpsertReconciliation(ctx context.Context, id string, insurerID int64, w core.Window, received core.Money, txCount int) error {
	_, err := q.db.ExecContext(ctx, upsertReconciliation,
		id, insurerID, w.Start.UTC().Unix(), w.End.UTC().Unix(), received.Cents, txCount)
	return err
}

const selectReconciliation = `
SELECT id, insurer_id, window_start, window_end, received_cents, transaction_count
FROM reconciliations WHERE id = ?`

// ReconciliationRow is the committed register entry as stored.
type ReconciliationRow struct {
	ID               string
	InsurerID        int64
	WindowStart      time.Time
	WindowEnd        time.Time
	Received         core.Money
	TransactionCount int
}

func (q *Queries) GetReconciliation(ctx context.Context, id string) (ReconciliationRow, error) {
	var (
		row           ReconciliationRow
		start, end    int64
		receivedCents int64
	)
	err := q.db.QueryRowContext(ctx, selectReconciliation, id).Scan(
		&row.ID, &row.InsurerID, &start, &end, &receivedCents, &row.TransactionCount)
	if err != nil {
		return ReconciliationRow{}, err
	}
	row.WindowStart = time.Unix(start, 0).UTC()
	row.WindowEnd = time.Unix(end, 0).UTC()
	row.Received = core.FromCents(receivedCents)
	return row, nil
}

const selectUnexportedReconciliations = `
SELECT id, insurer_id, window_start, window_end, received_cents, transaction_count
FROM reconciliations WHERE exported_at IS NULL
ORDER BY committed_at
LIMIT ?`

func (q *Queries) GetUnexportedReconciliations(ctx context.Context, limit int) ([]ReconciliationRow, error) {
	rows, err := q.db.QueryContext(ctx, selectUnexportedReconciliations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReconciliationRow
	for rows.Next() {
		var (
			row           ReconciliationRow
			start, end    int64
			receivedCents int64
		)
		if err := rows.Scan(&row.ID, &row.InsurerID, &start, &end, &receivedCents, &row.TransactionCount); err != nil {
			return nil, err
		}
		row.WindowStart = time.Unix(start, 0).UTC()
		row.WindowEnd = time.Unix(end, 0).UTC()
		row.Received = core.FromCents(receivedCents)
		out = append(out, row)
	}
	return out, rows.Err()
}

const markReconciliationExported = `
UPDATE reconciliations SET exported_at = unixepoch() WHERE id = ?`

func (q *Queries) MarkReconciliationExported(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markReconciliationExported, id)
	return err
}

const countDistinctPatients = `
SELECT COUNT(DISTINCT patient_id) FROM transactions
WHERE created_at >= ? AND created_at < ?`

func (q *Queries) CountDistinctPatients(ctx context.Context, w core.Window) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countDistinctPatients,
		w.Start.UTC().Unix(), w.End.UTC().Unix()).Scan(&n)
	return n, err
}
