package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ambulatorio/internal/core"
	"ambulatorio/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedInsurer(t *testing.T, repo *SQLiteRepository, name string, pct int64) core.Insurer {
	t.Helper()
	id, err := repo.CreateInsurer(context.Background(), core.Insurer{Name: name, CoveragePercentage: pct})
	if err != nil {
		t.Fatalf("create insurer: %v", err)
	}
	return core.Insurer{ID: id, Name: name, CoveragePercentage: pct}
}

func seedTransaction(t *testing.T, repo *SQLiteRepository, ins *core.Insurer, patientID int64, billedCents int64, at time.Time) int64 {
	t.Helper()
	tx, err := core.NewTransaction(patientID, ins, core.FromCents(billedCents), core.PaymentCash, at)
	if err != nil {
		t.Fatalf("build transaction: %v", err)
	}
	id, err := repo.CreateTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return id
}

func TestTransactionWindowQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ins := seedInsurer(t, repo, "Mutuelle A", 80)

	march := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	seedTransaction(t, repo, &ins, 1, 1000000, march)
	seedTransaction(t, repo, &ins, 2, 500000, april)
	seedTransaction(t, repo, nil, 3, 30000, march)

	got, err := repo.ListTransactions(ctx, core.MonthWindow(2026, 3))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 march transactions, got %d", len(got))
	}
	if got[0].InsuranceExpected.Cents != 800000 {
		t.Fatalf("stored split wrong: %s", got[0].InsuranceExpected)
	}
	if got[0].Reconciled {
		t.Fatalf("fresh transaction must not be reconciled")
	}

	byInsurer, err := repo.ListInsurerTransactions(ctx, ins.ID, core.MonthWindow(2026, 3))
	if err != nil {
		t.Fatalf("list by insurer: %v", err)
	}
	if len(byInsurer) != 1 {
		t.Fatalf("expected 1 insured march transaction, got %d", len(byInsurer))
	}
}

func TestCommitActualPaidRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ins := seedInsurer(t, repo, "Mutuelle A", 80)

	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	id1 := seedTransaction(t, repo, &ins, 1, 1000000, at)
	id2 := seedTransaction(t, repo, &ins, 2, 500000, at)

	rec := ledger.ReconciliationRecord{
		ID:               "rec-1",
		InsurerID:        ins.ID,
		Window:           core.MonthWindow(2026, 3),
		ReceivedAmount:   core.FromCents(900000),
		TransactionCount: 2,
	}
	batch := []ledger.ActualPaidUpdate{
		{TransactionID: id1, Version: 1, Amount: core.FromCents(600000)},
		{TransactionID: id2, Version: 1, Amount: core.FromCents(300000)},
	}
	if err := repo.CommitActualPaid(ctx, rec, batch); err != nil {
		t.Fatalf("commit: %v", err)
	}

	txs, err := repo.ListInsurerTransactions(ctx, ins.ID, core.MonthWindow(2026, 3))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, tx := range txs {
		if !tx.Reconciled || tx.Version != 2 {
			t.Fatalf("commit not applied: %+v", tx)
		}
	}
	if txs[0].InsuranceActualPaid.Cents != 600000 || txs[1].InsuranceActualPaid.Cents != 300000 {
		t.Fatalf("actual paid wrong: %s / %s", txs[0].InsuranceActualPaid, txs[1].InsuranceActualPaid)
	}

	row, err := repo.GetReconciliation(ctx, "rec-1")
	if err != nil {
		t.Fatalf("get reconciliation: %v", err)
	}
	if row.Received.Cents != 900000 || row.TransactionCount != 2 {
		t.Fatalf("register row wrong: %+v", row)
	}
}

func TestCommitActualPaidConflictRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ins := seedInsurer(t, repo, "Mutuelle A", 80)

	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	id1 := seedTransaction(t, repo, &ins, 1, 1000000, at)
	id2 := seedTransaction(t, repo, &ins, 2, 500000, at)

	rec := ledger.ReconciliationRecord{ID: "rec-1", InsurerID: ins.ID, Window: core.MonthWindow(2026, 3)}
	batch := []ledger.ActualPaidUpdate{
		{TransactionID: id1, Version: 1, Amount: core.FromCents(600000)},
		{TransactionID: id2, Version: 7, Amount: core.FromCents(300000)}, // stale
	}
	err := repo.CommitActualPaid(ctx, rec, batch)
	if !errors.Is(err, core.ErrCommitConflict) {
		t.Fatalf("expected ErrCommitConflict, got %v", err)
	}

	txs, _ := repo.ListInsurerTransactions(ctx, ins.ID, core.MonthWindow(2026, 3))
	for _, tx := range txs {
		if tx.Reconciled || tx.Version != 1 {
			t.Fatalf("conflict must leave rows untouched: %+v", tx)
		}
	}
}

func TestExpenseWindowQueries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	march := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	_, err := repo.CreateExpense(ctx, core.Expense{
		Description: "sterile gloves",
		Amount:      core.FromCents(45000),
		Category:    core.ExpenseClinical,
		ExpenseDate: march,
		ReportedByID: 1,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	got, err := repo.ListExpenses(ctx, core.MonthWindow(2026, 3))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Amount.Cents != 45000 || got[0].Category != core.ExpenseClinical {
		t.Fatalf("expense round trip wrong: %+v", got)
	}

	empty, err := repo.ListExpenses(ctx, core.MonthWindow(2026, 4))
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no april expenses, got %d", len(empty))
	}
}

func TestCountDistinctPatients(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ins := seedInsurer(t, repo, "Mutuelle A", 50)

	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	seedTransaction(t, repo, &ins, 1, 10000, jan)
	seedTransaction(t, repo, &ins, 1, 10000, feb) // same patient, second month
	seedTransaction(t, repo, &ins, 2, 10000, feb)

	w, _ := core.NewWindow(jan, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	n, err := repo.CountDistinctPatients(ctx, w)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 distinct patients, got %d", n)
	}
}

func TestGetInsurerUnknown(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetInsurer(context.Background(), 404); !errors.Is(err, core.ErrUnknownInsurer) {
		t.Fatalf("expected ErrUnknownInsurer, got %v", err)
	}
}
