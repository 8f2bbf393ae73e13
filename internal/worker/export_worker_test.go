package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"ambulatorio/internal/amqp"
	"ambulatorio/internal/core"
	"ambulatorio/internal/export"
	"ambulatorio/internal/ledger"
	"ambulatorio/internal/storage"
)

type fakeBook struct {
	rows []export.RegisterRow
	fail bool
}

func (b *fakeBook) AppendReconciliation(_ context.Context, row export.RegisterRow) (string, error) {
	if b.fail {
		return "", errors.New("sheets unavailable")
	}
	b.rows = append(b.rows, row)
	return fmt.Sprintf("2026 Reconciliations!A%d:E%d", len(b.rows), len(b.rows)), nil
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// seedReconciliation commits one reconciliation and returns its id.
func seedReconciliation(t *testing.T, repo *storage.SQLiteRepository, recID string) int64 {
	t.Helper()
	ctx := context.Background()

	insurerID, err := repo.CreateInsurer(ctx, core.Insurer{Name: "Mutuelle A", CoveragePercentage: 80})
	if err != nil {
		t.Fatalf("create insurer: %v", err)
	}
	ins := core.Insurer{ID: insurerID, Name: "Mutuelle A", CoveragePercentage: 80}

	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tx, err := core.NewTransaction(1, &ins, core.FromCents(100000), core.PaymentCash, at)
	if err != nil {
		t.Fatalf("build transaction: %v", err)
	}
	txID, err := repo.CreateTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	window := core.MonthWindow(2026, 3)
	rec := ledger.ReconciliationRecord{
		ID:               recID,
		InsurerID:        insurerID,
		Window:           window,
		ReceivedAmount:   core.FromCents(75000),
		TransactionCount: 1,
	}
	batch := []ledger.ActualPaidUpdate{{TransactionID: txID, Version: 1, Amount: core.FromCents(75000)}}
	if err := repo.CommitActualPaid(ctx, rec, batch); err != nil {
		t.Fatalf("commit reconciliation: %v", err)
	}
	return insurerID
}

func TestHandleReconciliationMessage(t *testing.T) {
	repo := newTestRepo(t)
	insurerID := seedReconciliation(t, repo, "rec-1")

	book := &fakeBook{}
	w := NewExportWorker(repo, book, 10)
	ctx := context.Background()

	msg := &amqp.ReconciliationCommittedMessage{
		ReconciliationID: "rec-1",
		InsurerID:        insurerID,
	}
	if err := w.HandleReconciliationMessage(ctx, msg); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	if len(book.rows) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(book.rows))
	}
	row := book.rows[0]
	if row.InsurerName != "Mutuelle A" || row.Received.Cents != 75000 || row.TransactionCount != 1 {
		t.Fatalf("exported row wrong: %+v", row)
	}
	if !row.PeriodStart.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("period wrong: %v", row.PeriodStart)
	}

	pending, err := repo.GetUnexportedReconciliations(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("row not marked exported: %+v", pending)
	}
}

func TestHandleUnknownReconciliation(t *testing.T) {
	repo := newTestRepo(t)
	w := NewExportWorker(repo, &fakeBook{}, 10)

	err := w.HandleReconciliationMessage(context.Background(),
		&amqp.ReconciliationCommittedMessage{ReconciliationID: "missing"})
	if err == nil {
		t.Fatal("expected error for unknown register row")
	}
}

func TestProcessPendingReconciliations(t *testing.T) {
	repo := newTestRepo(t)
	seedReconciliation(t, repo, "rec-1")

	book := &fakeBook{}
	w := NewExportWorker(repo, book, 10)
	ctx := context.Background()

	if err := w.ProcessPendingReconciliations(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(book.rows) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(book.rows))
	}

	// A second sweep finds nothing to do.
	if err := w.ProcessPendingReconciliations(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(book.rows) != 1 {
		t.Fatalf("second sweep re-exported: %d rows", len(book.rows))
	}
}

func TestExportFailureKeepsRowPending(t *testing.T) {
	repo := newTestRepo(t)
	seedReconciliation(t, repo, "rec-1")

	w := NewExportWorker(repo, &fakeBook{fail: true}, 10)
	ctx := context.Background()

	// The sweep logs and continues; the row must stay pending for retry.
	if err := w.ProcessPendingReconciliations(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	pending, err := repo.GetUnexportedReconciliations(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected row still pending, got %d", len(pending))
	}
}
