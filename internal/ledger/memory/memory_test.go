package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ambulatorio/internal/core"
	"ambulatorio/internal/ledger"
)

func seedTx(t *testing.T, s *Store, createdAt time.Time) int64 {
	t.Helper()
	id, err := s.CreateTransaction(context.Background(), core.Transaction{
		PatientID:         1,
		InsurerID:         1,
		TotalBilled:       core.FromCents(10000),
		InsuranceExpected: core.FromCents(10000),
		Method:            core.PaymentNone,
		CreatedAt:         createdAt,
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return id
}

func TestWindowFiltering(t *testing.T) {
	s := New()
	ctx := context.Background()

	inWindow := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	outOfWindow := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	seedTx(t, s, inWindow)
	seedTx(t, s, outOfWindow)

	got, err := s.ListTransactions(ctx, core.MonthWindow(2026, 3))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || !got[0].CreatedAt.Equal(inWindow) {
		t.Fatalf("window filtering broken: %+v", got)
	}
}

func TestCommitActualPaidAtomic(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	id1 := seedTx(t, s, at)
	id2 := seedTx(t, s, at)

	rec := ledger.ReconciliationRecord{ID: "r1", InsurerID: 1, Window: core.MonthWindow(2026, 3)}

	// Stale version on the second row: nothing may be written.
	err := s.CommitActualPaid(ctx, rec, []ledger.ActualPaidUpdate{
		{TransactionID: id1, Version: 1, Amount: core.FromCents(5000)},
		{TransactionID: id2, Version: 99, Amount: core.FromCents(5000)},
	})
	if !errors.Is(err, core.ErrCommitConflict) {
		t.Fatalf("expected ErrCommitConflict, got %v", err)
	}
	txs, _ := s.ListTransactions(ctx, core.MonthWindow(2026, 3))
	for _, tx := range txs {
		if tx.Reconciled {
			t.Fatalf("partial commit leaked: %+v", tx)
		}
	}

	// Matching versions: both rows land and versions advance.
	err = s.CommitActualPaid(ctx, rec, []ledger.ActualPaidUpdate{
		{TransactionID: id1, Version: 1, Amount: core.FromCents(6000)},
		{TransactionID: id2, Version: 1, Amount: core.FromCents(4000)},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	txs, _ = s.ListTransactions(ctx, core.MonthWindow(2026, 3))
	for _, tx := range txs {
		if !tx.Reconciled || tx.Version != 2 {
			t.Fatalf("commit not applied: %+v", tx)
		}
	}
	if len(s.Reconciliations()) != 1 {
		t.Fatalf("register row missing")
	}
}

func TestGetInsurerUnknown(t *testing.T) {
	s := New()
	if _, err := s.GetInsurer(context.Background(), 42); !errors.Is(err, core.ErrUnknownInsurer) {
		t.Fatalf("expected ErrUnknownInsurer, got %v", err)
	}
}
