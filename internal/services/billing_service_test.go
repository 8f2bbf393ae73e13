package services

import (
	"context"
	"errors"
	"testing"

	"ambulatorio/internal/core"
	"ambulatorio/internal/ledger/memory"
)

func TestRecordVisitInsured(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	id, _ := store.CreateInsurer(ctx, core.Insurer{Name: "Mutuelle A", CoveragePercentage: 80})

	svc := NewBillingService(store)
	tx, err := svc.RecordVisit(ctx, 5, id, core.FromCents(1000000), core.PaymentCash)
	if err != nil {
		t.Fatalf("record visit: %v", err)
	}
	if tx.ID == 0 {
		t.Fatalf("transaction id not assigned")
	}
	if tx.PatientPaid.Cents != 200000 || tx.InsuranceExpected.Cents != 800000 {
		t.Fatalf("split wrong: %s / %s", tx.PatientPaid, tx.InsuranceExpected)
	}

	stored, _ := store.ListTransactions(ctx, core.MonthWindow(tx.CreatedAt.Year(), int(tx.CreatedAt.Month())))
	if len(stored) != 1 {
		t.Fatalf("transaction not persisted")
	}
}

func TestRecordVisitSelfPay(t *testing.T) {
	svc := NewBillingService(memory.New())
	tx, err := svc.RecordVisit(context.Background(), 5, core.SelfPay, core.FromCents(30000), core.PaymentMobileMoney)
	if err != nil {
		t.Fatalf("record visit: %v", err)
	}
	if tx.PatientPaid.Cents != 30000 || !tx.InsuranceExpected.IsZero() {
		t.Fatalf("self-pay split wrong: %+v", tx)
	}
}

func TestRecordVisitUnknownInsurer(t *testing.T) {
	svc := NewBillingService(memory.New())
	_, err := svc.RecordVisit(context.Background(), 5, 404, core.FromCents(30000), core.PaymentCash)
	if !errors.Is(err, core.ErrUnknownInsurer) {
		t.Fatalf("expected ErrUnknownInsurer, got %v", err)
	}
}

func TestRecordExpenseDefaultsDate(t *testing.T) {
	svc := NewBillingService(memory.New())
	e, err := svc.RecordExpense(context.Background(), core.Expense{
		Description: "cleaning service",
		Amount:      core.FromCents(50000),
		Category:    core.ExpenseOperational,
	})
	if err != nil {
		t.Fatalf("record expense: %v", err)
	}
	if e.ID == 0 || e.ExpenseDate.IsZero() {
		t.Fatalf("expense not normalized: %+v", e)
	}
}

func TestRecordExpenseValidatesAfterDefaulting(t *testing.T) {
	svc := NewBillingService(memory.New())
	_, err := svc.RecordExpense(context.Background(), core.Expense{
		Description: "",
		Amount:      core.FromCents(50000),
		Category:    core.ExpenseOperational,
	})
	if !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestCreateInsurerValidates(t *testing.T) {
	svc := NewBillingService(memory.New())
	if _, err := svc.CreateInsurer(context.Background(), core.Insurer{Name: "", CoveragePercentage: 50}); err == nil {
		t.Fatalf("expected validation error")
	}
	ins, err := svc.CreateInsurer(context.Background(), core.Insurer{Name: "Mutuelle B", CoveragePercentage: 60})
	if err != nil {
		t.Fatalf("create insurer: %v", err)
	}
	if ins.ID == 0 {
		t.Fatalf("insurer id not assigned")
	}
}
