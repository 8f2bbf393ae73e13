// Package services orchestrates the financial engine over the ledger store:
// billing writes, report reads and the two-phase insurance reconciliation.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ambulatorio/internal/core"
	"ambulatorio/internal/ledger"
)

// BillingService creates billing transactions and expense records. The
// patient/insurer split is computed here, at creation time, from the
// insurer's current coverage percentage; later percentage changes never
// apply retroactively because the split is persisted with the transaction.
type BillingService struct {
	store ledger.Store
	now   func() time.Time
}

func NewBillingService(store ledger.Store) *BillingService {
	return &BillingService{store: store, now: time.Now}
}

// RecordVisit bills one patient visit. insurerID core.SelfPay means no
// insurer is involved and the patient covers the whole bill.
func (s *BillingService) RecordVisit(ctx context.Context, patientID, insurerID int64, billed core.Money, method core.PaymentMethod) (core.Transaction, error) {
	var insurer *core.Insurer
	if insurerID != core.SelfPay {
		ins, err := s.store.GetInsurer(ctx, insurerID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("resolve insurer %d: %w", insurerID, err)
		}
		insurer = &ins
	}

	tx, err := core.NewTransaction(patientID, insurer, billed, method, s.now().UTC())
	if err != nil {
		return core.Transaction{}, err
	}

	id, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	tx.ID = id
	tx.Version = 1

	slog.InfoContext(ctx, "Visit billed",
		"transaction_id", id,
		"patient_id", patientID,
		"insurer_id", insurerID,
		"patient_share", tx.PatientPaid.String(),
		"insurer_share", tx.InsuranceExpected.String())

	return tx, nil
}

// RecordExpense saves an operating expense. A zero date defaults to now,
// so validation runs only after the default is applied.
func (s *BillingService) RecordExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = s.now().UTC()
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	id, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	e.ID = id
	return e, nil
}

func (s *BillingService) CreateInsurer(ctx context.Context, i core.Insurer) (core.Insurer, error) {
	if err := i.Validate(); err != nil {
		return core.Insurer{}, err
	}
	id, err := s.store.CreateInsurer(ctx, i)
	if err != nil {
		return core.Insurer{}, fmt.Errorf("save insurer: %w", err)
	}
	i.ID = id
	return i, nil
}

func (s *BillingService) ListInsurers(ctx context.Context) ([]core.Insurer, error) {
	return s.store.ListInsurers(ctx)
}
