// Package ledger defines the ports the financial engine consumes: window
// reads over transactions and expenses, insurer lookup, and the atomic
// actual-paid commit used by reconciliation.
package ledger

import (
	"context"

	"ambulatorio/internal/core"
)

// ActualPaidUpdate is one row of a reconciliation commit batch. Version is
// the transaction version observed at read time; the store must reject the
// whole batch if any row has moved on since.
type ActualPaidUpdate struct {
	TransactionID int64
	Version       int64
	Amount        core.Money
}

// ReconciliationRecord is the persisted register entry for one committed
// reconciliation run, keyed by a caller-supplied id so re-runs upsert rather
// than duplicate.
type ReconciliationRecord struct {
	ID               string
	InsurerID        int64
	Window           core.Window
	ReceivedAmount   core.Money
	TransactionCount int
}

type (
	TransactionReader interface {
		// ListTransactions returns transactions created inside the
		// half-open window [Start, End).
		ListTransactions(ctx context.Context, w core.Window) ([]core.Transaction, error)
		// ListInsurerTransactions narrows the window to one insurer.
		ListInsurerTransactions(ctx context.Context, insurerID int64, w core.Window) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	}

	ExpenseReader interface {
		ListExpenses(ctx context.Context, w core.Window) ([]core.Expense, error)
	}

	ExpenseWriter interface {
		CreateExpense(ctx context.Context, e core.Expense) (int64, error)
	}

	InsurerReader interface {
		ListInsurers(ctx context.Context) ([]core.Insurer, error)
		GetInsurer(ctx context.Context, id int64) (core.Insurer, error)
	}

	InsurerWriter interface {
		CreateInsurer(ctx context.Context, i core.Insurer) (int64, error)
	}

	// PatientCounter counts unique patient ids over a whole window, so
	// report totals never double count patients visiting in several
	// months of the range.
	PatientCounter interface {
		CountDistinctPatients(ctx context.Context, w core.Window) (int, error)
	}

	// PaymentCommitter applies a reconciliation batch atomically: every
	// update lands or none does, and core.ErrCommitConflict reports a
	// version mismatch (a concurrent reconciliation touched the scope).
	PaymentCommitter interface {
		CommitActualPaid(ctx context.Context, rec ReconciliationRecord, batch []ActualPaidUpdate) error
	}

	// Store is the full ledger surface the services wire against.
	Store interface {
		TransactionReader
		TransactionWriter
		ExpenseReader
		ExpenseWriter
		InsurerReader
		InsurerWriter
		PatientCounter
		PaymentCommitter
	}
)

// InsurerSet builds the id-indexed lookup the aggregator consumes.
func InsurerSet(insurers []core.Insurer) map[int64]core.Insurer {
	set := make(map[int64]core.Insurer, len(insurers))
	for _, i := range insurers {
		set[i.ID] = i
	}
	return set
}
