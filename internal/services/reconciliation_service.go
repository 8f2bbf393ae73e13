package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ambulatorio/internal/core"
	"ambulatorio/internal/ledger"
)

// ReconciliationPublisher announces committed reconciliations to the export
// pipeline. Publishing is best effort: the ledger commit is the source of
// truth and a queue outage must never fail a reconciliation.
type ReconciliationPublisher interface {
	PublishReconciliationCommitted(ctx context.Context, reconciliationID string, insurerID int64, received core.Money, txCount int) error
}

// ReconciliationResult reports one committed run back to the caller.
type ReconciliationResult struct {
	ReconciliationID string
	InsurerID        int64
	Window           core.Window
	Received         core.Money
	Allocations      []core.Allocation
}

// ReconciliationService runs the two-phase distribute-and-commit of an
// insurer's real bulk payment. The engine itself is stateless: the compute
// phase is pure, and write-after-read consistency is enforced by the store's
// version-stamped atomic commit. On core.ErrCommitConflict the caller
// re-runs the whole operation from a fresh read; retrying only the commit
// with stale amounts is never safe.
type ReconciliationService struct {
	store     ledger.Store
	publisher ReconciliationPublisher
	newID     func() string
}

func NewReconciliationService(store ledger.Store, publisher ReconciliationPublisher) *ReconciliationService {
	return &ReconciliationService{
		store:     store,
		publisher: publisher,
		newID:     func() string { return uuid.NewString() },
	}
}

// Reconcile distributes received across the insurer's transactions in the
// window, proportional to expected coverage. Fails with
// core.ErrUnknownInsurer, core.ErrInvalidAmount (negative received),
// core.ErrNoMatchingTransactions, core.ErrZeroExpectedAmount or
// core.ErrCommitConflict; none of these leave any actual-paid value changed.
func (s *ReconciliationService) Reconcile(ctx context.Context, insurerID int64, w core.Window, received core.Money) (ReconciliationResult, error) {
	if _, err := s.store.GetInsurer(ctx, insurerID); err != nil {
		return ReconciliationResult{}, fmt.Errorf("resolve insurer %d: %w", insurerID, err)
	}

	// Phase 1: fresh read and pure allocation.
	txs, err := s.store.ListInsurerTransactions(ctx, insurerID, w)
	if err != nil {
		return ReconciliationResult{}, fmt.Errorf("read claims: %w", err)
	}
	allocs, err := core.AllocatePayment(txs, received)
	if err != nil {
		return ReconciliationResult{}, err
	}

	versions := make(map[int64]int64, len(txs))
	for _, t := range txs {
		versions[t.ID] = t.Version
	}
	batch := make([]ledger.ActualPaidUpdate, len(allocs))
	for i, a := range allocs {
		batch[i] = ledger.ActualPaidUpdate{
			TransactionID: a.TransactionID,
			Version:       versions[a.TransactionID],
			Amount:        a.Amount,
		}
	}

	rec := ledger.ReconciliationRecord{
		ID:               s.newID(),
		InsurerID:        insurerID,
		Window:           w,
		ReceivedAmount:   received,
		TransactionCount: len(batch),
	}

	// Phase 2: all-or-nothing commit guarded by the versions read above.
	if err := s.store.CommitActualPaid(ctx, rec, batch); err != nil {
		return ReconciliationResult{}, fmt.Errorf("commit reconciliation %s: %w", rec.ID, err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReconciliationCommitted(ctx, rec.ID, insurerID, received, len(batch)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reconciliation event",
				"reconciliation_id", rec.ID, "error", err)
		}
	}

	return ReconciliationResult{
		ReconciliationID: rec.ID,
		InsurerID:        insurerID,
		Window:           w,
		Received:         received,
		Allocations:      allocs,
	}, nil
}
