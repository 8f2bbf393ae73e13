// Package worker moves committed reconciliations from the database register
// to the external audit book.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"ambulatorio/internal/amqp"
	"ambulatorio/internal/export"
	"ambulatorio/internal/storage"
)

// ExportWorker consumes committed-reconciliation events and appends each
// register row to the audit book. The database register is the source of
// truth; the queue only tells the worker which row to fetch, so a lost or
// duplicated message can never corrupt the book beyond a repeated line.
type ExportWorker struct {
	store     *storage.SQLiteRepository
	book      export.RegisterAppender
	batchSize int
}

func NewExportWorker(store *storage.SQLiteRepository, book export.RegisterAppender, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		book:      book,
		batchSize: batchSize,
	}
}

// HandleReconciliationMessage processes one committed-reconciliation event.
// Returning an error requeues the message.
func (w *ExportWorker) HandleReconciliationMessage(ctx context.Context, msg *amqp.ReconciliationCommittedMessage) error {
	slog.InfoContext(ctx, "Processing reconciliation event",
		"reconciliation_id", msg.ReconciliationID,
		"insurer_id", msg.InsurerID)

	row, err := w.store.GetReconciliation(ctx, msg.ReconciliationID)
	if err != nil {
		return fmt.Errorf("load register row %s: %w", msg.ReconciliationID, err)
	}

	return w.exportRow(ctx, row)
}

// ProcessPendingReconciliations sweeps register rows the worker has not yet
// exported. This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingReconciliations(ctx context.Context) error {
	pending, err := w.store.GetUnexportedReconciliations(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending reconciliations: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending reconciliations", "count", len(pending))

	for _, row := range pending {
		if err := w.exportRow(ctx, row); err != nil {
			slog.ErrorContext(ctx, "Failed to export reconciliation",
				"reconciliation_id", row.ID, "error", err)
		}
	}
	return nil
}

// StartupExportCheck drains the backlog accumulated while the worker was
// down, with a larger batch than the periodic sweep.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	pending, err := w.store.GetUnexportedReconciliations(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending reconciliations for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending reconciliations found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending reconciliations on startup, processing...",
		"count", len(pending))

	exported := 0
	failed := 0
	for _, row := range pending {
		if err := w.exportRow(ctx, row); err != nil {
			slog.ErrorContext(ctx, "Failed to export reconciliation during startup",
				"reconciliation_id", row.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)

	return nil
}

func (w *ExportWorker) exportRow(ctx context.Context, row storage.ReconciliationRow) error {
	insurerName := "insurer " + strconv.FormatInt(row.InsurerID, 10)
	if insurer, err := w.store.GetInsurer(ctx, row.InsurerID); err == nil {
		insurerName = insurer.Name
	} else {
		slog.WarnContext(ctx, "Exporting with fallback insurer name",
			"insurer_id", row.InsurerID, "error", err)
	}

	ref, err := w.book.AppendReconciliation(ctx, export.RegisterRow{
		ReconciliationID: row.ID,
		InsurerName:      insurerName,
		PeriodStart:      row.WindowStart,
		PeriodEnd:        row.WindowEnd,
		Received:         row.Received,
		TransactionCount: row.TransactionCount,
	})
	if err != nil {
		return fmt.Errorf("append to audit book: %w", err)
	}

	if err := w.store.MarkReconciliationExported(ctx, row.ID); err != nil {
		// The row reached the book; the next sweep may duplicate the line
		// but never lose it.
		slog.ErrorContext(ctx, "Failed to mark reconciliation exported",
			"reconciliation_id", row.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported reconciliation",
		"reconciliation_id", row.ID,
		"insurer", insurerName,
		"received", row.Received.String(),
		"book_ref", ref)

	return nil
}
