// Package export defines the outbound port for the external audit book.
// Committed reconciliations are appended there by the worker so accountants
// can review insurer payments without database access.
package export

import (
	"context"
	"time"

	"ambulatorio/internal/core"
)

// RegisterRow is one committed reconciliation as written to the audit book.
type RegisterRow struct {
	ReconciliationID string
	InsurerName      string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	Received         core.Money
	TransactionCount int
}

// RegisterAppender appends rows to the audit book.
type RegisterAppender interface {
	AppendReconciliation(ctx context.Context, row RegisterRow) (rowRef string, err error)
}
