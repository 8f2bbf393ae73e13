package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ambulatorio/internal/core"
	"ambulatorio/internal/ledger/memory"
)

func seedMonth(t *testing.T, store *memory.Store, ins core.Insurer, patientID int64, year int, month time.Month, billedCents int64) {
	t.Helper()
	at := time.Date(year, month, 12, 10, 0, 0, 0, time.UTC)
	tx, err := core.NewTransaction(patientID, &ins, core.FromCents(billedCents), core.PaymentCash, at)
	if err != nil {
		t.Fatalf("build transaction: %v", err)
	}
	if _, err := store.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
}

func TestMonthlyReportEndToEnd(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	id, _ := store.CreateInsurer(ctx, core.Insurer{Name: "Mutuelle A", CoveragePercentage: 80})
	ins := core.Insurer{ID: id, Name: "Mutuelle A", CoveragePercentage: 80}

	seedMonth(t, store, ins, 1, 2026, time.January, 1000000)
	seedMonth(t, store, ins, 2, 2026, time.March, 500000)
	if _, err := store.CreateExpense(ctx, core.Expense{
		Description: "rent",
		Amount:      core.FromCents(200000),
		Category:    core.ExpenseOperational,
		ExpenseDate: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("seed expense: %v", err)
	}

	svc := NewReportService(store)
	table, err := svc.MonthlyReport(ctx, 2026, 1, 2026, 4, core.BasisExpected)
	if err != nil {
		t.Fatalf("monthly report: %v", err)
	}

	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 active months, got %d", len(table.Rows))
	}
	if table.Rows[0].PeriodKey != "2026-01" || table.Rows[1].PeriodKey != "2026-03" {
		t.Fatalf("row keys wrong: %s, %s", table.Rows[0].PeriodKey, table.Rows[1].PeriodKey)
	}
	if table.GrandTotals.TotalRevenue.Cents != 1500000 {
		t.Fatalf("grand revenue wrong: %s", table.GrandTotals.TotalRevenue)
	}
	if table.GrandTotals.NetProfit.Cents != 1300000 {
		t.Fatalf("grand net profit wrong: %s", table.GrandTotals.NetProfit)
	}
	if table.TotalUniquePatients != 2 {
		t.Fatalf("unique patients wrong: %d", table.TotalUniquePatients)
	}
}

func TestMonthlyReportEmptyRange(t *testing.T) {
	svc := NewReportService(memory.New())
	table, err := svc.MonthlyReport(context.Background(), 2026, 1, 2026, 12, core.BasisExpected)
	if err != nil {
		t.Fatalf("empty range must not fail: %v", err)
	}
	if len(table.Rows) != 0 || !table.GrandTotals.TotalRevenue.IsZero() {
		t.Fatalf("expected empty table, got %+v", table)
	}
}

func TestMonthlyReportRejectsInvertedRange(t *testing.T) {
	svc := NewReportService(memory.New())
	_, err := svc.MonthlyReport(context.Background(), 2026, 6, 2026, 1, core.BasisExpected)
	if !errors.Is(err, core.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestAnnualDistributionEndToEnd(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	id, _ := store.CreateInsurer(ctx, core.Insurer{Name: "Mutuelle A", CoveragePercentage: 80})
	ins := core.Insurer{ID: id, Name: "Mutuelle A", CoveragePercentage: 80}

	seedMonth(t, store, ins, 1, 2026, time.February, 1000000)
	seedMonth(t, store, ins, 2, 2025, time.December, 500000) // other year

	svc := NewReportService(store)
	table, err := svc.AnnualDistribution(ctx, 2026)
	if err != nil {
		t.Fatalf("annual distribution: %v", err)
	}
	if len(table.Months) != 1 || table.Months[0] != "February" {
		t.Fatalf("months wrong: %v", table.Months)
	}
	if table.Cells["February"]["Mutuelle A"].Cents != 800000 {
		t.Fatalf("cell wrong: %+v", table.Cells)
	}
}

func TestMonthOverviewCachingAndInvalidation(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	id, _ := store.CreateInsurer(ctx, core.Insurer{Name: "Mutuelle A", CoveragePercentage: 50})
	ins := core.Insurer{ID: id, Name: "Mutuelle A", CoveragePercentage: 50}
	seedMonth(t, store, ins, 1, 2026, time.March, 100000)

	svc := NewReportService(store)
	first, err := svc.MonthOverview(ctx, 2026, 3, core.BasisExpected)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if first.Summary.TotalRevenue.Cents != 100000 || first.UniquePatients != 1 {
		t.Fatalf("overview wrong: %+v", first)
	}

	// A second write is invisible until the cache entry is dropped.
	seedMonth(t, store, ins, 2, 2026, time.March, 100000)
	cached, _ := svc.MonthOverview(ctx, 2026, 3, core.BasisExpected)
	if cached.Summary.TotalRevenue.Cents != 100000 {
		t.Fatalf("expected stale cached overview, got %+v", cached)
	}

	svc.InvalidateMonth(2026, 3)
	fresh, _ := svc.MonthOverview(ctx, 2026, 3, core.BasisExpected)
	if fresh.Summary.TotalRevenue.Cents != 200000 || fresh.UniquePatients != 2 {
		t.Fatalf("invalidation did not take: %+v", fresh)
	}
}
