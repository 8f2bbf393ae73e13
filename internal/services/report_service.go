package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ambulatorio/internal/cache"
	"ambulatorio/internal/core"
	"ambulatorio/internal/ledger"
)

// MonthOverview is the dashboard card payload for one month.
type MonthOverview struct {
	Summary        core.PeriodSummary
	UniquePatients int
}

// ReportService serves every consumer of derived figures (report table,
// dashboard cards, annual chart) from the same core aggregation functions,
// so the numbers always agree. Reads have no side effects and may run
// concurrently with each other and with reconciliation.
type ReportService struct {
	store         ledger.Store
	overviewCache *cache.LRUCache[MonthOverview]
}

func NewReportService(store ledger.Store) *ReportService {
	return &ReportService{
		store:         store,
		overviewCache: cache.NewLRUCache[MonthOverview](100, 5*time.Minute),
	}
}

// Caches registers this service's caches with a cleanup manager.
func (s *ReportService) Caches(m *cache.Manager) {
	m.Register(s.overviewCache)
}

// fetchWindow loads transactions and expenses for one window in parallel;
// both are independent committed-state reads.
func (s *ReportService) fetchWindow(ctx context.Context, w core.Window) ([]core.Transaction, []core.Expense, error) {
	var (
		txs  []core.Transaction
		exps []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, w)
		return err
	})
	g.Go(func() error {
		var err error
		exps, err = s.store.ListExpenses(gctx, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("fetch window: %w", err)
	}
	return txs, exps, nil
}

func (s *ReportService) insurerSet(ctx context.Context) (map[int64]core.Insurer, error) {
	insurers, err := s.store.ListInsurers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list insurers: %w", err)
	}
	return ledger.InsurerSet(insurers), nil
}

// MonthlyReport builds the month-by-month report table for an inclusive
// month range. A range with no data yields an empty row list and zero
// totals.
func (s *ReportService) MonthlyReport(ctx context.Context, fromYear, fromMonth, toYear, toMonth int, basis core.RevenueBasis) (core.ReportTable, error) {
	if fromYear > toYear || (fromYear == toYear && fromMonth > toMonth) {
		return core.ReportTable{}, fmt.Errorf("%w: %d-%02d after %d-%02d", core.ErrInvalidRange, fromYear, fromMonth, toYear, toMonth)
	}

	window, err := core.NewWindow(
		core.MonthWindow(fromYear, fromMonth).Start,
		core.MonthWindow(toYear, toMonth).End,
	)
	if err != nil {
		return core.ReportTable{}, err
	}

	txs, exps, err := s.fetchWindow(ctx, window)
	if err != nil {
		return core.ReportTable{}, err
	}
	insurers, err := s.insurerSet(ctx)
	if err != nil {
		return core.ReportTable{}, err
	}

	return core.BuildReportTable(fromYear, fromMonth, toYear, toMonth, txs, exps, insurers, basis), nil
}

// AnnualDistribution pivots one calendar year of coverage into the
// month-by-insurer chart table.
func (s *ReportService) AnnualDistribution(ctx context.Context, year int) (core.AnnualDistributionTable, error) {
	txs, err := s.store.ListTransactions(ctx, core.YearWindow(year))
	if err != nil {
		return core.AnnualDistributionTable{}, fmt.Errorf("list year transactions: %w", err)
	}
	insurers, err := s.insurerSet(ctx)
	if err != nil {
		return core.AnnualDistributionTable{}, err
	}
	return core.BuildAnnualDistribution(year, txs, insurers), nil
}

// MonthOverview aggregates a single month for the dashboard, cached briefly
// since the dashboard polls it.
func (s *ReportService) MonthOverview(ctx context.Context, year, month int, basis core.RevenueBasis) (MonthOverview, error) {
	key := overviewKey(year, month, basis)
	if cached, ok := s.overviewCache.Get(key); ok {
		return cached, nil
	}

	window := core.MonthWindow(year, month)
	txs, exps, err := s.fetchWindow(ctx, window)
	if err != nil {
		return MonthOverview{}, err
	}
	insurers, err := s.insurerSet(ctx)
	if err != nil {
		return MonthOverview{}, err
	}
	patients, err := s.store.CountDistinctPatients(ctx, window)
	if err != nil {
		return MonthOverview{}, fmt.Errorf("count patients: %w", err)
	}

	overview := MonthOverview{
		Summary:        core.Aggregate(core.PeriodKey(window.Start), txs, exps, insurers, basis),
		UniquePatients: patients,
	}
	s.overviewCache.Set(key, overview)
	return overview, nil
}

// InvalidateMonth drops cached overviews after a write touching the month.
func (s *ReportService) InvalidateMonth(year, month int) {
	s.overviewCache.Delete(overviewKey(year, month, core.BasisExpected))
	s.overviewCache.Delete(overviewKey(year, month, core.BasisActual))
}

func overviewKey(year, month int, basis core.RevenueBasis) string {
	return fmt.Sprintf("%04d-%02d/%d", year, month, basis)
}
