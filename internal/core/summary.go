package core

import "sort"

// RevenueBasis selects which insurer amounts feed revenue figures.
//
// BasisExpected sums the coverage computed at transaction creation.
// BasisActual prefers the reconciled actual-paid amount, falling back to the
// expected amount for transactions not yet reconciled.
type RevenueBasis int

const (
	BasisExpected RevenueBasis = iota
	BasisActual
)

// UnknownInsurerKey is the synthetic bucket for transactions referencing an
// insurer missing from the loaded insurer set. Such revenue is still counted,
// never dropped; the offending ids are surfaced in UnknownInsurerIDs.
const UnknownInsurerKey int64 = -1

type (
	MethodBreakdown struct {
		Cash        Money
		MobileMoney Money
	}

	CategoryBreakdown struct {
		Clinical    Money
		Operational Money
	}

	// PeriodSummary is the derived financial picture of one period. It is
	// always recomputable from transactions and expenses and is never the
	// source of truth.
	PeriodSummary struct {
		PeriodKey         string
		TotalRevenue      Money
		TotalExpense      Money
		NetProfit         Money
		RevenueByMethod   MethodBreakdown
		RevenueByInsurer  map[int64]Money
		ExpenseByCategory CategoryBreakdown
		TransactionCount  int
		UnknownInsurerIDs []int64
	}
)

// insurerShare resolves the insurer-attributed amount of a transaction under
// the requested basis.
func insurerShare(t Transaction, basis RevenueBasis) Money {
	if basis == BasisActual && t.Reconciled {
		return t.InsuranceActualPaid
	}
	return t.InsuranceExpected
}

// Aggregate folds one window's transactions and expenses into a
// PeriodSummary. Inputs are assumed pre-filtered to the window. An empty
// input yields an all-zero summary, never an error: absence of activity is a
// normal business state. Every consumer (report table, dashboard, cash-in
// view) goes through this single function so their figures always agree.
func Aggregate(periodKey string, txs []Transaction, exps []Expense, insurers map[int64]Insurer, basis RevenueBasis) PeriodSummary {
	s := PeriodSummary{
		PeriodKey:        periodKey,
		RevenueByInsurer: make(map[int64]Money),
		TransactionCount: len(txs),
	}

	unknown := make(map[int64]struct{})
	for _, t := range txs {
		share := insurerShare(t, basis)
		s.TotalRevenue = s.TotalRevenue.Add(t.PatientPaid).Add(share)

		switch t.Method {
		case PaymentCash:
			s.RevenueByMethod.Cash = s.RevenueByMethod.Cash.Add(t.PatientPaid)
		case PaymentMobileMoney:
			s.RevenueByMethod.MobileMoney = s.RevenueByMethod.MobileMoney.Add(t.PatientPaid)
		}

		if t.InsurerID == SelfPay {
			continue
		}
		key := t.InsurerID
		if _, ok := insurers[t.InsurerID]; !ok {
			key = UnknownInsurerKey
			unknown[t.InsurerID] = struct{}{}
		}
		s.RevenueByInsurer[key] = s.RevenueByInsurer[key].Add(share)
	}

	for _, e := range exps {
		s.TotalExpense = s.TotalExpense.Add(e.Amount)
		switch e.Category {
		case ExpenseClinical:
			s.ExpenseByCategory.Clinical = s.ExpenseByCategory.Clinical.Add(e.Amount)
		case ExpenseOperational:
			s.ExpenseByCategory.Operational = s.ExpenseByCategory.Operational.Add(e.Amount)
		}
	}

	s.NetProfit = s.TotalRevenue.Sub(s.TotalExpense)

	for id := range unknown {
		s.UnknownInsurerIDs = append(s.UnknownInsurerIDs, id)
	}
	sort.Slice(s.UnknownInsurerIDs, func(i, j int) bool {
		return s.UnknownInsurerIDs[i] < s.UnknownInsurerIDs[j]
	})

	return s
}

// merge accumulates another summary into s for grand-total computation.
func (s *PeriodSummary) merge(o PeriodSummary) {
	s.TotalRevenue = s.TotalRevenue.Add(o.TotalRevenue)
	s.TotalExpense = s.TotalExpense.Add(o.TotalExpense)
	s.NetProfit = s.NetProfit.Add(o.NetProfit)
	s.RevenueByMethod.Cash = s.RevenueByMethod.Cash.Add(o.RevenueByMethod.Cash)
	s.RevenueByMethod.MobileMoney = s.RevenueByMethod.MobileMoney.Add(o.RevenueByMethod.MobileMoney)
	s.ExpenseByCategory.Clinical = s.ExpenseByCategory.Clinical.Add(o.ExpenseByCategory.Clinical)
	s.ExpenseByCategory.Operational = s.ExpenseByCategory.Operational.Add(o.ExpenseByCategory.Operational)
	s.TransactionCount += o.TransactionCount
	for id, amt := range o.RevenueByInsurer {
		s.RevenueByInsurer[id] = s.RevenueByInsurer[id].Add(amt)
	}
	for _, id := range o.UnknownInsurerIDs {
		found := false
		for _, have := range s.UnknownInsurerIDs {
			if have == id {
				found = true
				break
			}
		}
		if !found {
			s.UnknownInsurerIDs = append(s.UnknownInsurerIDs, id)
		}
	}
}
