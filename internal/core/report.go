package core

// ReportTable is a month-by-month financial report over an inclusive month
// range, with grand totals across all included months. TotalUniquePatients
// counts distinct patient ids over the whole range, not a sum of monthly
// counts: a patient visiting in several months is counted once.
type ReportTable struct {
	Rows                []PeriodSummary
	GrandTotals         PeriodSummary
	TotalUniquePatients int
}

// BuildReportTable folds pre-fetched range data into one report. Months with
// no activity are omitted from Rows; a range with zero data yields an empty
// row list and all-zero grand totals, never an error. Rows come out sorted
// ascending by period key.
func BuildReportTable(fromYear, fromMonth, toYear, toMonth int, txs []Transaction, exps []Expense, insurers map[int64]Insurer, basis RevenueBasis) ReportTable {
	txByKey := make(map[string][]Transaction)
	for _, t := range txs {
		k := PeriodKey(t.CreatedAt)
		txByKey[k] = append(txByKey[k], t)
	}
	expByKey := make(map[string][]Expense)
	for _, e := range exps {
		k := PeriodKey(e.ExpenseDate)
		expByKey[k] = append(expByKey[k], e)
	}

	table := ReportTable{
		GrandTotals: PeriodSummary{RevenueByInsurer: make(map[int64]Money)},
	}

	for _, key := range monthKeys(fromYear, fromMonth, toYear, toMonth) {
		monthTxs := txByKey[key]
		monthExps := expByKey[key]
		if len(monthTxs) == 0 && len(monthExps) == 0 {
			continue
		}
		row := Aggregate(key, monthTxs, monthExps, insurers, basis)
		table.Rows = append(table.Rows, row)
		table.GrandTotals.merge(row)
	}

	patients := make(map[int64]struct{})
	for _, t := range txs {
		patients[t.PatientID] = struct{}{}
	}
	table.TotalUniquePatients = len(patients)

	return table
}

// monthKeys enumerates "YYYY-MM" keys from from to to inclusive, ascending.
// The caller guarantees from <= to.
func monthKeys(fromYear, fromMonth, toYear, toMonth int) []string {
	var keys []string
	year, month := fromYear, fromMonth
	for year < toYear || (year == toYear && month <= toMonth) {
		keys = append(keys, PeriodKey(MonthWindow(year, month).Start))
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return keys
}
