package core

import (
	"sort"
	"time"
)

// UnknownInsurerName labels the column collecting coverage attributed to
// insurers missing from the loaded insurer set.
const UnknownInsurerName = "unknown"

// AnnualDistributionTable buckets expected coverage by month and insurer
// display name for one calendar year, shaped for stacked/grouped chart
// rendering without client-side re-pivoting. Months holds the names of
// active months in calendar order; InsurerNames is the alphabetically sorted
// union of column names across all included months, and every row carries a
// value for every column (zero when the insurer had no activity that month).
type AnnualDistributionTable struct {
	Year         int
	Months       []string
	InsurerNames []string
	Cells        map[string]map[string]Money
}

// BuildAnnualDistribution pivots one year's transactions into the per-month,
// per-insurer coverage table. Months with no transactions are omitted, not
// zero-filled. Self-pay transactions carry no insurer coverage and do not
// produce a column, but they do mark their month as active.
func BuildAnnualDistribution(year int, txs []Transaction, insurers map[int64]Insurer) AnnualDistributionTable {
	table := AnnualDistributionTable{
		Year:  year,
		Cells: make(map[string]map[string]Money),
	}

	active := make(map[time.Month]bool)
	sums := make(map[time.Month]map[string]Money)
	names := make(map[string]struct{})

	for _, t := range txs {
		if t.CreatedAt.UTC().Year() != year {
			continue
		}
		month := t.CreatedAt.UTC().Month()
		active[month] = true
		if t.InsurerID == SelfPay {
			continue
		}

		name := UnknownInsurerName
		if ins, ok := insurers[t.InsurerID]; ok {
			name = ins.Name
		}
		names[name] = struct{}{}
		if sums[month] == nil {
			sums[month] = make(map[string]Money)
		}
		sums[month][name] = sums[month][name].Add(t.InsuranceExpected)
	}

	for name := range names {
		table.InsurerNames = append(table.InsurerNames, name)
	}
	sort.Strings(table.InsurerNames)

	for m := time.January; m <= time.December; m++ {
		if !active[m] {
			continue
		}
		monthName := m.String()
		table.Months = append(table.Months, monthName)
		row := make(map[string]Money, len(table.InsurerNames))
		for _, name := range table.InsurerNames {
			row[name] = sums[m][name]
		}
		table.Cells[monthName] = row
	}

	return table
}
