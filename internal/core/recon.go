package core

import "sort"

// Allocation is one transaction's share of a reconciled bulk payment.
type Allocation struct {
	TransactionID int64
	Amount        Money
}

// AllocatePayment distributes an insurer's actually received bulk payment
// across the given transactions, proportional to each transaction's expected
// coverage share. It is the pure compute phase of reconciliation: no store
// access, no mutation.
//
// Ordering is canonical (ascending transaction id) and the accumulated
// rounding remainder goes to the last transaction, so the distribution is
// reproducible. Each non-final allocation is additionally capped by the funds
// still undistributed, which keeps the final allocation non-negative when
// half-up rounding would otherwise overshoot the received total.
//
// The allocation derives from expected amounts only, never from previously
// reconciled actuals, so re-running with identical inputs overwrites rather
// than compounds.
func AllocatePayment(txs []Transaction, received Money) ([]Allocation, error) {
	if received.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if len(txs) == 0 {
		return nil, ErrNoMatchingTransactions
	}

	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var totalExpected Money
	for _, t := range ordered {
		totalExpected = totalExpected.Add(t.InsuranceExpected)
	}
	if totalExpected.IsZero() {
		return nil, ErrZeroExpectedAmount
	}

	allocs := make([]Allocation, len(ordered))
	var distributed Money
	for i, t := range ordered {
		if i == len(ordered)-1 {
			allocs[i] = Allocation{TransactionID: t.ID, Amount: received.Sub(distributed)}
			break
		}
		amt := t.InsuranceExpected.MulRatio(received, totalExpected)
		if remaining := received.Sub(distributed); amt.Cmp(remaining) > 0 {
			amt = remaining
		}
		allocs[i] = Allocation{TransactionID: t.ID, Amount: amt}
		distributed = distributed.Add(amt)
	}
	return allocs, nil
}
