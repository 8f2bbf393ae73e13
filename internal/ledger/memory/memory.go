// Package memory is the in-memory ledger used by tests and the "memory"
// backend. It mirrors the SQLite store's semantics, including version-stamped
// optimistic commits.
package memory

import (
	"context"
	"sort"
	"sync"

	"ambulatorio/internal/core"
	"ambulatorio/internal/ledger"
)

type Store struct {
	mu              sync.Mutex
	transactions    map[int64]core.Transaction
	expenses        map[int64]core.Expense
	insurers        map[int64]core.Insurer
	reconciliations map[string]ledger.ReconciliationRecord
	nextTx          int64
	nextExpense     int64
	nextInsurer     int64
}

func New() *Store {
	return &Store{
		transactions:    make(map[int64]core.Transaction),
		expenses:        make(map[int64]core.Expense),
		insurers:        make(map[int64]core.Insurer),
		reconciliations: make(map[string]ledger.ReconciliationRecord),
	}
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTx++
	t.ID = s.nextTx
	t.Version = 1
	s.transactions[t.ID] = t
	return t.ID, nil
}

func (s *Store) ListTransactions(_ context.Context, w core.Window) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if w.Contains(t.CreatedAt) {
			out = append(out, t)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *Store) ListInsurerTransactions(_ context.Context, insurerID int64, w core.Window) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.InsurerID == insurerID && w.Contains(t.CreatedAt) {
			out = append(out, t)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExpense++
	e.ID = s.nextExpense
	s.expenses[e.ID] = e
	return e.ID, nil
}

func (s *Store) ListExpenses(_ context.Context, w core.Window) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if w.Contains(e.ExpenseDate) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateInsurer(_ context.Context, i core.Insurer) (int64, error) {
	if err := i.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextInsurer++
	i.ID = s.nextInsurer
	s.insurers[i.ID] = i
	return i.ID, nil
}

func (s *Store) ListInsurers(_ context.Context) ([]core.Insurer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Insurer, 0, len(s.insurers))
	for _, i := range s.insurers {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetInsurer(_ context.Context, id int64) (core.Insurer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ins, ok := s.insurers[id]
	if !ok {
		return core.Insurer{}, core.ErrUnknownInsurer
	}
	return ins, nil
}

func (s *Store) CountDistinctPatients(_ context.Context, w core.Window) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patients := make(map[int64]struct{})
	for _, t := range s.transactions {
		if w.Contains(t.CreatedAt) {
			patients[t.PatientID] = struct{}{}
		}
	}
	return len(patients), nil
}

// CommitActualPaid applies the whole batch or nothing. A version mismatch on
// any row aborts before anything is written, matching the SQLite store's
// rollback behavior.
func (s *Store) CommitActualPaid(_ context.Context, rec ledger.ReconciliationRecord, batch []ledger.ActualPaidUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range batch {
		t, ok := s.transactions[u.TransactionID]
		if !ok || t.Version != u.Version {
			return core.ErrCommitConflict
		}
	}
	for _, u := range batch {
		t := s.transactions[u.TransactionID]
		t.InsuranceActualPaid = u.Amount
		t.Reconciled = true
		t.Version++
		s.transactions[u.TransactionID] = t
	}
	s.reconciliations[rec.ID] = rec
	return nil
}

// Reconciliations exposes the committed register for assertions in tests.
func (s *Store) Reconciliations() []ledger.ReconciliationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.ReconciliationRecord, 0, len(s.reconciliations))
	for _, r := range s.reconciliations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortByID(txs []core.Transaction) {
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
}
