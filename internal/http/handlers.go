package http

import (
	"log/slog"
	"net/http"
	"time"

	"ambulatorio/internal/core"
)

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	billed, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	method, err := parsePaymentMethod(req.Method)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := s.billing.RecordVisit(r.Context(), req.PatientID, req.InsurerID, billed, method)
	if err != nil {
		slog.ErrorContext(r.Context(), "Record visit failed",
			"patient_id", req.PatientID, "insurer_id", req.InsurerID, "error", err)
		writeDomainError(w, err)
		return
	}

	s.reports.InvalidateMonth(tx.CreatedAt.Year(), int(tx.CreatedAt.Month()))
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	category, err := parseExpenseCategory(req.Category)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	expense := core.Expense{
		Description: req.Description,
		Amount:      amount,
		Category:    category,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		expense.ExpenseDate = date.UTC()
	}

	saved, err := s.billing.RecordExpense(r.Context(), expense)
	if err != nil {
		slog.ErrorContext(r.Context(), "Record expense failed", "error", err)
		writeDomainError(w, err)
		return
	}

	s.reports.InvalidateMonth(saved.ExpenseDate.Year(), int(saved.ExpenseDate.Month()))
	writeJSON(w, http.StatusCreated, toExpenseResponse(saved))
}

func (s *Server) handleInsurers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		insurers, err := s.billing.ListInsurers(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "List insurers failed", "error", err)
			writeDomainError(w, err)
			return
		}
		resp := make([]insurerResponse, 0, len(insurers))
		for _, i := range insurers {
			resp = append(resp, toInsurerResponse(i))
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodPost:
		var req createInsurerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		insurer, err := s.billing.CreateInsurer(r.Context(), core.Insurer{
			Name:               req.Name,
			CoveragePercentage: req.CoveragePercentage,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toInsurerResponse(insurer))

	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleReconciliations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req reconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, http.StatusBadRequest, "month out of range")
		return
	}

	received, err := core.ParseAmount(req.Received)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := s.recon.Reconcile(r.Context(), req.InsurerID, core.MonthWindow(req.Year, req.Month), received)
	if err != nil {
		slog.ErrorContext(r.Context(), "Reconciliation failed",
			"insurer_id", req.InsurerID, "year", req.Year, "month", req.Month, "error", err)
		writeDomainError(w, err)
		return
	}

	s.reports.InvalidateMonth(req.Year, req.Month)
	writeJSON(w, http.StatusOK, toReconciliationResponse(result))
}
