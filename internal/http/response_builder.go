package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ambulatorio/internal/core"
	"ambulatorio/internal/services"
)

// Monetary amounts travel as fixed two-decimal strings, never floats.

type transactionResponse struct {
	ID                  int64  `json:"id"`
	PatientID           int64  `json:"patient_id"`
	InsurerID           int64  `json:"insurer_id"`
	TotalBilled         string `json:"total_billed"`
	PatientPaid         string `json:"patient_paid"`
	InsuranceExpected   string `json:"insurance_expected"`
	InsuranceActualPaid string `json:"insurance_actual_paid,omitempty"`
	Reconciled          bool   `json:"reconciled"`
	Method              string `json:"method"`
	CreatedAt           string `json:"created_at"`
}

type expenseResponse struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

type insurerResponse struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	CoveragePercentage int64  `json:"coverage_percentage"`
}

type summaryResponse struct {
	Period            string            `json:"period"`
	TotalRevenue      string            `json:"total_revenue"`
	TotalExpense      string            `json:"total_expense"`
	NetProfit         string            `json:"net_profit"`
	RevenueByMethod   map[string]string `json:"revenue_by_method"`
	RevenueByInsurer  map[string]string `json:"revenue_by_insurer"`
	ExpenseByCategory map[string]string `json:"expense_by_category"`
	TransactionCount  int               `json:"transaction_count"`
	UnknownInsurerIDs []int64           `json:"unknown_insurer_ids,omitempty"`
}

type reportResponse struct {
	Rows                []summaryResponse `json:"rows"`
	GrandTotals         summaryResponse   `json:"grand_totals"`
	TotalUniquePatients int               `json:"total_unique_patients"`
}

type annualDistributionResponse struct {
	Year         int                          `json:"year"`
	Months       []string                     `json:"months"`
	InsurerNames []string                     `json:"insurer_names"`
	Cells        map[string]map[string]string `json:"cells"`
}

type overviewResponse struct {
	Summary        summaryResponse `json:"summary"`
	UniquePatients int             `json:"unique_patients"`
}

type allocationResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Amount        string `json:"amount"`
}

type reconciliationResponse struct {
	ReconciliationID string               `json:"reconciliation_id"`
	InsurerID        int64                `json:"insurer_id"`
	Received         string               `json:"received"`
	Allocations      []allocationResponse `json:"allocations"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                t.ID,
		PatientID:         t.PatientID,
		InsurerID:         t.InsurerID,
		TotalBilled:       t.TotalBilled.String(),
		PatientPaid:       t.PatientPaid.String(),
		InsuranceExpected: t.InsuranceExpected.String(),
		Reconciled:        t.Reconciled,
		Method:            string(t.Method),
		CreatedAt:         t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.Reconciled {
		resp.InsuranceActualPaid = t.InsuranceActualPaid.String()
	}
	return resp
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount.String(),
		Category:    string(e.Category),
		Date:        e.ExpenseDate.UTC().Format("2006-01-02"),
	}
}

func toInsurerResponse(i core.Insurer) insurerResponse {
	return insurerResponse{ID: i.ID, Name: i.Name, CoveragePercentage: i.CoveragePercentage}
}

func toSummaryResponse(s core.PeriodSummary) summaryResponse {
	resp := summaryResponse{
		Period:            s.PeriodKey,
		TotalRevenue:      s.TotalRevenue.String(),
		TotalExpense:      s.TotalExpense.String(),
		NetProfit:         s.NetProfit.String(),
		RevenueByMethod:   make(map[string]string, 3),
		RevenueByInsurer:  make(map[string]string, len(s.RevenueByInsurer)),
		ExpenseByCategory: make(map[string]string, 2),
		TransactionCount:  s.TransactionCount,
		UnknownInsurerIDs: s.UnknownInsurerIDs,
	}
	resp.RevenueByMethod[string(core.PaymentCash)] = s.RevenueByMethod.Cash.String()
	resp.RevenueByMethod[string(core.PaymentMobileMoney)] = s.RevenueByMethod.MobileMoney.String()
	resp.ExpenseByCategory[string(core.ExpenseClinical)] = s.ExpenseByCategory.Clinical.String()
	resp.ExpenseByCategory[string(core.ExpenseOperational)] = s.ExpenseByCategory.Operational.String()
	for id, amount := range s.RevenueByInsurer {
		key := strconv.FormatInt(id, 10)
		if id == core.UnknownInsurerKey {
			key = core.UnknownInsurerName
		}
		resp.RevenueByInsurer[key] = amount.String()
	}
	return resp
}

func toReportResponse(t core.ReportTable) reportResponse {
	resp := reportResponse{
		Rows:                make([]summaryResponse, 0, len(t.Rows)),
		GrandTotals:         toSummaryResponse(t.GrandTotals),
		TotalUniquePatients: t.TotalUniquePatients,
	}
	for _, row := range t.Rows {
		resp.Rows = append(resp.Rows, toSummaryResponse(row))
	}
	return resp
}

func toAnnualDistributionResponse(t core.AnnualDistributionTable) annualDistributionResponse {
	resp := annualDistributionResponse{
		Year:         t.Year,
		Months:       t.Months,
		InsurerNames: t.InsurerNames,
		Cells:        make(map[string]map[string]string, len(t.Cells)),
	}
	for month, row := range t.Cells {
		cells := make(map[string]string, len(row))
		for name, amount := range row {
			cells[name] = amount.String()
		}
		resp.Cells[month] = cells
	}
	return resp
}

func toReconciliationResponse(r services.ReconciliationResult) reconciliationResponse {
	resp := reconciliationResponse{
		ReconciliationID: r.ReconciliationID,
		InsurerID:        r.InsurerID,
		Received:         r.Received.String(),
		Allocations:      make([]allocationResponse, 0, len(r.Allocations)),
	}
	for _, a := range r.Allocations {
		resp.Allocations = append(resp.Allocations, allocationResponse{
			TransactionID: a.TransactionID,
			Amount:        a.Amount.String(),
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps domain failures onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownInsurer):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrCommitConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNoMatchingTransactions),
		errors.Is(err, core.ErrZeroExpectedAmount),
		errors.Is(err, core.ErrInvalidPaymentMethod),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidCoverage):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
