package http

import (
	"errors"
	"log/slog"
	"net/http"

	"ambulatorio/internal/core"
)

// handlePeriodReport serves the month-by-month table for an inclusive range:
// GET /reports/periods?from=YYYY-MM&to=YYYY-MM&basis=expected|actual
func (s *Server) handlePeriodReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	fromYear, fromMonth, err := parsePeriod(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	toYear, toMonth, err := parsePeriod(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	basis, err := parseBasis(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	table, err := s.reports.MonthlyReport(r.Context(), fromYear, fromMonth, toYear, toMonth, basis)
	if err != nil {
		if errors.Is(err, core.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Period report failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(table))
}

// handleAnnualDistribution serves the month-by-insurer coverage pivot:
// GET /reports/annual-distribution?year=YYYY
func (s *Server) handleAnnualDistribution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	year, _, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	table, err := s.reports.AnnualDistribution(r.Context(), year)
	if err != nil {
		slog.ErrorContext(r.Context(), "Annual distribution failed", "year", year, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnnualDistributionResponse(table))
}

// handleDashboardOverview serves one month's summary card:
// GET /dashboard/overview?year=YYYY&month=M&basis=expected|actual
func (s *Server) handleDashboardOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	basis, err := parseBasis(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	overview, err := s.reports.MonthOverview(r.Context(), year, month, basis)
	if err != nil {
		slog.ErrorContext(r.Context(), "Dashboard overview failed",
			"year", year, "month", month, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overviewResponse{
		Summary:        toSummaryResponse(overview.Summary),
		UniquePatients: overview.UniquePatients,
	})
}
