package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ambulatorio/internal/core"
)

// maxBodyBytes bounds request bodies; payloads are small JSON documents.
const maxBodyBytes = 1 << 16

type createTransactionRequest struct {
	PatientID int64  `json:"patient_id"`
	InsurerID int64  `json:"insurer_id"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
}

type createExpenseRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

type createInsurerRequest struct {
	Name               string `json:"name"`
	CoveragePercentage int64  `json:"coverage_percentage"`
}

type reconcileRequest struct {
	InsurerID int64  `json:"insurer_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Received  string `json:"received"`
}

// decodeJSON reads one JSON document from the body, rejecting trailing data
// and unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("decode request body: trailing data")
	}
	return nil
}

// parseYearMonth reads year and month query parameters, defaulting to the
// current month.
func parseYearMonth(r *http.Request) (year, month int, err error) {
	now := time.Now()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year %q", v)
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		month, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid month %q", v)
		}
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month %d out of range", month)
	}
	return year, month, nil
}

// parsePeriod splits a YYYY-MM query value.
func parsePeriod(value string) (year, month int, err error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period %q, want YYYY-MM", value)
	}
	return t.Year(), int(t.Month()), nil
}

// parseBasis maps the optional basis query parameter. Expected coverage is
// the default; "actual" switches to reconciled amounts.
func parseBasis(r *http.Request) (core.RevenueBasis, error) {
	switch strings.TrimSpace(r.URL.Query().Get("basis")) {
	case "", "expected":
		return core.BasisExpected, nil
	case "actual":
		return core.BasisActual, nil
	default:
		return 0, fmt.Errorf("invalid basis %q", r.URL.Query().Get("basis"))
	}
}

func parsePaymentMethod(value string) (core.PaymentMethod, error) {
	method := core.PaymentMethod(strings.TrimSpace(value))
	switch method {
	case core.PaymentCash, core.PaymentMobileMoney, core.PaymentNone:
		return method, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrInvalidPaymentMethod, value)
	}
}

func parseExpenseCategory(value string) (core.ExpenseCategory, error) {
	category := core.ExpenseCategory(strings.TrimSpace(value))
	switch category {
	case core.ExpenseClinical, core.ExpenseOperational:
		return category, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrInvalidCategory, value)
	}
}
