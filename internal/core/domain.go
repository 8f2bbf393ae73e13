package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentMobileMoney PaymentMethod = "mobile_money"
	PaymentNone        PaymentMethod = "none"
)

const (
	ExpenseClinical    ExpenseCategory = "clinical"
	ExpenseOperational ExpenseCategory = "operational"
)

// SelfPay marks a transaction without an insurer.
const SelfPay int64 = 0

type (
	PaymentMethod   string
	ExpenseCategory string

	// Window is a half-open time interval [Start, End).
	Window struct {
		Start time.Time
		End   time.Time
	}

	// Transaction is a single patient visit/billing event. InsurerID is
	// SelfPay (0) when no insurer is involved. InsuranceActualPaid is only
	// meaningful once Reconciled is true.
	Transaction struct {
		ID                  int64
		PatientID           int64
		InsurerID           int64
		TotalBilled         Money
		PatientPaid         Money
		InsuranceExpected   Money
		InsuranceActualPaid Money
		Reconciled          bool
		Method              PaymentMethod
		CreatedAt           time.Time
		Version             int64
	}

	Insurer struct {
		ID                 int64
		Name               string
		CoveragePercentage int64 // 0-100
	}

	Expense struct {
		ID           int64
		Description  string
		Amount       Money
		Category     ExpenseCategory
		ExpenseDate  time.Time
		ReportedByID int64
	}
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrNoMatchingTransactions = errors.New("no matching transactions")
	ErrZeroExpectedAmount     = errors.New("zero expected amount")
	ErrUnknownInsurer         = errors.New("unknown insurer")
	ErrCommitConflict         = errors.New("commit conflict")
	ErrEmptyDescription       = errors.New("empty description")
	ErrInvalidCoverage        = errors.New("invalid coverage percentage")
	ErrInvalidPaymentMethod   = errors.New("invalid payment method")
	ErrInvalidCategory        = errors.New("invalid expense category")
	ErrInvalidRange           = errors.New("invalid report range")
)

// NewWindow builds a half-open interval. End must not be before Start.
func NewWindow(start, end time.Time) (Window, error) {
	if end.Before(start) {
		return Window{}, fmt.Errorf("window end %v before start %v", end, start)
	}
	return Window{Start: start, End: end}, nil
}

// MonthWindow covers one calendar month in UTC.
func MonthWindow(year, month int) Window {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// YearWindow covers one calendar year in UTC.
func YearWindow(year int) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(1, 0, 0)}
}

// Contains reports whether t falls inside the window (inclusive of Start,
// exclusive of End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// PeriodKey formats a point in time as the canonical "YYYY-MM" month key.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (m PaymentMethod) Validate() error {
	switch m {
	case PaymentCash, PaymentMobileMoney, PaymentNone:
		return nil
	}
	return ErrInvalidPaymentMethod
}

func (c ExpenseCategory) Validate() error {
	switch c {
	case ExpenseClinical, ExpenseOperational:
		return nil
	}
	return ErrInvalidCategory
}

// NewTransaction computes the patient/insurer split at creation time. The
// insurer's expected share is its coverage percentage applied to the billed
// amount, rounded to cents; the patient pays the rest, so the two shares
// always sum exactly to the bill. A nil insurer means self-pay: the patient
// covers the whole bill. Full coverage leaves the patient share at zero and
// forces the payment method to none.
func NewTransaction(patientID int64, insurer *Insurer, billed Money, method PaymentMethod, createdAt time.Time) (Transaction, error) {
	if billed.IsNegative() {
		return Transaction{}, ErrInvalidAmount
	}
	if err := method.Validate(); err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		PatientID:   patientID,
		TotalBilled: billed,
		Method:      method,
		CreatedAt:   createdAt,
	}

	if insurer == nil {
		tx.InsurerID = SelfPay
		tx.PatientPaid = billed
		return tx, nil
	}

	if insurer.CoveragePercentage < 0 || insurer.CoveragePercentage > 100 {
		return Transaction{}, ErrInvalidCoverage
	}
	tx.InsurerID = insurer.ID
	tx.InsuranceExpected = billed.MulPercent(insurer.CoveragePercentage)
	tx.PatientPaid = billed.Sub(tx.InsuranceExpected)
	if tx.PatientPaid.IsZero() {
		tx.Method = PaymentNone
	}
	return tx, nil
}

// Validate checks the creation invariant: patient and insurer shares sum
// exactly to the billed amount, and no share is negative.
func (t Transaction) Validate() error {
	if t.TotalBilled.IsNegative() || t.PatientPaid.IsNegative() || t.InsuranceExpected.IsNegative() {
		return ErrInvalidAmount
	}
	if t.PatientPaid.Add(t.InsuranceExpected) != t.TotalBilled {
		return fmt.Errorf("%w: shares %s + %s do not sum to bill %s",
			ErrInvalidAmount, t.PatientPaid, t.InsuranceExpected, t.TotalBilled)
	}
	return t.Method.Validate()
}

func (i Insurer) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return errors.New("insurer name cannot be empty")
	}
	if i.CoveragePercentage < 0 || i.CoveragePercentage > 100 {
		return ErrInvalidCoverage
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if e.Amount.IsNegative() || e.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := e.Category.Validate(); err != nil {
		return err
	}
	if e.ExpenseDate.IsZero() {
		return errors.New("expense date cannot be zero")
	}
	return nil
}
