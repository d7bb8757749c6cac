package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Customer struct {
	ID        string    `json:"customer_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Loan is written once at origination and never updated. Balance and status
// are derived from the payment log, see LedgerView.
type Loan struct {
	ID                 uuid.UUID       `json:"loan_id"`
	CustomerID         string          `json:"customer_id"`
	Principal          decimal.Decimal `json:"principal_amount"`
	InterestRate       decimal.Decimal `json:"interest_rate"` // Annual percentage, e.g. 10 for 10%
	TermYears          int             `json:"loan_period_years"`
	TotalPayable       decimal.Decimal `json:"total_amount"`
	MonthlyInstallment decimal.Decimal `json:"monthly_emi"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Installments is the number of monthly installments over the full term.
func (l *Loan) Installments() int {
	return l.TermYears * 12
}

type PaymentType string

const (
	PaymentTypeEMI     PaymentType = "EMI"
	PaymentTypeLumpSum PaymentType = "LUMP_SUM"
)

var paymentTypes = map[PaymentType]struct{}{
	PaymentTypeEMI:     {},
	PaymentTypeLumpSum: {},
}

// ParsePaymentType normalizes s to its canonical upper-case form ("emi",
// "lump-sum" and "Lump Sum" are all accepted). The second return value is
// false for anything outside the known set.
func ParsePaymentType(s string) (PaymentType, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	pt := PaymentType(norm)
	_, ok := paymentTypes[pt]
	return pt, ok
}

// Payment is a single immutable entry in a loan's payment log.
type Payment struct {
	ID         uuid.UUID       `json:"payment_id"`
	LoanID     uuid.UUID       `json:"loan_id"`
	Amount     decimal.Decimal `json:"amount"`
	Type       PaymentType     `json:"payment_type"`
	RecordedAt time.Time       `json:"payment_date"`
	Sequence   int64           `json:"sequence"` // 1-based position in the loan's log, assigned by the store
}

type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "ACTIVE"
	LoanStatusPaidOff LoanStatus = "PAID_OFF"
)

// Terms is the output of the loan terms calculator.
type Terms struct {
	Principal          decimal.Decimal `json:"principal"`
	TermYears          int             `json:"loan_period_years"`
	InterestRate       decimal.Decimal `json:"interest_rate"`
	TotalInterest      decimal.Decimal `json:"total_interest"`
	TotalPayable       decimal.Decimal `json:"total_amount_payable"`
	MonthlyInstallment decimal.Decimal `json:"monthly_emi"`
}

type LedgerEntry struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Type          PaymentType     `json:"type"`
}

// LedgerView is computed on every read from a Loan and its payments. It is
// never persisted.
type LedgerView struct {
	LoanID                uuid.UUID       `json:"loan_id"`
	CustomerID            string          `json:"customer_id"`
	Principal             decimal.Decimal `json:"principal"`
	InterestRate          decimal.Decimal `json:"interest_rate"`
	TermYears             int             `json:"loan_period_years"`
	TotalPayable          decimal.Decimal `json:"total_amount"`
	MonthlyInstallment    decimal.Decimal `json:"monthly_emi"`
	AmountPaid            decimal.Decimal `json:"amount_paid"`
	BalanceAmount         decimal.Decimal `json:"balance_amount"`
	InstallmentsRemaining int64           `json:"emis_left"`
	Status                LoanStatus      `json:"status"`
	Transactions          []LedgerEntry   `json:"transactions"`
}

type PaymentResult struct {
	PaymentID             uuid.UUID       `json:"payment_id"`
	LoanID                uuid.UUID       `json:"loan_id"`
	Amount                decimal.Decimal `json:"amount"`
	PaymentType           PaymentType     `json:"payment_type"`
	RecordedAt            time.Time       `json:"payment_date"`
	AmountPaid            decimal.Decimal `json:"amount_paid"`
	BalanceAmount         decimal.Decimal `json:"remaining_balance"`
	InstallmentsRemaining int64           `json:"emis_left"`
	Status                LoanStatus      `json:"status"`
}

type LoanSummary struct {
	LoanID                uuid.UUID       `json:"loan_id"`
	Principal             decimal.Decimal `json:"principal"`
	TotalPayable          decimal.Decimal `json:"total_amount"`
	TotalInterest         decimal.Decimal `json:"total_interest"`
	MonthlyInstallment    decimal.Decimal `json:"emi_amount"`
	AmountPaid            decimal.Decimal `json:"amount_paid"`
	BalanceAmount         decimal.Decimal `json:"balance_amount"`
	InstallmentsRemaining int64           `json:"emis_left"`
	Status                LoanStatus      `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
}

type CustomerOverview struct {
	CustomerID string        `json:"customer_id"`
	TotalLoans int           `json:"total_loans"`
	Loans      []LoanSummary `json:"loans"`
}
