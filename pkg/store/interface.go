package store

import (
	"context"
	"errors"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned (possibly wrapped) when a loan or customer does not exist.
var ErrNotFound = errors.New("not found")

// LoanStore persists immutable loan records.
type LoanStore interface {
	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	// GetLoansForCustomer returns the customer's loans, newest first.
	GetLoansForCustomer(ctx context.Context, customerID string) ([]*models.Loan, error)
}

// PaymentLog is the append-only payment ledger.
//
// AppendPayment must insert the payment and read the loan's payment sum in a
// single atomic unit scoped to payment.LoanID, so that concurrent appends for
// the same loan are never lost and each caller sees a sum that includes its
// own payment. Appends for different loans must not block each other.
type PaymentLog interface {
	AppendPayment(ctx context.Context, payment *models.Payment) (decimal.Decimal, error)
	// GetPaymentsForLoan returns the loan's payments, newest first.
	GetPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Payment, error)
	SumPaymentsForLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)
}

// CustomerDirectory resolves customer references. The engine does not own
// customer data, it only reads it.
type CustomerDirectory interface {
	CustomerExists(ctx context.Context, customerID string) (bool, error)
	GetCustomers(ctx context.Context) ([]*models.Customer, error)
}

// Storage is the full backend handed to the ledger.
type Storage interface {
	LoanStore
	PaymentLog
	CustomerDirectory

	Close() error
}

// SeedCustomers are loaded into a fresh database so the service is usable
// without a separate customer system.
var SeedCustomers = []models.Customer{
	{ID: "CUST001", Name: "John Doe"},
	{ID: "CUST002", Name: "Jane Smith"},
	{ID: "CUST003", Name: "Bob Johnson"},
}
