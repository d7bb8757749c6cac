package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/metrics"
	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/durgaprasad-mokara/bank-lending-project/pkg/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultOverviewConcurrency = 8

// Ledger handles the business logic for loans and payments. It holds no
// mutable state of its own; all coordination is delegated to the storage.
type Ledger struct {
	storage             store.Storage
	logger              *logrus.Logger
	metrics             *metrics.Collector
	now                 func() time.Time
	overviewConcurrency int
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithLogger(logger *logrus.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(c *metrics.Collector) Option {
	return func(l *Ledger) {
		l.metrics = c
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithOverviewConcurrency bounds how many loans CustomerOverview evaluates at once.
func WithOverviewConcurrency(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.overviewConcurrency = n
		}
	}
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	l := &Ledger{
		storage:             s,
		logger:              discard,
		now:                 time.Now,
		overviewConcurrency: defaultOverviewConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) fail(err error, fields logrus.Fields) error {
	kind := errorKind(err)
	l.metrics.EngineError(kind)
	entry := l.logger.WithFields(fields).WithError(err)
	if kind == "storage" {
		entry.Error("Ledger operation failed")
	} else {
		entry.Warn("Ledger request rejected")
	}
	return err
}

// Quote runs the terms calculator without creating a loan.
func (l *Ledger) Quote(principal decimal.Decimal, termYears int, annualRate decimal.Decimal) (models.Terms, error) {
	terms, err := CalculateTerms(principal, termYears, annualRate)
	if err != nil {
		return models.Terms{}, l.fail(err, logrus.Fields{"op": "quote"})
	}
	return terms, nil
}

// CreateLoan originates a loan for an existing customer. Terms are fixed here
// and never change afterwards.
func (l *Ledger) CreateLoan(ctx context.Context, customerID string, principal decimal.Decimal, termYears int, annualRate decimal.Decimal) (*models.Loan, error) {
	fields := logrus.Fields{"op": "create_loan", "customer_id": customerID}

	terms, err := CalculateTerms(principal, termYears, annualRate)
	if err != nil {
		return nil, l.fail(err, fields)
	}

	customerID = strings.TrimSpace(customerID)
	if err := l.requireCustomer(ctx, customerID); err != nil {
		return nil, l.fail(err, fields)
	}

	loan := &models.Loan{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		Principal:          terms.Principal,
		InterestRate:       terms.InterestRate,
		TermYears:          terms.TermYears,
		TotalPayable:       terms.TotalPayable,
		MonthlyInstallment: terms.MonthlyInstallment,
		CreatedAt:          l.now().UTC(),
	}

	if err := l.storage.CreateLoan(ctx, loan); err != nil {
		return nil, l.fail(fmt.Errorf("failed to store loan: %w", err), fields)
	}

	l.metrics.LoanCreated()
	l.logger.WithFields(logrus.Fields{
		"loan_id":       loan.ID,
		"customer_id":   loan.CustomerID,
		"principal":     loan.Principal.String(),
		"total_payable": loan.TotalPayable.String(),
	}).Info("Loan created")
	return loan, nil
}

func (l *Ledger) requireCustomer(ctx context.Context, customerID string) error {
	if customerID == "" {
		return fmt.Errorf("%w: empty customer id", ErrCustomerNotFound)
	}
	exists, err := l.storage.CustomerExists(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to resolve customer %s: %w", customerID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	loan, err := l.loan(ctx, id)
	if err != nil {
		return nil, l.fail(err, logrus.Fields{"op": "get_loan", "loan_id": id})
	}
	return loan, nil
}

func (l *Ledger) loan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLoanNotFound, id)
		}
		return nil, err
	}
	return loan, nil
}

// ListLoansForCustomer returns the customer's loans, newest first. A known
// customer without loans yields an empty slice, not an error. Surrounding
// whitespace in customerID is ignored, as in CreateLoan.
func (l *Ledger) ListLoansForCustomer(ctx context.Context, customerID string) ([]*models.Loan, error) {
	customerID = strings.TrimSpace(customerID)
	fields := logrus.Fields{"op": "list_loans", "customer_id": customerID}
	if err := l.requireCustomer(ctx, customerID); err != nil {
		return nil, l.fail(err, fields)
	}
	loans, err := l.storage.GetLoansForCustomer(ctx, customerID)
	if err != nil {
		return nil, l.fail(err, fields)
	}
	return loans, nil
}

func (l *Ledger) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	customers, err := l.storage.GetCustomers(ctx)
	if err != nil {
		return nil, l.fail(err, logrus.Fields{"op": "list_customers"})
	}
	return customers, nil
}

// GetLedger assembles the loan's current position and transaction history.
// AmountPaid is summed from the returned transactions, so the view is
// consistent with itself even if a payment lands while it is being built.
func (l *Ledger) GetLedger(ctx context.Context, loanID uuid.UUID) (*models.LedgerView, error) {
	fields := logrus.Fields{"op": "get_ledger", "loan_id": loanID}

	loan, err := l.loan(ctx, loanID)
	if err != nil {
		return nil, l.fail(err, fields)
	}

	payments, err := l.storage.GetPaymentsForLoan(ctx, loanID)
	if err != nil {
		return nil, l.fail(err, fields)
	}

	paid := decimal.Zero
	entries := make([]models.LedgerEntry, 0, len(payments))
	for _, p := range payments {
		paid = paid.Add(p.Amount)
		entries = append(entries, models.LedgerEntry{
			TransactionID: p.ID,
			Date:          p.RecordedAt,
			Amount:        p.Amount,
			Type:          p.Type,
		})
	}
	balance, left, status := outstanding(loan, paid)

	return &models.LedgerView{
		LoanID:                loan.ID,
		CustomerID:            loan.CustomerID,
		Principal:             loan.Principal,
		InterestRate:          loan.InterestRate,
		TermYears:             loan.TermYears,
		TotalPayable:          loan.TotalPayable,
		MonthlyInstallment:    loan.MonthlyInstallment,
		AmountPaid:            paid,
		BalanceAmount:         balance,
		InstallmentsRemaining: left,
		Status:                status,
		Transactions:          entries,
	}, nil
}

// RecordPayment appends a payment to the loan's log and reports the position
// computed from the sum the store read back in the same atomic unit as the
// insert. Payments beyond the outstanding balance are accepted; the balance
// then reads as zero.
func (l *Ledger) RecordPayment(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal, paymentType string) (*models.PaymentResult, error) {
	fields := logrus.Fields{"op": "record_payment", "loan_id": loanID, "amount": amount.String()}

	if !amount.IsPositive() {
		return nil, l.fail(fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidPayment, amount), fields)
	}
	pt, ok := models.ParsePaymentType(paymentType)
	if !ok {
		return nil, l.fail(fmt.Errorf("%w: unknown payment type %q", ErrInvalidPayment, paymentType), fields)
	}

	// Terms are immutable, so reading the loan before the append cannot go stale.
	loan, err := l.loan(ctx, loanID)
	if err != nil {
		return nil, l.fail(err, fields)
	}

	payment := &models.Payment{
		ID:         uuid.New(),
		LoanID:     loan.ID,
		Amount:     amount,
		Type:       pt,
		RecordedAt: l.now(),
	}
	paid, err := l.storage.AppendPayment(ctx, payment)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrLoanNotFound, loanID)
		} else {
			err = fmt.Errorf("failed to store payment: %w", err)
		}
		return nil, l.fail(err, fields)
	}

	balance, left, status := outstanding(loan, paid)
	if paid.GreaterThan(loan.TotalPayable) {
		l.logger.WithFields(fields).WithField("overpaid_by", paid.Sub(loan.TotalPayable).String()).Warn("Loan overpaid")
	}

	l.metrics.PaymentRecorded(string(pt), amount)
	l.logger.WithFields(fields).WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"seq":        payment.Sequence,
		"balance":    balance.String(),
	}).Info("Payment recorded")

	return &models.PaymentResult{
		PaymentID:             payment.ID,
		LoanID:                loan.ID,
		Amount:                payment.Amount,
		PaymentType:           payment.Type,
		RecordedAt:            payment.RecordedAt,
		AmountPaid:            paid,
		BalanceAmount:         balance,
		InstallmentsRemaining: left,
		Status:                status,
	}, nil
}

// CustomerOverview summarizes every loan the customer holds, newest first.
// Per-loan payment sums are fetched concurrently.
func (l *Ledger) CustomerOverview(ctx context.Context, customerID string) (*models.CustomerOverview, error) {
	customerID = strings.TrimSpace(customerID)
	loans, err := l.ListLoansForCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.LoanSummary, len(loans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.overviewConcurrency)
	for i, loan := range loans {
		i, loan := i, loan
		g.Go(func() error {
			paid, err := l.storage.SumPaymentsForLoan(gctx, loan.ID)
			if err != nil {
				return fmt.Errorf("failed to sum payments for loan %s: %w", loan.ID, err)
			}
			balance, left, status := outstanding(loan, paid)
			summaries[i] = models.LoanSummary{
				LoanID:                loan.ID,
				Principal:             loan.Principal,
				TotalPayable:          loan.TotalPayable,
				TotalInterest:         loan.TotalPayable.Sub(loan.Principal),
				MonthlyInstallment:    loan.MonthlyInstallment,
				AmountPaid:            paid,
				BalanceAmount:         balance,
				InstallmentsRemaining: left,
				Status:                status,
				CreatedAt:             loan.CreatedAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, l.fail(err, logrus.Fields{"op": "customer_overview", "customer_id": customerID})
	}

	return &models.CustomerOverview{
		CustomerID: customerID,
		TotalLoans: len(summaries),
		Loans:      summaries,
	}, nil
}
