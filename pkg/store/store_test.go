package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// backend is what the shared tests need from every Storage implementation.
type backend interface {
	Storage
	CreateCustomer(ctx context.Context, c *models.Customer) error
}

// runBackendTests exercises the Storage contract against a fresh backend
// built by open for each subtest.
func runBackendTests(t *testing.T, open func(t *testing.T) backend) {
	t.Run("CreateAndGetLoan", func(t *testing.T) { testCreateAndGetLoan(t, open(t)) })
	t.Run("GetLoanNotFound", func(t *testing.T) { testGetLoanNotFound(t, open(t)) })
	t.Run("LoansForCustomer", func(t *testing.T) { testLoansForCustomer(t, open(t)) })
	t.Run("Customers", func(t *testing.T) { testCustomers(t, open(t)) })
	t.Run("AppendPayment", func(t *testing.T) { testAppendPayment(t, open(t)) })
	t.Run("AppendPaymentUnknownLoan", func(t *testing.T) { testAppendPaymentUnknownLoan(t, open(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, open(t)) })
}

// newCustomer registers a customer with a unique id so tests can share a
// long-lived database.
func newCustomer(t *testing.T, s backend) string {
	t.Helper()
	id := "TEST-" + uuid.NewString()[:8]
	if err := s.CreateCustomer(context.Background(), &models.Customer{ID: id, Name: "Test " + id, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Failed to create customer: %v", err)
	}
	return id
}

func newLoan(customerID string, createdAt time.Time) *models.Loan {
	return &models.Loan{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		Principal:          decimal.NewFromInt(100000),
		InterestRate:       decimal.RequireFromString("10.5"),
		TermYears:          5,
		TotalPayable:       decimal.NewFromInt(152500),
		MonthlyInstallment: decimal.RequireFromString("2541.6666666666666667"),
		CreatedAt:          createdAt,
	}
}

func testCreateAndGetLoan(t *testing.T, s backend) {
	ctx := context.Background()
	customerID := newCustomer(t, s)
	loan := newLoan(customerID, time.Now().UTC().Truncate(time.Microsecond))

	if err := s.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	fetched, err := s.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if fetched.ID != loan.ID || fetched.CustomerID != customerID {
		t.Errorf("Expected loan %s for %s, got %s for %s", loan.ID, customerID, fetched.ID, fetched.CustomerID)
	}
	if !fetched.Principal.Equal(loan.Principal) {
		t.Errorf("Expected principal %s, got %s", loan.Principal, fetched.Principal)
	}
	if !fetched.InterestRate.Equal(loan.InterestRate) {
		t.Errorf("Expected rate %s, got %s", loan.InterestRate, fetched.InterestRate)
	}
	if !fetched.MonthlyInstallment.Equal(loan.MonthlyInstallment) {
		t.Errorf("Expected installment %s, got %s", loan.MonthlyInstallment, fetched.MonthlyInstallment)
	}
	if fetched.TermYears != 5 {
		t.Errorf("Expected 5 years, got %d", fetched.TermYears)
	}
	if !fetched.CreatedAt.Equal(loan.CreatedAt) {
		t.Errorf("Expected created_at %s, got %s", loan.CreatedAt, fetched.CreatedAt)
	}

	if err := s.CreateLoan(ctx, newLoan("NO-SUCH-CUSTOMER", time.Now().UTC())); err == nil {
		t.Error("Expected error creating a loan for an unknown customer")
	}
}

func testGetLoanNotFound(t *testing.T, s backend) {
	_, err := s.GetLoan(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testLoansForCustomer(t *testing.T, s backend) {
	ctx := context.Background()
	customerID := newCustomer(t, s)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		loan := newLoan(customerID, base.Add(time.Duration(i)*time.Hour))
		if err := s.CreateLoan(ctx, loan); err != nil {
			t.Fatalf("Failed to create loan: %v", err)
		}
		ids = append(ids, loan.ID)
	}

	loans, err := s.GetLoansForCustomer(ctx, customerID)
	if err != nil {
		t.Fatalf("Failed to get loans: %v", err)
	}
	if len(loans) != 3 {
		t.Fatalf("Expected 3 loans, got %d", len(loans))
	}
	for i, loan := range loans {
		if want := ids[2-i]; loan.ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, loan.ID)
		}
	}

	none, err := s.GetLoansForCustomer(ctx, newCustomer(t, s))
	if err != nil {
		t.Fatalf("Failed to get loans: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", none)
	}
}

func testCustomers(t *testing.T, s backend) {
	ctx := context.Background()

	for _, c := range SeedCustomers {
		ok, err := s.CustomerExists(ctx, c.ID)
		if err != nil {
			t.Fatalf("Failed to look up %s: %v", c.ID, err)
		}
		if !ok {
			t.Errorf("Expected seeded customer %s", c.ID)
		}
	}

	ok, err := s.CustomerExists(ctx, "CUST-MISSING")
	if err != nil {
		t.Fatalf("Failed to look up customer: %v", err)
	}
	if ok {
		t.Error("Expected unknown customer to be reported missing")
	}

	customers, err := s.GetCustomers(ctx)
	if err != nil {
		t.Fatalf("Failed to list customers: %v", err)
	}
	if len(customers) < len(SeedCustomers) {
		t.Fatalf("Expected at least %d customers, got %d", len(SeedCustomers), len(customers))
	}
	if !sort.SliceIsSorted(customers, func(i, j int) bool { return customers[i].Name < customers[j].Name }) {
		t.Error("Expected customers ordered by name")
	}
}

func testAppendPayment(t *testing.T, s backend) {
	ctx := context.Background()
	loan := newLoan(newCustomer(t, s), time.Now().UTC())
	if err := s.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	sum, err := s.SumPaymentsForLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to sum payments: %v", err)
	}
	if !sum.IsZero() {
		t.Errorf("Expected empty sum 0, got %s", sum)
	}

	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	inputs := []struct {
		amount string
		kind   models.PaymentType
		at     time.Time
	}{
		{"2541.67", models.PaymentTypeEMI, base},
		{"0.10", models.PaymentTypeLumpSum, base.Add(time.Minute)},
		{"0.20", models.PaymentTypeEMI, base.Add(-time.Hour)}, // clock went backwards
	}

	var running decimal.Decimal
	var appended []*models.Payment
	for i, in := range inputs {
		p := &models.Payment{
			ID:         uuid.New(),
			LoanID:     loan.ID,
			Amount:     decimal.RequireFromString(in.amount),
			Type:       in.kind,
			RecordedAt: in.at,
		}
		total, err := s.AppendPayment(ctx, p)
		if err != nil {
			t.Fatalf("Failed to append payment %d: %v", i, err)
		}
		running = running.Add(p.Amount)
		if !total.Equal(running) {
			t.Errorf("Append %d: expected total %s, got %s", i, running, total)
		}
		if p.Sequence != int64(i+1) {
			t.Errorf("Append %d: expected seq %d, got %d", i, i+1, p.Sequence)
		}
		appended = append(appended, p)
	}

	if appended[2].RecordedAt.Before(appended[1].RecordedAt) {
		t.Errorf("Expected clamped timestamp, got %s after %s", appended[2].RecordedAt, appended[1].RecordedAt)
	}

	payments, err := s.GetPaymentsForLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get payments: %v", err)
	}
	if len(payments) != 3 {
		t.Fatalf("Expected 3 payments, got %d", len(payments))
	}
	for i, p := range payments {
		want := appended[2-i]
		if p.ID != want.ID || p.Sequence != want.Sequence || p.Type != want.Type || !p.Amount.Equal(want.Amount) {
			t.Errorf("Position %d: expected %+v, got %+v", i, want, p)
		}
	}

	sum, err = s.SumPaymentsForLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to sum payments: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("2541.97")) {
		t.Errorf("Expected exact sum 2541.97, got %s", sum)
	}
}

func testAppendPaymentUnknownLoan(t *testing.T, s backend) {
	ctx := context.Background()
	missing := uuid.New()
	_, err := s.AppendPayment(ctx, &models.Payment{
		ID:         uuid.New(),
		LoanID:     missing,
		Amount:     decimal.NewFromInt(1),
		Type:       models.PaymentTypeEMI,
		RecordedAt: time.Now(),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	payments, err := s.GetPaymentsForLoan(ctx, missing)
	if err != nil {
		t.Fatalf("Failed to get payments: %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("Expected no payments, got %d", len(payments))
	}
}

func testConcurrentAppends(t *testing.T, s backend) {
	ctx := context.Background()
	customerID := newCustomer(t, s)
	loans := []*models.Loan{newLoan(customerID, time.Now().UTC()), newLoan(customerID, time.Now().UTC())}
	for _, loan := range loans {
		if err := s.CreateLoan(ctx, loan); err != nil {
			t.Fatalf("Failed to create loan: %v", err)
		}
	}

	const perLoan = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	totals := map[uuid.UUID][]int64{}
	errs := make(chan error, perLoan*len(loans))

	for _, loan := range loans {
		for i := 0; i < perLoan; i++ {
			wg.Add(1)
			go func(loanID uuid.UUID) {
				defer wg.Done()
				total, err := s.AppendPayment(ctx, &models.Payment{
					ID:         uuid.New(),
					LoanID:     loanID,
					Amount:     decimal.NewFromInt(100),
					Type:       models.PaymentTypeEMI,
					RecordedAt: time.Now(),
				})
				if err != nil {
					errs <- err
					return
				}
				mu.Lock()
				totals[loanID] = append(totals[loanID], total.IntPart())
				mu.Unlock()
			}(loan.ID)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Concurrent append failed: %v", err)
	}

	for _, loan := range loans {
		seen := totals[loan.ID]
		sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
		for i, got := range seen {
			if want := int64(100 * (i + 1)); got != want {
				t.Fatalf("Loan %s: expected distinct running totals, position %d was %d", loan.ID, i, got)
			}
		}

		payments, err := s.GetPaymentsForLoan(ctx, loan.ID)
		if err != nil {
			t.Fatalf("Failed to get payments: %v", err)
		}
		if len(payments) != perLoan {
			t.Fatalf("Expected %d payments, got %d", perLoan, len(payments))
		}
		for i, p := range payments {
			if want := int64(perLoan - i); p.Sequence != want {
				t.Errorf("Expected seq %d at position %d, got %d", want, i, p.Sequence)
			}
		}
	}
}
