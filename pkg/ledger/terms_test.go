package ledger

import (
	"errors"
	"testing"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/shopspring/decimal"
)

func TestCalculateTerms(t *testing.T) {
	terms, err := CalculateTerms(decimal.NewFromInt(100000), 5, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Failed to calculate terms: %v", err)
	}

	if !terms.TotalPayable.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("Expected total payable 150000, got %s", terms.TotalPayable)
	}
	if !terms.MonthlyInstallment.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected monthly installment 2500, got %s", terms.MonthlyInstallment)
	}
	if !terms.TotalInterest.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Expected total interest 50000, got %s", terms.TotalInterest)
	}
}

func TestCalculateTerms_Formula(t *testing.T) {
	cases := []struct {
		principal string
		years     int
		rate      string
	}{
		{"1000", 1, "0"},
		{"1000", 3, "12.5"},
		{"250000.75", 20, "7.25"},
		{"1", 30, "99"},
		{"5000", 7, "0.01"},
	}

	for _, tc := range cases {
		principal := decimal.RequireFromString(tc.principal)
		rate := decimal.RequireFromString(tc.rate)
		years := decimal.NewFromInt(int64(tc.years))

		terms, err := CalculateTerms(principal, tc.years, rate)
		if err != nil {
			t.Fatalf("CalculateTerms(%s, %d, %s) failed: %v", tc.principal, tc.years, tc.rate, err)
		}

		wantTotal := principal.Add(principal.Mul(years).Mul(rate).Div(hundred))
		if !terms.TotalPayable.Equal(wantTotal) {
			t.Errorf("Expected total %s, got %s", wantTotal, terms.TotalPayable)
		}
		wantInstallment := wantTotal.Div(years.Mul(monthsPerYear))
		if !terms.MonthlyInstallment.Equal(wantInstallment) {
			t.Errorf("Expected installment %s, got %s", wantInstallment, terms.MonthlyInstallment)
		}
		if terms.TotalPayable.LessThan(principal) {
			t.Errorf("Total payable %s below principal %s", terms.TotalPayable, principal)
		}
		if !terms.MonthlyInstallment.IsPositive() {
			t.Errorf("Expected positive installment, got %s", terms.MonthlyInstallment)
		}
	}
}

func TestCalculateTerms_ZeroRate(t *testing.T) {
	terms, err := CalculateTerms(decimal.NewFromInt(1200), 1, decimal.Zero)
	if err != nil {
		t.Fatalf("Failed to calculate terms: %v", err)
	}
	if !terms.TotalPayable.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("Expected total payable to equal principal, got %s", terms.TotalPayable)
	}
	if !terms.MonthlyInstallment.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected installment 100, got %s", terms.MonthlyInstallment)
	}
}

func TestCalculateTerms_Invalid(t *testing.T) {
	cases := []struct {
		name      string
		principal decimal.Decimal
		years     int
		rate      decimal.Decimal
	}{
		{"zero principal", decimal.Zero, 5, decimal.NewFromInt(10)},
		{"negative principal", decimal.NewFromInt(-1), 5, decimal.NewFromInt(10)},
		{"zero years", decimal.NewFromInt(1000), 0, decimal.NewFromInt(10)},
		{"negative years", decimal.NewFromInt(1000), -2, decimal.NewFromInt(10)},
		{"negative rate", decimal.NewFromInt(1000), 5, decimal.NewFromFloat(-0.5)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CalculateTerms(tc.principal, tc.years, tc.rate)
			if !errors.Is(err, ErrInvalidTerms) {
				t.Errorf("Expected ErrInvalidTerms, got %v", err)
			}
		})
	}
}

func TestInstallmentsFor(t *testing.T) {
	loan := &models.Loan{TermYears: 5, TotalPayable: decimal.NewFromInt(150000), MonthlyInstallment: decimal.NewFromInt(2500)}

	cases := []struct {
		balance string
		want    int64
	}{
		{"150000", 60},
		{"147500", 59},
		{"147499.99", 59},
		{"147500.01", 60},
		{"0.01", 1},
	}
	for _, tc := range cases {
		if got := installmentsFor(loan, decimal.RequireFromString(tc.balance)); got != tc.want {
			t.Errorf("Balance %s: expected %d installments, got %d", tc.balance, tc.want, got)
		}
	}
}

func TestInstallmentsFor_LargeLoanJustAboveWholeInstallments(t *testing.T) {
	// 120M over 12 months is 10M a month; a balance one paisa above three
	// installments still needs a fourth.
	loan := &models.Loan{TermYears: 1, TotalPayable: decimal.NewFromInt(120000000), MonthlyInstallment: decimal.NewFromInt(10000000)}

	cases := []struct {
		balance string
		want    int64
	}{
		{"30000000.01", 4},
		{"30000000", 3},
		{"29999999.99", 3},
		{"119999999.99", 12},
	}
	for _, tc := range cases {
		if got := installmentsFor(loan, decimal.RequireFromString(tc.balance)); got != tc.want {
			t.Errorf("Balance %s: expected %d installments, got %d", tc.balance, tc.want, got)
		}
	}
}

func TestInstallmentsFor_RepeatingInstallment(t *testing.T) {
	// 1000 over 36 months is 27.777...; paying whole installments must count
	// down by exactly one each time.
	terms, err := CalculateTerms(decimal.NewFromInt(1000), 3, decimal.Zero)
	if err != nil {
		t.Fatalf("Failed to calculate terms: %v", err)
	}
	loan := &models.Loan{TermYears: 3, TotalPayable: terms.TotalPayable, MonthlyInstallment: terms.MonthlyInstallment}

	paid := decimal.Zero
	for k := 1; k < 36; k++ {
		paid = paid.Add(loan.MonthlyInstallment)
		_, left, status := outstanding(loan, paid)
		if left != int64(36-k) {
			t.Fatalf("After %d installments expected %d left, got %d", k, 36-k, left)
		}
		if status != models.LoanStatusActive {
			t.Fatalf("Expected ACTIVE after %d installments, got %s", k, status)
		}
	}
}
