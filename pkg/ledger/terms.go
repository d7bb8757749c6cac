package ledger

import (
	"fmt"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
)

// CalculateTerms applies flat (simple, non-compounding) interest over the
// whole term:
//
//	interest            = principal * years * rate / 100
//	total payable       = principal + interest
//	monthly installment = total payable / (years * 12)
//
// Interest is charged once up front, not amortized; this is the product's
// billing rule.
func CalculateTerms(principal decimal.Decimal, termYears int, annualRate decimal.Decimal) (models.Terms, error) {
	switch {
	case !principal.IsPositive():
		return models.Terms{}, fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidTerms, principal)
	case termYears <= 0:
		return models.Terms{}, fmt.Errorf("%w: loan period must be positive, got %d years", ErrInvalidTerms, termYears)
	case annualRate.IsNegative():
		return models.Terms{}, fmt.Errorf("%w: interest rate must not be negative, got %s", ErrInvalidTerms, annualRate)
	}

	years := decimal.NewFromInt(int64(termYears))
	interest := principal.Mul(years).Mul(annualRate).Div(hundred)
	total := principal.Add(interest)
	installment := total.Div(years.Mul(monthsPerYear))

	return models.Terms{
		Principal:          principal,
		TermYears:          termYears,
		InterestRate:       annualRate,
		TotalInterest:      interest,
		TotalPayable:       total,
		MonthlyInstallment: installment,
	}, nil
}

// outstanding derives balance, installments left and status from the loan's
// fixed terms and the sum of its payments. Overpayment floors the balance at
// zero; the excess is not tracked separately.
func outstanding(loan *models.Loan, paid decimal.Decimal) (decimal.Decimal, int64, models.LoanStatus) {
	balance := loan.TotalPayable.Sub(paid)
	if !balance.IsPositive() {
		return decimal.Zero, 0, models.LoanStatusPaidOff
	}
	return balance, installmentsFor(loan, balance), models.LoanStatusActive
}

// installmentsFor is ceil(balance / monthly installment). It is computed as
// the exact integer quotient of balance * n by total, rounded up on any
// remainder, so a non-terminating installment never shifts the count.
func installmentsFor(loan *models.Loan, balance decimal.Decimal) int64 {
	n := decimal.NewFromInt(int64(loan.Installments()))
	q, r := balance.Mul(n).QuoRem(loan.TotalPayable, 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q.IntPart()
}
