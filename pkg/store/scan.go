package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var loanIDStr string
	if err := row.Scan(&loanIDStr, &loan.CustomerID, &loan.Principal, &loan.InterestRate, &loan.TermYears, &loan.TotalPayable, &loan.MonthlyInstallment, &loan.CreatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(loanIDStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt loan id %q: %w", loanIDStr, err)
	}
	loan.ID = id
	return &loan, nil
}

// sumAmounts adds the amount column in Go; SQL SUM over TEXT or NUMERIC
// would go through float in SQLite.
func sumAmounts(ctx context.Context, q querier, query string, args ...any) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan payment amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error during rows iteration for payment sum: %w", err)
	}
	return total, nil
}

// stampPayment assigns the next sequence number and keeps RecordedAt
// non-decreasing within the loan's log.
func stampPayment(p *models.Payment, lastSeq int64, lastAt time.Time) {
	p.Sequence = lastSeq + 1
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now()
	}
	p.RecordedAt = p.RecordedAt.UTC()
	if !lastAt.IsZero() && p.RecordedAt.Before(lastAt) {
		p.RecordedAt = lastAt.UTC()
	}
}
