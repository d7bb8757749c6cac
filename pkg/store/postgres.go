package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps loans and payments in PostgreSQL through the pgx
// database/sql driver.
type PostgresStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

var _ Storage = (*PostgresStore)(nil)

// NewPostgresStore connects using a pgx connection string and initializes the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	o := newOptions(opts)

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &PostgresStore{db: db, logger: o.logger}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	if o.seed {
		if err := s.seedCustomers(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("could not seed customers: %w", err)
		}
	}
	s.logger.Info("Postgres store ready")
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS customers (
		customer_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		loan_id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(customer_id),
		principal_amount NUMERIC NOT NULL CHECK (principal_amount > 0),
		interest_rate NUMERIC NOT NULL CHECK (interest_rate >= 0),
		loan_period_years INTEGER NOT NULL CHECK (loan_period_years > 0),
		total_amount NUMERIC NOT NULL,
		monthly_emi NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		created_seq BIGSERIAL
	);
	CREATE INDEX IF NOT EXISTS idx_loans_customer ON loans(customer_id);
	CREATE TABLE IF NOT EXISTS payments (
		payment_id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL REFERENCES loans(loan_id),
		seq BIGINT NOT NULL,
		amount NUMERIC NOT NULL CHECK (amount > 0),
		payment_type TEXT NOT NULL,
		payment_date TIMESTAMPTZ NOT NULL,
		UNIQUE (loan_id, seq)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) seedCustomers(ctx context.Context) error {
	now := time.Now().UTC()
	for _, c := range SeedCustomers {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO customers (customer_id, name, created_at) VALUES ($1, $2, $3) ON CONFLICT (customer_id) DO NOTHING`,
			c.ID, c.Name, now,
		); err != nil {
			return err
		}
	}
	return nil
}

// CreateCustomer inserts a customer record.
func (s *PostgresStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO customers (customer_id, name, created_at) VALUES ($1, $2, $3)`, c.ID, c.Name, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (s *PostgresStore) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE customer_id = $1)`, customerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up customer: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetCustomers(ctx context.Context) ([]*models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT customer_id, name, created_at FROM customers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get customers: %w", err)
	}
	defer rows.Close()

	customers := []*models.Customer{}
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, &c)
	}
	return customers, rows.Err()
}

func (s *PostgresStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (loan_id, customer_id, principal_amount, interest_rate, loan_period_years, total_amount, monthly_emi, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		loan.ID.String(), loan.CustomerID, loan.Principal, loan.InterestRate, loan.TermYears, loan.TotalPayable, loan.MonthlyInstallment, loan.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

const postgresLoanColumns = `loan_id, customer_id, principal_amount, interest_rate, loan_period_years, total_amount, monthly_emi, created_at`

func (s *PostgresStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postgresLoanColumns+` FROM loans WHERE loan_id = $1`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (s *PostgresStore) GetLoansForCustomer(ctx context.Context, customerID string) ([]*models.Loan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postgresLoanColumns+` FROM loans WHERE customer_id = $1 ORDER BY created_at DESC, created_seq DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get loans for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	loans := []*models.Loan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// AppendPayment locks the loan row for the duration of the transaction, so
// appends to one loan queue behind each other while other loans proceed.
func (s *PostgresStore) AppendPayment(ctx context.Context, payment *models.Payment) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT loan_id FROM loans WHERE loan_id = $1 FOR UPDATE`, payment.LoanID.String()).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("loan %s: %w", payment.LoanID, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock loan: %w", err)
	}

	var lastSeq int64
	var lastAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT seq, payment_date FROM payments WHERE loan_id = $1 ORDER BY seq DESC LIMIT 1`,
		payment.LoanID.String(),
	).Scan(&lastSeq, &lastAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to read last payment: %w", err)
	}
	stampPayment(payment, lastSeq, lastAt)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (payment_id, loan_id, seq, amount, payment_type, payment_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		payment.ID.String(), payment.LoanID.String(), payment.Sequence, payment.Amount, string(payment.Type), payment.RecordedAt,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create payment: %w", err)
	}

	total, err := sumAmounts(ctx, tx, `SELECT amount FROM payments WHERE loan_id = $1`, payment.LoanID.String())
	if err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit payment: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) GetPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payment_id, loan_id, seq, amount, payment_type, payment_date FROM payments WHERE loan_id = $1 ORDER BY seq DESC`,
		loanID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		var p models.Payment
		var paymentIDStr, loanIDStr, paymentType string
		if err := rows.Scan(&paymentIDStr, &loanIDStr, &p.Sequence, &p.Amount, &paymentType, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.ID, err = uuid.Parse(paymentIDStr); err != nil {
			return nil, fmt.Errorf("corrupt payment id %q: %w", paymentIDStr, err)
		}
		if p.LoanID, err = uuid.Parse(loanIDStr); err != nil {
			return nil, fmt.Errorf("corrupt loan id %q: %w", loanIDStr, err)
		}
		p.Type = models.PaymentType(paymentType)
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (s *PostgresStore) SumPaymentsForLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db, `SELECT amount FROM payments WHERE loan_id = $1`, loanID.String())
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
