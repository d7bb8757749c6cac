package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

var _ Storage = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and initializes the schema.
//
// Every transaction is opened with BEGIN IMMEDIATE, which takes the write lock
// up front; together with the busy timeout this serializes concurrent appends
// instead of failing them with SQLITE_BUSY.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	o := newOptions(opts)

	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: o.logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	if o.seed {
		if err := s.seedCustomers(); err != nil {
			db.Close()
			return nil, fmt.Errorf("could not seed customers: %w", err)
		}
	}
	s.logger.WithField("path", path).Info("SQLite store ready")
	return s, nil
}

// sqliteDefaults are appended to every DSN unless the caller already set the
// parameter (under any of the driver's aliases).
var sqliteDefaults = []struct {
	keys  []string
	param string
}{
	{[]string{"_foreign_keys", "_fk"}, "_foreign_keys=on"},
	{[]string{"_journal_mode", "_journal"}, "_journal_mode=WAL"},
	{[]string{"_busy_timeout", "_timeout"}, "_busy_timeout=5000"},
	{[]string{"_txlock"}, "_txlock=immediate"},
}

// sqliteDSN turns a file path or "file:" URI into a DSN that keeps the
// locking settings AppendPayment relies on.
func sqliteDSN(path string) string {
	base, rawQuery, _ := strings.Cut(path, "?")
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	// ParseQuery still returns the parameters it could read on error.
	params, _ := url.ParseQuery(rawQuery)

	query := rawQuery
	for _, d := range sqliteDefaults {
		set := false
		for _, k := range d.keys {
			if params.Has(k) {
				set = true
				break
			}
		}
		if set {
			continue
		}
		if query != "" {
			query += "&"
		}
		query += d.param
	}
	return base + "?" + query
}

// initSchema creates the tables if they don't already exist.
// Decimal fields are TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS customers (
		customer_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		loan_id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		principal_amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		loan_period_years INTEGER NOT NULL,
		total_amount TEXT NOT NULL,
		monthly_emi TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(customer_id) REFERENCES customers(customer_id)
	);
	CREATE INDEX IF NOT EXISTS idx_loans_customer ON loans(customer_id);
	CREATE TABLE IF NOT EXISTS payments (
		payment_id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		amount TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		payment_date DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(loan_id),
		UNIQUE(loan_id, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) seedCustomers() error {
	now := time.Now().UTC()
	for _, c := range SeedCustomers {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO customers (customer_id, name, created_at) VALUES (?, ?, ?)`, c.ID, c.Name, now); err != nil {
			return err
		}
	}
	return nil
}

// CreateCustomer inserts a customer record.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO customers (customer_id, name, created_at) VALUES (?, ?, ?)`, c.ID, c.Name, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE customer_id = ?`, customerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up customer: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) GetCustomers(ctx context.Context) ([]*models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT customer_id, name, created_at FROM customers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get customers: %w", err)
	}
	defer rows.Close()

	customers := []*models.Customer{}
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		customers = append(customers, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return customers, nil
}

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (loan_id, customer_id, principal_amount, interest_rate, loan_period_years, total_amount, monthly_emi, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.CustomerID, loan.Principal, loan.InterestRate, loan.TermYears, loan.TotalPayable, loan.MonthlyInstallment, loan.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

const sqliteLoanColumns = `loan_id, customer_id, principal_amount, interest_rate, loan_period_years, total_amount, monthly_emi, created_at`

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteLoanColumns+` FROM loans WHERE loan_id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (s *SQLiteStore) GetLoansForCustomer(ctx context.Context, customerID string) ([]*models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteLoanColumns+` FROM loans WHERE customer_id = ? ORDER BY created_at DESC, rowid DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loans for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	loans := []*models.Loan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// AppendPayment inserts the payment and reads back the loan's total inside one
// write transaction.
func (s *SQLiteStore) AppendPayment(ctx context.Context, payment *models.Payment) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM loans WHERE loan_id = ?`, payment.LoanID.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("loan %s: %w", payment.LoanID, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock loan: %w", err)
	}

	var lastSeq int64
	var lastAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT seq, payment_date FROM payments WHERE loan_id = ? ORDER BY seq DESC LIMIT 1`,
		payment.LoanID.String(),
	).Scan(&lastSeq, &lastAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to read last payment: %w", err)
	}
	stampPayment(payment, lastSeq, lastAt)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (payment_id, loan_id, seq, amount, payment_type, payment_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		payment.ID.String(), payment.LoanID.String(), payment.Sequence, payment.Amount, string(payment.Type), payment.RecordedAt,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create payment: %w", err)
	}

	total, err := sumAmounts(ctx, tx, `SELECT amount FROM payments WHERE loan_id = ?`, payment.LoanID.String())
	if err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit payment: %w", err)
	}
	return total, nil
}

// GetPaymentsForLoan retrieves all payments for a given loan ID, newest first.
func (s *SQLiteStore) GetPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payment_id, loan_id, seq, amount, payment_type, payment_date FROM payments WHERE loan_id = ? ORDER BY seq DESC`,
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
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for loan payments: %w", err)
	}
	return payments, nil
}

func (s *SQLiteStore) SumPaymentsForLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	return sumAmounts(ctx, s.db, `SELECT amount FROM payments WHERE loan_id = ?`, loanID.String())
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
