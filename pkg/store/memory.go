package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MemoryStore is a process-local Storage. Each loan's payment log has its own
// lock; the store-wide lock only guards the indexes.
type MemoryStore struct {
	mu         sync.RWMutex
	customers  map[string]*models.Customer
	loans      map[uuid.UUID]*models.Loan
	byCustomer map[string][]uuid.UUID
	logs       map[uuid.UUID]*paymentLog
	logger     *logrus.Logger
}

type paymentLog struct {
	mu       sync.Mutex
	payments []*models.Payment // oldest first
	total    decimal.Decimal
}

var _ Storage = (*MemoryStore)(nil)

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newOptions(opts)
	s := &MemoryStore{
		customers:  make(map[string]*models.Customer),
		loans:      make(map[uuid.UUID]*models.Loan),
		byCustomer: make(map[string][]uuid.UUID),
		logs:       make(map[uuid.UUID]*paymentLog),
		logger:     o.logger,
	}
	if o.seed {
		now := time.Now().UTC()
		for _, c := range SeedCustomers {
			c := c
			c.CreatedAt = now
			s.customers[c.ID] = &c
		}
	}
	return s
}

// CreateCustomer inserts a customer record.
func (s *MemoryStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID]; exists {
		return fmt.Errorf("customer %s already exists", c.ID)
	}
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *MemoryStore) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.customers[customerID]
	return ok, nil
}

func (s *MemoryStore) GetCustomers(ctx context.Context) ([]*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]*models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		cp := *c
		customers = append(customers, &cp)
	}
	sort.Slice(customers, func(i, j int) bool {
		return customers[i].Name < customers[j].Name
	})
	return customers, nil
}

func (s *MemoryStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.loans[loan.ID]; exists {
		return fmt.Errorf("failed to create loan: duplicate id %s", loan.ID)
	}
	if _, ok := s.customers[loan.CustomerID]; !ok {
		return fmt.Errorf("failed to create loan: customer %s: %w", loan.CustomerID, ErrNotFound)
	}
	cp := *loan
	s.loans[loan.ID] = &cp
	s.byCustomer[loan.CustomerID] = append(s.byCustomer[loan.CustomerID], loan.ID)
	s.logs[loan.ID] = &paymentLog{total: decimal.Zero}
	return nil
}

func (s *MemoryStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
	}
	cp := *loan
	return &cp, nil
}

func (s *MemoryStore) GetLoansForCustomer(ctx context.Context, customerID string) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byCustomer[customerID]
	loans := make([]*models.Loan, 0, len(ids))
	// ids are in insertion order; walk backwards for newest first.
	for i := len(ids) - 1; i >= 0; i-- {
		cp := *s.loans[ids[i]]
		loans = append(loans, &cp)
	}
	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].CreatedAt.After(loans[j].CreatedAt)
	})
	return loans, nil
}

func (s *MemoryStore) paymentLog(loanID uuid.UUID) (*paymentLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.logs[loanID]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", loanID, ErrNotFound)
	}
	return log, nil
}

func (s *MemoryStore) AppendPayment(ctx context.Context, payment *models.Payment) (decimal.Decimal, error) {
	log, err := s.paymentLog(payment.LoanID)
	if err != nil {
		return decimal.Zero, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	var lastSeq int64
	var lastAt time.Time
	if n := len(log.payments); n > 0 {
		lastSeq = log.payments[n-1].Sequence
		lastAt = log.payments[n-1].RecordedAt
	}
	stampPayment(payment, lastSeq, lastAt)

	cp := *payment
	log.payments = append(log.payments, &cp)
	log.total = log.total.Add(payment.Amount)
	s.logger.WithFields(logrus.Fields{
		"loan_id": payment.LoanID,
		"seq":     payment.Sequence,
	}).Debug("Payment appended")
	return log.total, nil
}

func (s *MemoryStore) GetPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Payment, error) {
	payments := []*models.Payment{}
	log, err := s.paymentLog(loanID)
	if err != nil {
		// Unknown loan reads as an empty log, like the SQL backends.
		return payments, nil
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	for i := len(log.payments) - 1; i >= 0; i-- {
		cp := *log.payments[i]
		payments = append(payments, &cp)
	}
	return payments, nil
}

func (s *MemoryStore) SumPaymentsForLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	log, err := s.paymentLog(loanID)
	if err != nil {
		return decimal.Zero, nil
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	return log.total, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
