package ledger

import "errors"

// Client-input errors. Anything else returned by the ledger is an
// infrastructure failure passed through from the store.
var (
	ErrInvalidTerms     = errors.New("invalid loan terms")
	ErrInvalidPayment   = errors.New("invalid payment")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrLoanNotFound     = errors.New("loan not found")
)

// errorKind labels err for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTerms):
		return "invalid_terms"
	case errors.Is(err, ErrInvalidPayment):
		return "invalid_payment"
	case errors.Is(err, ErrCustomerNotFound):
		return "customer_not_found"
	case errors.Is(err, ErrLoanNotFound):
		return "loan_not_found"
	default:
		return "storage"
	}
}
