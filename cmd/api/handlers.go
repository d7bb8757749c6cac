package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/ledger"
	"github.com/durgaprasad-mokara/bank-lending-project/pkg/metrics"
	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/durgaprasad-mokara/bank-lending-project/pkg/statement"
	"github.com/durgaprasad-mokara/bank-lending-project/pkg/store"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	metrics *metrics.Collector
	logger  *logrus.Logger
}

func NewServer(s store.Storage, logger *logrus.Logger, collector *metrics.Collector) *Server {
	return &Server{
		ledger: ledger.NewLedger(s,
			ledger.WithLogger(logger),
			ledger.WithMetrics(collector),
		),
		storage: s,
		metrics: collector,
		logger:  logger,
	}
}

// Routes builds the router for the lending API.
func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestLogger)
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	router.HandleFunc("/healthz", healthHandler).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/customers", s.listCustomersHandler).Methods("GET")
	api.HandleFunc("/customers/{customer_id}/loans", s.customerLoansHandler).Methods("GET")
	api.HandleFunc("/customers/{customer_id}/overview", s.customerOverviewHandler).Methods("GET")
	api.HandleFunc("/loans", s.createLoanHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/loans/quote", s.quoteHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/loans/{loan_id}", s.getLoanHandler).Methods("GET")
	api.HandleFunc("/loans/{loan_id}/payments", s.recordPaymentHandler).Methods("POST", "OPTIONS")
	api.HandleFunc("/loans/{loan_id}/ledger", s.getLedgerHandler).Methods("GET")
	api.HandleFunc("/loans/{loan_id}/statement", s.statementHandler).Methods("GET")
	api.Use(mux.CORSMethodMiddleware(api), corsHeaders)

	return router
}

func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps ledger errors onto HTTP statuses. Infrastructure errors are
// logged and hidden behind a generic message.
func (s *Server) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidTerms), errors.Is(err, ledger.ErrInvalidPayment):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrLoanNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Loan not found"})
	case errors.Is(err, ledger.ErrCustomerNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Customer not found"})
	default:
		s.logger.WithError(err).Error(fallback)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// loanIDFromPath parses the {loan_id} variable. A malformed id cannot name an
// existing loan, so it is reported as not found.
func loanIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["loan_id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ledger.ErrLoanNotFound, raw)
	}
	return id, nil
}

func (s *Server) listCustomersHandler(w http.ResponseWriter, r *http.Request) {
	customers, err := s.ledger.ListCustomers(r.Context())
	if err != nil {
		s.writeError(w, err, "Failed to fetch customers")
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (s *Server) customerLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.ListLoansForCustomer(r.Context(), mux.Vars(r)["customer_id"])
	if err != nil {
		s.writeError(w, err, "Failed to fetch customer loans")
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) customerOverviewHandler(w http.ResponseWriter, r *http.Request) {
	overview, err := s.ledger.CustomerOverview(r.Context(), mux.Vars(r)["customer_id"])
	if err != nil {
		s.writeError(w, err, "Failed to fetch customer overview")
		return
	}
	if overview.TotalLoans == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No loans found for this customer"})
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

type loanRequest struct {
	CustomerID         string          `json:"customer_id"`
	LoanAmount         decimal.Decimal `json:"loan_amount"`
	LoanPeriodYears    int             `json:"loan_period_years"`
	InterestRateYearly decimal.Decimal `json:"interest_rate_yearly"`
}

type createLoanResponse struct {
	LoanID             uuid.UUID       `json:"loan_id"`
	CustomerID         string          `json:"customer_id"`
	Principal          decimal.Decimal `json:"principal_amount"`
	InterestRate       decimal.Decimal `json:"interest_rate"`
	LoanPeriodYears    int             `json:"loan_period_years"`
	TotalAmountPayable decimal.Decimal `json:"total_amount_payable"`
	MonthlyEMI         decimal.Decimal `json:"monthly_emi"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}

	loan, err := s.ledger.CreateLoan(r.Context(), req.CustomerID, req.LoanAmount, req.LoanPeriodYears, req.InterestRateYearly)
	if err != nil {
		s.writeError(w, err, "Failed to create loan")
		return
	}

	writeJSON(w, http.StatusCreated, createLoanResponse{
		LoanID:             loan.ID,
		CustomerID:         loan.CustomerID,
		Principal:          loan.Principal,
		InterestRate:       loan.InterestRate,
		LoanPeriodYears:    loan.TermYears,
		TotalAmountPayable: loan.TotalPayable,
		MonthlyEMI:         loan.MonthlyInstallment,
		CreatedAt:          loan.CreatedAt,
	})
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}

	terms, err := s.ledger.Quote(req.LoanAmount, req.LoanPeriodYears, req.InterestRateYearly)
	if err != nil {
		s.writeError(w, err, "Failed to calculate loan terms")
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	loan, err := s.ledger.GetLoan(r.Context(), loanID)
	if err != nil {
		s.writeError(w, err, "Failed to fetch loan")
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

type paymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"payment_type"`
}

type paymentResponse struct {
	*models.PaymentResult
	Message string `json:"message"`
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}

	result, err := s.ledger.RecordPayment(r.Context(), loanID, req.Amount, req.PaymentType)
	if err != nil {
		s.writeError(w, err, "Failed to record payment")
		return
	}

	writeJSON(w, http.StatusOK, paymentResponse{
		PaymentResult: result,
		Message:       "Payment recorded successfully",
	})
}

func (s *Server) getLedgerHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	view, err := s.ledger.GetLedger(r.Context(), loanID)
	if err != nil {
		s.writeError(w, err, "Failed to fetch loan ledger")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) statementHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromPath(r)
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = statement.FormatPDF
	}
	contentType := statement.ContentType(format)
	if contentType == "" {
		badRequest(w, fmt.Sprintf("Unsupported statement format %q", format))
		return
	}

	view, err := s.ledger.GetLedger(r.Context(), loanID)
	if err != nil {
		s.writeError(w, err, "Failed to fetch loan ledger")
		return
	}

	doc, err := statement.Build(format, view)
	if err != nil {
		s.writeError(w, err, "Failed to render statement")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="loan-%s.%s"`, loanID, format))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
