package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/microfin/pkg/auth"
	"github.com/mcclellann/microfin/pkg/ledger"
	"github.com/mcclellann/microfin/pkg/metrics"
	"github.com/mcclellann/microfin/pkg/report"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/sirupsen/logrus"
)

// Server holds the ledger and the services behind the HTTP API.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	reports *report.Service
	auth    *auth.Service
	tokens  *auth.JWTService
	metrics *metrics.Metrics
	log     *logrus.Logger
}

func NewServer(s store.Storage, tokens *auth.JWTService, log *logrus.Logger, m *metrics.Metrics) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, ledger.WithLogger(log), ledger.WithMetrics(m)),
		storage: s,
		reports: report.NewService(s),
		auth:    auth.NewService(s, tokens, log),
		tokens:  tokens,
		metrics: m,
		log:     log,
	}
}

// Routes builds the router. Everything except login, health and metrics
// requires a bearer token.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/login", s.loginHandler).Methods("POST")
	router.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api := router.PathPrefix("/").Subrouter()
	api.Use(s.tokens.Middleware)

	api.HandleFunc("/clients", s.listClientsHandler).Methods("GET")
	api.HandleFunc("/clients", s.createClientHandler).Methods("POST")
	api.HandleFunc("/clients/{id}", s.getClientHandler).Methods("GET")
	api.HandleFunc("/clients/{id}", s.updateClientHandler).Methods("PUT")
	api.HandleFunc("/clients/{id}", s.deleteClientHandler).Methods("DELETE")
	api.HandleFunc("/clients/{id}/loans", s.clientLoansHandler).Methods("GET")

	api.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	api.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	api.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	api.HandleFunc("/loans/{id}/installments", s.installmentsHandler).Methods("GET")
	api.HandleFunc("/loans/{id}/payments", s.paymentHistoryHandler).Methods("GET")
	api.HandleFunc("/loans/{id}/schedule.xlsx", s.scheduleExportHandler).Methods("GET")

	api.HandleFunc("/installments/{id}/payments", s.payInstallmentHandler).Methods("POST")

	api.HandleFunc("/reports/summary", s.summaryHandler).Methods("GET")
	api.HandleFunc("/reports/overdue", s.overdueHandler).Methods("GET")
	api.HandleFunc("/reports/portfolio.xlsx", s.portfolioExportHandler).Methods("GET")

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.metrics.HTTPRequest(r.Method, rec.status)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps ledger errors to HTTP statuses. Validation failures echo
// the failing constraint; storage failures are logged and hidden behind a
// generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *ledger.PersistenceError
	switch {
	case errors.Is(err, ledger.ErrInvalidLoanParameters),
		errors.Is(err, ledger.ErrInvalidPaymentAmount),
		errors.Is(err, ledger.ErrInvalidClient):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrLoanNotFound), errors.Is(err, store.ErrLoanNotFound):
		http.Error(w, "Loan not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrInstallmentNotFound):
		http.Error(w, "Installment not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrClientNotFound):
		http.Error(w, "Client not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrAlreadyPaid):
		http.Error(w, "Installment is already paid", http.StatusConflict)
	case errors.Is(err, ledger.ErrClientHasLoans):
		http.Error(w, "Client still has loans", http.StatusConflict)
	case errors.As(err, &pe):
		s.log.WithError(err).WithField("path", r.URL.Path).Error("Persistence failure")
		http.Error(w, "Something went wrong, please try again", http.StatusInternalServerError)
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("Unhandled error")
		http.Error(w, "Something went wrong, please try again", http.StatusInternalServerError)
	}
}

func parseID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid "+what+" ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
