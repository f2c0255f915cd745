package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/auth"
	"github.com/mcclellann/microfin/pkg/ledger"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/report"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, expiresAt, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Clients

func (s *Server) createClientHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.ClientDetails
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	client, err := s.ledger.CreateClient(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (s *Server) listClientsHandler(w http.ResponseWriter, r *http.Request) {
	clients, err := s.ledger.ListClients(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if clients == nil {
		clients = []*models.Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) getClientHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "client")
	if !ok {
		return
	}
	client, err := s.ledger.GetClient(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *Server) updateClientHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "client")
	if !ok {
		return
	}
	var req ledger.ClientDetails
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	client, err := s.ledger.UpdateClient(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *Server) deleteClientHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "client")
	if !ok {
		return
	}
	if err := s.ledger.DeleteClient(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clientLoansHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "client")
	if !ok {
		return
	}
	loans, err := s.ledger.ClientLoans(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLoanViews(loans))
}

// Loans

type createLoanRequest struct {
	ClientID     uuid.UUID       `json:"client_id"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	TermDays     int             `json:"term_days"`
	CadenceDays  int             `json:"cadence_days"`
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.CreateLoan(r.Context(), req.ClientID, req.Principal, req.InterestRate, req.TermDays, req.CadenceDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLoanView(loan))
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	var filter store.LoanFilter
	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		filter.Status = models.LoanStatus(status)
		if filter.Status != models.LoanStatusActive && filter.Status != models.LoanStatusFullyPaid {
			http.Error(w, "Invalid status filter", http.StatusBadRequest)
			return
		}
	}
	if raw := q.Get("client_id"); raw != "" {
		clientID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "Invalid client ID", http.StatusBadRequest)
			return
		}
		filter.ClientID = &clientID
	}

	loans, err := s.ledger.ListLoans(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLoanViews(loans))
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "loan")
	if !ok {
		return
	}
	loan, err := s.ledger.GetLoan(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLoanView(loan))
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "loan")
	if !ok {
		return
	}
	if err := s.ledger.DeleteLoan(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) installmentsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "loan")
	if !ok {
		return
	}
	installments, err := s.ledger.Installments(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstallmentViews(installments))
}

func (s *Server) paymentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "loan")
	if !ok {
		return
	}
	records, err := s.ledger.PaymentHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPaymentRecordViews(records))
}

// Payments

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) payInstallmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "installment")
	if !ok {
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.ledger.PayInstallment(r.Context(), id, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPaymentResultView(result))
}

// Reports

// asOf reads the optional as_of=YYYY-MM-DD query parameter, defaulting to now.
func asOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	day, err := asOf(r)
	if err != nil {
		http.Error(w, "Invalid as_of date", http.StatusBadRequest)
		return
	}
	summary, err := s.reports.Summary(r.Context(), day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryView(summary))
}

func (s *Server) overdueHandler(w http.ResponseWriter, r *http.Request) {
	day, err := asOf(r)
	if err != nil {
		http.Error(w, "Invalid as_of date", http.StatusBadRequest)
		return
	}
	items, err := s.reports.Overdue(r.Context(), day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOverdueViews(items))
}

func (s *Server) portfolioExportHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.reports.ExportPortfolio(r.Context(), &buf); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeXLSX(w, "portfolio.xlsx", &buf)
}

func (s *Server) scheduleExportHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "loan")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.reports.ExportSchedule(r.Context(), &buf, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeXLSX(w, "schedule-"+id.String()+".xlsx", &buf)
}

// writeXLSX sends a fully rendered workbook so a failed export never leaves
// a half-written body behind a 200.
func writeXLSX(w http.ResponseWriter, filename string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", report.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
