package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/money"
	"github.com/mcclellann/microfin/pkg/report"
)

// Money leaves the API as strings with exactly two fraction digits and
// calendar dates as YYYY-MM-DD.

func date(t time.Time) string {
	return t.Format(time.DateOnly)
}

func optionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := date(*t)
	return &s
}

type loanView struct {
	ID                uuid.UUID         `json:"id"`
	ClientID          uuid.UUID         `json:"client_id"`
	Principal         string            `json:"principal"`
	InterestRate      string            `json:"interest_rate"`
	TermDays          int               `json:"term_days"`
	CadenceDays       int               `json:"cadence_days"`
	TotalAmountDue    string            `json:"total_amount_due"`
	InstallmentAmount string            `json:"installment_amount"`
	RemainingBalance  string            `json:"remaining_balance"`
	Status            models.LoanStatus `json:"status"`
	StartDate         string            `json:"start_date"`
	NextDueDate       *string           `json:"next_due_date"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func newLoanView(l *models.Loan) loanView {
	return loanView{
		ID:                l.ID,
		ClientID:          l.ClientID,
		Principal:         money.Format(l.Principal),
		InterestRate:      l.InterestRate.String(),
		TermDays:          l.TermDays,
		CadenceDays:       l.CadenceDays,
		TotalAmountDue:    money.Format(l.TotalAmountDue),
		InstallmentAmount: money.Format(l.InstallmentAmount),
		RemainingBalance:  money.Format(l.RemainingBalance),
		Status:            l.Status,
		StartDate:         date(l.StartDate),
		NextDueDate:       optionalDate(l.NextDueDate),
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func newLoanViews(loans []*models.Loan) []loanView {
	views := make([]loanView, len(loans))
	for i, l := range loans {
		views[i] = newLoanView(l)
	}
	return views
}

type installmentView struct {
	ID          uuid.UUID                `json:"id"`
	LoanID      uuid.UUID                `json:"loan_id"`
	Sequence    int                      `json:"sequence"`
	DueDate     string                   `json:"due_date"`
	AmountDue   string                   `json:"amount_due"`
	Status      models.InstallmentStatus `json:"status"`
	PaymentDate *string                  `json:"payment_date"`
	PaidAmount  string                   `json:"paid_amount"`
}

func newInstallmentViews(installments []*models.Installment) []installmentView {
	views := make([]installmentView, len(installments))
	for i, inst := range installments {
		views[i] = installmentView{
			ID:          inst.ID,
			LoanID:      inst.LoanID,
			Sequence:    inst.Sequence,
			DueDate:     date(inst.DueDate),
			AmountDue:   money.Format(inst.AmountDue),
			Status:      inst.Status,
			PaymentDate: optionalDate(inst.PaymentDate),
			PaidAmount:  money.Format(inst.PaidAmount),
		}
	}
	return views
}

type paymentRecordView struct {
	ID            uuid.UUID `json:"id"`
	InstallmentID uuid.UUID `json:"installment_id"`
	LoanID        uuid.UUID `json:"loan_id"`
	Amount        string    `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

func newPaymentRecordViews(records []*models.PaymentRecord) []paymentRecordView {
	views := make([]paymentRecordView, len(records))
	for i, r := range records {
		views[i] = paymentRecordView{
			ID:            r.ID,
			InstallmentID: r.InstallmentID,
			LoanID:        r.LoanID,
			Amount:        money.Format(r.Amount),
			PaidAt:        r.PaidAt,
		}
	}
	return views
}

type paymentResultView struct {
	Message          string                       `json:"message"`
	Classification   models.PaymentClassification `json:"classification"`
	NextDueDate      *string                      `json:"next_due_date"`
	LoanFullyPaid    bool                         `json:"loan_fully_paid"`
	Recalculated     bool                         `json:"recalculated"`
	Zeroed           bool                         `json:"zeroed"`
	RemainingBalance string                       `json:"remaining_balance"`
}

func newPaymentResultView(r *models.PaymentResult) paymentResultView {
	return paymentResultView{
		Message:          r.Message,
		Classification:   r.Classification,
		NextDueDate:      optionalDate(r.NextDueDate),
		LoanFullyPaid:    r.LoanFullyPaid,
		Recalculated:     r.Recalculated,
		Zeroed:           r.Zeroed,
		RemainingBalance: money.Format(r.RemainingBalance),
	}
}

type summaryView struct {
	AsOf               string `json:"as_of"`
	Clients            int    `json:"clients"`
	ActiveLoans        int    `json:"active_loans"`
	FullyPaidLoans     int    `json:"fully_paid_loans"`
	PrincipalDisbursed string `json:"principal_disbursed"`
	TotalDue           string `json:"total_due"`
	Collected          string `json:"collected"`
	Outstanding        string `json:"outstanding"`
	OverdueCount       int    `json:"overdue_count"`
	OverdueAmount      string `json:"overdue_amount"`
}

func newSummaryView(s *report.Summary) summaryView {
	return summaryView{
		AsOf:               date(s.AsOf),
		Clients:            s.Clients,
		ActiveLoans:        s.ActiveLoans,
		FullyPaidLoans:     s.FullyPaidLoans,
		PrincipalDisbursed: money.Format(s.PrincipalDisbursed),
		TotalDue:           money.Format(s.TotalDue),
		Collected:          money.Format(s.Collected),
		Outstanding:        money.Format(s.Outstanding),
		OverdueCount:       s.OverdueCount,
		OverdueAmount:      money.Format(s.OverdueAmount),
	}
}

type overdueView struct {
	InstallmentID uuid.UUID `json:"installment_id"`
	LoanID        uuid.UUID `json:"loan_id"`
	ClientID      uuid.UUID `json:"client_id"`
	ClientName    string    `json:"client_name"`
	Sequence      int       `json:"sequence"`
	DueDate       string    `json:"due_date"`
	AmountDue     string    `json:"amount_due"`
	DaysOverdue   int       `json:"days_overdue"`
}

func newOverdueViews(items []report.OverdueItem) []overdueView {
	views := make([]overdueView, len(items))
	for i, o := range items {
		views[i] = overdueView{
			InstallmentID: o.ID,
			LoanID:        o.LoanID,
			ClientID:      o.ClientID,
			ClientName:    o.ClientName,
			Sequence:      o.Sequence,
			DueDate:       date(o.DueDate),
			AmountDue:     money.Format(o.AmountDue),
			DaysOverdue:   o.DaysOverdue,
		}
	}
	return views
}
