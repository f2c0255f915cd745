package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/metrics"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/money"
	"github.com/mcclellann/microfin/pkg/schedule"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Ledger handles the business logic for loans, installments and payments.
type Ledger struct {
	storage store.Storage
	log     *logrus.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	locks   *loanLocks
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. The default is logrus' standard logger.
func WithLogger(log *logrus.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: s,
		log:     logrus.StandardLogger(),
		now:     time.Now,
		locks:   newLoanLocks(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateLoan issues a loan to an existing client. The schedule starts
// today; the loan row and its installments are stored atomically.
func (l *Ledger) CreateLoan(ctx context.Context, clientID uuid.UUID, principal, rate decimal.Decimal, termDays, cadenceDays int) (*models.Loan, error) {
	if !money.IsCents(principal) {
		return nil, fmt.Errorf("%w: principal must be expressed in whole cents", ErrInvalidLoanParameters)
	}

	now := l.now().UTC()
	terms := schedule.Terms{
		Principal:   principal,
		AnnualRate:  rate,
		TermDays:    termDays,
		CadenceDays: cadenceDays,
		StartDate:   schedule.Date(now),
	}
	plan, err := schedule.Generate(terms)
	if err != nil {
		return nil, err
	}

	loan := &models.Loan{
		ID:                uuid.New(),
		ClientID:          clientID,
		Principal:         principal,
		InterestRate:      rate,
		TermDays:          termDays,
		CadenceDays:       cadenceDays,
		TotalAmountDue:    plan.TotalAmountDue,
		InstallmentAmount: plan.BaseInstallmentAmount,
		RemainingBalance:  plan.TotalAmountDue,
		Status:            models.LoanStatusActive,
		StartDate:         terms.StartDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	installments := make([]*models.Installment, len(plan.Entries))
	for i, e := range plan.Entries {
		installments[i] = &models.Installment{
			ID:         uuid.New(),
			LoanID:     loan.ID,
			Sequence:   e.Sequence,
			DueDate:    e.DueDate,
			AmountDue:  e.Amount,
			Status:     models.InstallmentStatusPending,
			PaidAmount: decimal.Zero,
		}
	}
	first := installments[0].DueDate
	loan.NextDueDate = &first

	ctx = context.WithoutCancel(ctx)
	err = l.storage.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.FindClientByID(ctx, clientID); err != nil {
			return err
		}
		if err := tx.CreateLoan(ctx, loan); err != nil {
			return err
		}
		return tx.CreateInstallments(ctx, installments)
	})
	if err != nil {
		return nil, classify("create loan", err)
	}

	l.metrics.LoanCreated(principal)
	l.log.WithFields(logrus.Fields{
		"loan_id":      loan.ID,
		"client_id":    clientID,
		"principal":    principal.StringFixed(2),
		"total_due":    loan.TotalAmountDue.StringFixed(2),
		"installments": len(installments),
	}).Info("Loan created")
	return loan, nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.FindLoanByID(ctx, id)
	if err != nil {
		return nil, classify("get loan", err)
	}
	return loan, nil
}

// ListLoans retrieves loans matching filter.
func (l *Ledger) ListLoans(ctx context.Context, filter store.LoanFilter) ([]*models.Loan, error) {
	loans, err := l.storage.ListLoans(ctx, filter)
	if err != nil {
		return nil, classify("list loans", err)
	}
	return loans, nil
}

// Installments returns a loan's schedule in sequence order.
func (l *Ledger) Installments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	if _, err := l.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	installments, err := l.storage.ListInstallments(ctx, loanID)
	if err != nil {
		return nil, classify("list installments", err)
	}
	return installments, nil
}

// PaymentHistory returns every payment applied to a loan, oldest first.
func (l *Ledger) PaymentHistory(ctx context.Context, loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	if _, err := l.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	records, err := l.storage.ListPaymentHistory(ctx, loanID)
	if err != nil {
		return nil, classify("list payment history", err)
	}
	return records, nil
}

// DeleteLoan removes a loan with its installments and payment history in one
// transaction. It waits for any payment in flight on the same loan.
func (l *Ledger) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	unlock := l.locks.lock(id)
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteLoan(ctx, id)
	})
	if err != nil {
		return classify("delete loan", err)
	}
	l.log.WithField("loan_id", id).Info("Loan deleted")
	return nil
}
