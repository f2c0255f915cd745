package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	ErrClientNotFound         = errors.New("client not found")
	ErrLoanNotFound           = errors.New("loan not found")
	ErrInstallmentNotFound    = errors.New("installment not found")
	ErrInstallmentNotPending  = errors.New("installment is not pending")
	ErrAdminNotFound          = errors.New("admin not found")
	ErrClientHasLoans         = errors.New("client has loans")
	ErrDuplicateAdminUsername = errors.New("admin username already exists")
)

// LoanFilter narrows ListLoans. Zero values match everything.
type LoanFilter struct {
	ClientID *uuid.UUID
	Status   models.LoanStatus
}

// Tx is the set of operations the loan engine runs inside one database
// transaction. The Storage itself also satisfies Tx for single-statement
// use outside a transaction.
type Tx interface {
	FindClientByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	FindLoanByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	FindInstallmentByID(ctx context.Context, id uuid.UUID) (*models.Installment, error)
	// FindPendingInstallments returns the loan's pending installments in
	// sequence order.
	FindPendingInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error)

	UpdateInstallmentAmounts(ctx context.Context, amounts []models.InstallmentAmount) error
	MarkInstallmentPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, amount decimal.Decimal) error
	// DecreaseLoanBalance subtracts amount from the remaining balance,
	// floors the result at zero and returns it.
	DecreaseLoanBalance(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	UpdateLoanStatus(ctx context.Context, loanID uuid.UUID, status models.LoanStatus) error
	UpdateLoanNextDueDate(ctx context.Context, loanID uuid.UUID, date *time.Time) error
	RecordPaymentHistory(ctx context.Context, record *models.PaymentRecord) error

	CreateLoan(ctx context.Context, loan *models.Loan) error
	CreateInstallments(ctx context.Context, installments []*models.Installment) error
	// DeleteLoan removes the loan with its installments and payment history.
	DeleteLoan(ctx context.Context, id uuid.UUID) error
}

// Storage defines the interface for database operations.
type Storage interface {
	Tx

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	CreateClient(ctx context.Context, client *models.Client) error
	UpdateClient(ctx context.Context, client *models.Client) error
	DeleteClient(ctx context.Context, id uuid.UUID) error
	ListClients(ctx context.Context) ([]*models.Client, error)

	ListLoans(ctx context.Context, filter LoanFilter) ([]*models.Loan, error)
	ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error)
	ListPaymentHistory(ctx context.Context, loanID uuid.UUID) ([]*models.PaymentRecord, error)
	// ListDueInstallments returns pending installments of active loans due
	// on or before dueBy, earliest first.
	ListDueInstallments(ctx context.Context, dueBy time.Time) ([]*models.DueInstallment, error)

	CreateAdmin(ctx context.Context, admin *models.Admin) error
	FindAdminByUsername(ctx context.Context, username string) (*models.Admin, error)

	Close() error
}
