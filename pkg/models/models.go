package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusFullyPaid LoanStatus = "fully_paid"
)

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
)

// Client is a borrower managed by the back office.
type Client struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Loan struct {
	ID                uuid.UUID       `json:"id"`
	ClientID          uuid.UUID       `json:"client_id"`
	Principal         decimal.Decimal `json:"principal"`
	InterestRate      decimal.Decimal `json:"interest_rate"` // Annual flat rate, percent
	TermDays          int             `json:"term_days"`
	CadenceDays       int             `json:"cadence_days"`
	TotalAmountDue    decimal.Decimal `json:"total_amount_due"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"` // Reference value from the initial schedule
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	Status            LoanStatus      `json:"status"`
	StartDate         time.Time       `json:"start_date"`
	NextDueDate       *time.Time      `json:"next_due_date,omitempty"` // nil once fully paid
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Installment struct {
	ID          uuid.UUID         `json:"id"`
	LoanID      uuid.UUID         `json:"loan_id"`
	Sequence    int               `json:"sequence"`
	DueDate     time.Time         `json:"due_date"`
	AmountDue   decimal.Decimal   `json:"amount_due"`
	Status      InstallmentStatus `json:"status"`
	PaymentDate *time.Time        `json:"payment_date,omitempty"`
	PaidAmount  decimal.Decimal   `json:"paid_amount"`
}

// PaymentRecord is one entry of the payment history log.
type PaymentRecord struct {
	ID            uuid.UUID       `json:"id"`
	InstallmentID uuid.UUID       `json:"installment_id"`
	LoanID        uuid.UUID       `json:"loan_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        time.Time       `json:"paid_at"`
}

// InstallmentAmount is one row of a batch amount update.
type InstallmentAmount struct {
	ID     uuid.UUID
	Amount decimal.Decimal
}

// DueInstallment is a pending installment joined with its borrower, used by
// reminders and overdue reports.
type DueInstallment struct {
	Installment
	ClientID    uuid.UUID `json:"client_id"`
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email,omitempty"`
}

type Admin struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type PaymentClassification string

const (
	PaymentUnderpaid PaymentClassification = "underpayment"
	PaymentExact     PaymentClassification = "exact"
	PaymentOverpaid  PaymentClassification = "overpayment"
)

// PaymentResult is what a payment event reports back to the caller.
type PaymentResult struct {
	Message          string                `json:"message"`
	Classification   PaymentClassification `json:"classification"`
	NextDueDate      *time.Time            `json:"next_due_date,omitempty"`
	LoanFullyPaid    bool                  `json:"loan_fully_paid"`
	Recalculated     bool                  `json:"recalculated"`
	Zeroed           bool                  `json:"zeroed"`
	RemainingBalance decimal.Decimal       `json:"remaining_balance"`
}
