// Package schedule computes flat-interest installment schedules.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcclellann/microfin/pkg/money"
	"github.com/shopspring/decimal"
)

// ErrInvalidLoanParameters is returned when loan terms fail validation.
var ErrInvalidLoanParameters = errors.New("invalid loan parameters")

// Terms are the inputs of a flat-interest loan.
type Terms struct {
	Principal   decimal.Decimal
	AnnualRate  decimal.Decimal // percent, 10 means 10%
	TermDays    int
	CadenceDays int
	StartDate   time.Time
}

// Entry is one generated installment.
type Entry struct {
	Sequence int
	DueDate  time.Time
	Amount   decimal.Decimal
}

// Schedule is the output of Generate.
type Schedule struct {
	TotalAmountDue        decimal.Decimal
	BaseInstallmentAmount decimal.Decimal
	Entries               []Entry
}

// Validate checks the preconditions of Generate.
func (t Terms) Validate() error {
	switch {
	case !t.Principal.IsPositive():
		return fmt.Errorf("%w: principal must be greater than 0", ErrInvalidLoanParameters)
	case t.AnnualRate.IsNegative():
		return fmt.Errorf("%w: interest rate must not be negative", ErrInvalidLoanParameters)
	case t.TermDays <= 0:
		return fmt.Errorf("%w: term must be a positive number of days", ErrInvalidLoanParameters)
	case t.CadenceDays <= 0:
		return fmt.Errorf("%w: installment cadence must be a positive number of days", ErrInvalidLoanParameters)
	case t.TermDays < t.CadenceDays:
		return fmt.Errorf("%w: term (%d days) is shorter than the installment cadence (%d days)", ErrInvalidLoanParameters, t.TermDays, t.CadenceDays)
	}
	return nil
}

// InstallmentCount is ceil(TermDays / CadenceDays).
func (t Terms) InstallmentCount() int {
	if t.CadenceDays <= 0 {
		return 0
	}
	return (t.TermDays + t.CadenceDays - 1) / t.CadenceDays
}

// TotalAmountDue is principal * (1 + rate/100) rounded to cents. Interest is
// flat: the term length only changes how many installments share it.
func (t Terms) TotalAmountDue() decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(money.Percent(t.AnnualRate))
	return money.Round(t.Principal.Mul(factor))
}

// Generate builds the initial installment schedule. The amounts always sum
// to TotalAmountDue exactly, with the final installment absorbing the
// rounding residue. Due dates fall every CadenceDays after StartDate.
//
// When TermDays is not a multiple of CadenceDays the final period is
// shorter than the others but its amount is not pro-rated.
func Generate(t Terms) (*Schedule, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	total := t.TotalAmountDue()
	count := t.InstallmentCount()
	base := decimal.Zero
	if count > 0 {
		base = money.Round(total.Div(decimal.NewFromInt(int64(count))))
	}

	start := Date(t.StartDate)
	amounts := money.Split(total, count)

	// Split guarantees the sum; keep the guard so a future change to the
	// allocator cannot silently leave residue behind.
	if residual := total.Sub(money.Sum(amounts)); !residual.IsZero() && count > 0 {
		amounts[count-1] = money.Floor0(amounts[count-1].Add(residual))
	}

	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		seq := i + 1
		entries[i] = Entry{
			Sequence: seq,
			DueDate:  start.AddDate(0, 0, seq*t.CadenceDays),
			Amount:   amounts[i],
		}
	}

	return &Schedule{
		TotalAmountDue:        total,
		BaseInstallmentAmount: base,
		Entries:               entries,
	}, nil
}

// Date truncates t to midnight UTC of its calendar day. Due dates carry no
// time-of-day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
