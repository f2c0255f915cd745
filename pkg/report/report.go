// Package report builds portfolio figures and spreadsheet exports from the
// loan book.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/schedule"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
)

// Source is the read side of the store that reports need.
type Source interface {
	FindLoanByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	ListClients(ctx context.Context) ([]*models.Client, error)
	ListLoans(ctx context.Context, filter store.LoanFilter) ([]*models.Loan, error)
	ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error)
	ListDueInstallments(ctx context.Context, dueBy time.Time) ([]*models.DueInstallment, error)
}

// Summary is the state of the portfolio on a given day.
type Summary struct {
	AsOf               time.Time
	Clients            int
	ActiveLoans        int
	FullyPaidLoans     int
	PrincipalDisbursed decimal.Decimal
	TotalDue           decimal.Decimal
	Collected          decimal.Decimal
	Outstanding        decimal.Decimal
	OverdueCount       int
	OverdueAmount      decimal.Decimal
}

// OverdueItem is a pending installment whose due date has passed.
type OverdueItem struct {
	models.DueInstallment
	DaysOverdue int
}

type Service struct {
	src Source
}

func NewService(src Source) *Service {
	return &Service{src: src}
}

// Summary aggregates every loan on file. Collected is what borrowers have
// paid down, total due minus remaining balance.
func (s *Service) Summary(ctx context.Context, asOf time.Time) (*Summary, error) {
	clients, err := s.src.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	loans, err := s.src.ListLoans(ctx, store.LoanFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	overdue, err := s.Overdue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		AsOf:               schedule.Date(asOf),
		Clients:            len(clients),
		PrincipalDisbursed: decimal.Zero,
		TotalDue:           decimal.Zero,
		Collected:          decimal.Zero,
		Outstanding:        decimal.Zero,
		OverdueCount:       len(overdue),
		OverdueAmount:      decimal.Zero,
	}
	for _, l := range loans {
		switch l.Status {
		case models.LoanStatusActive:
			sum.ActiveLoans++
		case models.LoanStatusFullyPaid:
			sum.FullyPaidLoans++
		}
		sum.PrincipalDisbursed = sum.PrincipalDisbursed.Add(l.Principal)
		sum.TotalDue = sum.TotalDue.Add(l.TotalAmountDue)
		sum.Outstanding = sum.Outstanding.Add(l.RemainingBalance)
	}
	sum.Collected = sum.TotalDue.Sub(sum.Outstanding)
	for _, o := range overdue {
		sum.OverdueAmount = sum.OverdueAmount.Add(o.AmountDue)
	}
	return sum, nil
}

// Overdue lists pending installments of active loans that fell due before
// asOf, oldest first. Installments zeroed by recalculation are left out.
func (s *Service) Overdue(ctx context.Context, asOf time.Time) ([]OverdueItem, error) {
	day := schedule.Date(asOf)
	due, err := s.src.ListDueInstallments(ctx, day.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue installments: %w", err)
	}

	items := make([]OverdueItem, 0, len(due))
	for _, d := range due {
		if !d.AmountDue.IsPositive() {
			continue
		}
		items = append(items, OverdueItem{
			DueInstallment: *d,
			DaysOverdue:    int(day.Sub(schedule.Date(d.DueDate)).Hours() / 24),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DueDate.Before(items[j].DueDate)
	})
	return items, nil
}
