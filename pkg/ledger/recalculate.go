package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/money"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RecalcResult reports what RecalculatePending did.
type RecalcResult struct {
	Recalculated bool
	Zeroed       bool
}

// RecalculatePending redistributes remaining evenly across the pending
// installments, which must be in sequence order. The last installment
// absorbs the rounding residue so the pending amounts sum to remaining
// exactly.
//
// When remaining is within money.Epsilon of zero the loan is settled: every
// pending amount becomes zero and, if zeroingDate is set, the installments
// are also marked paid on that date with nothing applied to them.
//
// pending is updated in place. All writes go through tx.
func (l *Ledger) RecalculatePending(ctx context.Context, tx store.Tx, loanID uuid.UUID, remaining decimal.Decimal, pending []*models.Installment, zeroingDate *time.Time) (RecalcResult, error) {
	if len(pending) == 0 {
		return RecalcResult{}, nil
	}

	entry := l.log.WithFields(logrus.Fields{
		"loan_id":   loanID,
		"remaining": money.Format(remaining),
		"pending":   len(pending),
	})

	if remaining.GreaterThan(money.Epsilon) {
		amounts := money.Split(money.Round(remaining), len(pending))
		if err := l.writeAmounts(ctx, tx, pending, amounts); err != nil {
			return RecalcResult{}, fmt.Errorf("failed to redistribute balance of loan %s: %w", loanID, err)
		}
		entry.Debug("Redistributed remaining balance across pending installments")
		return RecalcResult{Recalculated: true}, nil
	}

	if err := l.writeAmounts(ctx, tx, pending, make([]decimal.Decimal, len(pending))); err != nil {
		return RecalcResult{}, fmt.Errorf("failed to zero pending installments of loan %s: %w", loanID, err)
	}
	if zeroingDate != nil {
		for _, inst := range pending {
			if err := tx.MarkInstallmentPaid(ctx, inst.ID, *zeroingDate, decimal.Zero); err != nil {
				return RecalcResult{}, fmt.Errorf("failed to close zeroed installment %d of loan %s: %w", inst.Sequence, loanID, err)
			}
			date := *zeroingDate
			inst.Status = models.InstallmentStatusPaid
			inst.PaymentDate = &date
			inst.PaidAmount = decimal.Zero
		}
	}
	entry.WithField("closed", zeroingDate != nil).Info("Loan balance settled, pending installments zeroed")
	return RecalcResult{Recalculated: true, Zeroed: true}, nil
}

// writeAmounts persists the amounts that changed in one batch and mirrors
// them onto pending.
func (l *Ledger) writeAmounts(ctx context.Context, tx store.Tx, pending []*models.Installment, amounts []decimal.Decimal) error {
	var changed []models.InstallmentAmount
	for i, inst := range pending {
		if amounts[i].IsNegative() {
			panic(fmt.Sprintf("ledger: negative installment amount %s for installment %s", amounts[i], inst.ID))
		}
		if !inst.AmountDue.Equal(amounts[i]) {
			changed = append(changed, models.InstallmentAmount{ID: inst.ID, Amount: amounts[i]})
		}
	}
	if len(changed) > 0 {
		if err := tx.UpdateInstallmentAmounts(ctx, changed); err != nil {
			return err
		}
	}
	for i, inst := range pending {
		inst.AmountDue = amounts[i]
	}
	return nil
}
