package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/money"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PayInstallment applies a payment to an installment.
//
// A payment short of the installment's due amount (beyond money.Epsilon)
// leaves the installment pending and only lowers the loan balance by what
// was paid. Anything else closes the installment: the balance drops by the
// due amount and then by any surplus, and the rest of the schedule is
// rebalanced against what is left. Once nothing is pending the loan is
// fully paid.
//
// Payments on the same loan are applied one at a time. Each payment runs in
// a single transaction that is not cancelled with ctx once started.
func (l *Ledger) PayInstallment(ctx context.Context, installmentID uuid.UUID, tendered decimal.Decimal) (*models.PaymentResult, error) {
	start := time.Now()

	if !tendered.IsPositive() {
		l.metrics.PaymentFailed("invalid_amount")
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidPaymentAmount)
	}
	if !money.IsCents(tendered) {
		l.metrics.PaymentFailed("invalid_amount")
		return nil, fmt.Errorf("%w: amount must be expressed in whole cents", ErrInvalidPaymentAmount)
	}

	inst, err := l.storage.FindInstallmentByID(ctx, installmentID)
	if err != nil {
		err = classify("find installment", err)
		l.metrics.PaymentFailed(failureReason(err))
		return nil, err
	}

	unlock := l.locks.lock(inst.LoanID)
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	var result *models.PaymentResult
	err = l.storage.WithTx(ctx, func(tx store.Tx) error {
		var err error
		result, err = l.applyPayment(ctx, tx, installmentID, tendered)
		return err
	})
	if err != nil {
		err = classify("apply payment", err)
		l.metrics.PaymentFailed(failureReason(err))
		entry := l.log.WithFields(logrus.Fields{
			"installment_id": installmentID,
			"loan_id":        inst.LoanID,
			"amount":         money.Format(tendered),
		}).WithError(err)
		var pe *PersistenceError
		if errors.As(err, &pe) {
			entry.Error("Payment aborted, no changes applied")
		} else {
			entry.Warn("Payment rejected")
		}
		return nil, err
	}

	l.metrics.PaymentApplied(string(result.Classification), tendered, time.Since(start))
	return result, nil
}

func (l *Ledger) applyPayment(ctx context.Context, tx store.Tx, installmentID uuid.UUID, paid decimal.Decimal) (*models.PaymentResult, error) {
	now := l.now().UTC()

	inst, err := tx.FindInstallmentByID(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if inst.Status != models.InstallmentStatusPending {
		return nil, ErrAlreadyPaid
	}
	loan, err := tx.FindLoanByID(ctx, inst.LoanID)
	if err != nil {
		return nil, err
	}

	if err := tx.RecordPaymentHistory(ctx, &models.PaymentRecord{
		ID:            uuid.New(),
		InstallmentID: inst.ID,
		LoanID:        loan.ID,
		Amount:        paid,
		PaidAt:        now,
	}); err != nil {
		return nil, err
	}

	due := inst.AmountDue
	entry := l.log.WithFields(logrus.Fields{
		"loan_id":        loan.ID,
		"installment_id": inst.ID,
		"sequence":       inst.Sequence,
		"due":            money.Format(due),
		"paid":           money.Format(paid),
	})

	if paid.LessThan(due.Sub(money.Epsilon)) {
		return l.applyUnderpayment(ctx, tx, loan, inst, paid, entry)
	}

	classification := models.PaymentExact
	if err := tx.MarkInstallmentPaid(ctx, inst.ID, now, paid); err != nil {
		return nil, err
	}
	balance, err := tx.DecreaseLoanBalance(ctx, loan.ID, due)
	if err != nil {
		return nil, err
	}
	entry = entry.WithField("installment_delta", money.Format(due))

	if surplus := paid.Sub(due); surplus.GreaterThan(money.Epsilon) {
		classification = models.PaymentOverpaid
		balance, err = tx.DecreaseLoanBalance(ctx, loan.ID, surplus)
		if err != nil {
			return nil, err
		}
		entry = entry.WithField("overpayment_delta", money.Format(surplus))
	}

	pending, err := tx.FindPendingInstallments(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	recalc, err := l.RecalculatePending(ctx, tx, loan.ID, balance, pending, &now)
	if err != nil {
		return nil, err
	}

	result := &models.PaymentResult{
		Classification:   classification,
		Recalculated:     recalc.Recalculated,
		Zeroed:           recalc.Zeroed,
		RemainingBalance: balance,
	}

	if next := earliestPending(pending); next != nil {
		date := next.DueDate
		if err := tx.UpdateLoanNextDueDate(ctx, loan.ID, &date); err != nil {
			return nil, err
		}
		result.NextDueDate = &date
		result.Message = fmt.Sprintf("Installment %d paid. Next payment of %s is due on %s",
			inst.Sequence, money.Format(next.AmountDue), date.Format(time.DateOnly))
	} else {
		if err := tx.UpdateLoanStatus(ctx, loan.ID, models.LoanStatusFullyPaid); err != nil {
			return nil, err
		}
		if err := tx.UpdateLoanNextDueDate(ctx, loan.ID, nil); err != nil {
			return nil, err
		}
		result.LoanFullyPaid = true
		result.Message = fmt.Sprintf("Installment %d paid. The loan is now fully paid", inst.Sequence)
	}

	entry.WithFields(logrus.Fields{
		"classification": classification,
		"balance":        money.Format(balance),
		"fully_paid":     result.LoanFullyPaid,
	}).Info("Payment applied")
	return result, nil
}

func (l *Ledger) applyUnderpayment(ctx context.Context, tx store.Tx, loan *models.Loan, inst *models.Installment, paid decimal.Decimal, entry *logrus.Entry) (*models.PaymentResult, error) {
	balance, err := tx.DecreaseLoanBalance(ctx, loan.ID, paid)
	if err != nil {
		return nil, err
	}

	// The target is still pending, so the redistribution covers it too.
	pending, err := tx.FindPendingInstallments(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	recalc, err := l.RecalculatePending(ctx, tx, loan.ID, balance, pending, nil)
	if err != nil {
		return nil, err
	}

	next := inst.DueDate
	remaining := inst.AmountDue
	for _, p := range pending {
		if p.ID == inst.ID {
			remaining = p.AmountDue
		}
	}

	entry.WithFields(logrus.Fields{
		"classification": models.PaymentUnderpaid,
		"balance":        money.Format(balance),
	}).Info("Partial payment applied")

	return &models.PaymentResult{
		Message: fmt.Sprintf("Partial payment of %s recorded. Installment %d now requires %s, due on %s",
			money.Format(paid), inst.Sequence, money.Format(remaining), next.Format(time.DateOnly)),
		Classification:   models.PaymentUnderpaid,
		NextDueDate:      &next,
		Recalculated:     recalc.Recalculated,
		Zeroed:           recalc.Zeroed,
		RemainingBalance: balance,
	}, nil
}

// earliestPending returns the pending installment due first, breaking ties
// on sequence, or nil when none is pending.
func earliestPending(installments []*models.Installment) *models.Installment {
	var next *models.Installment
	for _, inst := range installments {
		if inst.Status != models.InstallmentStatusPending {
			continue
		}
		if next == nil || inst.DueDate.Before(next.DueDate) ||
			(inst.DueDate.Equal(next.DueDate) && inst.Sequence < next.Sequence) {
			next = inst
		}
	}
	return next
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPaymentAmount):
		return "invalid_amount"
	case errors.Is(err, ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, ErrInstallmentNotFound), errors.Is(err, ErrLoanNotFound):
		return "not_found"
	default:
		return "persistence"
	}
}
