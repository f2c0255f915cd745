package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func installment(t *testing.T, s *MockStore, id uuid.UUID) *models.Installment {
	t.Helper()
	inst, err := s.FindInstallmentByID(context.Background(), id)
	require.NoError(t, err)
	return inst
}

func loanOf(t *testing.T, s *MockStore, id uuid.UUID) *models.Loan {
	t.Helper()
	loan, err := s.FindLoanByID(context.Background(), id)
	require.NoError(t, err)
	return loan
}

func TestPayInstallment_Exact(t *testing.T) {
	l, s, _ := newTestLedger(t)
	loan, installments := seedLoan(t, s, "500", "500")

	res, err := l.PayInstallment(context.Background(), installments[0].ID, d("500"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentExact, res.Classification)
	assert.False(t, res.LoanFullyPaid)
	assert.True(t, res.Recalculated)
	assert.False(t, res.Zeroed)
	require.NotNil(t, res.NextDueDate)
	assert.Equal(t, installments[1].DueDate, *res.NextDueDate)
	assert.Equal(t, "500.00", res.RemainingBalance.StringFixed(2))

	first := installment(t, s, installments[0].ID)
	assert.Equal(t, models.InstallmentStatusPaid, first.Status)
	require.NotNil(t, first.PaymentDate)
	assert.Equal(t, clock, *first.PaymentDate)
	assert.Equal(t, "500.00", first.PaidAmount.StringFixed(2))

	second := installment(t, s, installments[1].ID)
	assert.Equal(t, "500.00", second.AmountDue.StringFixed(2))
	assert.Equal(t, models.InstallmentStatusPending, second.Status)

	got := loanOf(t, s, loan.ID)
	assert.Equal(t, "500.00", got.RemainingBalance.StringFixed(2))
	assert.Equal(t, models.LoanStatusActive, got.Status)
	require.NotNil(t, got.NextDueDate)
	assert.Equal(t, installments[1].DueDate, *got.NextDueDate)
}

func TestPayInstallment_Overpayment(t *testing.T) {
	l, s, hook := newTestLedger(t)
	loan, installments := seedLoan(t, s, "500", "500")

	res, err := l.PayInstallment(context.Background(), installments[0].ID, d("600"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentOverpaid, res.Classification)
	assert.Equal(t, "400.00", res.RemainingBalance.StringFixed(2))

	first := installment(t, s, installments[0].ID)
	assert.Equal(t, models.InstallmentStatusPaid, first.Status)
	assert.Equal(t, "600.00", first.PaidAmount.StringFixed(2))
	assert.Equal(t, "500.00", first.AmountDue.StringFixed(2))

	assert.Equal(t, "400.00", installment(t, s, installments[1].ID).AmountDue.StringFixed(2))
	assert.Equal(t, "400.00", loanOf(t, s, loan.ID).RemainingBalance.StringFixed(2))

	// The balance moves in two logged steps: the installment's due amount,
	// then the surplus.
	assert.Equal(t, 2, s.calls["DecreaseLoanBalance"])
	var applied *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Payment applied" {
			applied = e
		}
	}
	require.NotNil(t, applied)
	assert.Equal(t, "500.00", applied.Data["installment_delta"])
	assert.Equal(t, "100.00", applied.Data["overpayment_delta"])
}

func TestPayInstallment_LastInstallmentClosesLoan(t *testing.T) {
	l, s, _ := newTestLedger(t)
	loan, installments := seedLoan(t, s, "200", "300")
	ctx := context.Background()

	_, err := l.PayInstallment(ctx, installments[0].ID, d("200"))
	require.NoError(t, err)

	res, err := l.PayInstallment(ctx, installments[1].ID, d("300"))
	require.NoError(t, err)
	assert.True(t, res.LoanFullyPaid)
	assert.Nil(t, res.NextDueDate)
	assert.True(t, res.RemainingBalance.IsZero())

	got := loanOf(t, s, loan.ID)
	assert.True(t, got.RemainingBalance.IsZero())
	assert.Equal(t, models.LoanStatusFullyPaid, got.Status)
	assert.Nil(t, got.NextDueDate)
}

func TestPayInstallment_Underpayment(t *testing.T) {
	l, s, _ := newTestLedger(t)
	loan, installments := seedLoan(t, s, "500", "500")

	res, err := l.PayInstallment(context.Background(), installments[0].ID, d("200"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentUnderpaid, res.Classification)
	assert.True(t, res.Recalculated)
	assert.False(t, res.LoanFullyPaid)
	require.NotNil(t, res.NextDueDate)
	assert.Equal(t, installments[0].DueDate, *res.NextDueDate)
	assert.Equal(t, "800.00", res.RemainingBalance.StringFixed(2))

	first := installment(t, s, installments[0].ID)
	assert.Equal(t, models.InstallmentStatusPending, first.Status)
	assert.Nil(t, first.PaymentDate)
	assert.Equal(t, "400.00", first.AmountDue.StringFixed(2))
	assert.Equal(t, "400.00", installment(t, s, installments[1].ID).AmountDue.StringFixed(2))

	got := loanOf(t, s, loan.ID)
	assert.Equal(t, "800.00", got.RemainingBalance.StringFixed(2))
	assert.Equal(t, models.LoanStatusActive, got.Status)
	require.Len(t, s.history, 1)
	assert.Equal(t, "200.00", s.history[0].Amount.StringFixed(2))
}

func TestPayInstallment_UnderpaymentNeverMarksPaid(t *testing.T) {
	for _, amt := range []string{"0.01", "1", "99.99", "250", "333.33", "499.99"} {
		t.Run(amt, func(t *testing.T) {
			l, s, _ := newTestLedger(t)
			_, installments := seedLoan(t, s, "500", "500", "500")

			res, err := l.PayInstallment(context.Background(), installments[0].ID, d(amt))
			require.NoError(t, err)
			assert.Equal(t, models.PaymentUnderpaid, res.Classification)
			assert.Equal(t, models.InstallmentStatusPending, installment(t, s, installments[0].ID).Status)
		})
	}
}

func TestPayInstallment_OverpaymentConservation(t *testing.T) {
	cases := []struct {
		due, paid string
	}{
		{"500", "500"},
		{"500", "500.01"},
		{"500", "750"},
		{"333.33", "1000"},
		{"0.01", "0.02"},
	}
	for _, c := range cases {
		t.Run(c.due+"/"+c.paid, func(t *testing.T) {
			l, s, _ := newTestLedger(t)
			loan, installments := seedLoan(t, s, c.due, "1000", "1000")
			before := loanOf(t, s, loan.ID).RemainingBalance

			_, err := l.PayInstallment(context.Background(), installments[0].ID, d(c.paid))
			require.NoError(t, err)

			after := loanOf(t, s, loan.ID).RemainingBalance
			due, paid := d(c.due), d(c.paid)
			want := due.Add(decimal.Max(decimal.Zero, paid.Sub(due)))
			assert.True(t, before.Sub(after).Equal(want), "balance moved by %s, want %s", before.Sub(after), want)

			pending, err := s.FindPendingInstallments(context.Background(), loan.ID)
			require.NoError(t, err)
			sum := decimal.Zero
			for _, p := range pending {
				sum = sum.Add(p.AmountDue)
			}
			assert.True(t, sum.Equal(after), "pending sum %s != balance %s", sum, after)
		})
	}
}

func TestPayInstallment_OverpaymentSettlesLoan(t *testing.T) {
	l, s, _ := newTestLedger(t)
	loan, installments := seedLoan(t, s, "100", "100", "100")

	res, err := l.PayInstallment(context.Background(), installments[0].ID, d("300"))
	require.NoError(t, err)
	assert.True(t, res.Zeroed)
	assert.True(t, res.LoanFullyPaid)

	for _, inst := range installments[1:] {
		got := installment(t, s, inst.ID)
		assert.Equal(t, models.InstallmentStatusPaid, got.Status)
		assert.True(t, got.AmountDue.IsZero())
		assert.True(t, got.PaidAmount.IsZero())
		require.NotNil(t, got.PaymentDate)
		assert.Equal(t, clock, *got.PaymentDate)
	}
	got := loanOf(t, s, loan.ID)
	assert.Equal(t, models.LoanStatusFullyPaid, got.Status)
	assert.Nil(t, got.NextDueDate)
}

func TestPayInstallment_OverpaymentBeyondBalanceFloorsAtZero(t *testing.T) {
	l, s, _ := newTestLedger(t)
	loan, installments := seedLoan(t, s, "100", "100")

	res, err := l.PayInstallment(context.Background(), installments[0].ID, d("1000"))
	require.NoError(t, err)
	assert.True(t, res.LoanFullyPaid)
	assert.True(t, loanOf(t, s, loan.ID).RemainingBalance.IsZero())
}

func TestPayInstallment_AlreadyPaid(t *testing.T) {
	l, s, _ := newTestLedger(t)
	_, installments := seedLoan(t, s, "100", "100")
	ctx := context.Background()

	_, err := l.PayInstallment(ctx, installments[0].ID, d("100"))
	require.NoError(t, err)

	_, err = l.PayInstallment(ctx, installments[0].ID, d("100"))
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Len(t, s.history, 1, "a rejected payment leaves no history")
	assert.Equal(t, "100.00", installment(t, s, installments[1].ID).AmountDue.StringFixed(2))
}

func TestPayInstallment_InvalidAmount(t *testing.T) {
	l, s, _ := newTestLedger(t)
	_, installments := seedLoan(t, s, "100")

	for _, amt := range []string{"0", "-5", "10.001"} {
		_, err := l.PayInstallment(context.Background(), installments[0].ID, d(amt))
		assert.ErrorIs(t, err, ErrInvalidPaymentAmount, amt)
	}
	assert.Empty(t, s.history)
}

func TestPayInstallment_NotFound(t *testing.T) {
	l, _, _ := newTestLedger(t)
	_, err := l.PayInstallment(context.Background(), uuid.New(), d("10"))
	assert.ErrorIs(t, err, ErrInstallmentNotFound)
}

func TestPayInstallment_PersistenceFailureRollsBack(t *testing.T) {
	steps := []string{
		"RecordPaymentHistory",
		"MarkInstallmentPaid",
		"DecreaseLoanBalance",
		"FindPendingInstallments",
		"UpdateInstallmentAmounts",
		"UpdateLoanNextDueDate",
	}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			l, s, _ := newTestLedger(t)
			loan, installments := seedLoan(t, s, "500", "500")
			ctx := context.Background()
			// Make the recalculation write something.
			require.NoError(t, s.UpdateInstallmentAmounts(ctx, []models.InstallmentAmount{
				{ID: installments[1].ID, Amount: d("499.99")},
			}))
			s.failOn[step] = errors.New("database is locked")

			_, err := l.PayInstallment(ctx, installments[0].ID, d("600"))
			var pe *PersistenceError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, pe.Error(), "database is locked")

			got := loanOf(t, s, loan.ID)
			assert.Equal(t, "1000.00", got.RemainingBalance.StringFixed(2))
			assert.Equal(t, models.LoanStatusActive, got.Status)
			assert.Equal(t, installments[0].DueDate, *got.NextDueDate)
			assert.Equal(t, models.InstallmentStatusPending, installment(t, s, installments[0].ID).Status)
			assert.Equal(t, "499.99", installment(t, s, installments[1].ID).AmountDue.StringFixed(2))
			assert.Empty(t, s.history)
		})
	}
}
