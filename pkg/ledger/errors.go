package ledger

import (
	"errors"
	"fmt"

	"github.com/mcclellann/microfin/pkg/schedule"
	"github.com/mcclellann/microfin/pkg/store"
)

var (
	ErrInvalidLoanParameters = schedule.ErrInvalidLoanParameters
	ErrInvalidPaymentAmount  = errors.New("invalid payment amount")
	ErrInvalidClient         = errors.New("invalid client")
	ErrAlreadyPaid           = errors.New("installment already paid")
	ErrInstallmentNotFound   = errors.New("installment not found")
	ErrLoanNotFound          = errors.New("loan not found")
	ErrClientNotFound        = errors.New("client not found")
	ErrClientHasLoans        = errors.New("client still has loans")
)

// PersistenceError reports a storage failure. The whole operation it
// interrupted has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

var domainErrors = []error{
	ErrInvalidLoanParameters,
	ErrInvalidPaymentAmount,
	ErrInvalidClient,
	ErrAlreadyPaid,
	ErrInstallmentNotFound,
	ErrLoanNotFound,
	ErrClientNotFound,
	ErrClientHasLoans,
}

// classify maps an error coming out of the store (or out of a transaction
// body) onto the ledger's error taxonomy. Anything it does not recognise is
// a PersistenceError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	switch {
	case errors.Is(err, store.ErrLoanNotFound):
		return ErrLoanNotFound
	case errors.Is(err, store.ErrInstallmentNotFound):
		return ErrInstallmentNotFound
	case errors.Is(err, store.ErrClientNotFound):
		return ErrClientNotFound
	case errors.Is(err, store.ErrInstallmentNotPending):
		return ErrAlreadyPaid
	case errors.Is(err, store.ErrClientHasLoans):
		return ErrClientHasLoans
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe
	}
	return &PersistenceError{Op: op, Err: err}
}
