package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
)

// MockStore is an in-memory implementation of the Storage interface for
// testing. WithTx snapshots the maps and restores them when fn fails, so
// rollback behaviour can be asserted. Values are copied in and out the way
// a database would.
type MockStore struct {
	mu           sync.Mutex
	clients      map[uuid.UUID]*models.Client
	loans        map[uuid.UUID]*models.Loan
	installments map[uuid.UUID]*models.Installment
	history      []*models.PaymentRecord
	admins       map[string]*models.Admin

	// failOn makes the named method return the error.
	failOn map[string]error
	calls  map[string]int
}

func NewMockStore() *MockStore {
	return &MockStore{
		clients:      make(map[uuid.UUID]*models.Client),
		loans:        make(map[uuid.UUID]*models.Loan),
		installments: make(map[uuid.UUID]*models.Installment),
		admins:       make(map[string]*models.Admin),
		failOn:       make(map[string]error),
		calls:        make(map[string]int),
	}
}

func (m *MockStore) enter(method string) error {
	m.calls[method]++
	return m.failOn[method]
}

func copyLoan(l *models.Loan) *models.Loan {
	c := *l
	if l.NextDueDate != nil {
		d := *l.NextDueDate
		c.NextDueDate = &d
	}
	return &c
}

func copyInstallment(i *models.Installment) *models.Installment {
	c := *i
	if i.PaymentDate != nil {
		d := *i.PaymentDate
		c.PaymentDate = &d
	}
	return &c
}

type snapshot struct {
	clients      map[uuid.UUID]*models.Client
	loans        map[uuid.UUID]*models.Loan
	installments map[uuid.UUID]*models.Installment
	history      []*models.PaymentRecord
}

func (m *MockStore) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := snapshot{
		clients:      make(map[uuid.UUID]*models.Client, len(m.clients)),
		loans:        make(map[uuid.UUID]*models.Loan, len(m.loans)),
		installments: make(map[uuid.UUID]*models.Installment, len(m.installments)),
		history:      append([]*models.PaymentRecord(nil), m.history...),
	}
	for k, v := range m.clients {
		c := *v
		s.clients[k] = &c
	}
	for k, v := range m.loans {
		s.loans[k] = copyLoan(v)
	}
	for k, v := range m.installments {
		s.installments[k] = copyInstallment(v)
	}
	return s
}

func (m *MockStore) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients, m.loans, m.installments, m.history = s.clients, s.loans, s.installments, s.history
}

func (m *MockStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	err := m.enter("WithTx")
	m.mu.Unlock()
	if err != nil {
		return err
	}

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *MockStore) FindClientByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindClientByID"); err != nil {
		return nil, err
	}
	c, ok := m.clients[id]
	if !ok {
		return nil, store.ErrClientNotFound
	}
	cc := *c
	return &cc, nil
}

func (m *MockStore) FindLoanByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindLoanByID"); err != nil {
		return nil, err
	}
	l, ok := m.loans[id]
	if !ok {
		return nil, store.ErrLoanNotFound
	}
	return copyLoan(l), nil
}

func (m *MockStore) FindInstallmentByID(ctx context.Context, id uuid.UUID) (*models.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindInstallmentByID"); err != nil {
		return nil, err
	}
	i, ok := m.installments[id]
	if !ok {
		return nil, store.ErrInstallmentNotFound
	}
	return copyInstallment(i), nil
}

func (m *MockStore) FindPendingInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindPendingInstallments"); err != nil {
		return nil, err
	}
	var pending []*models.Installment
	for _, i := range m.installments {
		if i.LoanID == loanID && i.Status == models.InstallmentStatusPending {
			pending = append(pending, copyInstallment(i))
		}
	}
	sort.Slice(pending, func(a, b int) bool { return pending[a].Sequence < pending[b].Sequence })
	return pending, nil
}

func (m *MockStore) UpdateInstallmentAmounts(ctx context.Context, amounts []models.InstallmentAmount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateInstallmentAmounts"); err != nil {
		return err
	}
	for _, a := range amounts {
		i, ok := m.installments[a.ID]
		if !ok {
			return store.ErrInstallmentNotFound
		}
		i.AmountDue = a.Amount
	}
	return nil
}

func (m *MockStore) MarkInstallmentPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("MarkInstallmentPaid"); err != nil {
		return err
	}
	i, ok := m.installments[id]
	if !ok || i.Status != models.InstallmentStatusPending {
		return store.ErrInstallmentNotPending
	}
	i.Status = models.InstallmentStatusPaid
	i.PaymentDate = &paidAt
	i.PaidAmount = amount
	return nil
}

func (m *MockStore) DecreaseLoanBalance(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DecreaseLoanBalance"); err != nil {
		return decimal.Zero, err
	}
	l, ok := m.loans[loanID]
	if !ok {
		return decimal.Zero, store.ErrLoanNotFound
	}
	l.RemainingBalance = l.RemainingBalance.Sub(amount)
	if l.RemainingBalance.IsNegative() {
		l.RemainingBalance = decimal.Zero
	}
	return l.RemainingBalance, nil
}

func (m *MockStore) UpdateLoanStatus(ctx context.Context, loanID uuid.UUID, status models.LoanStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateLoanStatus"); err != nil {
		return err
	}
	l, ok := m.loans[loanID]
	if !ok {
		return store.ErrLoanNotFound
	}
	l.Status = status
	return nil
}

func (m *MockStore) UpdateLoanNextDueDate(ctx context.Context, loanID uuid.UUID, date *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateLoanNextDueDate"); err != nil {
		return err
	}
	l, ok := m.loans[loanID]
	if !ok {
		return store.ErrLoanNotFound
	}
	if date == nil {
		l.NextDueDate = nil
	} else {
		d := *date
		l.NextDueDate = &d
	}
	return nil
}

func (m *MockStore) RecordPaymentHistory(ctx context.Context, r *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RecordPaymentHistory"); err != nil {
		return err
	}
	rc := *r
	m.history = append(m.history, &rc)
	return nil
}

func (m *MockStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateLoan"); err != nil {
		return err
	}
	m.loans[loan.ID] = copyLoan(loan)
	return nil
}

func (m *MockStore) CreateInstallments(ctx context.Context, installments []*models.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateInstallments"); err != nil {
		return err
	}
	for _, i := range installments {
		m.installments[i.ID] = copyInstallment(i)
	}
	return nil
}

func (m *MockStore) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteLoan"); err != nil {
		return err
	}
	if _, ok := m.loans[id]; !ok {
		return store.ErrLoanNotFound
	}
	var kept []*models.PaymentRecord
	for _, r := range m.history {
		if r.LoanID != id {
			kept = append(kept, r)
		}
	}
	m.history = kept
	for k, i := range m.installments {
		if i.LoanID == id {
			delete(m.installments, k)
		}
	}
	delete(m.loans, id)
	return nil
}

func (m *MockStore) CreateClient(ctx context.Context, c *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateClient"); err != nil {
		return err
	}
	cc := *c
	m.clients[c.ID] = &cc
	return nil
}

func (m *MockStore) UpdateClient(ctx context.Context, c *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c.ID]; !ok {
		return store.ErrClientNotFound
	}
	cc := *c
	m.clients[c.ID] = &cc
	return nil
}

func (m *MockStore) DeleteClient(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return store.ErrClientNotFound
	}
	for _, l := range m.loans {
		if l.ClientID == id {
			return store.ErrClientHasLoans
		}
	}
	delete(m.clients, id)
	return nil
}

func (m *MockStore) ListClients(ctx context.Context) ([]*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var clients []*models.Client
	for _, c := range m.clients {
		cc := *c
		clients = append(clients, &cc)
	}
	sort.Slice(clients, func(a, b int) bool { return clients[a].Name < clients[b].Name })
	return clients, nil
}

func (m *MockStore) ListLoans(ctx context.Context, filter store.LoanFilter) ([]*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var loans []*models.Loan
	for _, l := range m.loans {
		if filter.ClientID != nil && l.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		loans = append(loans, copyLoan(l))
	}
	return loans, nil
}

func (m *MockStore) ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*models.Installment
	for _, i := range m.installments {
		if i.LoanID == loanID {
			all = append(all, copyInstallment(i))
		}
	}
	sort.Slice(all, func(a, b int) bool { return all[a].Sequence < all[b].Sequence })
	return all, nil
}

func (m *MockStore) ListPaymentHistory(ctx context.Context, loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []*models.PaymentRecord
	for _, r := range m.history {
		if r.LoanID == loanID {
			rc := *r
			records = append(records, &rc)
		}
	}
	return records, nil
}

func (m *MockStore) ListDueInstallments(ctx context.Context, dueBy time.Time) ([]*models.DueInstallment, error) {
	return nil, nil
}

func (m *MockStore) CreateAdmin(ctx context.Context, a *models.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[a.Username] = a
	return nil
}

func (m *MockStore) FindAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[username]
	if !ok {
		return nil, store.ErrAdminNotFound
	}
	return a, nil
}

func (m *MockStore) Close() error {
	return nil
}

var _ store.Storage = (*MockStore)(nil)
