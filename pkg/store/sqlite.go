package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// sqliteTx implements Tx on top of a querier.
type sqliteTx struct {
	q querier
}

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	sqliteTx
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string, log *logrus.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// SQLite allows a single writer; one connection keeps transactions from
	// tripping over each other with SQLITE_BUSY and keeps the pragmas below
	// in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{sqliteTx: sqliteTx{q: db}, db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	if log != nil {
		log.WithField("dsn", dataSourceName).Info("Database connection established and schema initialized")
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		principal TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		term_days INTEGER NOT NULL,
		cadence_days INTEGER NOT NULL,
		total_amount_due TEXT NOT NULL,
		installment_amount TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date DATE NOT NULL,
		next_due_date DATE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(client_id) REFERENCES clients(id)
	);
	CREATE INDEX IF NOT EXISTS idx_loans_client_id ON loans(client_id);
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		due_date DATE NOT NULL,
		amount_due TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_date DATETIME,
		paid_amount TEXT NOT NULL DEFAULT '0',
		UNIQUE(loan_id, sequence),
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_installments_status_due ON installments(status, due_date);
	CREATE TABLE IF NOT EXISTS payment_history (
		id TEXT PRIMARY KEY,
		installment_id TEXT NOT NULL,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_at DATETIME NOT NULL,
		FOREIGN KEY(installment_id) REFERENCES installments(id),
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_payment_history_loan_id ON payment_history(loan_id);
	CREATE TABLE IF NOT EXISTS admins (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithTx runs fn inside a database transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqliteTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to roll back transaction: %w (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// checkAffected turns "zero rows affected" into notFound.
func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

const clientColumns = `id, name, email, phone, address, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateClient inserts a new client.
func (s *SQLiteStore) CreateClient(ctx context.Context, c *models.Client) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Name, c.Email, c.Phone, c.Address, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// UpdateClient updates a client's contact details.
func (s *SQLiteStore) UpdateClient(ctx context.Context, c *models.Client) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE clients SET name = ?, email = ?, phone = ?, address = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Email, c.Phone, c.Address, c.UpdatedAt, c.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return checkAffected(result, ErrClientNotFound)
}

// DeleteClient removes a client that has no loans.
func (s *SQLiteStore) DeleteClient(ctx context.Context, id uuid.UUID) error {
	return s.WithTx(ctx, func(tx Tx) error {
		q := tx.(*sqliteTx).q

		var loans int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE client_id = ?`, id.String()).Scan(&loans); err != nil {
			return fmt.Errorf("failed to count client loans: %w", err)
		}
		if loans > 0 {
			return ErrClientHasLoans
		}

		result, err := q.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("failed to delete client: %w", err)
		}
		return checkAffected(result, ErrClientNotFound)
	})
}

// ListClients retrieves all clients ordered by name.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]*models.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client row: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return clients, nil
}

// FindClientByID retrieves a client by its ID.
func (t *sqliteTx) FindClientByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	c, err := scanClient(t.q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

const loanColumns = `id, client_id, principal, interest_rate, term_days, cadence_days, total_amount_due,
	installment_amount, remaining_balance, status, start_date, next_due_date, created_at, updated_at`

func scanLoan(row interface{ Scan(...any) error }) (*models.Loan, error) {
	var loan models.Loan
	var nextDue sql.NullTime
	err := row.Scan(&loan.ID, &loan.ClientID, &loan.Principal, &loan.InterestRate, &loan.TermDays, &loan.CadenceDays,
		&loan.TotalAmountDue, &loan.InstallmentAmount, &loan.RemainingBalance, &loan.Status, &loan.StartDate,
		&nextDue, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	loan.StartDate = loan.StartDate.UTC()
	loan.NextDueDate = timePtr(nextDue)
	return &loan, nil
}

// CreateLoan inserts a new loan.
func (t *sqliteTx) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.ClientID.String(), loan.Principal, loan.InterestRate, loan.TermDays, loan.CadenceDays,
		loan.TotalAmountDue, loan.InstallmentAmount, loan.RemainingBalance, string(loan.Status), loan.StartDate.UTC(),
		nullTime(loan.NextDueDate), loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// FindLoanByID retrieves a loan by its ID.
func (t *sqliteTx) FindLoanByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	loan, err := scanLoan(t.q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// ListLoans retrieves loans, newest first.
func (s *SQLiteStore) ListLoans(ctx context.Context, filter LoanFilter) ([]*models.Loan, error) {
	var (
		where []string
		args  []any
	)
	if filter.ClientID != nil {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID.String())
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// DecreaseLoanBalance lowers the remaining balance, never below zero.
func (t *sqliteTx) DecreaseLoanBalance(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.q.QueryRowContext(ctx, `SELECT remaining_balance FROM loans WHERE id = ?`, loanID.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrLoanNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to read loan balance: %w", err)
	}

	balance = balance.Sub(amount)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	_, err = t.q.ExecContext(ctx,
		`UPDATE loans SET remaining_balance = ?, updated_at = ? WHERE id = ?`,
		balance, time.Now().UTC(), loanID.String(),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update loan balance: %w", err)
	}
	return balance, nil
}

// UpdateLoanStatus sets the loan status.
func (t *sqliteTx) UpdateLoanStatus(ctx context.Context, loanID uuid.UUID, status models.LoanStatus) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE loans SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), loanID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan status: %w", err)
	}
	return checkAffected(result, ErrLoanNotFound)
}

// UpdateLoanNextDueDate sets or clears the loan's next due date.
func (t *sqliteTx) UpdateLoanNextDueDate(ctx context.Context, loanID uuid.UUID, date *time.Time) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE loans SET next_due_date = ?, updated_at = ? WHERE id = ?`,
		nullTime(date), time.Now().UTC(), loanID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan next due date: %w", err)
	}
	return checkAffected(result, ErrLoanNotFound)
}

// DeleteLoan removes a loan, its installments and its payment history.
// Callers needing atomicity run it through WithTx.
func (t *sqliteTx) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM payment_history WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete associated payment history: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM installments WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete associated installments: %w", err)
	}

	result, err := t.q.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	return checkAffected(result, ErrLoanNotFound)
}

// ---------------------------------------------------------------------------
// Installments
// ---------------------------------------------------------------------------

const installmentColumns = `id, loan_id, sequence, due_date, amount_due, status, payment_date, paid_amount`

func scanInstallment(row interface{ Scan(...any) error }) (*models.Installment, error) {
	var inst models.Installment
	var paymentDate sql.NullTime
	err := row.Scan(&inst.ID, &inst.LoanID, &inst.Sequence, &inst.DueDate, &inst.AmountDue, &inst.Status,
		&paymentDate, &inst.PaidAmount)
	if err != nil {
		return nil, err
	}
	inst.DueDate = inst.DueDate.UTC()
	inst.PaymentDate = timePtr(paymentDate)
	return &inst, nil
}

func (t *sqliteTx) queryInstallments(ctx context.Context, query string, args ...any) ([]*models.Installment, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var installments []*models.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment row: %w", err)
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return installments, nil
}

// CreateInstallments bulk-inserts a loan's schedule.
func (t *sqliteTx) CreateInstallments(ctx context.Context, installments []*models.Installment) error {
	stmt, err := t.q.PrepareContext(ctx, `INSERT INTO installments (`+installmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare installment insert: %w", err)
	}
	defer stmt.Close()

	for _, inst := range installments {
		_, err := stmt.ExecContext(ctx,
			inst.ID.String(), inst.LoanID.String(), inst.Sequence, inst.DueDate.UTC(), inst.AmountDue,
			string(inst.Status), nullTime(inst.PaymentDate), inst.PaidAmount,
		)
		if err != nil {
			return fmt.Errorf("failed to create installment %d: %w", inst.Sequence, err)
		}
	}
	return nil
}

// FindInstallmentByID retrieves an installment by its ID.
func (t *sqliteTx) FindInstallmentByID(ctx context.Context, id uuid.UUID) (*models.Installment, error) {
	inst, err := scanInstallment(t.q.QueryRowContext(ctx, `SELECT `+installmentColumns+` FROM installments WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstallmentNotFound
		}
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	return inst, nil
}

// FindPendingInstallments retrieves a loan's pending installments in sequence order.
func (t *sqliteTx) FindPendingInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	return t.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE loan_id = ? AND status = ? ORDER BY sequence ASC`,
		loanID.String(), string(models.InstallmentStatusPending),
	)
}

// ListInstallments retrieves a loan's full schedule in sequence order.
func (s *SQLiteStore) ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	return s.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE loan_id = ? ORDER BY sequence ASC`,
		loanID.String(),
	)
}

// UpdateInstallmentAmounts rewrites the due amount of several installments.
func (t *sqliteTx) UpdateInstallmentAmounts(ctx context.Context, amounts []models.InstallmentAmount) error {
	if len(amounts) == 0 {
		return nil
	}
	stmt, err := t.q.PrepareContext(ctx, `UPDATE installments SET amount_due = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare installment amount update: %w", err)
	}
	defer stmt.Close()

	for _, a := range amounts {
		result, err := stmt.ExecContext(ctx, a.Amount, a.ID.String())
		if err != nil {
			return fmt.Errorf("failed to update installment %s amount: %w", a.ID, err)
		}
		if err := checkAffected(result, ErrInstallmentNotFound); err != nil {
			return err
		}
	}
	return nil
}

// MarkInstallmentPaid transitions a pending installment to paid.
func (t *sqliteTx) MarkInstallmentPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, amount decimal.Decimal) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE installments SET status = ?, payment_date = ?, paid_amount = ? WHERE id = ? AND status = ?`,
		string(models.InstallmentStatusPaid), paidAt.UTC(), amount, id.String(), string(models.InstallmentStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark installment paid: %w", err)
	}
	return checkAffected(result, ErrInstallmentNotPending)
}

// ListDueInstallments retrieves pending installments of active loans due on
// or before dueBy, with the borrower's contact details.
func (s *SQLiteStore) ListDueInstallments(ctx context.Context, dueBy time.Time) ([]*models.DueInstallment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.loan_id, i.sequence, i.due_date, i.amount_due, i.status, i.payment_date, i.paid_amount,
		       c.id, c.name, c.email
		FROM installments i
		JOIN loans l ON l.id = i.loan_id
		JOIN clients c ON c.id = l.client_id
		WHERE i.status = ? AND l.status = ? AND i.due_date <= ?
		ORDER BY i.due_date ASC, i.sequence ASC`,
		string(models.InstallmentStatusPending), string(models.LoanStatusActive), dueBy.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due installments: %w", err)
	}
	defer rows.Close()

	var due []*models.DueInstallment
	for rows.Next() {
		var d models.DueInstallment
		var paymentDate sql.NullTime
		err := rows.Scan(&d.ID, &d.LoanID, &d.Sequence, &d.DueDate, &d.AmountDue, &d.Status, &paymentDate,
			&d.PaidAmount, &d.ClientID, &d.ClientName, &d.ClientEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due installment row: %w", err)
		}
		d.DueDate = d.DueDate.UTC()
		d.PaymentDate = timePtr(paymentDate)
		due = append(due, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return due, nil
}

// ---------------------------------------------------------------------------
// Payment history
// ---------------------------------------------------------------------------

// RecordPaymentHistory appends a payment to the history log.
func (t *sqliteTx) RecordPaymentHistory(ctx context.Context, r *models.PaymentRecord) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO payment_history (id, installment_id, loan_id, amount, paid_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.InstallmentID.String(), r.LoanID.String(), r.Amount, r.PaidAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record payment history: %w", err)
	}
	return nil
}

// ListPaymentHistory retrieves a loan's payments, oldest first.
func (s *SQLiteStore) ListPaymentHistory(ctx context.Context, loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, installment_id, loan_id, amount, paid_at FROM payment_history WHERE loan_id = ? ORDER BY paid_at ASC`,
		loanID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment history for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var records []*models.PaymentRecord
	for rows.Next() {
		var r models.PaymentRecord
		if err := rows.Scan(&r.ID, &r.InstallmentID, &r.LoanID, &r.Amount, &r.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment history row: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for payment history: %w", err)
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

// CreateAdmin inserts a back-office user.
func (s *SQLiteStore) CreateAdmin(ctx context.Context, a *models.Admin) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		a.ID.String(), a.Username, a.PasswordHash, a.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateAdminUsername
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

// FindAdminByUsername retrieves a back-office user by username.
func (s *SQLiteStore) FindAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var a models.Admin
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`, username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &a, nil
}
