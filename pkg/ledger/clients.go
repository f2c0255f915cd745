package ledger

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/store"
)

// ClientDetails is the editable part of a client record.
type ClientDetails struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (d *ClientDetails) normalize() error {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)

	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidClient)
	}
	if d.Email != "" {
		addr, err := mail.ParseAddress(d.Email)
		if err != nil {
			return fmt.Errorf("%w: email %q is not a valid address", ErrInvalidClient, d.Email)
		}
		d.Email = addr.Address
	}
	return nil
}

// CreateClient registers a new borrower.
func (l *Ledger) CreateClient(ctx context.Context, d ClientDetails) (*models.Client, error) {
	if err := d.normalize(); err != nil {
		return nil, err
	}
	now := l.now().UTC()
	c := &models.Client{
		ID:        uuid.New(),
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		Address:   d.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.storage.CreateClient(ctx, c); err != nil {
		return nil, classify("create client", err)
	}
	l.log.WithField("client_id", c.ID).Info("Client created")
	return c, nil
}

// UpdateClient replaces a client's contact details.
func (l *Ledger) UpdateClient(ctx context.Context, id uuid.UUID, d ClientDetails) (*models.Client, error) {
	if err := d.normalize(); err != nil {
		return nil, err
	}
	c, err := l.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name, c.Email, c.Phone, c.Address = d.Name, d.Email, d.Phone, d.Address
	c.UpdatedAt = l.now().UTC()
	if err := l.storage.UpdateClient(ctx, c); err != nil {
		return nil, classify("update client", err)
	}
	return c, nil
}

func (l *Ledger) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	c, err := l.storage.FindClientByID(ctx, id)
	if err != nil {
		return nil, classify("get client", err)
	}
	return c, nil
}

func (l *Ledger) ListClients(ctx context.Context) ([]*models.Client, error) {
	clients, err := l.storage.ListClients(ctx)
	if err != nil {
		return nil, classify("list clients", err)
	}
	return clients, nil
}

// DeleteClient removes a client. Clients with loans on file cannot be
// deleted; their loans have to go first.
func (l *Ledger) DeleteClient(ctx context.Context, id uuid.UUID) error {
	if err := l.storage.DeleteClient(ctx, id); err != nil {
		return classify("delete client", err)
	}
	l.log.WithField("client_id", id).Info("Client deleted")
	return nil
}

// ClientLoans lists every loan issued to a client, newest first.
func (l *Ledger) ClientLoans(ctx context.Context, id uuid.UUID) ([]*models.Loan, error) {
	if _, err := l.GetClient(ctx, id); err != nil {
		return nil, err
	}
	return l.ListLoans(ctx, store.LoanFilter{ClientID: &id})
}
