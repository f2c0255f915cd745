// Package reminder sends borrowers a notice for installments that are
// overdue or fall due within the next few days.
package reminder

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"github.com/mcclellann/microfin/pkg/metrics"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/money"
	"github.com/mcclellann/microfin/pkg/schedule"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Source lists the installments that need a reminder.
type Source interface {
	ListDueInstallments(ctx context.Context, dueBy time.Time) ([]*models.DueInstallment, error)
}

// Notice is one reminder ready to be delivered.
type Notice struct {
	To          string
	ClientName  string
	Sequence    int
	DueDate     time.Time
	Amount      string
	Overdue     bool
	DaysOverdue int
}

// Sender delivers a Notice.
type Sender interface {
	Send(ctx context.Context, n Notice) error
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPSender emails notices.
type SMTPSender struct {
	cfg  SMTPConfig
	send func(e *email.Email, addr string, a smtp.Auth) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg: cfg,
		send: func(e *email.Email, addr string, a smtp.Auth) error {
			return e.Send(addr, a)
		},
	}
}

// Send sends a payment reminder email
func (s *SMTPSender) Send(ctx context.Context, n Notice) error {
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{n.To}
	e.Subject, e.Text = compose(n)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	if err := s.send(e, addr, auth); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", n.To, err)
	}
	return nil
}

func compose(n Notice) (string, []byte) {
	var subject string
	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", n.ClientName)
	if n.Overdue {
		subject = "Overdue Loan Installment Notification"
		fmt.Fprintf(&body,
			"Installment %d of your loan, %s, was due on %s and is now %d day(s) overdue.\n"+
				"Please make the payment as soon as possible.\n",
			n.Sequence, n.Amount, n.DueDate.Format(time.DateOnly), n.DaysOverdue)
	} else {
		subject = "Upcoming Loan Installment Reminder"
		fmt.Fprintf(&body,
			"This is a reminder that installment %d of your loan, %s, is due on %s.\n",
			n.Sequence, n.Amount, n.DueDate.Format(time.DateOnly))
	}
	body.WriteString("\nBest regards,\nMicrofin")
	return subject, []byte(body.String())
}

// LogSender writes notices to the log. It stands in when SMTP is not
// configured.
type LogSender struct {
	Log *logrus.Logger
}

func (s LogSender) Send(ctx context.Context, n Notice) error {
	s.Log.WithFields(logrus.Fields{
		"to":       n.To,
		"client":   n.ClientName,
		"sequence": n.Sequence,
		"due_date": n.DueDate.Format(time.DateOnly),
		"amount":   n.Amount,
		"overdue":  n.Overdue,
	}).Info("Payment reminder")
	return nil
}

// Job finds pending installments due within LeadDays (or already overdue)
// and sends one notice per installment.
type Job struct {
	source   Source
	sender   Sender
	leadDays int
	log      *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewJob(source Source, sender Sender, leadDays int, log *logrus.Logger, m *metrics.Metrics) *Job {
	return &Job{
		source:   source,
		sender:   sender,
		leadDays: leadDays,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// Summary counts what a Run did.
type Summary struct {
	Sent    int
	Skipped int
	Failed  int
}

// Run sends the reminders due today. A failed delivery is logged and does
// not stop the rest.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	today := schedule.Date(j.now())
	due, err := j.source.ListDueInstallments(ctx, today.AddDate(0, 0, j.leadDays))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list due installments: %w", err)
	}

	var sum Summary
	for _, d := range due {
		entry := j.log.WithFields(logrus.Fields{
			"loan_id":        d.LoanID,
			"installment_id": d.ID,
			"client_id":      d.ClientID,
		})
		if d.ClientEmail == "" || d.AmountDue.IsZero() {
			sum.Skipped++
			j.metrics.ReminderSent("skipped")
			entry.Debug("No reminder needed or no address on file")
			continue
		}

		n := Notice{
			To:         d.ClientEmail,
			ClientName: d.ClientName,
			Sequence:   d.Sequence,
			DueDate:    d.DueDate,
			Amount:     money.Format(d.AmountDue),
			Overdue:    d.DueDate.Before(today),
		}
		if n.Overdue {
			n.DaysOverdue = int(today.Sub(schedule.Date(d.DueDate)).Hours() / 24)
		}

		if err := j.sender.Send(ctx, n); err != nil {
			sum.Failed++
			j.metrics.ReminderSent("failed")
			entry.WithError(err).Error("Failed to send payment reminder")
			continue
		}
		sum.Sent++
		j.metrics.ReminderSent("sent")
	}

	j.log.WithFields(logrus.Fields{
		"sent":    sum.Sent,
		"skipped": sum.Skipped,
		"failed":  sum.Failed,
	}).Info("Payment reminders processed")
	return sum, nil
}

// Schedule registers the job on c to run at the cron expression expr.
func (j *Job) Schedule(c *cron.Cron, expr string) (cron.EntryID, error) {
	id, err := c.AddFunc(expr, func() {
		if _, err := j.Run(context.Background()); err != nil {
			j.log.WithError(err).Error("Payment reminder run failed")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule reminders %q: %w", expr, err)
	}
	j.log.WithField("schedule", expr).Info("Payment reminder job scheduled")
	return id, nil
}
