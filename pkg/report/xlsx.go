package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the media type of the exports.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	portfolioSheet = "Portfolio"
	scheduleSheet  = "Schedule"
	// Built-in number format "#,##0.00".
	moneyNumFmt = 4
)

type sheetWriter struct {
	f          *excelize.File
	sheet      string
	moneyStyle int
}

func newSheet(name string, headers []string) (*sheetWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(name, cell, header)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}
	return &sheetWriter{f: f, sheet: name, moneyStyle: moneyStyle}, nil
}

// row writes values into row r. Decimals become numbers in money format;
// times become YYYY-MM-DD text, nil times stay empty.
func (s *sheetWriter) row(r int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, r)
		if err != nil {
			return err
		}
		switch v := v.(type) {
		case decimal.Decimal:
			if err := s.f.SetCellFloat(s.sheet, cell, v.InexactFloat64(), -1, 64); err != nil {
				return err
			}
			if err := s.f.SetCellStyle(s.sheet, cell, cell, s.moneyStyle); err != nil {
				return err
			}
		case time.Time:
			if err := s.f.SetCellStr(s.sheet, cell, v.Format(time.DateOnly)); err != nil {
				return err
			}
		case *time.Time:
			if v != nil {
				if err := s.f.SetCellStr(s.sheet, cell, v.Format(time.DateOnly)); err != nil {
					return err
				}
			}
		default:
			if err := s.f.SetCellValue(s.sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *sheetWriter) writeTo(w io.Writer) error {
	defer s.f.Close()
	if err := s.f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WritePortfolio writes one row per loan with its borrower's name.
func WritePortfolio(w io.Writer, loans []*models.Loan, clients []*models.Client) error {
	names := make(map[uuid.UUID]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}

	sw, err := newSheet(portfolioSheet, []string{
		"Loan ID", "Client", "Principal", "Rate %", "Term (days)", "Cadence (days)",
		"Total Due", "Installment", "Remaining", "Status", "Start Date", "Next Due Date",
	})
	if err != nil {
		return err
	}
	for i, l := range loans {
		err := sw.row(i+2,
			l.ID.String(), names[l.ClientID], l.Principal, l.InterestRate.String(), l.TermDays, l.CadenceDays,
			l.TotalAmountDue, l.InstallmentAmount, l.RemainingBalance, string(l.Status), l.StartDate, l.NextDueDate,
		)
		if err != nil {
			return fmt.Errorf("failed to write loan %s: %w", l.ID, err)
		}
	}
	return sw.writeTo(w)
}

// WriteSchedule writes a loan's installments in sequence order.
func WriteSchedule(w io.Writer, installments []*models.Installment) error {
	sw, err := newSheet(scheduleSheet, []string{
		"#", "Due Date", "Amount Due", "Status", "Payment Date", "Paid Amount",
	})
	if err != nil {
		return err
	}
	for i, inst := range installments {
		err := sw.row(i+2,
			inst.Sequence, inst.DueDate, inst.AmountDue, string(inst.Status), inst.PaymentDate, inst.PaidAmount,
		)
		if err != nil {
			return fmt.Errorf("failed to write installment %d: %w", inst.Sequence, err)
		}
	}
	return sw.writeTo(w)
}

// ExportPortfolio writes the whole loan book.
func (s *Service) ExportPortfolio(ctx context.Context, w io.Writer) error {
	loans, err := s.src.ListLoans(ctx, store.LoanFilter{})
	if err != nil {
		return fmt.Errorf("failed to list loans: %w", err)
	}
	clients, err := s.src.ListClients(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}
	return WritePortfolio(w, loans, clients)
}

// ExportSchedule writes one loan's installment schedule.
func (s *Service) ExportSchedule(ctx context.Context, w io.Writer, loanID uuid.UUID) error {
	if _, err := s.src.FindLoanByID(ctx, loanID); err != nil {
		return err
	}
	installments, err := s.src.ListInstallments(ctx, loanID)
	if err != nil {
		return fmt.Errorf("failed to list installments: %w", err)
	}
	return WriteSchedule(w, installments)
}
