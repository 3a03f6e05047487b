// Package receipt builds confirmation receipts for contributions, renders
// them as markdown and hands them to a Sender.
package receipt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/ledger"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/money"
	"github.com/robinvdvleuten/contribute/store"
)

// Receipt is the data shown on a confirmation receipt.
type Receipt struct {
	ContributionID snowflake.ID             `json:"contribution_id"`
	ContactID      snowflake.ID             `json:"contact_id"`
	InvoiceNumber  string                   `json:"invoice_number"`
	CreditNoteID   string                   `json:"creditnote_id,omitempty"`
	FinancialType  string                   `json:"financial_type"`
	Status         model.ContributionStatus `json:"contribution_status_id"`
	Source         string                   `json:"source,omitempty"`
	ReceiveDate    *time.Time               `json:"receive_date,omitempty"`
	Currency       string                   `json:"currency"`
	TaxTerm        string                   `json:"tax_term"`
	From           string                   `json:"from"`
	IsTest         bool                     `json:"is_test"`

	Lines   []Line          `json:"lines"`
	Total   decimal.Decimal `json:"total"`
	Tax     decimal.Decimal `json:"tax"`
	Paid    decimal.Decimal `json:"paid"`
	Balance decimal.Decimal `json:"balance"`
}

// Line is one row of the receipt.
type Line struct {
	Label     string          `json:"label"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"line_total"`
	Tax       decimal.Decimal `json:"tax"`
}

// Options carries the receipt settings that are not stored with the
// contribution.
type Options struct {
	From    string
	TaxTerm string
}

// Build loads everything a receipt of contribution id shows.
func Build(ctx context.Context, s *store.Store, recorder *ledger.Recorder, id snowflake.ID, opts Options) (*Receipt, error) {
	c, err := s.GetContribution(ctx, id)
	if err != nil {
		return nil, err
	}
	ft, err := s.GetFinancialType(ctx, c.FinancialTypeID)
	if err != nil {
		return nil, err
	}
	lines, err := s.LineItems(ctx, id)
	if err != nil {
		return nil, err
	}
	info, err := recorder.PaymentInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	r := &Receipt{
		ContributionID: c.ID,
		ContactID:      c.ContactID,
		InvoiceNumber:  c.InvoiceNumber,
		CreditNoteID:   c.CreditNoteID,
		FinancialType:  ft.Name,
		Status:         c.Status,
		Source:         c.Source,
		ReceiveDate:    c.ReceiveDate,
		Currency:       c.Currency,
		TaxTerm:        opts.TaxTerm,
		From:           opts.From,
		IsTest:         c.IsTest,
		Total:          c.TotalAmount,
		Paid:           info.Paid,
		Balance:        info.Balance,
	}
	if c.TaxAmount.Valid {
		r.Tax = c.TaxAmount.Decimal
	}
	for i := range lines {
		label := lines[i].Label
		if label == "" {
			label = ft.Name
		}
		r.Lines = append(r.Lines, Line{
			Label:     label,
			Qty:       lines[i].Qty,
			UnitPrice: lines[i].UnitPrice,
			Total:     lines[i].LineTotal,
			Tax:       lines[i].Tax(),
		})
	}
	return r, nil
}

// Subject is the subject line of the receipt.
func (r *Receipt) Subject() string {
	subject := "Receipt " + r.InvoiceNumber
	if r.IsTest {
		subject = "[TEST] " + subject
	}
	return subject
}

// Markdown renders the receipt as a markdown document.
func (r *Receipt) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Subject())
	if r.From != "" {
		fmt.Fprintf(&b, "From: %s\n\n", r.From)
	}
	fmt.Fprintf(&b, "- **Financial type:** %s\n", r.FinancialType)
	fmt.Fprintf(&b, "- **Status:** %s\n", r.Status)
	if r.ReceiveDate != nil {
		fmt.Fprintf(&b, "- **Received:** %s\n", r.ReceiveDate.Format("January 2, 2006"))
	}
	if r.Source != "" {
		fmt.Fprintf(&b, "- **Source:** %s\n", r.Source)
	}
	if r.CreditNoteID != "" {
		fmt.Fprintf(&b, "- **Credit note:** %s\n", r.CreditNoteID)
	}
	b.WriteString("\n")

	header := []string{"Item", "Qty", "Unit price", "Total"}
	rows := [][]string{}
	for _, l := range r.Lines {
		rows = append(rows, []string{
			l.Label,
			l.Qty.String(),
			money.Format(l.UnitPrice, r.Currency),
			money.Format(l.Total, r.Currency),
		})
	}
	writeTable(&b, header, rows)
	b.WriteString("\n")

	if !r.Tax.IsZero() {
		fmt.Fprintf(&b, "%s: %s  \n", r.taxTerm(), money.Format(r.Tax, r.Currency))
	}
	fmt.Fprintf(&b, "**Total: %s**  \n", money.Format(r.Total, r.Currency))
	fmt.Fprintf(&b, "Paid: %s  \n", money.Format(r.Paid, r.Currency))
	if r.Balance.IsPositive() {
		fmt.Fprintf(&b, "Balance due: %s  \n", money.Format(r.Balance, r.Currency))
	}
	return b.String()
}

func (r *Receipt) taxTerm() string {
	if r.TaxTerm == "" {
		return "Tax"
	}
	return r.TaxTerm
}

// writeTable writes a markdown table padded to display width, numeric
// columns right aligned.
func writeTable(b *strings.Builder, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	writeRow := func(cells []string) {
		b.WriteString("|")
		for i, cell := range cells {
			pad := strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
			if i == 0 {
				b.WriteString(" " + cell + pad + " |")
			} else {
				b.WriteString(" " + pad + cell + " |")
			}
		}
		b.WriteString("\n")
	}

	writeRow(header)
	b.WriteString("|")
	for i, w := range widths {
		if i == 0 {
			b.WriteString(" " + strings.Repeat("-", w) + " |")
		} else {
			b.WriteString(" " + strings.Repeat("-", w-1) + ": |")
		}
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
}
