// Package output provides styling helpers for terminal output.
package output

import (
	"io"

	"github.com/muesli/termenv"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/money"
)

// Styles provides styled output helpers for the CLI.
type Styles struct {
	output *termenv.Output
}

// NewStyles creates a new Styles instance for the given writer.
func NewStyles(w io.Writer) *Styles {
	return &Styles{
		output: termenv.NewOutput(w),
	}
}

// Success returns a styled success string (green + bold).
func (s *Styles) Success(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("2")).
		Bold().
		String()
}

// Error returns a styled error string (red + bold).
func (s *Styles) Error(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("1")).
		Bold().
		String()
}

// ID returns a styled record id (cyan).
func (s *Styles) ID(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("6")).
		String()
}

// Account returns a styled account name (yellow).
func (s *Styles) Account(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("3")).
		String()
}

// Amount returns a styled amount/currency (magenta).
func (s *Styles) Amount(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("5")).
		String()
}

// Money formats and styles an amount in a currency. Negative amounts are red.
func (s *Styles) Money(d decimal.Decimal, currency string) string {
	text := money.Format(d, currency)
	if d.IsNegative() {
		return s.output.String(text).
			Foreground(s.output.Color("1")).
			String()
	}
	return s.Amount(text)
}

// Status returns a contribution status label colored by outcome: settled
// statuses green, open ones yellow and reversals or failures red.
func (s *Styles) Status(status model.ContributionStatus) string {
	var color string
	switch status {
	case model.StatusCompleted:
		color = "2"
	case model.StatusPending, model.StatusInProgress, model.StatusPartiallyPaid, model.StatusPendingRefund:
		color = "3"
	case model.StatusCancelled, model.StatusFailed, model.StatusRefunded, model.StatusChargeback:
		color = "1"
	default:
		return s.Dim(status.String())
	}
	return s.output.String(status.String()).
		Foreground(s.output.Color(color)).
		String()
}

// Keyword returns a styled keyword (bold).
func (s *Styles) Keyword(text string) string {
	return s.output.String(text).
		Bold().
		String()
}

// Dim returns dimmed text (for secondary information).
func (s *Styles) Dim(text string) string {
	return s.output.String(text).
		Faint().
		String()
}

// Warning returns a styled warning (yellow + bold).
func (s *Styles) Warning(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("3")).
		Bold().
		String()
}

// Output returns the underlying termenv Output for advanced usage.
func (s *Styles) Output() *termenv.Output {
	return s.output
}
