package contribution

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"

	"github.com/robinvdvleuten/contribute/model"
)

// DuplicateError is returned when other contributions already carry the
// trxn_id or invoice_id of the one being saved.
type DuplicateError struct {
	TrxnID    string
	InvoiceID string
	IDs       []snowflake.ID
}

func (e *DuplicateError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return "Duplicate error - existing contribution record(s) have a matching Transaction ID or Invoice ID. " +
		"Contribution record ID(s) are: " + strings.Join(ids, ", ")
}

// Code returns the API error code.
func (e *DuplicateError) Code() string { return "duplicate_error" }

func (e *DuplicateError) GetIDs() []snowflake.ID {
	return e.IDs
}

// StatusTransitionError is returned for a status change the transition
// table does not allow.
type StatusTransitionError struct {
	From model.ContributionStatus
	To   model.ContributionStatus
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("Cannot change contribution status from %s to %s.", e.From, e.To)
}

func (e *StatusTransitionError) Code() string { return "validation_error" }

// GetAllowed lists the statuses the contribution may move to instead.
func (e *StatusTransitionError) GetAllowed() []string {
	next := Transitions(e.From)
	out := make([]string, len(next))
	for i, s := range next {
		out[i] = s.String()
	}
	return out
}

// FinancialTypeChangeError is returned when the financial type of a
// contribution whose line items span several types is edited.
type FinancialTypeChangeError struct {
	ContributionID snowflake.ID
}

func (e *FinancialTypeChangeError) Error() string {
	return "One or more line items have a different financial type than the contribution. " +
		"Editing the financial type is not yet supported in this situation."
}

func (e *FinancialTypeChangeError) Code() string { return "validation_error" }

func (e *FinancialTypeChangeError) GetContributionID() snowflake.ID {
	return e.ContributionID
}

// MissingFieldError is returned when a required field is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("contribution: %s is required", e.Field)
}

func (e *MissingFieldError) Code() string { return "validation_error" }

func (e *MissingFieldError) GetField() string {
	return e.Field
}
