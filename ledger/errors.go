package ledger

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Error types for ledger writes

// MissingFieldError is returned when a posting lacks a required field.
type MissingFieldError struct {
	Entity string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s is required", e.Entity, e.Field)
}

func (e *MissingFieldError) Code() string { return "validation_error" }

func (e *MissingFieldError) GetField() string {
	return e.Field
}

// InvalidStatusError is returned when a transaction carries a status that is
// not a contribution status.
type InvalidStatusError struct {
	Status int
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("financial trxn: invalid status %d", e.Status)
}

func (e *InvalidStatusError) Code() string { return "validation_error" }

// ZeroTotalError is returned when amounts are spread proportionally over a
// contribution whose total is zero.
type ZeroTotalError struct {
	ContributionID snowflake.ID
}

func (e *ZeroTotalError) Error() string {
	return fmt.Sprintf("contribution %s has a zero total, payments cannot be allocated", e.ContributionID)
}

func (e *ZeroTotalError) Code() string { return "validation_error" }

func (e *ZeroTotalError) GetContributionID() snowflake.ID {
	return e.ContributionID
}

// ValidationErrors wraps multiple validation errors
type ValidationErrors struct {
	Errors []error
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors occurred", len(e.Errors))
}

// Code returns the API error code shared by every wrapped error.
func (e *ValidationErrors) Code() string { return "validation_error" }

// Unwrap returns the underlying errors for error unwrapping
func (e *ValidationErrors) Unwrap() []error {
	return e.Errors
}
