package accounts

import (
	"fmt"

	"github.com/bwmarrin/snowflake"

	"github.com/robinvdvleuten/contribute/model"
)

// NotConfiguredError is returned when no account is mapped to an entity for
// a relationship the caller requires. It needs an administrator to fix the
// chart of accounts; retrying does not help.
type NotConfiguredError struct {
	EntityTable  string
	EntityID     snowflake.ID
	Relationship model.Relationship
}

func (e *NotConfiguredError) Error() string {
	if e.EntityTable == "" {
		return fmt.Sprintf("no default account configured for %q", e.Relationship)
	}
	return fmt.Sprintf("no account configured for %q on %s %s", e.Relationship, e.EntityTable, e.EntityID)
}

// Code returns the API error code.
func (e *NotConfiguredError) Code() string { return "configuration_error" }

// GetRelationship returns the relationship that could not be resolved.
func (e *NotConfiguredError) GetRelationship() model.Relationship { return e.Relationship }
