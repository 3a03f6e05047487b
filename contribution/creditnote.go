package contribution

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"

	"github.com/robinvdvleuten/contribute/config"
)

// CreditNoteID returns the next unused credit note id: the configured prefix
// followed by the number of existing credit notes plus one.
func (e *Engine) CreditNoteID(ctx context.Context) (string, error) {
	prefix := config.FromContext(ctx).CreditNotesPrefix
	n, err := e.store.CountCreditNotes(ctx)
	if err != nil {
		return "", err
	}
	for {
		n++
		id := prefix + strconv.FormatInt(n, 10)
		exists, err := e.store.CreditNoteExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
}

// InvoiceNumber returns the invoice number of a contribution.
func InvoiceNumber(prefix string, id snowflake.ID) string {
	return prefix + id.String()
}
