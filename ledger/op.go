package ledger

import (
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// Op collects the transactions created by one top-level contribution
// mutation so that the financial items posted later in the same mutation can
// be linked to every one of them. An Op must not outlive the mutation it was
// created for.
type Op struct {
	ID      uuid.UUID
	TrxnIDs []snowflake.ID
}

// NewOp starts a new operation.
func NewOp() *Op {
	return &Op{ID: uuid.New()}
}

// Add records a transaction id. Adding the same id twice is a no-op.
func (op *Op) Add(id snowflake.ID) {
	if id == 0 || slices.Contains(op.TrxnIDs, id) {
		return
	}
	op.TrxnIDs = append(op.TrxnIDs, id)
}
