package ledger

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

func TestOp(t *testing.T) {
	op := NewOp()
	assert.NotEqual(t, uuid.Nil, op.ID)
	assert.Zero(t, len(op.TrxnIDs))

	op.Add(3)
	op.Add(5)
	op.Add(3)
	op.Add(0)
	assert.Equal(t, []snowflake.ID{3, 5}, op.TrxnIDs)

	other := NewOp()
	assert.NotEqual(t, op.ID, other.ID)
	assert.Zero(t, len(other.TrxnIDs))
}
