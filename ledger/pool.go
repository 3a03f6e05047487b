package ledger

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Pools for commonly allocated objects to reduce GC pressure

var (
	// accountTotalsPool provides pooled maps for per-account sums
	accountTotalsPool = sync.Pool{
		New: func() any {
			return make(map[snowflake.ID]decimal.Decimal, 4) // a contribution touches 2-4 accounts
		},
	}
)

// getAccountTotals retrieves a pooled totals map
func getAccountTotals() map[snowflake.ID]decimal.Decimal {
	return accountTotalsPool.Get().(map[snowflake.ID]decimal.Decimal)
}

// putAccountTotals clears and returns a totals map to the pool
func putAccountTotals(m map[snowflake.ID]decimal.Decimal) {
	clear(m)
	accountTotalsPool.Put(m)
}
