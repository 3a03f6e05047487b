package ledger

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/model"
)

func TestMultiplier(t *testing.T) {
	tests := []struct {
		context Context
		target  model.ContributionStatus
		want    int64
	}{
		{ContextNone, model.StatusCompleted, 1},
		{ContextChangedStatus, model.StatusCompleted, 1},
		{ContextChangedStatus, model.StatusCancelled, -1},
		{ContextChangedStatus, model.StatusRefunded, -1},
		{ContextChangedStatus, model.StatusChargeback, -1},
		{ContextChangedStatus, model.StatusFailed, 1},
		{ContextChangeFinancialType, model.StatusCompleted, -1},
	}

	for _, tt := range tests {
		t.Run(tt.context.String()+"/"+tt.target.String(), func(t *testing.T) {
			assert.True(t, decimal.NewFromInt(tt.want).Equal(Multiplier(tt.context, tt.target)))
		})
	}
}

func TestItemAmount(t *testing.T) {
	line := &model.LineItem{LineTotal: decimal.RequireFromString("100"), TaxAmount: decimal.NewNullDecimal(decimal.RequireFromString("10"))}
	prev := &model.LineItem{LineTotal: decimal.RequireFromString("80")}

	tests := []struct {
		name    string
		context Context
		params  ItemParams
		want    string
	}{
		{"None", ContextNone, ItemParams{Line: line}, "100"},
		{"ChangedAmount", ContextChangedAmount, ItemParams{Line: line, PrevLine: prev}, "20"},
		{"ChangeFinancialType", ContextChangeFinancialType, ItemParams{Line: line}, "-100"},
		{"ChangedStatusCompleted", ContextChangedStatus, ItemParams{Line: line, Target: model.StatusCompleted}, "100"},
		{"ChangedStatusCancelled", ContextChangedStatus, ItemParams{Line: line, Target: model.StatusCancelled}, "-100"},
		{"ChangedStatusRefundWithTax", ContextChangedStatus, ItemParams{Line: line, Target: model.StatusRefunded, IncludeTax: true}, "-110"},
		{"Override", ContextChangedStatus, ItemParams{Line: line, Amount: decimal.NewNullDecimal(decimal.RequireFromString("-10"))}, "-10"},
		{"NoLine", ContextNone, ItemParams{}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ItemAmount(tt.context, &tt.params).String())
		})
	}
}
