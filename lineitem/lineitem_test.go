package lineitem_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/lineitem"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/params"
	"github.com/robinvdvleuten/contribute/store/storetest"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseSet(t *testing.T) {
	bag := params.Bag{
		"2": map[string]any{
			"5": map[string]any{"label": "T-shirt", "qty": "2", "unit_price": "15.00", "financial_type_id": "9"},
		},
		"1": map[string]any{
			"3": map[string]any{"label": "Gold", "line_total": "$1,000.00", "membership_type_id": "4"},
			"1": map[string]any{"label": "Silver", "line_total": 50.0, "tax_amount": "5"},
		},
	}

	set, err := lineitem.ParseSet(bag, ",", ".")
	assert.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	lines := set.Flatten()
	labels := []string{}
	for _, l := range lines {
		labels = append(labels, l.Label)
	}
	assert.Equal(t, []string{"Silver", "Gold", "T-shirt"}, labels)

	assert.Equal(t, "1000", lines[1].LineTotal.String())
	assert.Equal(t, "1000", lines[1].UnitPrice.String())
	assert.Equal(t, snowflake.ID(4), lines[1].MembershipTypeID)
	assert.Equal(t, "30", lines[2].LineTotal.String())
	assert.Equal(t, snowflake.ID(9), lines[2].FinancialTypeID)
	assert.True(t, lines[0].TaxAmount.Valid)
	assert.Equal(t, "55", lineitem.Total(lines[:1]).String())

	t.Run("MissingAmount", func(t *testing.T) {
		_, err := lineitem.ParseSet(params.Bag{"1": map[string]any{"1": map[string]any{"label": "x"}}}, ",", ".")
		var invalid *params.InvalidError
		assert.True(t, errors.As(err, &invalid))
	})

	t.Run("BadKey", func(t *testing.T) {
		_, err := lineitem.ParseSet(params.Bag{"abc": map[string]any{}}, ",", ".")
		assert.Error(t, err)
	})
}

func TestSetAdd(t *testing.T) {
	var set lineitem.Set
	set.Add(model.LineItem{PriceFieldID: 2, PriceFieldValueID: 1, Label: "Gold"})
	set.Add(model.LineItem{Label: "First"})
	set.Add(model.LineItem{Label: "Second"})
	set.Add(model.LineItem{PriceFieldID: 2, PriceFieldValueID: 1, Label: "Silver"})

	assert.Equal(t, 3, set.Len())
	labels := []string{}
	for _, l := range set.Flatten() {
		labels = append(labels, l.Label)
	}
	assert.Equal(t, []string{"First", "Second", "Silver"}, labels)
}

func TestCheck(t *testing.T) {
	lines := []model.LineItem{
		{LineTotal: d("100"), TaxAmount: decimal.NewNullDecimal(d("10"))},
		{LineTotal: d("25.50")},
	}

	tests := []struct {
		name    string
		total   *decimal.Decimal
		want    string
		wantErr bool
	}{
		{"Matches", ptr(d("135.50")), "135.5", false},
		{"WithinRounding", ptr(d("135.501")), "135.501", false},
		{"Missing", nil, "135.5", false},
		{"Mismatch", ptr(d("140")), "140", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lineitem.Check(lines, tt.total, "USD")
			assert.Equal(t, tt.want, got.String())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var mismatch *lineitem.MismatchError
			assert.True(t, errors.As(err, &mismatch))
			assert.Equal(t, "validation_error", mismatch.Code())
			assert.Equal(t, "line item total $135.50 doesn't match with total amount $140.00", err.Error())
		})
	}
}

func TestDefaultAndSync(t *testing.T) {
	c := &model.Contribution{
		ID:              10,
		FinancialTypeID: 3,
		TotalAmount:     d("110"),
		TaxAmount:       decimal.NewNullDecimal(d("10")),
	}

	line := lineitem.Default(c)
	assert.Equal(t, model.TableContribution, line.EntityTable)
	assert.Equal(t, snowflake.ID(10), line.EntityID)
	assert.Equal(t, "100", line.LineTotal.String())
	assert.Equal(t, "110", line.Total().String())

	lines := []model.LineItem{line}
	assert.False(t, lineitem.Sync(lines, c))

	c.TotalAmount = d("220")
	c.TaxAmount = decimal.NewNullDecimal(d("20"))
	c.FinancialTypeID = 4
	assert.True(t, lineitem.Sync(lines, c))
	assert.Equal(t, "200", lines[0].LineTotal.String())
	assert.Equal(t, "200", lines[0].UnitPrice.String())
	assert.Equal(t, snowflake.ID(4), lines[0].FinancialTypeID)

	two := []model.LineItem{line, line}
	assert.False(t, lineitem.Sync(two, c))
}

func TestFinancialTypes(t *testing.T) {
	lines := []model.LineItem{{FinancialTypeID: 3}, {FinancialTypeID: 1}, {FinancialTypeID: 3}}
	assert.Equal(t, []snowflake.ID{1, 3}, lineitem.FinancialTypes(lines))
}

type fixedRates map[snowflake.ID]decimal.Decimal

func (r fixedRates) TaxRate(_ context.Context, id snowflake.ID) (decimal.Decimal, bool, error) {
	rate, ok := r[id]
	return rate, ok, nil
}

func TestApplyTax(t *testing.T) {
	lines := []model.LineItem{
		{FinancialTypeID: 1, LineTotal: d("100")},
		{FinancialTypeID: 2, LineTotal: d("33.33")},
		{FinancialTypeID: 1, LineTotal: d("50"), TaxAmount: decimal.NewNullDecimal(d("1"))},
	}

	tax, err := lineitem.ApplyTax(context.Background(), fixedRates{1: d("10")}, lines)
	assert.NoError(t, err)
	assert.Equal(t, "11", tax.String())
	assert.Equal(t, "10", lines[0].Tax().String())
	assert.False(t, lines[1].TaxAmount.Valid)
	assert.Equal(t, "1", lines[2].Tax().String())
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	c := &model.Contribution{ContactID: 1, FinancialTypeID: 1, TotalAmount: d("60"), Currency: "USD", Status: model.StatusCompleted}
	assert.NoError(t, s.CreateContribution(ctx, c))

	lines := []model.LineItem{
		lineitem.Default(c),
		{FinancialTypeID: 1, Label: "Extra", Qty: d("1"), UnitPrice: d("0"), LineTotal: d("0")},
	}
	assert.NoError(t, lineitem.Save(ctx, s, c.ID, lines))
	assert.NotZero(t, lines[0].ID)
	assert.Equal(t, c.ID, lines[1].EntityID)

	lines[0].Label = "Renamed"
	assert.NoError(t, lineitem.Save(ctx, s, c.ID, lines))

	stored, err := lineitem.ForContribution(ctx, s, c.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(stored))
	assert.Equal(t, "Renamed", stored[0].Label)
	assert.Equal(t, "60", lineitem.Total(stored).String())
}

func ptr[T any](v T) *T { return &v }
