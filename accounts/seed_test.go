package accounts_test

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/contribute/accounts"
	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/store/storetest"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	chart := config.DefaultChart()

	result, err := accounts.Seed(ctx, s, chart)
	assert.NoError(t, err)
	assert.Equal(t, len(chart.Accounts), result.Accounts)
	assert.Equal(t, len(chart.FinancialTypes), result.Types)
	assert.Equal(t, len(chart.PaymentInstruments), result.Instruments)
	assert.Equal(t, 3*7+4, result.Relationships)

	t.Run("Idempotent", func(t *testing.T) {
		again, err := accounts.Seed(ctx, s, chart)
		assert.NoError(t, err)
		assert.Equal(t, &accounts.SeedResult{}, again)
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		bad := config.ChartSettings{
			FinancialTypes: []config.FinancialTypeSpec{{
				Name:     "Broken",
				Accounts: []config.RelationshipSpec{{Relationship: "Income Account is", Account: "Nope"}},
			}},
		}
		_, err := accounts.Seed(ctx, s, bad)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `unknown account "Nope"`)

		ft, err := s.FinancialTypeByName(ctx, "Broken")
		assert.NoError(t, err)
		assert.Zero(t, ft)
	})

	t.Run("InvalidTaxRate", func(t *testing.T) {
		bad := config.ChartSettings{
			Accounts: []config.AccountSpec{{Name: "VAT", Type: "Liability", IsTax: true, TaxRate: "ten"}},
		}
		_, err := accounts.Seed(ctx, s, bad)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid tax rate")
	})
}
