// Package accountstest seeds a chart of accounts for tests.
package accountstest

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/accounts"
	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/store"
)

// Chart gives tests the ids of the seeded rows by name.
type Chart struct {
	Accounts    map[string]snowflake.ID
	Types       map[string]snowflake.ID
	Instruments map[string]snowflake.ID

	store *store.Store
}

// Seed creates the default chart in s.
func Seed(t testing.TB, s *store.Store) *Chart {
	t.Helper()
	ctx := context.Background()

	_, err := accounts.Seed(ctx, s, config.DefaultChart())
	assert.NoError(t, err)

	c := &Chart{
		Accounts:    map[string]snowflake.ID{},
		Types:       map[string]snowflake.ID{},
		Instruments: map[string]snowflake.ID{},
		store:       s,
	}

	all, err := s.FinancialAccounts(ctx)
	assert.NoError(t, err)
	for _, a := range all {
		c.Accounts[a.Name] = a.ID
	}
	types, err := s.FinancialTypes(ctx)
	assert.NoError(t, err)
	for _, ft := range types {
		c.Types[ft.Name] = ft.ID
	}
	for _, spec := range config.DefaultChart().PaymentInstruments {
		pi, err := s.PaymentInstrumentByName(ctx, spec.Name)
		assert.NoError(t, err)
		c.Instruments[spec.Name] = pi.ID
	}
	return c
}

// EnableTax maps a new tax account with the given rate (in percent) to a
// financial type and returns the account id.
func (c *Chart) EnableTax(t testing.TB, financialType, rate string) snowflake.ID {
	t.Helper()
	ctx := context.Background()

	a := &model.FinancialAccount{
		Name:        "Sales Tax " + financialType,
		AccountType: model.AccountLiability,
		IsTax:       true,
		TaxRate:     decimal.RequireFromString(rate),
		IsActive:    true,
	}
	assert.NoError(t, c.store.CreateFinancialAccount(ctx, a))
	assert.NoError(t, c.store.CreateEntityFinancialAccount(ctx, &model.EntityFinancialAccount{
		EntityTable:        model.TableFinancialType,
		EntityID:           c.Types[financialType],
		Relationship:       model.RelSalesTax,
		FinancialAccountID: a.ID,
	}))
	c.Accounts[a.Name] = a.ID
	return a.ID
}

// Unmapped adds a financial type without any account relationships.
func (c *Chart) Unmapped(t testing.TB, name string) snowflake.ID {
	t.Helper()
	ft := &model.FinancialType{Name: name, IsActive: true}
	assert.NoError(t, c.store.CreateFinancialType(context.Background(), ft))
	c.Types[name] = ft.ID
	return ft.ID
}
