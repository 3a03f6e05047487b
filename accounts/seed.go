package accounts

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/store"
)

// SeedResult counts the rows created by Seed.
type SeedResult struct {
	Accounts      int
	Types         int
	Relationships int
	Instruments   int
}

// Seed creates the chart of accounts described by chart. Rows that already
// exist (by name) are kept as they are, so seeding twice is harmless.
func Seed(ctx context.Context, s *store.Store, chart config.ChartSettings) (*SeedResult, error) {
	result := &SeedResult{}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		byName := make(map[string]*model.FinancialAccount, len(chart.Accounts))

		for _, spec := range chart.Accounts {
			a, err := s.FinancialAccountByName(ctx, spec.Name)
			if err != nil {
				return err
			}
			if a == nil {
				a, err = newAccount(spec)
				if err != nil {
					return err
				}
				if err := s.CreateFinancialAccount(ctx, a); err != nil {
					return fmt.Errorf("create account %q: %w", spec.Name, err)
				}
				result.Accounts++
			}
			byName[spec.Name] = a
		}

		account := func(name string) (*model.FinancialAccount, error) {
			if a, ok := byName[name]; ok {
				return a, nil
			}
			a, err := s.FinancialAccountByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if a == nil {
				return nil, fmt.Errorf("unknown account %q", name)
			}
			byName[name] = a
			return a, nil
		}

		for _, spec := range chart.FinancialTypes {
			ft, err := s.FinancialTypeByName(ctx, spec.Name)
			if err != nil {
				return err
			}
			if ft == nil {
				ft = &model.FinancialType{Name: spec.Name, IsDeductible: spec.IsDeductible, IsActive: true}
				if err := s.CreateFinancialType(ctx, ft); err != nil {
					return fmt.Errorf("create financial type %q: %w", spec.Name, err)
				}
				result.Types++
			}

			for _, rel := range spec.Accounts {
				a, err := account(rel.Account)
				if err != nil {
					return fmt.Errorf("financial type %q: %w", spec.Name, err)
				}
				created, err := relate(ctx, s, model.TableFinancialType, ft.ID, model.Relationship(rel.Relationship), a)
				if err != nil {
					return err
				}
				if created {
					result.Relationships++
				}
			}
		}

		for _, spec := range chart.PaymentInstruments {
			pi, err := s.PaymentInstrumentByName(ctx, spec.Name)
			if err != nil {
				return err
			}
			if pi == nil {
				pi = &model.PaymentInstrument{Name: spec.Name, IsDefault: spec.IsDefault}
				if err := s.CreatePaymentInstrument(ctx, pi); err != nil {
					return fmt.Errorf("create payment instrument %q: %w", spec.Name, err)
				}
				result.Instruments++
			}
			if spec.Account == "" {
				continue
			}
			a, err := account(spec.Account)
			if err != nil {
				return fmt.Errorf("payment instrument %q: %w", spec.Name, err)
			}
			created, err := relate(ctx, s, model.TablePaymentInstrument, pi.ID, model.RelAsset, a)
			if err != nil {
				return err
			}
			if created {
				result.Relationships++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func newAccount(spec config.AccountSpec) (*model.FinancialAccount, error) {
	rate := decimal.Zero
	if spec.TaxRate != "" {
		var err error
		rate, err = decimal.NewFromString(spec.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("account %q: invalid tax rate %q: %w", spec.Name, spec.TaxRate, err)
		}
	}
	return &model.FinancialAccount{
		Name:        spec.Name,
		AccountCode: spec.Code,
		AccountType: model.AccountType(spec.Type),
		IsTax:       spec.IsTax,
		TaxRate:     rate,
		IsDefault:   spec.IsDefault,
		IsActive:    true,
	}, nil
}

func relate(ctx context.Context, s *store.Store, table string, id snowflake.ID, rel model.Relationship, a *model.FinancialAccount) (bool, error) {
	existing, err := s.EntityFinancialAccount(ctx, table, id, rel)
	if err != nil || existing != nil {
		return false, err
	}
	err = s.CreateEntityFinancialAccount(ctx, &model.EntityFinancialAccount{
		EntityTable:        table,
		EntityID:           id,
		Relationship:       rel,
		FinancialAccountID: a.ID,
	})
	return err == nil, err
}
