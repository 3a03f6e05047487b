package store

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/robinvdvleuten/contribute/model"
)

// CreateFinancialAccount inserts a ledger account.
func (s *Store) CreateFinancialAccount(ctx context.Context, a *model.FinancialAccount) error {
	return s.create(ctx, &a.ID, a)
}

// GetFinancialAccount loads a ledger account by id.
func (s *Store) GetFinancialAccount(ctx context.Context, id snowflake.ID) (*model.FinancialAccount, error) {
	return get[model.FinancialAccount](ctx, s, "financial account", id)
}

// FinancialAccounts lists the chart of accounts ordered by name.
func (s *Store) FinancialAccounts(ctx context.Context) ([]model.FinancialAccount, error) {
	var rows []model.FinancialAccount
	err := s.conn(ctx).Order("name").Find(&rows).Error
	return rows, err
}

// FinancialAccountByName returns the account with the given name, or nil.
func (s *Store) FinancialAccountByName(ctx context.Context, name string) (*model.FinancialAccount, error) {
	return first[model.FinancialAccount](s.conn(ctx).Where("name = ?", name))
}

// DefaultAccount returns the default account of a type, or nil when none is
// flagged as default.
func (s *Store) DefaultAccount(ctx context.Context, accountType model.AccountType) (*model.FinancialAccount, error) {
	return first[model.FinancialAccount](s.conn(ctx).
		Where("account_type = ? AND is_default = ?", accountType, true).
		Order("id"))
}

// CreateFinancialType inserts a financial type.
func (s *Store) CreateFinancialType(ctx context.Context, ft *model.FinancialType) error {
	return s.create(ctx, &ft.ID, ft)
}

// GetFinancialType loads a financial type by id.
func (s *Store) GetFinancialType(ctx context.Context, id snowflake.ID) (*model.FinancialType, error) {
	return get[model.FinancialType](ctx, s, "financial type", id)
}

// FinancialTypeByName returns the financial type with the given name, or nil.
func (s *Store) FinancialTypeByName(ctx context.Context, name string) (*model.FinancialType, error) {
	return first[model.FinancialType](s.conn(ctx).Where("name = ?", name))
}

// FinancialTypes lists every financial type ordered by name.
func (s *Store) FinancialTypes(ctx context.Context) ([]model.FinancialType, error) {
	var rows []model.FinancialType
	err := s.conn(ctx).Order("name").Find(&rows).Error
	return rows, err
}

// CreateEntityFinancialAccount inserts an account relationship.
func (s *Store) CreateEntityFinancialAccount(ctx context.Context, efa *model.EntityFinancialAccount) error {
	return s.create(ctx, &efa.ID, efa)
}

// EntityFinancialAccount returns the account mapped to an entity through a
// relationship, or nil when no mapping exists.
func (s *Store) EntityFinancialAccount(ctx context.Context, entityTable string, entityID snowflake.ID, rel model.Relationship) (*model.EntityFinancialAccount, error) {
	return first[model.EntityFinancialAccount](s.conn(ctx).
		Where("entity_table = ? AND entity_id = ? AND relationship = ?", entityTable, entityID, rel))
}

// EntityFinancialAccounts lists every relationship of an entity.
func (s *Store) EntityFinancialAccounts(ctx context.Context, entityTable string, entityID snowflake.ID) ([]model.EntityFinancialAccount, error) {
	var rows []model.EntityFinancialAccount
	err := s.conn(ctx).Where("entity_table = ? AND entity_id = ?", entityTable, entityID).Order("id").Find(&rows).Error
	return rows, err
}

// CreatePaymentInstrument inserts a payment instrument.
func (s *Store) CreatePaymentInstrument(ctx context.Context, pi *model.PaymentInstrument) error {
	return s.create(ctx, &pi.ID, pi)
}

// GetPaymentInstrument loads a payment instrument by id.
func (s *Store) GetPaymentInstrument(ctx context.Context, id snowflake.ID) (*model.PaymentInstrument, error) {
	return get[model.PaymentInstrument](ctx, s, "payment instrument", id)
}

// PaymentInstrumentByName returns the instrument with the given name, or nil.
func (s *Store) PaymentInstrumentByName(ctx context.Context, name string) (*model.PaymentInstrument, error) {
	return first[model.PaymentInstrument](s.conn(ctx).Where("name = ?", name))
}

// DefaultPaymentInstrument returns the instrument flagged as default, or nil.
func (s *Store) DefaultPaymentInstrument(ctx context.Context) (*model.PaymentInstrument, error) {
	return first[model.PaymentInstrument](s.conn(ctx).Where("is_default = ?", true).Order("id"))
}

// CreatePaymentProcessor inserts a payment processor.
func (s *Store) CreatePaymentProcessor(ctx context.Context, pp *model.PaymentProcessor) error {
	return s.create(ctx, &pp.ID, pp)
}

// GetPaymentProcessor loads a payment processor by id.
func (s *Store) GetPaymentProcessor(ctx context.Context, id snowflake.ID) (*model.PaymentProcessor, error) {
	return get[model.PaymentProcessor](ctx, s, "payment processor", id)
}
