// Package accounts resolves the ledger accounts a posting debits or credits.
//
// Accounts are mapped to financial types, payment instruments and payment
// processors through named relationships ("Income Account is", "Accounts
// Receivable Account is", ...). The mapping is read-mostly configuration, so
// the Resolver caches it for a configurable TTL and is safe to share across
// requests.
package accounts

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/store"
)

// Key identifies one relationship of one entity.
type Key struct {
	EntityTable  string
	EntityID     snowflake.ID
	Relationship model.Relationship
}

// Resolver looks up account mappings.
type Resolver struct {
	store    *store.Store
	mappings Cache[Key, snowflake.ID]
	accounts Cache[snowflake.ID, model.FinancialAccount]
	ttl      time.Duration
	logger   *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL sets how long lookups are cached.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithoutCache disables caching.
func WithoutCache() Option {
	return func(r *Resolver) {
		r.mappings = NoopCache[Key, snowflake.ID]{}
		r.accounts = NoopCache[snowflake.ID, model.FinancialAccount]{}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver returns a Resolver reading from s.
func NewResolver(s *store.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:    s,
		mappings: NewTTLCache[Key, snowflake.ID](),
		accounts: NewTTLCache[snowflake.ID, model.FinancialAccount](),
		ttl:      config.Default().AccountCacheTTL,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invalidate drops every cached lookup, e.g. after the chart was reseeded.
func (r *Resolver) Invalidate() {
	r.mappings.Purge()
	r.accounts.Purge()
}

// Lookup returns the account mapped to an entity through rel, or 0 when
// there is none. Misses are not cached.
func (r *Resolver) Lookup(ctx context.Context, entityTable string, entityID snowflake.ID, rel model.Relationship) (snowflake.ID, error) {
	key := Key{EntityTable: entityTable, EntityID: entityID, Relationship: rel}
	if id, ok := r.mappings.Get(key); ok {
		return id, nil
	}

	efa, err := r.store.EntityFinancialAccount(ctx, entityTable, entityID, rel)
	if err != nil {
		return 0, err
	}
	if efa == nil {
		return 0, nil
	}

	r.mappings.Set(key, efa.FinancialAccountID, r.ttl)
	return efa.FinancialAccountID, nil
}

// Resolve returns the account mapped to a financial type through rel and
// fails with *NotConfiguredError when there is none.
func (r *Resolver) Resolve(ctx context.Context, financialTypeID snowflake.ID, rel model.Relationship) (snowflake.ID, error) {
	id, err := r.Lookup(ctx, model.TableFinancialType, financialTypeID, rel)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		r.logger.Warn("account not configured",
			zap.Stringer("financial_type_id", financialTypeID),
			zap.String("relationship", string(rel)))
		return 0, &NotConfiguredError{EntityTable: model.TableFinancialType, EntityID: financialTypeID, Relationship: rel}
	}
	return id, nil
}

// Account loads a financial account through the cache.
func (r *Resolver) Account(ctx context.Context, id snowflake.ID) (*model.FinancialAccount, error) {
	if a, ok := r.accounts.Get(id); ok {
		return &a, nil
	}
	a, err := r.store.GetFinancialAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	r.accounts.Set(id, *a, r.ttl)
	return a, nil
}

// IncomeAccount returns the account revenue of a financial type is posted
// to. With deferred revenue enabled and a recognition date set, revenue is
// deferred.
func (r *Resolver) IncomeAccount(ctx context.Context, financialTypeID snowflake.ID, revenueRecognitionDate *time.Time) (snowflake.ID, error) {
	if config.FromContext(ctx).DeferredRevenueEnabled && revenueRecognitionDate != nil {
		return r.Resolve(ctx, financialTypeID, model.RelDeferredRevenue)
	}
	return r.Resolve(ctx, financialTypeID, model.RelIncome)
}

// ReceivableAccount returns the Accounts Receivable account of a financial type.
func (r *Resolver) ReceivableAccount(ctx context.Context, financialTypeID snowflake.ID) (snowflake.ID, error) {
	return r.Resolve(ctx, financialTypeID, model.RelAccountsReceivable)
}

// ExpenseAccount returns the account fees are posted to.
func (r *Resolver) ExpenseAccount(ctx context.Context, financialTypeID snowflake.ID) (snowflake.ID, error) {
	return r.Resolve(ctx, financialTypeID, model.RelExpense)
}

// StatusChangeAccount returns the account the items of a status change are
// posted against. Refunds go to the contra revenue account and chargebacks
// to the chargeback account; both must be configured. Every other status
// keeps fallback, the account of the original item.
func (r *Resolver) StatusChangeAccount(ctx context.Context, financialTypeID snowflake.ID, status model.ContributionStatus, fallback snowflake.ID) (snowflake.ID, error) {
	switch status {
	case model.StatusRefunded:
		return r.Resolve(ctx, financialTypeID, model.RelContraRevenue)
	case model.StatusChargeback:
		return r.Resolve(ctx, financialTypeID, model.RelChargeback)
	}
	return fallback, nil
}

// SalesTaxAccount returns the tax account of a financial type, or nil when
// the type is not taxable.
func (r *Resolver) SalesTaxAccount(ctx context.Context, financialTypeID snowflake.ID) (*model.FinancialAccount, error) {
	id, err := r.Lookup(ctx, model.TableFinancialType, financialTypeID, model.RelSalesTax)
	if err != nil || id == 0 {
		return nil, err
	}
	a, err := r.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsTax {
		return nil, nil
	}
	return a, nil
}

// TaxRate returns the sales tax rate of a financial type in percent. The
// boolean is false for untaxed types.
func (r *Resolver) TaxRate(ctx context.Context, financialTypeID snowflake.ID) (decimal.Decimal, bool, error) {
	a, err := r.SalesTaxAccount(ctx, financialTypeID)
	if err != nil || a == nil {
		return decimal.Zero, false, err
	}
	return a.TaxRate, true, nil
}

// IsSalesTaxAccount reports whether id is a tax account.
func (r *Resolver) IsSalesTaxAccount(ctx context.Context, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	a, err := r.Account(ctx, id)
	if err != nil {
		return false, err
	}
	return a.IsTax, nil
}

// InstrumentAccount returns the asset account of a payment instrument, or 0.
func (r *Resolver) InstrumentAccount(ctx context.Context, instrumentID snowflake.ID) (snowflake.ID, error) {
	if instrumentID == 0 {
		return 0, nil
	}
	return r.Lookup(ctx, model.TablePaymentInstrument, instrumentID, model.RelAsset)
}

// ProcessorAccount returns the asset account of a payment processor, or 0.
func (r *Resolver) ProcessorAccount(ctx context.Context, processorID snowflake.ID) (snowflake.ID, error) {
	if processorID == 0 {
		return 0, nil
	}
	return r.Lookup(ctx, model.TablePaymentProcessor, processorID, model.RelAsset)
}

// DefaultAssetAccount returns the default Asset account.
func (r *Resolver) DefaultAssetAccount(ctx context.Context) (snowflake.ID, error) {
	a, err := r.store.DefaultAccount(ctx, model.AccountAsset)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, &NotConfiguredError{Relationship: model.RelAsset}
	}
	return a.ID, nil
}

// PaymentAccount returns the account a payment is deposited to: the
// processor's account, else the instrument's, else the default Asset account.
func (r *Resolver) PaymentAccount(ctx context.Context, processorID, instrumentID snowflake.ID) (snowflake.ID, error) {
	id, err := r.ProcessorAccount(ctx, processorID)
	if err != nil || id != 0 {
		return id, err
	}
	id, err = r.InstrumentAccount(ctx, instrumentID)
	if err != nil || id != 0 {
		return id, err
	}
	return r.DefaultAssetAccount(ctx)
}
