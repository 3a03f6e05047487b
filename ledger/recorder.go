// Package ledger is the append-only write path of the contribution ledger.
//
// A Recorder creates financial transactions (money moving between two
// accounts), financial items (the per line item decomposition of those
// transactions) and the entity links that join them to contributions and
// items. It never sends notifications and never decides what to post; the
// contribution state machine does that.
//
// Every financial item amount follows the same sign rule:
//
//	ContextNone                 line_total
//	ContextChangedAmount        line_total - previous line_total
//	ContextChangeFinancialType  -line_total
//	ContextChangedStatus        multiplier * (line_total [+ tax_amount])
//
// where the multiplier is -1 when the target status is Cancelled, Chargeback
// or Refunded, or the context is ContextChangeFinancialType, and +1
// otherwise.
package ledger

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/accounts"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/store"
	"github.com/robinvdvleuten/contribute/telemetry"
)

// Recorder writes ledger rows.
type Recorder struct {
	store    *store.Store
	accounts *accounts.Resolver
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithClock overrides the clock used for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New returns a Recorder.
func New(s *store.Store, resolver *accounts.Resolver, opts ...Option) *Recorder {
	r := &Recorder{
		store:    s,
		accounts: resolver,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TrxnParams describes a transaction to post.
type TrxnParams struct {
	// ContributionID links the transaction to a contribution when set.
	ContributionID snowflake.ID

	FromAccountID snowflake.ID
	ToAccountID   snowflake.ID
	TrxnDate      time.Time

	TotalAmount decimal.NullDecimal
	FeeAmount   decimal.Decimal
	// NetAmount defaults to TotalAmount - FeeAmount.
	NetAmount decimal.NullDecimal
	Currency  string

	IsFee     bool
	IsPayment bool
	Status    model.ContributionStatus

	TrxnID              string
	TrxnResultCode      string
	PaymentProcessorID  snowflake.ID
	PaymentInstrumentID snowflake.ID
	CheckNumber         string
	CardTypeID          int
	PanTruncation       string
}

func (p *TrxnParams) validate() error {
	var errs []error
	if p.ToAccountID == 0 {
		errs = append(errs, &MissingFieldError{Entity: "financial trxn", Field: "to_financial_account_id"})
	}
	if !p.TotalAmount.Valid {
		errs = append(errs, &MissingFieldError{Entity: "financial trxn", Field: "total_amount"})
	}
	if !p.Status.Valid() {
		errs = append(errs, &InvalidStatusError{Status: int(p.Status)})
	}
	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}

// CreateTransaction inserts one transaction and, when p names a contribution,
// links it to the contribution for its full total.
func (r *Recorder) CreateTransaction(ctx context.Context, p TrxnParams) (*model.FinancialTrxn, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	net := p.TotalAmount.Decimal.Sub(p.FeeAmount)
	if p.NetAmount.Valid {
		net = p.NetAmount.Decimal
	}
	date := p.TrxnDate
	if date.IsZero() {
		date = r.now()
	}

	trxn := &model.FinancialTrxn{
		FromFinancialAccountID: p.FromAccountID,
		ToFinancialAccountID:   p.ToAccountID,
		TrxnDate:               date,
		TotalAmount:            p.TotalAmount.Decimal,
		FeeAmount:              p.FeeAmount,
		NetAmount:              net,
		Currency:               p.Currency,
		IsFee:                  p.IsFee,
		IsPayment:              p.IsPayment,
		TrxnID:                 p.TrxnID,
		TrxnResultCode:         p.TrxnResultCode,
		Status:                 p.Status,
		PaymentProcessorID:     p.PaymentProcessorID,
		PaymentInstrumentID:    p.PaymentInstrumentID,
		CheckNumber:            p.CheckNumber,
		CardTypeID:             p.CardTypeID,
		PanTruncation:          p.PanTruncation,
		CreatedAt:              r.now(),
	}

	err := r.store.Transaction(ctx, func(ctx context.Context) error {
		if err := r.store.CreateFinancialTrxn(ctx, trxn); err != nil {
			return err
		}
		if p.ContributionID == 0 {
			return nil
		}
		return r.store.CreateEntityFinancialTrxn(ctx, &model.EntityFinancialTrxn{
			EntityTable:     model.TableContribution,
			EntityID:        p.ContributionID,
			FinancialTrxnID: trxn.ID,
			Amount:          trxn.TotalAmount,
		})
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("financial trxn created",
		zap.Stringer("id", trxn.ID),
		zap.Stringer("contribution_id", p.ContributionID),
		zap.Stringer("to_account", trxn.ToFinancialAccountID),
		zap.String("total", trxn.TotalAmount.StringFixed(2)),
		zap.Stringer("status", trxn.Status))
	return trxn, nil
}

// CreateEntityLink joins a transaction to a financial item with the share of
// the transaction allocated to the item.
func (r *Recorder) CreateEntityLink(ctx context.Context, trxnID, itemID snowflake.ID, amount decimal.Decimal) (*model.EntityFinancialTrxn, error) {
	link := &model.EntityFinancialTrxn{
		EntityTable:     model.TableFinancialItem,
		EntityID:        itemID,
		FinancialTrxnID: trxnID,
		Amount:          amount,
	}
	if err := r.store.CreateEntityFinancialTrxn(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// ReverseTransaction posts the negation of trxn under a new status. The
// reversal keeps the accounts, instrument and card details of the original.
func (r *Recorder) ReverseTransaction(ctx context.Context, trxn *model.FinancialTrxn, contributionID snowflake.ID, status model.ContributionStatus, date time.Time) (*model.FinancialTrxn, error) {
	timer := telemetry.StartTimer(ctx, "ledger.reverse")
	defer timer.End()

	return r.CreateTransaction(ctx, TrxnParams{
		ContributionID:      contributionID,
		FromAccountID:       trxn.FromFinancialAccountID,
		ToAccountID:         trxn.ToFinancialAccountID,
		TrxnDate:            date,
		TotalAmount:         decimal.NewNullDecimal(trxn.TotalAmount.Neg()),
		FeeAmount:           trxn.FeeAmount.Neg(),
		NetAmount:           decimal.NewNullDecimal(trxn.NetAmount.Neg()),
		Currency:            trxn.Currency,
		IsPayment:           trxn.IsPayment,
		Status:              status,
		TrxnID:              trxn.TrxnID,
		PaymentProcessorID:  trxn.PaymentProcessorID,
		PaymentInstrumentID: trxn.PaymentInstrumentID,
		CheckNumber:         trxn.CheckNumber,
		CardTypeID:          trxn.CardTypeID,
		PanTruncation:       trxn.PanTruncation,
	})
}
