// Package contribution is the state machine of a contribution. Save creates
// or edits a contribution, diffs it against the stored version and posts the
// difference to the ledger; RecordPayment, FailPayment and Delete cover the
// rest of its life cycle.
//
// Every mutation runs in one store transaction: the contribution row, its
// line items, every ledger posting and the component cascade either all
// commit or all roll back.
//
// Example usage:
//
//	engine := contribution.New(s, resolver, recorder, contribution.WithLogger(logger))
//	res, err := engine.Save(ctx, &contribution.Request{
//	    ContactID:       contactID,
//	    FinancialTypeID: donation,
//	    TotalAmount:     decimal.NewNullDecimal(decimal.NewFromInt(100)),
//	})
package contribution

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/accounts"
	"github.com/robinvdvleuten/contribute/components"
	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/ledger"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/store"
	"github.com/robinvdvleuten/contribute/telemetry"
)

// Engine saves contributions.
type Engine struct {
	store      *store.Store
	accounts   *accounts.Resolver
	recorder   *ledger.Recorder
	components *components.Engine
	hooks      *Hooks
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the clock used for default dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithHooks sets the hook registry.
func WithHooks(hooks *Hooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithComponents sets the engine status changes are cascaded with.
func WithComponents(c *components.Engine) Option {
	return func(e *Engine) { e.components = c }
}

// New returns an Engine.
func New(s *store.Store, resolver *accounts.Resolver, recorder *ledger.Recorder, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		accounts: resolver,
		recorder: recorder,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.components == nil {
		e.components = components.New(s,
			components.WithLogger(e.logger.Named("components")),
			components.WithClock(e.now))
	}
	return e
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *store.Store { return e.store }

// Recorder returns the ledger recorder of the engine.
func (e *Engine) Recorder() *ledger.Recorder { return e.recorder }

// Components returns the component cascade engine.
func (e *Engine) Components() *components.Engine { return e.components }

// Result is the outcome of Save.
type Result struct {
	Contribution *model.Contribution `json:"contribution"`
	// Previous is the stored contribution before an edit, nil on create.
	Previous *model.Contribution `json:"-"`
	// Op holds the transactions posted by the save.
	Op *ledger.Op `json:"-"`
	// Components lists the records updated by the status cascade.
	Components *components.Result `json:"components,omitempty"`
}

// mutation carries the state of one Save.
type mutation struct {
	req      *Request
	settings *config.Settings

	prev      *model.Contribution
	c         *model.Contribution
	prevLines []model.LineItem
	lines     []model.LineItem

	op *ledger.Op

	// partial is set when the save records a partial payment of payAmount.
	partial   bool
	payAmount decimal.Decimal
}

func (m *mutation) trxnDate() time.Time {
	if m.c.ReceiveDate != nil {
		return *m.c.ReceiveDate
	}
	return time.Time{}
}

// Save creates the contribution described by req, or edits it when req.ID
// is set.
func (e *Engine) Save(ctx context.Context, req *Request) (*Result, error) {
	timer := telemetry.StartTimer(ctx, "contribution.save")
	defer timer.End()

	action := ActionCreate
	if req.ID != 0 {
		action = ActionEdit
	}
	e.hooks.fire(ctx, Event{Phase: PhasePre, Action: action, ContributionID: req.ID, Request: req})

	var res *Result
	err := e.store.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if action == ActionCreate {
			res, err = e.create(ctx, req)
		} else {
			res, err = e.update(ctx, req)
		}
		return err
	})
	if err != nil {
		e.logger.Debug("contribution not saved", zap.String("action", string(action)), zap.Error(err))
		return nil, err
	}

	e.hooks.fire(ctx, Event{
		Phase:          PhasePost,
		Action:         action,
		ContributionID: res.Contribution.ID,
		Request:        req,
		Contribution:   res.Contribution,
	})
	e.logger.Info("contribution saved",
		zap.String("action", string(action)),
		zap.Stringer("id", res.Contribution.ID),
		zap.Stringer("status", res.Contribution.Status),
		zap.String("total", res.Contribution.TotalAmount.StringFixed(2)),
		zap.Int("trxns", len(res.Op.TrxnIDs)),
		zap.Stringer("op", res.Op.ID))
	return res, nil
}

// Get loads a contribution.
func (e *Engine) Get(ctx context.Context, id snowflake.ID) (*model.Contribution, error) {
	return e.store.GetContribution(ctx, id)
}

// PaymentInfo summarises the payments of a contribution.
func (e *Engine) PaymentInfo(ctx context.Context, id snowflake.ID) (*ledger.PaymentInfo, error) {
	return e.recorder.PaymentInfo(ctx, id)
}

// CheckDuplicate fails with *DuplicateError when a contribution other than
// exclude carries trxnID or invoiceID.
func (e *Engine) CheckDuplicate(ctx context.Context, trxnID, invoiceID string, exclude snowflake.ID) error {
	rows, err := e.store.FindDuplicates(ctx, trxnID, invoiceID, exclude)
	if err != nil || len(rows) == 0 {
		return err
	}
	dup := &DuplicateError{TrxnID: trxnID, InvoiceID: invoiceID}
	for i := range rows {
		dup.IDs = append(dup.IDs, rows[i].ID)
	}
	return dup
}

// shouldPost reports whether a contribution in its current state has ledger
// postings. Failed contributions and incomplete online transactions (Pending
// without pay later) have none.
func shouldPost(c *model.Contribution) bool {
	if c.IsTemplate {
		return false
	}
	switch c.Status {
	case model.StatusFailed, model.StatusTemplate:
		return false
	case model.StatusPending:
		return c.IsPayLater
	}
	return true
}

// fillInstrument takes the payment instrument of the processor when none is
// set.
func (e *Engine) fillInstrument(ctx context.Context, c *model.Contribution, processorID snowflake.ID) error {
	if processorID == 0 || c.PaymentInstrumentID != 0 {
		return nil
	}
	pp, err := e.store.GetPaymentProcessor(ctx, processorID)
	if err != nil {
		return err
	}
	c.PaymentInstrumentID = pp.PaymentInstrumentID
	return nil
}

// clearCheckNumber drops the check number unless the instrument is Check.
func (e *Engine) clearCheckNumber(ctx context.Context, c *model.Contribution) error {
	if c.CheckNumber == "" {
		return nil
	}
	if c.PaymentInstrumentID == 0 {
		c.CheckNumber = ""
		return nil
	}
	pi, err := e.store.GetPaymentInstrument(ctx, c.PaymentInstrumentID)
	if err != nil {
		return err
	}
	if pi.Name != model.InstrumentCheck {
		c.CheckNumber = ""
	}
	return nil
}

// postLine posts the income item of a line and, when the line is taxed, its
// tax item.
func (e *Engine) postLine(ctx context.Context, m *mutation, line *model.LineItem, status model.ItemStatus, trxnIDs []snowflake.ID) error {
	c := m.c
	income, err := e.accounts.IncomeAccount(ctx, line.FinancialTypeID, c.RevenueRecognitionDate)
	if err != nil {
		return err
	}
	_, err = e.recorder.CreateFinancialItem(ctx, ledger.ItemParams{
		ContactID:       c.ContactID,
		Currency:        c.Currency,
		TransactionDate: m.trxnDate(),
		AccountID:       income,
		Status:          status,
		Line:            line,
	}, ledger.ContextNone, trxnIDs)
	if err != nil {
		return err
	}

	if tax := line.Tax(); !tax.IsZero() {
		return e.postTax(ctx, m, line, line.FinancialTypeID, tax, status, trxnIDs)
	}
	return nil
}

// postTax posts a tax item of amount for line against the tax account of
// financialTypeID.
func (e *Engine) postTax(ctx context.Context, m *mutation, line *model.LineItem, financialTypeID snowflake.ID, amount decimal.Decimal, status model.ItemStatus, trxnIDs []snowflake.ID) error {
	account, err := e.accounts.SalesTaxAccount(ctx, financialTypeID)
	if err != nil {
		return err
	}
	if account == nil {
		return &accounts.NotConfiguredError{
			EntityTable:  model.TableFinancialType,
			EntityID:     financialTypeID,
			Relationship: model.RelSalesTax,
		}
	}
	_, err = e.recorder.CreateFinancialItem(ctx, ledger.ItemParams{
		ContactID:       m.c.ContactID,
		Description:     m.settings.TaxTerm,
		Currency:        m.c.Currency,
		TransactionDate: m.trxnDate(),
		AccountID:       account.ID,
		Status:          status,
		Line:            line,
		Amount:          decimal.NewNullDecimal(amount),
	}, ledger.ContextNone, trxnIDs)
	return err
}

// recordFees posts the processor fee of a payment deposited to account.
func (e *Engine) recordFees(ctx context.Context, m *mutation, fee decimal.Decimal, trxn *model.FinancialTrxn) error {
	if fee.IsZero() {
		return nil
	}
	_, err := e.recorder.RecordFees(ctx, ledger.FeeParams{
		ContributionID:     m.c.ID,
		ContactID:          m.c.ContactID,
		FinancialTypeID:    m.c.FinancialTypeID,
		FromAccountID:      trxn.ToFinancialAccountID,
		FeeAmount:          fee,
		Currency:           m.c.Currency,
		TrxnDate:           trxn.TrxnDate,
		TrxnID:             trxn.TrxnID,
		Status:             trxn.Status,
		PaymentProcessorID: trxn.PaymentProcessorID,
	})
	return err
}
