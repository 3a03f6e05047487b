// Package order completes orders: it turns a pending contribution, or the
// next installment of a recurring series, into a completed one and sends
// the confirmation receipt once everything is committed.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/components"
	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/contribution"
	"github.com/robinvdvleuten/contribute/lineitem"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/money"
	"github.com/robinvdvleuten/contribute/receipt"
	"github.com/robinvdvleuten/contribute/store"
	"github.com/robinvdvleuten/contribute/telemetry"
)

// RecurringSource is the source of contributions created by
// RepeatTransaction.
const RecurringSource = "Recurring contribution"

var hundred = decimal.NewFromInt(100)

// Input is what a payment processor reports about a completed payment.
type Input struct {
	ContributionID      snowflake.ID `json:"contribution_id,omitempty"`
	ContributionRecurID snowflake.ID `json:"contribution_recur_id,omitempty"`

	TotalAmount decimal.NullDecimal `json:"total_amount"`
	FeeAmount   decimal.NullDecimal `json:"fee_amount"`
	NetAmount   decimal.NullDecimal `json:"net_amount"`

	TrxnID              string       `json:"trxn_id,omitempty"`
	TrxnDate            *time.Time   `json:"trxn_date,omitempty"`
	ReceiptDate         *time.Time   `json:"receipt_date,omitempty"`
	PaymentInstrumentID snowflake.ID `json:"payment_instrument_id,omitempty"`
	PaymentProcessorID  snowflake.ID `json:"payment_processor_id,omitempty"`
	CheckNumber         string       `json:"check_number,omitempty"`
	CardTypeID          int          `json:"card_type_id,omitempty"`
	PanTruncation       string       `json:"pan_truncation,omitempty"`
	CampaignID          snowflake.ID `json:"campaign_id,omitempty"`
	FinancialTypeID     snowflake.ID `json:"financial_type_id,omitempty"`
	Source              string       `json:"source,omitempty"`
	IsTest              *bool        `json:"is_test,omitempty"`

	// IsEmailReceipt set to false suppresses the confirmation receipt.
	IsEmailReceipt *bool `json:"is_email_receipt,omitempty"`
}

// Result is the outcome of CompleteOrder.
type Result struct {
	Contribution *model.Contribution `json:"contribution"`
	Components   *components.Result  `json:"components,omitempty"`
	// Repeated is set when the contribution was created from a recurring
	// series.
	Repeated bool `json:"repeated"`
	// Receipt is the receipt sent after commit, nil when none was sent.
	Receipt *receipt.Receipt `json:"receipt,omitempty"`
}

// Orchestrator completes orders.
type Orchestrator struct {
	engine *contribution.Engine
	store  *store.Store
	sender receipt.Sender
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithSender sets the receipt sender.
func WithSender(sender receipt.Sender) Option {
	return func(o *Orchestrator) { o.sender = sender }
}

// WithClock overrides the clock used for activity and receipt dates.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an Orchestrator around engine.
func New(engine *contribution.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine: engine,
		store:  engine.Store(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sender == nil {
		o.sender = receipt.LogSender{Logger: o.logger}
	}
	return o
}

// CompleteOrder completes the contribution in.ContributionID, or repeats the
// recurring series in.ContributionRecurID when no contribution is given. The
// completion, its ledger postings and the component cascade commit together;
// the receipt is sent afterwards and its failure is only logged.
func (o *Orchestrator) CompleteOrder(ctx context.Context, in Input) (*Result, error) {
	timer := telemetry.StartTimer(ctx, "order.complete")
	defer timer.End()

	if in.ContributionID == 0 && in.ContributionRecurID == 0 {
		return nil, &contribution.MissingFieldError{Field: "contribution_id"}
	}

	res := &Result{}
	err := o.store.Transaction(ctx, func(ctx context.Context) error {
		id := in.ContributionID
		if id == 0 {
			c, err := o.repeat(ctx, in)
			if err != nil {
				return err
			}
			id = c.ID
			res.Repeated = true
		}

		saved, err := o.complete(ctx, id, in)
		if err != nil {
			return err
		}
		res.Contribution = saved.Contribution
		res.Components = saved.Components
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("order completed",
		zap.Stringer("contribution_id", res.Contribution.ID),
		zap.Bool("repeated", res.Repeated),
		zap.String("total", res.Contribution.TotalAmount.StringFixed(2)))

	if in.IsEmailReceipt == nil || *in.IsEmailReceipt {
		res.Receipt = o.sendReceipt(ctx, res.Contribution.ID)
	}
	return res, nil
}

// RepeatTransaction creates and completes the next contribution of a
// recurring series.
func (o *Orchestrator) RepeatTransaction(ctx context.Context, in Input) (*Result, error) {
	if in.ContributionRecurID == 0 {
		return nil, &contribution.MissingFieldError{Field: "contribution_recur_id"}
	}
	in.ContributionID = 0
	return o.CompleteOrder(ctx, in)
}

// SendConfirmation sends the receipt of a contribution and stamps its
// receipt date when it has none.
func (o *Orchestrator) SendConfirmation(ctx context.Context, id snowflake.ID) (*receipt.Receipt, error) {
	timer := telemetry.StartTimer(ctx, "order.send_confirmation")
	defer timer.End()

	settings := config.FromContext(ctx)
	r, err := receipt.Build(ctx, o.store, o.engine.Recorder(), id, receipt.Options{
		From:    settings.Receipt.From,
		TaxTerm: settings.TaxTerm,
	})
	if err != nil {
		return nil, err
	}
	if err := o.sender.Send(ctx, r); err != nil {
		return nil, err
	}

	c, err := o.store.GetContribution(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ReceiptDate == nil {
		now := o.now()
		c.ReceiptDate = &now
		if err := o.store.Save(ctx, c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (o *Orchestrator) sendReceipt(ctx context.Context, id snowflake.ID) *receipt.Receipt {
	if !config.FromContext(ctx).Receipt.Enabled {
		return nil
	}
	r, err := o.SendConfirmation(ctx, id)
	if err != nil {
		o.logger.Warn("receipt not sent", zap.Stringer("contribution_id", id), zap.Error(err))
		return nil
	}
	return r
}

// complete moves contribution id to Completed with the whitelisted fields
// of in, and records a Contribution activity.
func (o *Orchestrator) complete(ctx context.Context, id snowflake.ID, in Input) (*contribution.Result, error) {
	c, err := o.engine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == model.StatusCompleted {
		return nil, &AlreadyCompletedError{ContributionID: id}
	}
	lines, err := o.store.LineItems(ctx, id)
	if err != nil {
		return nil, err
	}

	req := &contribution.Request{
		ID:                  id,
		Status:              model.StatusCompleted,
		FeeAmount:           in.FeeAmount,
		NetAmount:           in.NetAmount,
		TrxnID:              in.TrxnID,
		CheckNumber:         in.CheckNumber,
		PaymentInstrumentID: in.PaymentInstrumentID,
		PaymentProcessorID:  in.PaymentProcessorID,
		IsTest:              in.IsTest,
		CampaignID:          in.CampaignID,
		ReceiveDate:         in.TrxnDate,
		ReceiptDate:         in.ReceiptDate,
		CardTypeID:          in.CardTypeID,
		PanTruncation:       in.PanTruncation,
	}
	if in.FinancialTypeID != 0 && len(lines) == 1 {
		req.FinancialTypeID = in.FinancialTypeID
	}

	res, err := o.engine.Save(ctx, req)
	if err != nil {
		return nil, err
	}

	saved := res.Contribution
	subject := money.Format(saved.TotalAmount, saved.Currency)
	if saved.Source != "" {
		subject += " - " + saved.Source
	}
	if err := o.store.CreateActivity(ctx, &model.Activity{
		ActivityType:    model.ActivityContribution,
		Subject:         subject,
		SourceRecordID:  saved.ID,
		SourceContactID: saved.ContactID,
		Status:          model.ActivityCompleted,
		ActivityDate:    o.now(),
		IsTest:          saved.IsTest,
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// repeat creates the next contribution of a recurring series as Pending,
// cloned from the template of the series.
func (o *Orchestrator) repeat(ctx context.Context, in Input) (*model.Contribution, error) {
	tmpl, err := o.store.RecurTemplate(ctx, in.ContributionRecurID)
	if err != nil {
		return nil, err
	}
	lines, err := o.store.LineItems(ctx, tmpl.ID)
	if err != nil {
		return nil, err
	}
	if in.TotalAmount.Valid && len(lines) == 1 {
		rescale(&lines[0], in.TotalAmount.Decimal)
	}

	set := lineitem.Set{}
	for _, line := range lines {
		line.ID = 0
		line.ContributionID = 0
		if line.EntityTable == model.TableContribution {
			line.EntityID = 0
		}
		set.Add(line)
	}

	source := in.Source
	if source == "" {
		source = RecurringSource
	}
	req := &contribution.Request{
		ContactID:           tmpl.ContactID,
		FinancialTypeID:     tmpl.FinancialTypeID,
		ContributionPageID:  tmpl.ContributionPageID,
		PaymentInstrumentID: tmpl.PaymentInstrumentID,
		ContributionRecurID: in.ContributionRecurID,
		CampaignID:          tmpl.CampaignID,
		Currency:            tmpl.Currency,
		TotalAmount:         in.TotalAmount,
		AmountLevel:         tmpl.AmountLevel,
		Source:              source,
		Status:              model.StatusPending,
		IsPayLater:          boolPtr(false),
		IsTest:              boolPtr(tmpl.IsTest),
		ReceiveDate:         in.TrxnDate,
		LineItems:           set,
	}
	res, err := o.engine.Save(ctx, req)
	if err != nil {
		return nil, err
	}
	c := res.Contribution

	memberships, err := o.store.ContributionMemberships(ctx, tmpl.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		if err := o.store.CreateMembershipPayment(ctx, &model.MembershipPayment{MembershipID: m.ID, ContributionID: c.ID}); err != nil {
			return nil, err
		}
	}
	participants, err := o.store.ContributionParticipants(ctx, tmpl.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		if err := o.store.CreateParticipantPayment(ctx, &model.ParticipantPayment{ParticipantID: p.ID, ContributionID: c.ID}); err != nil {
			return nil, err
		}
	}

	o.logger.Debug("recurring contribution repeated",
		zap.Stringer("template_id", tmpl.ID),
		zap.Stringer("contribution_id", c.ID),
		zap.Int("memberships", len(memberships)),
		zap.Int("participants", len(participants)))
	return c, nil
}

// rescale changes the single line of a template to total, splitting it at
// the tax rate the template line was charged.
func rescale(line *model.LineItem, total decimal.Decimal) {
	if line.Total().Equal(total) {
		return
	}
	rate := decimal.Zero
	if tax := line.Tax(); !tax.IsZero() && !line.LineTotal.IsZero() {
		rate = tax.Mul(hundred).Div(line.LineTotal)
	}
	net, tax := money.SplitGross(total, rate)
	if line.TaxAmount.Valid {
		line.TaxAmount = decimal.NewNullDecimal(tax)
	}
	line.LineTotal = net
	if line.Qty.IsZero() {
		line.Qty = decimal.NewFromInt(1)
	}
	line.UnitPrice = line.LineTotal.Div(line.Qty).Round(2)
}

func boolPtr(v bool) *bool { return &v }

// AlreadyCompletedError is returned when an order is completed twice.
type AlreadyCompletedError struct {
	ContributionID snowflake.ID
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("contribution %s is already completed", e.ContributionID)
}

// Code returns the API error code.
func (e *AlreadyCompletedError) Code() string { return "validation_error" }

// GetContributionID returns the contribution id.
func (e *AlreadyCompletedError) GetContributionID() snowflake.ID { return e.ContributionID }
