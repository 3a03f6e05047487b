package contribution

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/ledger"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/money"
	"github.com/robinvdvleuten/contribute/params"
	"github.com/robinvdvleuten/contribute/telemetry"
)

// FailedPaymentSubject is the subject of the activity written by FailPayment.
const FailedPaymentSubject = "Payment failed at payment processor"

// PaymentRequest records a payment (positive) or a refund (negative) against
// an existing contribution.
type PaymentRequest struct {
	ContributionID      snowflake.ID    `json:"contribution_id"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	TrxnDate            *time.Time      `json:"trxn_date,omitempty"`
	TrxnID              string          `json:"trxn_id,omitempty"`
	PaymentInstrumentID snowflake.ID    `json:"payment_instrument_id,omitempty"`
	PaymentProcessorID  snowflake.ID    `json:"payment_processor_id,omitempty"`
	CheckNumber         string          `json:"check_number,omitempty"`
	FeeAmount           decimal.Decimal `json:"fee_amount"`
	CardTypeID          int             `json:"card_type_id,omitempty"`
	PanTruncation       string          `json:"pan_truncation,omitempty"`
}

// PaymentResult is the outcome of RecordPayment.
type PaymentResult struct {
	Trxn         *model.FinancialTrxn `json:"financial_trxn"`
	Contribution *model.Contribution  `json:"contribution"`
	Balance      decimal.Decimal      `json:"balance"`
}

// RecordPayment posts a payment from Accounts Receivable to the deposit
// account and spreads it over the line items. A payment that settles the
// balance completes the contribution; a first payment that does not makes it
// partially paid.
func (e *Engine) RecordPayment(ctx context.Context, p PaymentRequest) (*PaymentResult, error) {
	timer := telemetry.StartTimer(ctx, "contribution.record_payment")
	defer timer.End()

	if p.ContributionID == 0 {
		return nil, &MissingFieldError{Field: "contribution_id"}
	}
	if p.TotalAmount.IsZero() {
		return nil, &MissingFieldError{Field: "total_amount"}
	}

	var res PaymentResult
	err := e.store.Transaction(ctx, func(ctx context.Context) error {
		c, err := e.store.GetContribution(ctx, p.ContributionID)
		if err != nil {
			return err
		}
		lines, err := e.store.LineItems(ctx, c.ID)
		if err != nil {
			return err
		}
		m := &mutation{
			req:       &Request{PaymentProcessorID: p.PaymentProcessorID},
			settings:  config.FromContext(ctx),
			prev:      c,
			c:         c,
			prevLines: lines,
			lines:     lines,
			op:        ledger.NewOp(),
		}

		refund := p.TotalAmount.IsNegative()
		var from snowflake.ID
		if !refund {
			if from, err = e.balanceTrxn(ctx, m); err != nil {
				return err
			}
			if !shouldPost(c) {
				for i := range lines {
					if err := e.postLine(ctx, m, &lines[i], model.ItemUnpaid, m.op.TrxnIDs); err != nil {
						return err
					}
				}
			}
		}

		instrument := p.PaymentInstrumentID
		if instrument == 0 && p.PaymentProcessorID != 0 {
			pp, err := e.store.GetPaymentProcessor(ctx, p.PaymentProcessorID)
			if err != nil {
				return err
			}
			instrument = pp.PaymentInstrumentID
		}
		if instrument == 0 {
			instrument = c.PaymentInstrumentID
		}
		to, err := e.accounts.PaymentAccount(ctx, p.PaymentProcessorID, instrument)
		if err != nil {
			return err
		}

		status := model.StatusCompleted
		if refund {
			status = model.StatusRefunded
		}
		date := e.now()
		if p.TrxnDate != nil {
			date = *p.TrxnDate
		}
		trxn, err := e.recorder.CreateTransaction(ctx, ledger.TrxnParams{
			ContributionID:      c.ID,
			FromAccountID:       from,
			ToAccountID:         to,
			TrxnDate:            date,
			TotalAmount:         decimal.NewNullDecimal(p.TotalAmount),
			FeeAmount:           p.FeeAmount,
			Currency:            c.Currency,
			IsPayment:           true,
			Status:              status,
			TrxnID:              p.TrxnID,
			PaymentProcessorID:  p.PaymentProcessorID,
			PaymentInstrumentID: instrument,
			CheckNumber:         p.CheckNumber,
			CardTypeID:          p.CardTypeID,
			PanTruncation:       p.PanTruncation,
		})
		if err != nil {
			return err
		}
		m.op.Add(trxn.ID)

		if !c.TotalAmount.IsZero() {
			if err := e.recorder.AssignProportional(ctx, trxn, c.ID, c.TotalAmount); err != nil {
				return err
			}
		}
		if err := e.recordFees(ctx, m, p.FeeAmount, trxn); err != nil {
			return err
		}

		activityType := model.ActivityPayment
		if refund {
			activityType = model.ActivityRefund
		}
		if err := e.store.CreateActivity(ctx, &model.Activity{
			ActivityType:    activityType,
			Subject:         money.Format(p.TotalAmount.Abs(), c.Currency),
			SourceRecordID:  c.ID,
			SourceContactID: c.ContactID,
			Status:          model.ActivityCompleted,
			ActivityDate:    date,
			IsTest:          c.IsTest,
		}); err != nil {
			return err
		}

		balance, err := e.recorder.Balance(ctx, c.ID)
		if err != nil {
			return err
		}
		if err := e.settle(ctx, c, balance, refund); err != nil {
			return err
		}

		if res.Contribution, err = e.store.GetContribution(ctx, c.ID); err != nil {
			return err
		}
		res.Trxn = trxn
		res.Balance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("payment recorded",
		zap.Stringer("contribution_id", p.ContributionID),
		zap.Stringer("trxn_id", res.Trxn.ID),
		zap.String("amount", p.TotalAmount.StringFixed(2)),
		zap.String("balance", res.Balance.StringFixed(2)),
		zap.Stringer("status", res.Contribution.Status))
	return &res, nil
}

// settle moves the status of a contribution after a payment.
func (e *Engine) settle(ctx context.Context, c *model.Contribution, balance decimal.Decimal, refund bool) error {
	var status model.ContributionStatus
	var itemStatus model.ItemStatus
	switch {
	case !balance.IsPositive() && (c.Status.IsPending() || c.Status == model.StatusPartiallyPaid):
		status, itemStatus = model.StatusCompleted, model.ItemPaid
	case !refund && balance.IsPositive() && c.Status == model.StatusPending:
		status, itemStatus = model.StatusPartiallyPaid, model.ItemPartiallyPaid
	default:
		return nil
	}

	if _, err := e.Save(ctx, &Request{ID: c.ID, Status: status, IsPostPaymentCreate: true, IsPayLater: boolPtr(false)}); err != nil {
		return err
	}
	_, err := e.recorder.SetItemsStatus(ctx, c.ID, itemStatus)
	return err
}

// FailPayment records a payment failure reported by a processor and moves
// the contribution to Failed.
func (e *Engine) FailPayment(ctx context.Context, id snowflake.ID, message string) (*Result, error) {
	var res *Result
	err := e.store.Transaction(ctx, func(ctx context.Context) error {
		c, err := e.store.GetContribution(ctx, id)
		if err != nil {
			return err
		}
		if err := e.store.CreateActivity(ctx, &model.Activity{
			ActivityType:    model.ActivityFailedPayment,
			Subject:         FailedPaymentSubject,
			SourceRecordID:  c.ID,
			SourceContactID: c.ContactID,
			Status:          model.ActivityCompleted,
			ActivityDate:    e.now(),
			Details:         message,
			IsTest:          c.IsTest,
		}); err != nil {
			return err
		}
		res, err = e.Save(ctx, &Request{ID: c.ID, Status: model.StatusFailed, CancelReason: message})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Warn("payment failed",
		zap.Stringer("contribution_id", id),
		zap.String("message", message))
	return res, nil
}

// PaymentRequestFromParams reads a Payment.create parameter bag.
func PaymentRequestFromParams(bag params.Bag, settings *config.Settings) (PaymentRequest, error) {
	r := &bagReader{bag: bag, thousands: settings.ThousandsSeparator, point: settings.DecimalPoint}
	if bag.Bool("skipCleanMoney") {
		r.thousands, r.point = "", "."
	}

	p := PaymentRequest{
		ContributionID:      r.id("contribution_id"),
		TrxnDate:            r.date("trxn_date"),
		TrxnID:              bag.String("trxn_id"),
		PaymentInstrumentID: r.id("payment_instrument_id"),
		PaymentProcessorID:  r.id("payment_processor_id", "payment_processor"),
		CheckNumber:         bag.String("check_number"),
		CardTypeID:          r.integer("card_type_id"),
		PanTruncation:       bag.String("pan_truncation"),
	}
	total := r.amount("total_amount")
	fee := r.amount("fee_amount")
	if r.err != nil {
		return PaymentRequest{}, r.err
	}
	p.TotalAmount = total.Decimal
	p.FeeAmount = fee.Decimal
	return p, nil
}
