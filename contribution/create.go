package contribution

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/ledger"
	"github.com/robinvdvleuten/contribute/lineitem"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/money"
	"github.com/robinvdvleuten/contribute/telemetry"
)

func (e *Engine) create(ctx context.Context, req *Request) (*Result, error) {
	switch {
	case req.ContactID == 0:
		return nil, &MissingFieldError{Field: "contact_id"}
	case req.FinancialTypeID == 0:
		return nil, &MissingFieldError{Field: "financial_type_id"}
	case !req.TotalAmount.Valid && !req.PartialPaymentTotal.Valid && req.LineItems.Len() == 0:
		return nil, &MissingFieldError{Field: "total_amount"}
	}
	if err := e.CheckDuplicate(ctx, req.TrxnID, req.InvoiceID, 0); err != nil {
		return nil, err
	}

	settings := config.FromContext(ctx)
	c := &model.Contribution{
		Status:   model.StatusCompleted,
		Currency: settings.Currency,
	}
	req.apply(c)
	if c.ReceiveDate == nil {
		now := e.now()
		c.ReceiveDate = &now
	}
	c.ID = e.store.NewID()
	if c.InvoiceNumber == "" {
		c.InvoiceNumber = InvoiceNumber(settings.InvoicePrefix, c.ID)
	}
	if c.Status.IsReversal() && c.CreditNoteID == "" {
		id, err := e.CreditNoteID(ctx)
		if err != nil {
			return nil, err
		}
		c.CreditNoteID = id
	}

	m := &mutation{req: req, settings: settings, c: c, op: ledger.NewOp()}

	if err := e.recognitionDate(ctx, m); err != nil {
		return nil, err
	}
	if err := e.fillInstrument(ctx, c, req.PaymentProcessorID); err != nil {
		return nil, err
	}
	if err := e.clearCheckNumber(ctx, c); err != nil {
		return nil, err
	}

	if req.isPartial() {
		c.TotalAmount = req.PartialPaymentTotal.Decimal
		m.payAmount = req.PartialAmountToPay.Decimal
		if m.payAmount.LessThan(c.TotalAmount) {
			c.Status = model.StatusPartiallyPaid
			c.IsPayLater = false
			m.partial = true
		}
	}

	lines := req.LineItems.Flatten()
	if !req.TotalAmount.Valid && !req.isPartial() {
		c.TotalAmount = lineitem.Total(lines)
	}
	if !req.isPartial() && !req.TaxAmount.Valid {
		if err := e.applyCreateTax(ctx, c, lines); err != nil {
			return nil, err
		}
	}

	if !req.FeeAmount.Valid && req.NetAmount.Valid {
		c.FeeAmount = c.TotalAmount.Sub(req.NetAmount.Decimal)
	}
	c.NetAmount = c.TotalAmount.Sub(c.FeeAmount)

	switch {
	case req.SkipLineItem:
		lines = nil
	case len(lines) == 0:
		lines = []model.LineItem{lineitem.Default(c)}
	}
	if len(lines) > 0 {
		if _, err := lineitem.Check(lines, &c.TotalAmount, c.Currency); err != nil {
			return nil, err
		}
	}

	if err := e.store.CreateContribution(ctx, c); err != nil {
		return nil, err
	}
	if err := lineitem.Save(ctx, e.store, c.ID, lines); err != nil {
		return nil, err
	}
	m.lines = lines

	if req.MembershipID != 0 {
		if err := e.store.CreateMembershipPayment(ctx, &model.MembershipPayment{MembershipID: req.MembershipID, ContributionID: c.ID}); err != nil {
			return nil, err
		}
	}

	if !req.IsPostPaymentCreate {
		if err := e.recordCreate(ctx, m); err != nil {
			return nil, err
		}
	}
	return &Result{Contribution: c, Op: m.op}, nil
}

// applyCreateTax adds sales tax to a new contribution. Supplied lines
// without a tax amount are taxed individually; without lines the total is
// taxed as a whole.
func (e *Engine) applyCreateTax(ctx context.Context, c *model.Contribution, lines []model.LineItem) error {
	if len(lines) > 0 {
		before := lineitem.TaxTotal(lines)
		after, err := lineitem.ApplyTax(ctx, e.accounts, lines)
		if err != nil {
			return err
		}
		c.TotalAmount = c.TotalAmount.Add(after.Sub(before))
		for i := range lines {
			if lines[i].TaxAmount.Valid {
				c.TaxAmount = decimal.NewNullDecimal(after)
				break
			}
		}
		return nil
	}

	rate, taxable, err := e.accounts.TaxRate(ctx, c.FinancialTypeID)
	if err != nil || !taxable {
		return err
	}
	tax := money.CalculateTax(c.TotalAmount, rate)
	c.TaxAmount = decimal.NewNullDecimal(tax)
	c.TotalAmount = c.TotalAmount.Add(tax)
	return nil
}

// recognitionDate clears the revenue recognition date when deferred revenue
// is disabled and takes it from the start date of the membership paid for.
func (e *Engine) recognitionDate(ctx context.Context, m *mutation) error {
	c := m.c
	if !m.settings.DeferredRevenueEnabled {
		if c.RevenueRecognitionDate != nil {
			e.logger.Debug("revenue recognition date ignored, deferred revenue is disabled",
				zap.Stringer("contribution_id", c.ID))
		}
		c.RevenueRecognitionDate = nil
		return nil
	}
	if m.req.MembershipID == 0 || c.RevenueRecognitionDate != nil {
		return nil
	}
	membership, err := e.store.GetMembership(ctx, m.req.MembershipID)
	if err != nil {
		return err
	}
	c.RevenueRecognitionDate = membership.StartDate
	return nil
}

// recordCreate posts a new contribution.
func (e *Engine) recordCreate(ctx context.Context, m *mutation) error {
	c := m.c
	if !shouldPost(c) {
		return nil
	}
	timer := telemetry.StartTimer(ctx, "contribution.record_create")
	defer timer.End()

	p := ledger.TrxnParams{
		ContributionID:      c.ID,
		TrxnDate:            m.trxnDate(),
		TotalAmount:         decimal.NewNullDecimal(c.TotalAmount),
		FeeAmount:           c.FeeAmount,
		NetAmount:           decimal.NewNullDecimal(c.NetAmount),
		Currency:            c.Currency,
		IsPayment:           !c.Status.IsPending(),
		Status:              c.Status,
		TrxnID:              c.TrxnID,
		TrxnResultCode:      m.req.TrxnResultCode,
		PaymentProcessorID:  m.req.PaymentProcessorID,
		PaymentInstrumentID: c.PaymentInstrumentID,
		CheckNumber:         c.CheckNumber,
		CardTypeID:          c.CardTypeID,
		PanTruncation:       c.PanTruncation,
	}

	if m.partial {
		from, err := e.balanceTrxn(ctx, m)
		if err != nil {
			return err
		}
		p.FromAccountID = from
		p.Status = model.StatusCompleted
		p.IsPayment = true
		p.TotalAmount = decimal.NewNullDecimal(m.payAmount)
		p.NetAmount = decimal.NewNullDecimal(m.payAmount.Sub(c.FeeAmount))
	}

	var err error
	if c.Status.IsPending() || (c.Status == model.StatusPartiallyPaid && !m.partial) {
		p.ToAccountID, err = e.accounts.ReceivableAccount(ctx, c.FinancialTypeID)
	} else {
		p.ToAccountID, err = e.accounts.PaymentAccount(ctx, m.req.PaymentProcessorID, c.PaymentInstrumentID)
	}
	if err != nil {
		return err
	}

	if c.Status.IsReversal() {
		p.TrxnDate = e.now()
		if c.CancelDate != nil {
			p.TrxnDate = *c.CancelDate
		}
		if m.req.RefundTrxnID != nil {
			p.TrxnID = *m.req.RefundTrxnID
		}
	}

	if m.settings.AlwaysPostToAccountsReceivable && c.Status == model.StatusCompleted && !m.partial {
		ar, err := e.receivableTrxn(ctx, m, c.TotalAmount)
		if err != nil {
			return err
		}
		p.FromAccountID = ar
	}

	trxn, err := e.recorder.CreateTransaction(ctx, p)
	if err != nil {
		return err
	}
	if !m.partial {
		m.op.Add(trxn.ID)
	}

	status := model.ItemStatusFor(c.Status)
	for i := range m.lines {
		if err := e.postLine(ctx, m, &m.lines[i], status, m.op.TrxnIDs); err != nil {
			return err
		}
	}

	if m.partial {
		if err := e.recorder.AssignProportional(ctx, trxn, c.ID, c.TotalAmount); err != nil {
			return err
		}
	}
	return e.recordFees(ctx, m, c.FeeAmount, trxn)
}

// receivableTrxn posts amount to Accounts Receivable as an unpaid accrual
// and returns the receivable account.
func (e *Engine) receivableTrxn(ctx context.Context, m *mutation, amount decimal.Decimal) (snowflake.ID, error) {
	ar, err := e.accounts.ReceivableAccount(ctx, m.c.FinancialTypeID)
	if err != nil {
		return 0, err
	}
	trxn, err := e.recorder.CreateTransaction(ctx, ledger.TrxnParams{
		ContributionID: m.c.ID,
		ToAccountID:    ar,
		TrxnDate:       m.trxnDate(),
		TotalAmount:    decimal.NewNullDecimal(amount),
		NetAmount:      decimal.NewNullDecimal(amount),
		Currency:       m.c.Currency,
		Status:         model.StatusPending,
		TrxnID:         m.c.TrxnID,
	})
	if err != nil {
		return 0, err
	}
	m.op.Add(trxn.ID)
	return ar, nil
}

// balanceTrxn posts the full total of a partially paid contribution to
// Accounts Receivable, once per contribution, and returns the receivable
// account the payments are drawn from.
func (e *Engine) balanceTrxn(ctx context.Context, m *mutation) (snowflake.ID, error) {
	ar, err := e.accounts.ReceivableAccount(ctx, m.c.FinancialTypeID)
	if err != nil {
		return 0, err
	}
	exists, err := e.store.HasContributionTrxnTo(ctx, m.c.ID, ar)
	if err != nil || exists {
		return ar, err
	}
	return e.receivableTrxn(ctx, m, m.c.TotalAmount)
}
