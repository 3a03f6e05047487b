package contribution

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/contribute/components"
	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/ledger"
	"github.com/robinvdvleuten/contribute/lineitem"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/money"
	"github.com/robinvdvleuten/contribute/telemetry"
)

func (e *Engine) update(ctx context.Context, req *Request) (*Result, error) {
	prev, err := e.store.GetContribution(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := e.CheckDuplicate(ctx, req.TrxnID, req.InvoiceID, prev.ID); err != nil {
		return nil, err
	}
	if req.Status != model.StatusUnknown && req.Status != prev.Status {
		if err := CheckStatusValidation(prev.Status, req.Status); err != nil {
			return nil, err
		}
	}
	if req.isPartial() {
		next, err := e.partialStatus(ctx, prev.ID, req)
		if err != nil {
			return nil, err
		}
		if err := CheckStatusValidation(prev.Status, next); err != nil {
			return nil, err
		}
	}

	prevLines, err := e.store.LineItems(ctx, prev.ID)
	if err != nil {
		return nil, err
	}
	if req.FinancialTypeID != 0 && req.FinancialTypeID != prev.FinancialTypeID &&
		len(lineitem.FinancialTypes(prevLines)) > 1 {
		return nil, &FinancialTypeChangeError{ContributionID: prev.ID}
	}

	c := *prev
	req.apply(&c)
	m := &mutation{
		req:       req,
		settings:  config.FromContext(ctx),
		prev:      prev,
		c:         &c,
		prevLines: prevLines,
		op:        ledger.NewOp(),
	}

	if c.Status != prev.Status && c.Status.IsReversal() {
		if c.CreditNoteID == "" {
			if c.CreditNoteID, err = e.CreditNoteID(ctx); err != nil {
				return nil, err
			}
		}
		if c.CancelDate == nil {
			now := e.now()
			c.CancelDate = &now
		}
	}
	if err := e.guardRecognitionDate(ctx, m); err != nil {
		return nil, err
	}
	if err := e.fillInstrument(ctx, &c, req.PaymentProcessorID); err != nil {
		return nil, err
	}
	if err := e.clearCheckNumber(ctx, &c); err != nil {
		return nil, err
	}

	if req.isPartial() {
		if err := e.updatePartial(ctx, m); err != nil {
			return nil, err
		}
	} else {
		if err := e.updateAmounts(ctx, m); err != nil {
			return nil, err
		}
		if err := e.store.Save(ctx, &c); err != nil {
			return nil, err
		}
		if err := lineitem.Save(ctx, e.store, c.ID, m.lines); err != nil {
			return nil, err
		}
		if !req.IsPostPaymentCreate {
			if err := e.recordUpdate(ctx, m); err != nil {
				return nil, err
			}
		}
		if prev.Status == model.StatusPartiallyPaid && c.Status == model.StatusCompleted {
			if err := e.warnOutstanding(ctx, &c); err != nil {
				return nil, err
			}
		}
	}

	if err := e.updateRecur(ctx, m); err != nil {
		return nil, err
	}

	res := &Result{Contribution: &c, Previous: prev, Op: m.op}
	if c.Status != prev.Status && !req.SkipCascade {
		res.Components, err = e.components.Transition(ctx, components.Change{
			ContributionID: c.ID,
			From:           prev.Status,
			To:             c.Status,
			ReceiveDate:    c.ReceiveDate,
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// partialStatus returns the status an edit recording a partial payment
// leaves the contribution in.
func (e *Engine) partialStatus(ctx context.Context, id snowflake.ID, req *Request) (model.ContributionStatus, error) {
	paid, err := e.recorder.Paid(ctx, id)
	if err != nil {
		return model.StatusUnknown, err
	}
	if req.PartialPaymentTotal.Decimal.Sub(paid).Sub(req.PartialAmountToPay.Decimal).IsPositive() {
		return model.StatusPartiallyPaid, nil
	}
	return model.StatusCompleted, nil
}

// warnOutstanding logs a partially paid contribution that was marked
// completed without a payment covering its balance. No payment is posted.
func (e *Engine) warnOutstanding(ctx context.Context, c *model.Contribution) error {
	balance, err := e.recorder.Balance(ctx, c.ID)
	if err != nil || !balance.IsPositive() {
		return err
	}
	e.logger.Warn("contribution completed with outstanding balance",
		zap.Stringer("contribution_id", c.ID),
		zap.Stringer("balance", balance))
	return nil
}

// guardRecognitionDate drops a submitted revenue recognition date when
// deferred revenue is disabled, or when a paid contribution already funds
// memberships or event registrations.
func (e *Engine) guardRecognitionDate(ctx context.Context, m *mutation) error {
	if m.req.RevenueRecognitionDate == nil {
		return nil
	}
	restore := func(reason string) {
		e.logger.Debug("revenue recognition date not changed",
			zap.Stringer("contribution_id", m.c.ID),
			zap.String("reason", reason))
		m.c.RevenueRecognitionDate = m.prev.RevenueRecognitionDate
	}
	if !m.settings.DeferredRevenueEnabled {
		restore("deferred revenue is disabled")
		return nil
	}
	if m.prev.Status == model.StatusPending {
		return nil
	}

	memberships, err := e.store.ContributionMemberships(ctx, m.c.ID)
	if err != nil {
		return err
	}
	participants, err := e.store.ContributionParticipants(ctx, m.c.ID)
	if err != nil {
		return err
	}
	if len(memberships) > 0 || len(participants) > 0 {
		restore("contribution pays for a membership or event registration")
	}
	return nil
}

// updateAmounts recomputes tax, net amount and line items of an edit.
func (e *Engine) updateAmounts(ctx context.Context, m *mutation) error {
	c, prev, req := m.c, m.prev, m.req
	typeChanged := c.FinancialTypeID != prev.FinancialTypeID

	lines := slices.Clone(m.prevLines)
	if typeChanged {
		for i := range lines {
			if lines[i].FinancialTypeID == prev.FinancialTypeID {
				lines[i].FinancialTypeID = c.FinancialTypeID
			}
		}
	}

	switch {
	case req.SkipLineItem:
	case req.LineItems.Len() > 0:
		lines = mergeLines(lines, req.LineItems.Flatten())
		if !req.TaxAmount.Valid {
			tax, err := lineitem.ApplyTax(ctx, e.accounts, lines)
			if err != nil {
				return err
			}
			if !tax.IsZero() || c.TaxAmount.Valid {
				c.TaxAmount = decimal.NewNullDecimal(tax)
			}
		}
		if !req.TotalAmount.Valid {
			c.TotalAmount = lineitem.Total(lines)
		}
	default:
		totalChanged := req.TotalAmount.Valid && !req.TotalAmount.Decimal.Equal(prev.TotalAmount)
		if !req.TaxAmount.Valid && (typeChanged || totalChanged) {
			if err := e.applyUpdateTax(ctx, m); err != nil {
				return err
			}
		}
		if len(lines) == 0 {
			lines = []model.LineItem{lineitem.Default(c)}
		} else {
			lineitem.Sync(lines, c)
		}
	}

	if !req.FeeAmount.Valid && req.NetAmount.Valid {
		c.FeeAmount = c.TotalAmount.Sub(req.NetAmount.Decimal)
	}
	c.NetAmount = c.TotalAmount.Sub(c.FeeAmount)

	if len(lines) > 0 && !req.SkipLineItem {
		if _, err := lineitem.Check(lines, &c.TotalAmount, c.Currency); err != nil {
			return err
		}
	}
	m.lines = lines
	return nil
}

// applyUpdateTax recomputes the tax of a single line contribution whose total
// or financial type changed. A submitted total is taken as net of tax.
func (e *Engine) applyUpdateTax(ctx context.Context, m *mutation) error {
	c, prev := m.c, m.prev
	base := prev.TotalAmount.Sub(prev.Tax())
	if m.req.TotalAmount.Valid {
		base = m.req.TotalAmount.Decimal
	}

	rate, taxable, err := e.accounts.TaxRate(ctx, c.FinancialTypeID)
	if err != nil {
		return err
	}
	switch {
	case taxable:
		tax := money.CalculateTax(base, rate)
		c.TaxAmount = decimal.NewNullDecimal(tax)
		c.TotalAmount = base.Add(tax)
	case prev.TaxAmount.Valid:
		c.TaxAmount = decimal.NullDecimal{}
		c.TotalAmount = base
	}
	return nil
}

// mergeLines replaces stored lines by the submitted line with the same price
// field and value and appends the others.
func mergeLines(stored, submitted []model.LineItem) []model.LineItem {
	for _, line := range submitted {
		i := slices.IndexFunc(stored, func(l model.LineItem) bool {
			return l.PriceFieldID == line.PriceFieldID && l.PriceFieldValueID == line.PriceFieldValueID
		})
		if i < 0 {
			stored = append(stored, line)
			continue
		}
		line.ID = stored[i].ID
		if line.EntityTable == "" {
			line.EntityTable, line.EntityID = stored[i].EntityTable, stored[i].EntityID
		}
		stored[i] = line
	}
	return stored
}

// updatePartial records a partial payment submitted with an edit: the
// payment moves from Accounts Receivable to the deposit account and the
// status follows the remaining balance.
func (e *Engine) updatePartial(ctx context.Context, m *mutation) error {
	c, req := m.c, m.req
	c.TotalAmount = req.PartialPaymentTotal.Decimal
	c.NetAmount = c.TotalAmount.Sub(c.FeeAmount)
	c.IsPayLater = false
	m.partial = true
	m.payAmount = req.PartialAmountToPay.Decimal

	lines := slices.Clone(m.prevLines)
	if len(lines) == 0 {
		lines = []model.LineItem{lineitem.Default(c)}
	} else {
		lineitem.Sync(lines, c)
	}
	if _, err := lineitem.Check(lines, &c.TotalAmount, c.Currency); err != nil {
		return err
	}
	if err := e.store.Save(ctx, c); err != nil {
		return err
	}
	if err := lineitem.Save(ctx, e.store, c.ID, lines); err != nil {
		return err
	}
	m.lines = lines

	from, err := e.balanceTrxn(ctx, m)
	if err != nil {
		return err
	}
	if !shouldPost(m.prev) {
		// Nothing was posted yet: book the lines against the receivable.
		for i := range lines {
			if err := e.postLine(ctx, m, &lines[i], model.ItemPartiallyPaid, m.op.TrxnIDs); err != nil {
				return err
			}
		}
	}
	to, err := e.accounts.PaymentAccount(ctx, req.PaymentProcessorID, c.PaymentInstrumentID)
	if err != nil {
		return err
	}
	trxn, err := e.recorder.CreateTransaction(ctx, ledger.TrxnParams{
		ContributionID:      c.ID,
		FromAccountID:       from,
		ToAccountID:         to,
		TrxnDate:            e.now(),
		TotalAmount:         decimal.NewNullDecimal(m.payAmount),
		Currency:            c.Currency,
		IsPayment:           true,
		Status:              model.StatusCompleted,
		TrxnID:              c.TrxnID,
		TrxnResultCode:      req.TrxnResultCode,
		PaymentProcessorID:  req.PaymentProcessorID,
		PaymentInstrumentID: c.PaymentInstrumentID,
		CheckNumber:         c.CheckNumber,
		CardTypeID:          c.CardTypeID,
		PanTruncation:       c.PanTruncation,
	})
	if err != nil {
		return err
	}
	m.op.Add(trxn.ID)
	if err := e.recorder.AssignProportional(ctx, trxn, c.ID, c.TotalAmount); err != nil {
		return err
	}

	balance, err := e.recorder.Balance(ctx, c.ID)
	if err != nil {
		return err
	}
	itemStatus := model.ItemPartiallyPaid
	c.Status = model.StatusPartiallyPaid
	if !balance.IsPositive() {
		c.Status = model.StatusCompleted
		itemStatus = model.ItemPaid
	}
	if _, err := e.recorder.SetItemsStatus(ctx, c.ID, itemStatus); err != nil {
		return err
	}
	return e.store.Save(ctx, c)
}

// updateRecur moves the recurring series along with its first payment.
func (e *Engine) updateRecur(ctx context.Context, m *mutation) error {
	c := m.c
	if c.ContributionRecurID == 0 || c.Status == m.prev.Status {
		return nil
	}
	recur, err := e.store.GetContributionRecur(ctx, c.ContributionRecurID)
	if err != nil {
		return err
	}
	if recur.Status != model.StatusPending {
		return nil
	}
	switch c.Status {
	case model.StatusCompleted:
		recur.Status = model.StatusInProgress
	case model.StatusFailed:
		recur.Status = model.StatusFailed
	default:
		return nil
	}
	return e.store.Save(ctx, recur)
}

// recordUpdate posts the difference between the stored contribution and the
// edit. Each kind of change is posted as its own transaction: a financial
// type change, a status change, a payment instrument change and an amount
// change, followed by the fee difference.
func (e *Engine) recordUpdate(ctx context.Context, m *mutation) error {
	c, prev := m.c, m.prev
	if !shouldPost(c) {
		return nil
	}
	if !shouldPost(prev) {
		if c.Status == model.StatusCompleted {
			return e.recordCreate(ctx, m)
		}
		return nil
	}

	timer := telemetry.StartTimer(ctx, "contribution.record_update")
	defer timer.End()

	base, err := e.baseTrxn(ctx, m)
	if err != nil {
		return err
	}

	posted := false

	oldIncome, err := e.accounts.IncomeAccount(ctx, prev.FinancialTypeID, prev.RevenueRecognitionDate)
	if err != nil {
		return err
	}
	newIncome, err := e.accounts.IncomeAccount(ctx, c.FinancialTypeID, c.RevenueRecognitionDate)
	if err != nil {
		return err
	}
	typeChanged := oldIncome != newIncome
	if typeChanged {
		if err := e.changeFinancialType(ctx, m, base); err != nil {
			return err
		}
		posted = true
	}

	if c.Status != prev.Status && postsStatusChange(prev.Status, c.Status) {
		if err := e.changeStatus(ctx, m, base); err != nil {
			return err
		}
		posted = true
	}

	if instrumentChanged(m) {
		if err := e.changeInstrument(ctx, m); err != nil {
			return err
		}
		posted = true
	}

	if !typeChanged && !c.TotalAmount.Equal(prev.TotalAmount) {
		if err := e.changeAmount(ctx, m, base); err != nil {
			return err
		}
		posted = true
	}

	if !c.FeeAmount.Equal(prev.FeeAmount) {
		latest, err := e.store.LatestContributionTrxn(ctx, c.ID)
		if err != nil {
			return err
		}
		if latest != nil {
			if err := e.recordFees(ctx, m, c.FeeAmount.Sub(prev.FeeAmount), latest); err != nil {
				return err
			}
			posted = true
		}
	}

	if !posted {
		return e.correctPayment(ctx, m)
	}
	return nil
}

// baseTrxn returns the transaction parameters shared by the postings of an
// edit. Amounts are those of the stored contribution.
func (e *Engine) baseTrxn(ctx context.Context, m *mutation) (ledger.TrxnParams, error) {
	c, prev := m.c, m.prev
	p := ledger.TrxnParams{
		ContributionID:      c.ID,
		TrxnDate:            m.trxnDate(),
		TotalAmount:         decimal.NewNullDecimal(prev.TotalAmount),
		FeeAmount:           prev.FeeAmount,
		NetAmount:           decimal.NewNullDecimal(prev.NetAmount),
		Currency:            c.Currency,
		IsPayment:           !c.Status.IsPending(),
		Status:              c.Status,
		TrxnID:              c.TrxnID,
		TrxnResultCode:      m.req.TrxnResultCode,
		PaymentProcessorID:  m.req.PaymentProcessorID,
		PaymentInstrumentID: prev.PaymentInstrumentID,
		CheckNumber:         prev.CheckNumber,
		CardTypeID:          c.CardTypeID,
		PanTruncation:       c.PanTruncation,
	}
	if completesPending(prev.Status, c.Status) {
		p.PaymentInstrumentID = c.PaymentInstrumentID
		p.CheckNumber = c.CheckNumber
	}

	var err error
	if c.Status.IsPending() || c.Status == model.StatusPartiallyPaid {
		p.ToAccountID, err = e.accounts.ReceivableAccount(ctx, c.FinancialTypeID)
	} else {
		p.ToAccountID, err = e.accounts.PaymentAccount(ctx, m.req.PaymentProcessorID, p.PaymentInstrumentID)
	}
	return p, err
}

func completesPending(from, to model.ContributionStatus) bool {
	return from.IsPending() && to == model.StatusCompleted
}

// postsStatusChange reports whether moving from one status to another
// posts to the ledger. Completing a partially paid contribution or a pending
// refund is posted by the payment that completes it, and moving between
// reversal statuses moves no money.
func postsStatusChange(from, to model.ContributionStatus) bool {
	switch {
	case from == model.StatusPartiallyPaid && to == model.StatusCompleted,
		from == model.StatusPendingRefund && to == model.StatusCompleted,
		from == model.StatusPending && to == model.StatusPartiallyPaid,
		from.IsReversal() && to.IsReversal():
		return false
	}
	return true
}

// changeFinancialType reverses the stored lines under their old accounts and
// posts the current lines under the accounts of the new financial type.
func (e *Engine) changeFinancialType(ctx context.Context, m *mutation, base ledger.TrxnParams) error {
	c, prev := m.c, m.prev
	to := base.ToAccountID
	if !prev.Status.IsPending() {
		latest, err := e.store.LatestContributionTrxn(ctx, c.ID)
		if err != nil {
			return err
		}
		if latest != nil {
			to = latest.ToFinancialAccountID
		}
	}

	rev := base
	rev.ToAccountID = to
	rev.TotalAmount = decimal.NewNullDecimal(prev.TotalAmount.Neg())
	rev.FeeAmount = decimal.Zero
	rev.NetAmount = rev.TotalAmount
	rev.Status = prev.Status
	reversal, err := e.recorder.CreateTransaction(ctx, rev)
	if err != nil {
		return err
	}
	m.op.Add(reversal.ID)

	for i := range m.prevLines {
		line := &m.prevLines[i]
		prevItem, err := e.latestItem(ctx, line)
		if err != nil {
			return err
		}
		account, status := prevItem.FinancialAccountID, prevItem.Status
		if account == 0 {
			if account, err = e.accounts.IncomeAccount(ctx, line.FinancialTypeID, prev.RevenueRecognitionDate); err != nil {
				return err
			}
			status = model.ItemStatusFor(prev.Status)
		}
		_, err = e.recorder.CreateFinancialItem(ctx, ledger.ItemParams{
			ContactID:       c.ContactID,
			Currency:        c.Currency,
			TransactionDate: m.trxnDate(),
			AccountID:       account,
			Status:          status,
			Line:            line,
		}, ledger.ContextChangeFinancialType, []snowflake.ID{reversal.ID})
		if err != nil {
			return err
		}
		if tax := line.Tax(); !tax.IsZero() {
			if err := e.postTax(ctx, m, line, line.FinancialTypeID, tax.Neg(), status, []snowflake.ID{reversal.ID}); err != nil {
				return err
			}
		}
	}

	rep := base
	rep.ToAccountID = to
	rep.TotalAmount = decimal.NewNullDecimal(c.TotalAmount)
	rep.FeeAmount = decimal.Zero
	rep.NetAmount = rep.TotalAmount
	rep.Status = prev.Status
	repost, err := e.recorder.CreateTransaction(ctx, rep)
	if err != nil {
		return err
	}
	m.op.Add(repost.ID)

	status := model.ItemStatusFor(prev.Status)
	for i := range m.lines {
		if err := e.postLine(ctx, m, &m.lines[i], status, []snowflake.ID{repost.ID}); err != nil {
			return err
		}
	}
	return nil
}

// changeStatus posts a status change of the stored lines.
func (e *Engine) changeStatus(ctx context.Context, m *mutation, base ledger.TrxnParams) error {
	c, prev := m.c, m.prev
	switch {
	case completesPending(prev.Status, c.Status):
		return e.completePending(ctx, m, base)
	case prev.Status.IsPending() && c.Status == model.StatusCancelled:
		ar, err := e.accounts.ReceivableAccount(ctx, prev.FinancialTypeID)
		if err != nil {
			return err
		}
		base.ToAccountID = ar
		base.IsPayment = false
		base.TotalAmount = decimal.NewNullDecimal(prev.TotalAmount.Neg())
		return e.postStatusItems(ctx, m, base, false)
	case prev.Status == model.StatusCompleted && c.Status.IsReversal():
		base.TotalAmount = decimal.NewNullDecimal(prev.TotalAmount.Neg())
		return e.postStatusItems(ctx, m, base, true)
	}
	base.TotalAmount = decimal.NewNullDecimal(
		ledger.Multiplier(ledger.ContextChangedStatus, c.Status).Mul(prev.TotalAmount))
	return e.postStatusItems(ctx, m, base, false)
}

// completePending moves the receivable of a pending contribution to the
// deposit account and marks its items paid.
func (e *Engine) completePending(ctx context.Context, m *mutation, base ledger.TrxnParams) error {
	if len(m.lines) == 0 {
		return nil
	}
	ar, err := e.accounts.ReceivableAccount(ctx, m.prev.FinancialTypeID)
	if err != nil {
		return err
	}
	base.FromAccountID = ar
	base.IsPayment = true
	trxn, err := e.recorder.CreateTransaction(ctx, base)
	if err != nil {
		return err
	}
	m.op.Add(trxn.ID)

	for i := range m.prevLines {
		line := &m.prevLines[i]
		items, err := e.store.FinancialItems(ctx, model.TableLineItem, line.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			if err := e.postLine(ctx, m, line, model.ItemPaid, nil); err != nil {
				return err
			}
		}
	}

	items, err := e.recorder.SetItemsStatus(ctx, m.c.ID, model.ItemPaid)
	if err != nil {
		return err
	}
	return e.recorder.LinkItems(ctx, items, []snowflake.ID{trxn.ID})
}

// postStatusItems posts a status change transaction and one item per stored
// line at the account the new status books to. withTax folds the line tax
// into the item; otherwise the tax is posted as its own item.
func (e *Engine) postStatusItems(ctx context.Context, m *mutation, p ledger.TrxnParams, withTax bool) error {
	c := m.c
	p.FeeAmount = decimal.Zero
	p.NetAmount = p.TotalAmount
	if c.Status.IsReversal() {
		if c.CancelDate != nil {
			p.TrxnDate = *c.CancelDate
		}
		if m.req.RefundTrxnID != nil {
			p.TrxnID = *m.req.RefundTrxnID
		}
	}
	trxn, err := e.recorder.CreateTransaction(ctx, p)
	if err != nil {
		return err
	}
	m.op.Add(trxn.ID)

	mult := ledger.Multiplier(ledger.ContextChangedStatus, c.Status)
	for i := range m.prevLines {
		line := &m.prevLines[i]
		prevItem, err := e.latestItem(ctx, line)
		if err != nil {
			return err
		}
		fallback := prevItem.FinancialAccountID
		if fallback == 0 {
			if fallback, err = e.accounts.IncomeAccount(ctx, line.FinancialTypeID, c.RevenueRecognitionDate); err != nil {
				return err
			}
		}
		account, err := e.accounts.StatusChangeAccount(ctx, line.FinancialTypeID, c.Status, fallback)
		if err != nil {
			return err
		}
		status := model.ItemStatusFor(c.Status)
		if prevItem.Status != 0 && c.Status != model.StatusCompleted {
			status = prevItem.Status
		}

		_, err = e.recorder.CreateFinancialItem(ctx, ledger.ItemParams{
			ContactID:       c.ContactID,
			Description:     prevItem.Description,
			Currency:        c.Currency,
			TransactionDate: p.TrxnDate,
			AccountID:       account,
			Status:          status,
			Line:            line,
			Target:          c.Status,
			IncludeTax:      withTax,
		}, ledger.ContextChangedStatus, []snowflake.ID{trxn.ID})
		if err != nil {
			return err
		}
		if tax := line.Tax(); !withTax && !tax.IsZero() {
			if err := e.postTax(ctx, m, line, line.FinancialTypeID, mult.Mul(tax), status, []snowflake.ID{trxn.ID}); err != nil {
				return err
			}
		}
	}
	return nil
}

// instrumentChanged reports whether an edit moved the payment to another
// instrument or check.
func instrumentChanged(m *mutation) bool {
	c, prev := m.c, m.prev
	if m.req.PaymentInstrumentID == 0 || completesPending(prev.Status, c.Status) ||
		c.Status.IsPending() || c.Status == model.StatusPartiallyPaid {
		return false
	}
	switch {
	case prev.PaymentInstrumentID == 0:
		return true
	case prev.PaymentInstrumentID != c.PaymentInstrumentID:
		return true
	}
	return c.CheckNumber != "" && c.CheckNumber != prev.CheckNumber
}

// changeInstrument reverses the latest payment and posts it again to the
// account of the new instrument.
func (e *Engine) changeInstrument(ctx context.Context, m *mutation) error {
	c := m.c
	latest, err := e.store.LatestContributionTrxn(ctx, c.ID)
	if err != nil || latest == nil {
		return err
	}
	reversal, err := e.recorder.ReverseTransaction(ctx, latest, c.ID, latest.Status, m.trxnDate())
	if err != nil {
		return err
	}
	m.op.Add(reversal.ID)

	to, err := e.accounts.PaymentAccount(ctx, m.req.PaymentProcessorID, c.PaymentInstrumentID)
	if err != nil {
		return err
	}
	trxn, err := e.recorder.CreateTransaction(ctx, ledger.TrxnParams{
		ContributionID:      c.ID,
		FromAccountID:       latest.FromFinancialAccountID,
		ToAccountID:         to,
		TrxnDate:            m.trxnDate(),
		TotalAmount:         decimal.NewNullDecimal(latest.TotalAmount),
		FeeAmount:           latest.FeeAmount,
		NetAmount:           decimal.NewNullDecimal(latest.NetAmount),
		Currency:            latest.Currency,
		IsPayment:           latest.IsPayment,
		Status:              latest.Status,
		TrxnID:              latest.TrxnID,
		PaymentProcessorID:  latest.PaymentProcessorID,
		PaymentInstrumentID: c.PaymentInstrumentID,
		CheckNumber:         c.CheckNumber,
		CardTypeID:          c.CardTypeID,
		PanTruncation:       c.PanTruncation,
	})
	if err != nil {
		return err
	}
	m.op.Add(trxn.ID)

	if m.prev.TotalAmount.IsZero() {
		return nil
	}
	for _, t := range []*model.FinancialTrxn{reversal, trxn} {
		if err := e.recorder.AssignProportional(ctx, t, c.ID, m.prev.TotalAmount); err != nil {
			return err
		}
	}
	return nil
}

// changeAmount posts the difference of the total and of every changed line.
func (e *Engine) changeAmount(ctx context.Context, m *mutation, base ledger.TrxnParams) error {
	c := m.c
	delta := c.TotalAmount.Sub(m.prev.TotalAmount)
	p := base
	p.FromAccountID = 0
	p.TotalAmount = decimal.NewNullDecimal(delta)
	p.FeeAmount = decimal.Zero
	p.NetAmount = p.TotalAmount
	trxn, err := e.recorder.CreateTransaction(ctx, p)
	if err != nil {
		return err
	}
	m.op.Add(trxn.ID)

	status := model.ItemStatusFor(c.Status)
	for i := range m.lines {
		line := &m.lines[i]
		var prevLine *model.LineItem
		if j := slices.IndexFunc(m.prevLines, func(l model.LineItem) bool { return l.ID == line.ID }); j >= 0 {
			prevLine = &m.prevLines[j]
		}
		prevTotal, prevTax := decimal.Zero, decimal.Zero
		if prevLine != nil {
			prevTotal, prevTax = prevLine.LineTotal, prevLine.Tax()
		}
		if prevTotal.Equal(line.LineTotal) && prevTax.Equal(line.Tax()) {
			continue
		}

		if !prevTotal.Equal(line.LineTotal) {
			prevItem, err := e.latestItem(ctx, line)
			if err != nil {
				return err
			}
			fallback := prevItem.FinancialAccountID
			if fallback == 0 {
				if fallback, err = e.accounts.IncomeAccount(ctx, line.FinancialTypeID, c.RevenueRecognitionDate); err != nil {
					return err
				}
			}
			account, err := e.accounts.StatusChangeAccount(ctx, line.FinancialTypeID, c.Status, fallback)
			if err != nil {
				return err
			}
			_, err = e.recorder.CreateFinancialItem(ctx, ledger.ItemParams{
				ContactID:       c.ContactID,
				Currency:        c.Currency,
				TransactionDate: m.trxnDate(),
				AccountID:       account,
				Status:          status,
				Line:            line,
				PrevLine:        prevLine,
			}, ledger.ContextChangedAmount, []snowflake.ID{trxn.ID})
			if err != nil {
				return err
			}
		}
		if taxDelta := line.Tax().Sub(prevTax); !taxDelta.IsZero() {
			if err := e.postTax(ctx, m, line, line.FinancialTypeID, taxDelta, status, []snowflake.ID{trxn.ID}); err != nil {
				return err
			}
		}
	}
	return nil
}

// correctPayment applies edits that post nothing but amend the latest
// payment: the processor id of a refund and the card details of a payment.
func (e *Engine) correctPayment(ctx context.Context, m *mutation) error {
	req := m.req
	refund := req.RefundTrxnID != nil && *req.RefundTrxnID != ""
	card := req.CardTypeID != 0 || req.PanTruncation != ""
	if !refund && !card {
		return nil
	}

	trxns, err := e.store.ContributionTrxns(ctx, m.c.ID)
	if err != nil {
		return err
	}
	latest := func(match func(t *model.FinancialTrxn) bool) *model.FinancialTrxn {
		for i := len(trxns) - 1; i >= 0; i-- {
			if t := &trxns[i]; t.IsPayment && !t.IsFee && match(t) {
				return t
			}
		}
		return nil
	}

	if refund {
		if t := latest(func(t *model.FinancialTrxn) bool { return t.TotalAmount.IsNegative() }); t != nil {
			t.TrxnID = *req.RefundTrxnID
			if err := e.store.Save(ctx, t); err != nil {
				return err
			}
		}
	}
	if card {
		if t := latest(func(t *model.FinancialTrxn) bool { return t.TotalAmount.IsPositive() }); t != nil {
			if req.CardTypeID != 0 {
				t.CardTypeID = req.CardTypeID
			}
			if req.PanTruncation != "" {
				t.PanTruncation = req.PanTruncation
			}
			if err := e.store.Save(ctx, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// latestItem returns the most recent non-tax financial item of line, or an
// empty item when the line has none.
func (e *Engine) latestItem(ctx context.Context, line *model.LineItem) (model.FinancialItem, error) {
	items, err := e.store.FinancialItems(ctx, model.TableLineItem, line.ID)
	if err != nil {
		return model.FinancialItem{}, err
	}
	for i := len(items) - 1; i >= 0; i-- {
		isTax, err := e.accounts.IsSalesTaxAccount(ctx, items[i].FinancialAccountID)
		if err != nil {
			return model.FinancialItem{}, err
		}
		if !isTax {
			return items[i], nil
		}
	}
	return model.FinancialItem{}, nil
}
