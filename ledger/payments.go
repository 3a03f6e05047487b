package ledger

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/contribute/model"
)

// FeeDescription describes the financial item of a processor fee.
const FeeDescription = "Fee"

// AssignProportional spreads a payment over the line items of a
// contribution. Each line's most recent item, and its most recent tax item,
// is linked for amount * trxn total / contribution total. Lines with a zero
// quantity are skipped.
func (r *Recorder) AssignProportional(ctx context.Context, trxn *model.FinancialTrxn, contributionID snowflake.ID, contributionTotal decimal.Decimal) error {
	if contributionTotal.IsZero() {
		return &ZeroTotalError{ContributionID: contributionID}
	}

	lines, err := r.store.LineItems(ctx, contributionID)
	if err != nil {
		return err
	}

	for _, line := range lines {
		if line.Qty.IsZero() {
			continue
		}
		items, err := r.store.FinancialItems(ctx, model.TableLineItem, line.ID)
		if err != nil {
			return err
		}

		lastItem, lastTax := -1, -1
		for i := range items {
			isTax, err := r.accounts.IsSalesTaxAccount(ctx, items[i].FinancialAccountID)
			if err != nil {
				return err
			}
			if isTax {
				lastTax = i
			} else {
				lastItem = i
			}
		}

		for _, i := range []int{lastItem, lastTax} {
			if i < 0 {
				continue
			}
			paid := items[i].Amount.Mul(trxn.TotalAmount).Div(contributionTotal).Round(2)
			if _, err := r.CreateEntityLink(ctx, trxn.ID, items[i].ID, paid); err != nil {
				return err
			}
		}
	}
	return nil
}

// FeeParams describes a processor fee.
type FeeParams struct {
	ContributionID  snowflake.ID
	ContactID       snowflake.ID
	FinancialTypeID snowflake.ID
	// FromAccountID is the account the payment was deposited to.
	FromAccountID      snowflake.ID
	FeeAmount          decimal.Decimal
	Currency           string
	TrxnDate           time.Time
	TrxnID             string
	Status             model.ContributionStatus
	PaymentProcessorID snowflake.ID
}

// RecordFees posts a processor fee: a transaction from the deposit account
// to the Expense account of the financial type and a financial item mirroring
// it.
func (r *Recorder) RecordFees(ctx context.Context, p FeeParams) (*model.FinancialTrxn, error) {
	expense, err := r.accounts.ExpenseAccount(ctx, p.FinancialTypeID)
	if err != nil {
		return nil, err
	}

	var trxn *model.FinancialTrxn
	err = r.store.Transaction(ctx, func(ctx context.Context) error {
		var err error
		trxn, err = r.CreateTransaction(ctx, TrxnParams{
			ContributionID:     p.ContributionID,
			FromAccountID:      p.FromAccountID,
			ToAccountID:        expense,
			TrxnDate:           p.TrxnDate,
			TotalAmount:        decimal.NewNullDecimal(p.FeeAmount),
			NetAmount:          decimal.NewNullDecimal(p.FeeAmount),
			Currency:           p.Currency,
			IsFee:              true,
			Status:             p.Status,
			TrxnID:             p.TrxnID,
			PaymentProcessorID: p.PaymentProcessorID,
		})
		if err != nil {
			return err
		}

		_, err = r.CreateFinancialItem(ctx, ItemParams{
			ContactID:       p.ContactID,
			Description:     FeeDescription,
			Currency:        p.Currency,
			TransactionDate: p.TrxnDate,
			AccountID:       expense,
			Status:          model.ItemPaid,
			EntityTable:     model.TableFinancialTrxn,
			EntityID:        trxn.ID,
			Amount:          decimal.NewNullDecimal(p.FeeAmount),
		}, ContextNone, []snowflake.ID{trxn.ID})
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("fee recorded",
		zap.Stringer("contribution_id", p.ContributionID),
		zap.String("fee", p.FeeAmount.StringFixed(2)))
	return trxn, nil
}

func isSettledPayment(t *model.FinancialTrxn) bool {
	return t.IsPayment && !t.IsFee && (t.Status == model.StatusCompleted || t.Status == model.StatusRefunded)
}

// Paid returns the sum of the settled payments of a contribution. Refunds
// are negative payments and reduce it.
func (r *Recorder) Paid(ctx context.Context, contributionID snowflake.ID) (decimal.Decimal, error) {
	trxns, err := r.store.ContributionTrxns(ctx, contributionID)
	if err != nil {
		return decimal.Zero, err
	}
	paid := decimal.Zero
	for i := range trxns {
		if isSettledPayment(&trxns[i]) {
			paid = paid.Add(trxns[i].TotalAmount)
		}
	}
	return paid, nil
}

// Balance returns the outstanding amount of a contribution: the total of its
// line items (or its total when it has none) minus what has been paid.
func (r *Recorder) Balance(ctx context.Context, contributionID snowflake.ID) (decimal.Decimal, error) {
	total, err := r.lineTotal(ctx, contributionID)
	if err != nil {
		return decimal.Zero, err
	}
	paid, err := r.Paid(ctx, contributionID)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Sub(paid), nil
}

func (r *Recorder) lineTotal(ctx context.Context, contributionID snowflake.ID) (decimal.Decimal, error) {
	lines, err := r.store.LineItems(ctx, contributionID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(lines) == 0 {
		c, err := r.store.GetContribution(ctx, contributionID)
		if err != nil {
			return decimal.Zero, err
		}
		return c.TotalAmount, nil
	}
	total := decimal.Zero
	for i := range lines {
		total = total.Add(lines[i].Total())
	}
	return total, nil
}

// PaymentInfo summarises the payments of a contribution.
type PaymentInfo struct {
	ContributionID snowflake.ID          `json:"contribution_id"`
	Currency       string                `json:"currency"`
	Total          decimal.Decimal       `json:"total"`
	Paid           decimal.Decimal       `json:"paid"`
	Balance        decimal.Decimal       `json:"balance"`
	Payments       []model.FinancialTrxn `json:"payments"`
}

// PaymentInfo returns the total, paid amount, balance and payment rows of a
// contribution. Fee rows are never listed.
func (r *Recorder) PaymentInfo(ctx context.Context, contributionID snowflake.ID) (*PaymentInfo, error) {
	c, err := r.store.GetContribution(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	total, err := r.lineTotal(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	trxns, err := r.store.ContributionTrxns(ctx, contributionID)
	if err != nil {
		return nil, err
	}

	info := &PaymentInfo{
		ContributionID: contributionID,
		Currency:       c.Currency,
		Total:          total,
		Paid:           decimal.Zero,
		Payments:       []model.FinancialTrxn{},
	}
	for i := range trxns {
		t := &trxns[i]
		if !t.IsPayment || t.IsFee {
			continue
		}
		info.Payments = append(info.Payments, *t)
		if isSettledPayment(t) {
			info.Paid = info.Paid.Add(t.TotalAmount)
		}
	}
	info.Balance = total.Sub(info.Paid)
	return info, nil
}

// AccountTotal is the net amount a contribution moved into an account.
type AccountTotal struct {
	AccountID snowflake.ID    `json:"financial_account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// AccountTotals sums the transactions of a contribution per account: the
// to-account is credited and the from-account debited. Accounts are returned
// in id order.
func (r *Recorder) AccountTotals(ctx context.Context, contributionID snowflake.ID) ([]AccountTotal, error) {
	trxns, err := r.store.ContributionTrxns(ctx, contributionID)
	if err != nil {
		return nil, err
	}

	totals := getAccountTotals()
	defer putAccountTotals(totals)

	for i := range trxns {
		t := &trxns[i]
		totals[t.ToFinancialAccountID] = totals[t.ToFinancialAccountID].Add(t.TotalAmount)
		if t.FromFinancialAccountID != 0 {
			totals[t.FromFinancialAccountID] = totals[t.FromFinancialAccountID].Sub(t.TotalAmount)
		}
	}

	ids := maps.Keys(totals)
	slices.Sort(ids)
	result := make([]AccountTotal, 0, len(ids))
	for _, id := range ids {
		result = append(result, AccountTotal{AccountID: id, Amount: totals[id]})
	}
	return result, nil
}
