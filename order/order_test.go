package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/accounts"
	"github.com/robinvdvleuten/contribute/accounts/accountstest"
	"github.com/robinvdvleuten/contribute/contribution"
	"github.com/robinvdvleuten/contribute/ledger"
	"github.com/robinvdvleuten/contribute/lineitem"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/order"
	"github.com/robinvdvleuten/contribute/receipt"
	"github.com/robinvdvleuten/contribute/store"
	"github.com/robinvdvleuten/contribute/store/storetest"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func boolPtr(v bool) *bool { return &v }

type fixture struct {
	store    *store.Store
	chart    *accountstest.Chart
	engine   *contribution.Engine
	orders   *order.Orchestrator
	receipts []*receipt.Receipt
	sendErr  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storetest.New(t)
	chart := accountstest.Seed(t, s)
	resolver := accounts.NewResolver(s, accounts.WithoutCache())
	clock := func() time.Time { return now }
	f := &fixture{store: s, chart: chart}
	f.engine = contribution.New(s, resolver, ledger.New(s, resolver, ledger.WithClock(clock)),
		contribution.WithClock(clock))
	f.orders = order.New(f.engine,
		order.WithClock(clock),
		order.WithSender(receipt.SenderFunc(func(ctx context.Context, r *receipt.Receipt) error {
			if f.sendErr != nil {
				return f.sendErr
			}
			f.receipts = append(f.receipts, r)
			return nil
		})))
	return f
}

func (f *fixture) create(t *testing.T, req *contribution.Request) *model.Contribution {
	t.Helper()
	if req.ContactID == 0 {
		req.ContactID = 42
	}
	if req.FinancialTypeID == 0 {
		req.FinancialTypeID = f.chart.Types["Donation"]
	}
	res, err := f.engine.Save(context.Background(), req)
	assert.NoError(t, err)
	return res.Contribution
}

func (f *fixture) pending(t *testing.T, total string) *model.Contribution {
	t.Helper()
	return f.create(t, &contribution.Request{TotalAmount: amount(total), Status: model.StatusPending})
}

func TestCompleteOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.pending(t, "100")
	assert.Equal(t, 0, len(f.trxns(t, c.ID)))

	paid := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	res, err := f.orders.CompleteOrder(ctx, order.Input{
		ContributionID: c.ID,
		TrxnID:         "tx-9",
		TrxnDate:       &paid,
		FeeAmount:      amount("2.50"),
		PanTruncation:  "4242",
		CardTypeID:     1,
		TotalAmount:    amount("999"),
	})
	assert.NoError(t, err)
	assert.False(t, res.Repeated)

	got := res.Contribution
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "tx-9", got.TrxnID)
	assert.Equal(t, "100.00", got.TotalAmount.StringFixed(2))
	assert.Equal(t, "2.50", got.FeeAmount.StringFixed(2))
	assert.Equal(t, "97.50", got.NetAmount.StringFixed(2))
	assert.Equal(t, paid, got.ReceiveDate.UTC())

	info, err := f.engine.PaymentInfo(ctx, c.ID)
	assert.NoError(t, err)
	assert.Equal(t, "100.00", info.Paid.StringFixed(2))
	assert.Equal(t, "4242", info.Payments[0].PanTruncation)

	activities, err := f.store.Activities(ctx, c.ID)
	assert.NoError(t, err)
	subjects := []string{}
	for _, a := range activities {
		if a.ActivityType == model.ActivityContribution {
			subjects = append(subjects, a.Subject)
		}
	}
	assert.Equal(t, []string{"$100.00"}, subjects)

	assert.Equal(t, 1, len(f.receipts))
	assert.Equal(t, res.Receipt, f.receipts[0])
	assert.Equal(t, c.InvoiceNumber, res.Receipt.InvoiceNumber)
	stored, err := f.store.GetContribution(ctx, c.ID)
	assert.NoError(t, err)
	assert.Equal(t, now, stored.ReceiptDate.UTC())
}

func (f *fixture) trxns(t *testing.T, id snowflake.ID) []model.FinancialTrxn {
	t.Helper()
	trxns, err := f.store.ContributionTrxns(context.Background(), id)
	assert.NoError(t, err)
	return trxns
}

func TestCompleteOrderTwice(t *testing.T) {
	f := newFixture(t)
	c := f.pending(t, "10")

	_, err := f.orders.CompleteOrder(context.Background(), order.Input{ContributionID: c.ID})
	assert.NoError(t, err)

	_, err = f.orders.CompleteOrder(context.Background(), order.Input{ContributionID: c.ID})
	var done *order.AlreadyCompletedError
	assert.True(t, errors.As(err, &done))
	assert.Equal(t, c.ID, done.GetContributionID())
	assert.Equal(t, 1, len(f.trxns(t, c.ID)))
}

func TestCompleteOrderMissingIDs(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.CompleteOrder(context.Background(), order.Input{})
	var missing *contribution.MissingFieldError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, "contribution_id", missing.GetField())

	_, err = f.orders.RepeatTransaction(context.Background(), order.Input{})
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, "contribution_recur_id", missing.GetField())
}

func TestCompleteOrderReceipts(t *testing.T) {
	t.Run("Suppressed", func(t *testing.T) {
		f := newFixture(t)
		c := f.pending(t, "10")
		res, err := f.orders.CompleteOrder(context.Background(), order.Input{ContributionID: c.ID, IsEmailReceipt: boolPtr(false)})
		assert.NoError(t, err)
		assert.Zero(t, res.Receipt)
		assert.Equal(t, 0, len(f.receipts))
	})

	t.Run("FailureIsNotFatal", func(t *testing.T) {
		f := newFixture(t)
		f.sendErr = errors.New("smtp down")
		c := f.pending(t, "10")
		res, err := f.orders.CompleteOrder(context.Background(), order.Input{ContributionID: c.ID})
		assert.NoError(t, err)
		assert.Zero(t, res.Receipt)
		assert.Equal(t, model.StatusCompleted, res.Contribution.Status)

		stored, err := f.store.GetContribution(context.Background(), c.ID)
		assert.NoError(t, err)
		assert.Zero(t, stored.ReceiptDate)
	})
}

func TestCompleteOrderFinancialType(t *testing.T) {
	f := newFixture(t)
	c := f.pending(t, "100")

	res, err := f.orders.CompleteOrder(context.Background(), order.Input{
		ContributionID:  c.ID,
		FinancialTypeID: f.chart.Types["Member Dues"],
	})
	assert.NoError(t, err)
	assert.Equal(t, f.chart.Types["Member Dues"], res.Contribution.FinancialTypeID)

	lines, err := f.store.LineItems(context.Background(), c.ID)
	assert.NoError(t, err)
	assert.Equal(t, f.chart.Types["Member Dues"], lines[0].FinancialTypeID)
}

func (f *fixture) recur(t *testing.T) *model.ContributionRecur {
	t.Helper()
	r := &model.ContributionRecur{
		ContactID:     42,
		Amount:        decimal.NewFromInt(10),
		Currency:      "USD",
		FrequencyUnit: model.UnitMonth,
		StartDate:     now,
		Status:        model.StatusInProgress,
		CreatedAt:     now,
	}
	assert.NoError(t, f.store.CreateContributionRecur(context.Background(), r))
	return r
}

func TestRepeatTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mt := &model.MembershipType{Name: "General", DurationUnit: model.UnitYear, DurationInterval: 1, PeriodType: model.PeriodRolling}
	assert.NoError(t, f.store.CreateMembershipType(ctx, mt))
	m := &model.Membership{ContactID: 42, MembershipTypeID: mt.ID, Status: model.MembershipPending}
	assert.NoError(t, f.store.CreateMembership(ctx, m))

	r := f.recur(t)
	first := f.create(t, &contribution.Request{
		TotalAmount:         amount("10"),
		ContributionRecurID: r.ID,
		MembershipID:        m.ID,
		TrxnID:              "tx-1",
		Source:              "Online donation",
	})

	res, err := f.orders.CompleteOrder(ctx, order.Input{ContributionRecurID: r.ID, TrxnID: "tx-2"})
	assert.NoError(t, err)
	assert.True(t, res.Repeated)

	next := res.Contribution
	assert.NotEqual(t, first.ID, next.ID)
	assert.Equal(t, model.StatusCompleted, next.Status)
	assert.Equal(t, order.RecurringSource, next.Source)
	assert.Equal(t, r.ID, next.ContributionRecurID)
	assert.Equal(t, first.ContactID, next.ContactID)
	assert.Equal(t, "10.00", next.TotalAmount.StringFixed(2))
	assert.Equal(t, "tx-2", next.TrxnID)

	memberships, err := f.store.ContributionMemberships(ctx, next.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(memberships))
	assert.Equal(t, []snowflake.ID{m.ID}, res.Components.Memberships)

	info, err := f.engine.PaymentInfo(ctx, next.ID)
	assert.NoError(t, err)
	assert.Equal(t, "10.00", info.Paid.StringFixed(2))
}

func TestRepeatTransactionPrefersTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.recur(t)

	f.create(t, &contribution.Request{TotalAmount: amount("10"), ContributionRecurID: r.ID})
	f.create(t, &contribution.Request{
		TotalAmount:         amount("25"),
		ContributionRecurID: r.ID,
		Status:              model.StatusTemplate,
		IsTemplate:          boolPtr(true),
	})

	res, err := f.orders.RepeatTransaction(ctx, order.Input{ContributionRecurID: r.ID, Source: "Monthly run"})
	assert.NoError(t, err)
	assert.Equal(t, "25.00", res.Contribution.TotalAmount.StringFixed(2))
	assert.Equal(t, "Monthly run", res.Contribution.Source)
	assert.False(t, res.Contribution.IsTemplate)
}

func TestRepeatTransactionNewAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.recur(t)
	f.create(t, &contribution.Request{TotalAmount: amount("10"), ContributionRecurID: r.ID})

	res, err := f.orders.CompleteOrder(ctx, order.Input{ContributionRecurID: r.ID, TotalAmount: amount("15")})
	assert.NoError(t, err)
	assert.Equal(t, "15.00", res.Contribution.TotalAmount.StringFixed(2))

	lines, err := f.store.LineItems(ctx, res.Contribution.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(lines))
	assert.Equal(t, "15.00", lines[0].LineTotal.StringFixed(2))
}

func TestRepeatTransactionNewAmountWithTax(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.chart.EnableTax(t, "Donation", "10")
	r := f.recur(t)
	tmpl := f.create(t, &contribution.Request{TotalAmount: amount("100"), ContributionRecurID: r.ID})
	assert.Equal(t, "110.00", tmpl.TotalAmount.StringFixed(2))

	res, err := f.orders.CompleteOrder(ctx, order.Input{ContributionRecurID: r.ID, TotalAmount: amount("220")})
	assert.NoError(t, err)
	assert.Equal(t, "220.00", res.Contribution.TotalAmount.StringFixed(2))

	lines, err := f.store.LineItems(ctx, res.Contribution.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(lines))
	assert.Equal(t, "200.00", lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "20.00", lines[0].Tax().StringFixed(2))
}

func TestRepeatTransactionKeepsUnpricedLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.recur(t)

	set := lineitem.Set{}
	for _, total := range []int64{30, 20} {
		set.Add(model.LineItem{
			FinancialTypeID: f.chart.Types["Donation"],
			Qty:             decimal.NewFromInt(1),
			UnitPrice:       decimal.NewFromInt(total),
			LineTotal:       decimal.NewFromInt(total),
		})
	}
	tmpl := f.create(t, &contribution.Request{LineItems: set, ContributionRecurID: r.ID})
	assert.Equal(t, "50.00", tmpl.TotalAmount.StringFixed(2))

	res, err := f.orders.CompleteOrder(ctx, order.Input{ContributionRecurID: r.ID})
	assert.NoError(t, err)
	assert.Equal(t, "50.00", res.Contribution.TotalAmount.StringFixed(2))

	lines, err := f.store.LineItems(ctx, res.Contribution.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(lines))
	assert.Equal(t, "30.00", lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "20.00", lines[1].LineTotal.StringFixed(2))
}

func TestRepeatTransactionWithoutHistory(t *testing.T) {
	f := newFixture(t)
	r := f.recur(t)

	_, err := f.orders.CompleteOrder(context.Background(), order.Input{ContributionRecurID: r.ID})
	var nf *store.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestSendConfirmation(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, &contribution.Request{TotalAmount: amount("10")})

	r, err := f.orders.SendConfirmation(context.Background(), c.ID)
	assert.NoError(t, err)
	assert.Equal(t, "donations@example.org", r.From)
	assert.Equal(t, 1, len(f.receipts))

	_, err = f.orders.SendConfirmation(context.Background(), 12345)
	assert.Error(t, err)
}
