package contribution_test

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
	"github.com/robinvdvleuten/contribute/store"
	"github.com/robinvdvleuten/contribute/store/storetest"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

type fixture struct {
	store  *store.Store
	chart  *accountstest.Chart
	engine *contribution.Engine
	hooks  *contribution.Hooks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storetest.New(t)
	chart := accountstest.Seed(t, s)
	resolver := accounts.NewResolver(s, accounts.WithoutCache())
	clock := func() time.Time { return now }
	hooks := contribution.NewHooks(nil)
	return &fixture{
		store: s,
		chart: chart,
		hooks: hooks,
		engine: contribution.New(s, resolver, ledger.New(s, resolver, ledger.WithClock(clock)),
			contribution.WithClock(clock),
			contribution.WithHooks(hooks)),
	}
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
	return f.create(t, &contribution.Request{
		TotalAmount: amount(total),
		Status:      model.StatusPending,
		IsPayLater:  boolPtr(true),
	})
}

func (f *fixture) trxns(t *testing.T, id snowflake.ID) []model.FinancialTrxn {
	t.Helper()
	trxns, err := f.store.ContributionTrxns(context.Background(), id)
	assert.NoError(t, err)
	return trxns
}

// items returns the amount and account name of every line item financial
// item of a contribution, in posting order.
func (f *fixture) items(t *testing.T, id snowflake.ID) []string {
	t.Helper()
	items, err := f.store.ContributionFinancialItems(context.Background(), id)
	assert.NoError(t, err)
	names := map[snowflake.ID]string{}
	for name, accountID := range f.chart.Accounts {
		names[accountID] = name
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Amount.StringFixed(2) + " " + names[item.FinancialAccountID]
	}
	return out
}

func boolPtr(v bool) *bool { return &v }

func TestCreateCompleted(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, &contribution.Request{TotalAmount: amount("100")})

	assert.Equal(t, model.StatusCompleted, c.Status)
	assert.Equal(t, "INV_"+c.ID.String(), c.InvoiceNumber)
	assert.Equal(t, "100.00", c.NetAmount.StringFixed(2))

	trxns := f.trxns(t, c.ID)
	assert.Equal(t, 1, len(trxns))
	assert.Equal(t, f.chart.Accounts["Deposit Bank Account"], trxns[0].ToFinancialAccountID)
	assert.Equal(t, "100.00", trxns[0].TotalAmount.StringFixed(2))
	assert.True(t, trxns[0].IsPayment)

	assert.Equal(t, []string{"100.00 Donation"}, f.items(t, c.ID))

	info, err := f.engine.PaymentInfo(context.Background(), c.ID)
	assert.NoError(t, err)
	assert.Equal(t, "100.00", info.Paid.StringFixed(2))
	assert.Equal(t, "0.00", info.Balance.StringFixed(2))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		req   *contribution.Request
		field string
	}{
		{name: "MissingContact", req: &contribution.Request{FinancialTypeID: 1, TotalAmount: amount("1")}, field: "contact_id"},
		{name: "MissingType", req: &contribution.Request{ContactID: 1, TotalAmount: amount("1")}, field: "financial_type_id"},
		{name: "MissingTotal", req: &contribution.Request{ContactID: 1, FinancialTypeID: 1}, field: "total_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Save(context.Background(), tt.req)
			var missing *contribution.MissingFieldError
			assert.True(t, errors.As(err, &missing))
			assert.Equal(t, tt.field, missing.Field)
		})
	}
}

func TestCreateWithTax(t *testing.T) {
	f := newFixture(t)
	f.chart.EnableTax(t, "Donation", "10")

	c := f.create(t, &contribution.Request{TotalAmount: amount("100")})
	assert.Equal(t, "110.00", c.TotalAmount.StringFixed(2))
	assert.Equal(t, "10.00", c.Tax().StringFixed(2))

	lines, err := f.store.LineItems(context.Background(), c.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(lines))
	assert.Equal(t, "100.00", lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "10.00", lines[0].Tax().StringFixed(2))

	assert.Equal(t, []string{"100.00 Donation", "10.00 Sales Tax Donation"}, f.items(t, c.ID))
}

func TestCreatePartialPayment(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, &contribution.Request{
		PartialPaymentTotal: amount("100"),
		PartialAmountToPay:  amount("40"),
	})
	assert.Equal(t, model.StatusPartiallyPaid, c.Status)
	assert.Equal(t, "100.00", c.TotalAmount.StringFixed(2))

	trxns := f.trxns(t, c.ID)
	assert.Equal(t, 2, len(trxns))
	assert.Equal(t, f.chart.Accounts["Accounts Receivable"], trxns[0].ToFinancialAccountID)
	assert.Equal(t, "100.00", trxns[0].TotalAmount.StringFixed(2))
	assert.False(t, trxns[0].IsPayment)
	assert.Equal(t, f.chart.Accounts["Accounts Receivable"], trxns[1].FromFinancialAccountID)
	assert.Equal(t, "40.00", trxns[1].TotalAmount.StringFixed(2))

	info, err := f.engine.PaymentInfo(context.Background(), c.ID)
	assert.NoError(t, err)
	assert.Equal(t, "40.00", info.Paid.StringFixed(2))
	assert.Equal(t, "60.00", info.Balance.StringFixed(2))
}

func TestCreatePendingOnlineIsNotPosted(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, &contribution.Request{TotalAmount: amount("25"), Status: model.StatusPending})
	assert.Equal(t, 0, len(f.trxns(t, c.ID)))
	assert.Equal(t, 0, len(f.items(t, c.ID)))
}

func TestDuplicateTrxnID(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, &contribution.Request{TotalAmount: amount("10"), TrxnID: "abc"})

	_, err := f.engine.Save(context.Background(), &contribution.Request{
		ContactID:       42,
		FinancialTypeID: f.chart.Types["Donation"],
		TotalAmount:     amount("10"),
		TrxnID:          "abc",
	})
	var dup *contribution.DuplicateError
	assert.True(t, errors.As(err, &dup))
	assert.Equal(t, []snowflake.ID{first.ID}, dup.IDs)

	rows, err := f.store.Contributions(context.Background(), 10)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(rows))

	// Editing the contribution that owns the id is not a duplicate.
	_, err = f.engine.Save(context.Background(), &contribution.Request{ID: first.ID, TrxnID: "abc", Source: "edit"})
	assert.NoError(t, err)
}

func TestLineItemMismatch(t *testing.T) {
	f := newFixture(t)
	set := lineitem.Set{}
	set.Add(model.LineItem{
		PriceFieldID:      1,
		PriceFieldValueID: 1,
		FinancialTypeID:   f.chart.Types["Donation"],
		Label:             "Gold",
		Qty:               decimal.NewFromInt(1),
		UnitPrice:         decimal.NewFromInt(50),
		LineTotal:         decimal.NewFromInt(50),
	})

	_, err := f.engine.Save(context.Background(), &contribution.Request{
		ContactID:       42,
		FinancialTypeID: f.chart.Types["Donation"],
		TotalAmount:     amount("100"),
		LineItems:       set,
	})
	var mismatch *lineitem.MismatchError
	assert.True(t, errors.As(err, &mismatch))

	rows, err := f.store.Contributions(context.Background(), 10)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(rows))
}

func TestCreateFromLineItems(t *testing.T) {
	f := newFixture(t)
	set := lineitem.Set{}
	for i, total := range []int64{30, 20} {
		set.Add(model.LineItem{
			PriceFieldID:      1,
			PriceFieldValueID: int64(i + 1),
			FinancialTypeID:   f.chart.Types["Donation"],
			Qty:               decimal.NewFromInt(1),
			UnitPrice:         decimal.NewFromInt(total),
			LineTotal:         decimal.NewFromInt(total),
		})
	}
	c := f.create(t, &contribution.Request{LineItems: set})
	assert.Equal(t, "50.00", c.TotalAmount.StringFixed(2))
	assert.Equal(t, []string{"30.00 Donation", "20.00 Donation"}, f.items(t, c.ID))
}

func TestInvalidStatusTransition(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, &contribution.Request{TotalAmount: amount("10")})

	_, err := f.engine.Save(context.Background(), &contribution.Request{ID: c.ID, Status: model.StatusPending})
	var transition *contribution.StatusTransitionError
	assert.True(t, errors.As(err, &transition))
	assert.Equal(t, "Cannot change contribution status from Completed to Pending.", err.Error())

	got, err := f.engine.Get(context.Background(), c.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, &contribution.Request{TotalAmount: amount("100")})

	res, err := f.engine.Save(context.Background(), &contribution.Request{ID: c.ID, Status: model.StatusRefunded})
	assert.NoError(t, err)
	assert.Equal(t, "CN_1", res.Contribution.CreditNoteID)
	assert.NotZero(t, res.Contribution.CancelDate)
	assert.Equal(t, model.StatusCompleted, res.Previous.Status)

	trxns := f.trxns(t, c.ID)
	assert.Equal(t, 2, len(trxns))
	assert.Equal(t, "-100.00", trxns[1].TotalAmount.StringFixed(2))
	assert.Equal(t, model.StatusRefunded, trxns[1].Status)
	assert.Equal(t, trxns[0].ToFinancialAccountID, trxns[1].ToFinancialAccountID)

	assert.Equal(t, []string{"100.00 Donation", "-100.00 Refunds"}, f.items(t, c.ID))

	info, err := f.engine.PaymentInfo(context.Background(), c.ID)
	assert.NoError(t, err)
	assert.Equal(t, "0.00", info.Paid.StringFixed(2))
}

func TestRefundWithTax(t *testing.T) {
	f := newFixture(t)
	f.chart.EnableTax(t, "Donation", "10")
	c := f.create(t, &contribution.Request{TotalAmount: amount("100")})

	_, err := f.engine.Save(context.Background(), &contribution.Request{ID: c.ID, Status: model.StatusRefunded})
	assert.NoError(t, err)

	trxns := f.trxns(t, c.ID)
	assert.Equal(t, "-110.00", trxns[len(trxns)-1].TotalAmount.StringFixed(2))
	assert.Equal(t, []string{
		"100.00 Donation",
		"10.00 Sales Tax Donation",
		"-110.00 Refunds",
	}, f.items(t, c.ID))
}

func TestChangeFinancialType(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, &contribution.Request{TotalAmount: amount("100")})

	_, err := f.engine.Save(context.Background(), &contribution.Request{
		ID:              c.ID,
		FinancialTypeID: f.chart.Types["Member Dues"],
	})
	assert.NoError(t, err)

	assert.Equal(t, []string{
		"100.00 Donation",
		"-100.00 Donation",
		"100.00 Member Dues",
	}, f.items(t, c.ID))

	trxns := f.trxns(t, c.ID)
	assert.Equal(t, 3, len(trxns))
	assert.Equal(t, "-100.00", trxns[1].TotalAmount.StringFixed(2))
	assert.Equal(t, "100.00", trxns[2].TotalAmount.StringFixed(2))

	lines, err := f.store.LineItems(context.Background(), c.ID)
	assert.NoError(t, err)
	assert.Equal(t, f.chart.Types["Member Dues"], lines[0].FinancialTypeID)
}

func TestChangeFinancialTypeOfMixedLines(t *testing.T) {
	f := newFixture(t)
	set := lineitem.Set{}
	for i, ft := range []string{"Donation", "Event Fee"} {
		set.Add(model.LineItem{
			PriceFieldID:      1,
			PriceFieldValueID: int64(i + 1),
			FinancialTypeID:   f.chart.Types[ft],
			Qty:               decimal.NewFromInt(1),
			UnitPrice:         decimal.NewFromInt(10),
			LineTotal:         decimal.NewFromInt(10),
		})
	}
	c := f.create(t, &contribution.Request{LineItems: set})

	_, err := f.engine.Save(context.Background(), &contribution.Request{
		ID:              c.ID,
		FinancialTypeID: f.chart.Types["Member Dues"],
	})
	var typeErr *contribution.FinancialTypeChangeError
	assert.True(t, errors.As(err, &typeErr))
}

func TestChangeAmount(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, &contribution.Request{TotalAmount: amount("100")})

	res, err := f.engine.Save(context.Background(), &contribution.Request{ID: c.ID, TotalAmount: amount("150")})
	assert.NoError(t, err)
	assert.Equal(t, "150.00", res.Contribution.NetAmount.StringFixed(2))

	trxns := f.trxns(t, c.ID)
	assert.Equal(t, 2, len(trxns))
	assert.Equal(t, "50.00", trxns[1].TotalAmount.StringFixed(2))
	assert.Equal(t, []string{"100.00 Donation", "50.00 Donation"}, f.items(t, c.ID))
}

func TestChangeAmountWithTax(t *testing.T) {
	f := newFixture(t)
	f.chart.EnableTax(t, "Donation", "10")
	c := f.create(t, &contribution.Request{TotalAmount: amount("100")})

	res, err := f.engine.Save(context.Background(), &contribution.Request{ID: c.ID, TotalAmount: amount("200")})
	assert.NoError(t, err)
	assert.Equal(t, "220.00", res.Contribution.TotalAmount.StringFixed(2))
	assert.Equal(t, "20.00", res.Contribution.Tax().StringFixed(2))

	assert.Equal(t, []string{
		"100.00 Donation",
		"10.00 Sales Tax Donation",
		"100.00 Donation",
		"10.00 Sales Tax Donation",
	}, f.items(t, c.ID))
}

func TestCompletePayLater(t *testing.T) {
	f := newFixture(t)
	c := f.pending(t, "100")

	trxns := f.trxns(t, c.ID)
	assert.Equal(t, 1, len(trxns))
	assert.Equal(t, f.chart.Accounts["Accounts Receivable"], trxns[0].ToFinancialAccountID)
	assert.False(t, trxns[0].IsPayment)

	_, err := f.engine.Save(context.Background(), &contribution.Request{ID: c.ID, Status: model.StatusCompleted})
	assert.NoError(t, err)

	trxns = f.trxns(t, c.ID)
	assert.Equal(t, 2, len(trxns))
	assert.Equal(t, f.chart.Accounts["Accounts Receivable"], trxns[1].FromFinancialAccountID)
	assert.Equal(t, f.chart.Accounts["Deposit Bank Account"], trxns[1].ToFinancialAccountID)
	assert.True(t, trxns[1].IsPayment)

	items, err := f.store.ContributionFinancialItems(context.Background(), c.ID)
	assert.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, model.ItemPaid, item.Status)
	}

	info, err := f.engine.PaymentInfo(context.Background(), c.ID)
	assert.NoError(t, err)
	assert.Equal(t, "0.00", info.Balance.StringFixed(2))
}

func TestCompletePendingOnline(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, &contribution.Request{TotalAmount: amount("30"), Status: model.StatusPending})

	_, err := f.engine.Save(context.Background(), &contribution.Request{ID: c.ID, Status: model.StatusCompleted})
	assert.NoError(t, err)

	trxns := f.trxns(t, c.ID)
	assert.Equal(t, 1, len(trxns))
	assert.True(t, trxns[0].IsPayment)
	assert.Equal(t, []string{"30.00 Donation"}, f.items(t, c.ID))
}

func TestCancelPayLater(t *testing.T) {
	f := newFixture(t)
	c := f.pending(t, "100")

	res, err := f.engine.Save(context.Background(), &contribution.Request{ID: c.ID, Status: model.StatusCancelled})
	assert.NoError(t, err)
	assert.Equal(t, "CN_1", res.Contribution.CreditNoteID)

	trxns := f.trxns(t, c.ID)
	assert.Equal(t, 2, len(trxns))
	assert.Equal(t, f.chart.Accounts["Accounts Receivable"], trxns[1].ToFinancialAccountID)
	assert.Equal(t, "-100.00", trxns[1].TotalAmount.StringFixed(2))
	assert.Equal(t, []string{"100.00 Donation", "-100.00 Donation"}, f.items(t, c.ID))
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.pending(t, "100")

	res, err := f.engine.RecordPayment(ctx, contribution.PaymentRequest{
		ContributionID: c.ID,
		TotalAmount:    decimal.NewFromInt(40),
	})
	assert.NoError(t, err)
	assert.Equal(t, "60.00", res.Balance.StringFixed(2))
	assert.Equal(t, model.StatusPartiallyPaid, res.Contribution.Status)

	res, err = f.engine.RecordPayment(ctx, contribution.PaymentRequest{
		ContributionID: c.ID,
		TotalAmount:    decimal.NewFromInt(60),
	})
	assert.NoError(t, err)
	assert.Equal(t, "0.00", res.Balance.StringFixed(2))
	assert.Equal(t, model.StatusCompleted, res.Contribution.Status)
	assert.False(t, res.Contribution.IsPayLater)

	items, err := f.store.ContributionFinancialItems(ctx, c.ID)
	assert.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, model.ItemPaid, item.Status)
	}

	activities, err := f.store.Activities(ctx, c.ID)
	assert.NoError(t, err)
	subjects := []string{}
	for _, a := range activities {
		if a.ActivityType == model.ActivityPayment {
			subjects = append(subjects, a.Subject)
		}
	}
	assert.Equal(t, []string{"$40.00", "$60.00"}, subjects)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RecordPayment(context.Background(), contribution.PaymentRequest{ContributionID: 1})
	var missing *contribution.MissingFieldError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, "total_amount", missing.Field)
}

func TestFailPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, &contribution.Request{TotalAmount: amount("100"), Status: model.StatusPending})

	res, err := f.engine.FailPayment(ctx, c.ID, "card declined")
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, res.Contribution.Status)
	assert.Equal(t, "card declined", res.Contribution.CancelReason)
	assert.Equal(t, 0, len(f.trxns(t, c.ID)))

	activities, err := f.store.Activities(ctx, c.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(activities))
	assert.Equal(t, model.ActivityFailedPayment, activities[0].ActivityType)
	assert.Equal(t, contribution.FailedPaymentSubject, activities[0].Subject)

	completed := f.create(t, &contribution.Request{TotalAmount: amount("5")})
	_, err = f.engine.FailPayment(ctx, completed.ID, "late failure")
	var transition *contribution.StatusTransitionError
	assert.True(t, errors.As(err, &transition))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.pending(t, "100")
	_, err := f.engine.RecordPayment(ctx, contribution.PaymentRequest{ContributionID: c.ID, TotalAmount: decimal.NewFromInt(100)})
	assert.NoError(t, err)

	pledge := &model.Pledge{ContactID: 42, Amount: decimal.NewFromInt(100), Currency: "USD", Installments: 1, FrequencyUnit: model.UnitMonth, StartDate: now, Status: model.PledgeCompleted}
	assert.NoError(t, f.store.CreatePledge(ctx, pledge))
	pp := &model.PledgePayment{
		PledgeID:        pledge.ID,
		ContributionID:  c.ID,
		ScheduledAmount: decimal.NewFromInt(100),
		ActualAmount:    amount("100"),
		Currency:        "USD",
		ScheduledDate:   now.AddDate(0, 1, 0),
		Status:          model.PledgeCompleted,
	}
	assert.NoError(t, f.store.CreatePledgePayment(ctx, pp))

	assert.NoError(t, f.engine.Delete(ctx, c.ID))

	_, err = f.engine.Get(ctx, c.ID)
	var notFound *store.NotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, 0, len(f.trxns(t, c.ID)))

	lines, err := f.store.LineItems(ctx, c.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(lines))

	activities, err := f.store.Activities(ctx, c.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(activities))

	payments, err := f.store.PledgePayments(ctx, pledge.ID)
	assert.NoError(t, err)
	assert.Equal(t, snowflake.ID(0), payments[0].ContributionID)
	assert.Equal(t, model.PledgePending, payments[0].Status)
	assert.False(t, payments[0].ActualAmount.Valid)
}

func TestCompletedCascadesToMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mt := &model.MembershipType{Name: "General", DurationUnit: model.UnitYear, DurationInterval: 1, PeriodType: model.PeriodRolling}
	assert.NoError(t, f.store.CreateMembershipType(ctx, mt))
	m := &model.Membership{ContactID: 42, MembershipTypeID: mt.ID, Status: model.MembershipPending}
	assert.NoError(t, f.store.CreateMembership(ctx, m))

	c := f.create(t, &contribution.Request{
		TotalAmount:  amount("50"),
		Status:       model.StatusPending,
		IsPayLater:   boolPtr(true),
		MembershipID: m.ID,
	})

	res, err := f.engine.Save(ctx, &contribution.Request{ID: c.ID, Status: model.StatusCompleted})
	assert.NoError(t, err)
	assert.Equal(t, []snowflake.ID{m.ID}, res.Components.Memberships)

	got, err := f.store.GetMembership(ctx, m.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.MembershipNew, got.Status)

	// SkipCascade leaves components alone.
	other := f.create(t, &contribution.Request{TotalAmount: amount("50"), Status: model.StatusPending, IsPayLater: boolPtr(true)})
	res, err = f.engine.Save(ctx, &contribution.Request{ID: other.ID, Status: model.StatusCompleted, SkipCascade: true})
	assert.NoError(t, err)
	assert.Zero(t, res.Components)
}

func TestRecurMovesWithFirstPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recur := &model.ContributionRecur{
		ContactID:     42,
		Amount:        decimal.NewFromInt(10),
		Currency:      "USD",
		FrequencyUnit: model.UnitMonth,
		StartDate:     now,
		Status:        model.StatusPending,
		CreatedAt:     now,
	}
	assert.NoError(t, f.store.CreateContributionRecur(ctx, recur))

	c := f.create(t, &contribution.Request{TotalAmount: amount("10"), Status: model.StatusPending, ContributionRecurID: recur.ID})
	_, err := f.engine.Save(ctx, &contribution.Request{ID: c.ID, Status: model.StatusCompleted})
	assert.NoError(t, err)

	got, err := f.store.GetContributionRecur(ctx, recur.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
}

func TestCreditNoteID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.engine.CreditNoteID(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "CN_1", id)

	c := f.create(t, &contribution.Request{TotalAmount: amount("10")})
	_, err = f.engine.Save(ctx, &contribution.Request{ID: c.ID, Status: model.StatusCancelled})
	assert.NoError(t, err)

	id, err = f.engine.CreditNoteID(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "CN_2", id)
}
