package components_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/components"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/store"
	"github.com/robinvdvleuten/contribute/store/storetest"
)

var today = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store  *store.Store
	engine *components.Engine
	mt     *model.MembershipType
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storetest.New(t)
	mt := &model.MembershipType{
		Name:             "General",
		DurationUnit:     model.UnitYear,
		DurationInterval: 1,
		PeriodType:       model.PeriodRolling,
	}
	assert.NoError(t, s.CreateMembershipType(context.Background(), mt))
	return &fixture{
		store:  s,
		engine: components.New(s, components.WithClock(func() time.Time { return today })),
		mt:     mt,
	}
}

func (f *fixture) contribution(t *testing.T, status model.ContributionStatus) *model.Contribution {
	t.Helper()
	receive := today
	c := &model.Contribution{
		ContactID:       7,
		FinancialTypeID: 1,
		TotalAmount:     decimal.NewFromInt(100),
		NetAmount:       decimal.NewFromInt(100),
		Currency:        "USD",
		Status:          status,
		ReceiveDate:     &receive,
	}
	assert.NoError(t, f.store.CreateContribution(context.Background(), c))
	return c
}

func (f *fixture) membership(t *testing.T, status model.MembershipStatus, paidBy ...snowflake.ID) *model.Membership {
	t.Helper()
	ctx := context.Background()
	m := &model.Membership{ContactID: 7, MembershipTypeID: f.mt.ID, Status: status}
	assert.NoError(t, f.store.CreateMembership(ctx, m))
	for _, id := range paidBy {
		assert.NoError(t, f.store.CreateMembershipPayment(ctx, &model.MembershipPayment{MembershipID: m.ID, ContributionID: id}))
	}
	return m
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *model.Membership {
	t.Helper()
	m, err := f.store.GetMembership(context.Background(), id)
	assert.NoError(t, err)
	return m
}

func TestCascades(t *testing.T) {
	tests := []struct {
		from, to model.ContributionStatus
		want     bool
	}{
		{model.StatusPending, model.StatusCompleted, true},
		{model.StatusPartiallyPaid, model.StatusCompleted, true},
		{model.StatusCancelled, model.StatusCompleted, false},
		{model.StatusRefunded, model.StatusCompleted, false},
		{model.StatusCompleted, model.StatusCancelled, true},
		{model.StatusPending, model.StatusFailed, true},
		{model.StatusCompleted, model.StatusRefunded, false},
		{model.StatusPending, model.StatusPartiallyPaid, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"To"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, components.Cascades(tt.from, tt.to))
		})
	}
}

func TestTransitionCompletedActivatesMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.contribution(t, model.StatusCompleted)
	m := f.membership(t, model.MembershipPending, c.ID)
	assert.NoError(t, f.store.CreateActivity(ctx, &model.Activity{
		ActivityType:   model.ActivityMembershipSignup,
		SourceRecordID: m.ID,
		Status:         model.ActivityScheduled,
		ActivityDate:   today,
	}))

	res, err := f.engine.Transition(ctx, components.Change{
		ContributionID: c.ID,
		From:           model.StatusPending,
		To:             model.StatusCompleted,
	})
	assert.NoError(t, err)
	assert.Equal(t, []snowflake.ID{m.ID}, res.Memberships)

	got := f.reload(t, m.ID)
	assert.Equal(t, model.MembershipNew, got.Status)
	assert.False(t, got.IsOverride)
	assert.Equal(t, "2026-03-01", got.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2027-02-28", got.EndDate.Format("2006-01-02"))

	logs, err := f.store.MembershipLogs(ctx, m.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(logs))
	assert.Equal(t, model.MembershipNew, logs[0].Status)

	activities, err := f.store.Activities(ctx, m.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(activities))
	assert.Equal(t, model.ActivityCompleted, activities[0].Status)
	assert.Equal(t, model.ActivityChangeMembershipStatus, activities[1].ActivityType)
	assert.Equal(t, "Status changed from Pending to New", activities[1].Subject)
}

func TestTransitionRenewsCurrentMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.contribution(t, model.StatusCompleted)
	assert.NoError(t, f.store.CreateLineItem(ctx, &model.LineItem{
		ContributionID:     c.ID,
		EntityTable:        model.TableContribution,
		EntityID:           c.ID,
		FinancialTypeID:    1,
		Qty:                decimal.NewFromInt(1),
		UnitPrice:          decimal.NewFromInt(100),
		LineTotal:          decimal.NewFromInt(100),
		MembershipTypeID:   f.mt.ID,
		MembershipNumTerms: 2,
	}))

	join, start, endDate := date("2024-04-01"), date("2025-04-01"), date("2026-03-31")
	m := f.membership(t, model.MembershipCurrent, c.ID)
	m.JoinDate, m.StartDate, m.EndDate = &join, &start, &endDate
	assert.NoError(t, f.store.Save(ctx, m))

	inherited := &model.Membership{ContactID: 8, MembershipTypeID: f.mt.ID, Status: model.MembershipCurrent, OwnerMembershipID: m.ID}
	assert.NoError(t, f.store.CreateMembership(ctx, inherited))

	res, err := f.engine.Transition(ctx, components.Change{
		ContributionID: c.ID,
		From:           model.StatusPartiallyPaid,
		To:             model.StatusCompleted,
	})
	assert.NoError(t, err)
	assert.Equal(t, []snowflake.ID{m.ID, inherited.ID}, res.Memberships)

	for _, id := range res.Memberships {
		got := f.reload(t, id)
		assert.Equal(t, model.MembershipCurrent, got.Status)
		assert.Equal(t, "2024-04-01", got.JoinDate.Format("2006-01-02"))
		assert.Equal(t, "2025-04-01", got.StartDate.Format("2006-01-02"))
		assert.Equal(t, "2028-03-31", got.EndDate.Format("2006-01-02"))
	}
}

func TestTransitionCancelledKeepsMembershipFundedElsewhere(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	paid := f.contribution(t, model.StatusCompleted)
	cancelled := f.contribution(t, model.StatusCancelled)
	m := f.membership(t, model.MembershipCurrent, paid.ID, cancelled.ID)

	res, err := f.engine.Transition(ctx, components.Change{
		ContributionID: cancelled.ID,
		From:           model.StatusCompleted,
		To:             model.StatusCancelled,
	})
	assert.NoError(t, err)
	assert.False(t, res.Updated())
	assert.Equal(t, 1, len(res.Messages))
	assert.True(t, strings.Contains(res.Messages[0], paid.ID.String()))
	assert.Equal(t, model.MembershipCurrent, f.reload(t, m.ID).Status)
}

func TestTransitionEndsMembership(t *testing.T) {
	tests := []struct {
		to   model.ContributionStatus
		want model.MembershipStatus
	}{
		{model.StatusCancelled, model.MembershipCancelled},
		{model.StatusFailed, model.MembershipExpired},
	}
	for _, tt := range tests {
		t.Run(tt.to.String(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			c := f.contribution(t, tt.to)
			m := f.membership(t, model.MembershipPending, c.ID)

			res, err := f.engine.Transition(ctx, components.Change{
				ContributionID: c.ID,
				From:           model.StatusPending,
				To:             tt.to,
			})
			assert.NoError(t, err)
			assert.Equal(t, []snowflake.ID{m.ID}, res.Memberships)

			got := f.reload(t, m.ID)
			assert.Equal(t, tt.want, got.Status)
			assert.True(t, got.IsOverride)

			activities, err := f.store.Activities(ctx, m.ID)
			assert.NoError(t, err)
			assert.Equal(t, 1, len(activities))
			assert.Equal(t, "Status changed from Pending to "+string(tt.want), activities[0].Subject)
		})
	}
}

func TestTransitionIgnoresNonCascadingChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.contribution(t, model.StatusCompleted)
	m := f.membership(t, model.MembershipExpired, c.ID)

	res, err := f.engine.Transition(ctx, components.Change{
		ContributionID: c.ID,
		From:           model.StatusCancelled,
		To:             model.StatusCompleted,
	})
	assert.NoError(t, err)
	assert.False(t, res.Updated())
	assert.Equal(t, model.MembershipExpired, f.reload(t, m.ID).Status)
}

func TestTransitionParticipants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.contribution(t, model.StatusCompleted)
	p := &model.Participant{ContactID: 7, EventID: 3, Status: model.ParticipantPendingPayLater, IsPayLater: true, RegisterDate: today}
	assert.NoError(t, f.store.CreateParticipant(ctx, p))
	assert.NoError(t, f.store.CreateParticipantPayment(ctx, &model.ParticipantPayment{ParticipantID: p.ID, ContributionID: c.ID}))

	res, err := f.engine.Transition(ctx, components.Change{
		ContributionID: c.ID,
		From:           model.StatusPending,
		To:             model.StatusCompleted,
		Kinds:          []components.Kind{components.KindEvent},
	})
	assert.NoError(t, err)
	assert.Equal(t, []snowflake.ID{p.ID}, res.Participants)

	got, err := f.store.GetParticipant(ctx, p.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ParticipantRegistered, got.Status)
	assert.False(t, got.IsPayLater)

	_, err = f.engine.Transition(ctx, components.Change{
		ContributionID: c.ID,
		From:           model.StatusCompleted,
		To:             model.StatusCancelled,
	})
	assert.NoError(t, err)
	got, err = f.store.GetParticipant(ctx, p.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ParticipantCancelled, got.Status)
}

func TestTransitionPledgePayments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.contribution(t, model.StatusCompleted)

	pledge := &model.Pledge{
		ContactID:     7,
		Amount:        decimal.NewFromInt(200),
		Currency:      "USD",
		Installments:  2,
		FrequencyUnit: "month",
		StartDate:     date("2026-02-15"),
		Status:        model.PledgePending,
	}
	assert.NoError(t, f.store.CreatePledge(ctx, pledge))
	first := &model.PledgePayment{PledgeID: pledge.ID, ContributionID: c.ID, ScheduledAmount: decimal.NewFromInt(100), Currency: "USD", ScheduledDate: date("2026-02-15"), Status: model.PledgePending}
	second := &model.PledgePayment{PledgeID: pledge.ID, ScheduledAmount: decimal.NewFromInt(100), Currency: "USD", ScheduledDate: date("2026-04-15"), Status: model.PledgePending}
	assert.NoError(t, f.store.CreatePledgePayment(ctx, first))
	assert.NoError(t, f.store.CreatePledgePayment(ctx, second))

	res, err := f.engine.Transition(ctx, components.Change{
		ContributionID: c.ID,
		From:           model.StatusPending,
		To:             model.StatusCompleted,
	})
	assert.NoError(t, err)
	assert.Equal(t, []snowflake.ID{first.ID}, res.PledgePayments)

	payments, err := f.store.PledgePayments(ctx, pledge.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.PledgeCompleted, payments[0].Status)
	assert.Equal(t, "100", payments[0].ActualAmount.Decimal.String())

	got, err := f.store.GetPledge(ctx, pledge.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.PledgeInProgress, got.Status)

	t.Run("Reset", func(t *testing.T) {
		ids, err := f.engine.ResetPledgePayments(ctx, c.ID)
		assert.NoError(t, err)
		assert.Equal(t, []snowflake.ID{first.ID}, ids)

		payments, err := f.store.PledgePayments(ctx, pledge.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.PledgeOverdue, payments[0].Status)
		assert.Equal(t, snowflake.ID(0), payments[0].ContributionID)
		assert.False(t, payments[0].ActualAmount.Valid)

		got, err := f.store.GetPledge(ctx, pledge.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.PledgeOverdue, got.Status)
	})
}
