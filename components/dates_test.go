package components_test

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/contribute/components"
	"github.com/robinvdvleuten/contribute/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func end(d components.Dates) string {
	if d.EndDate == nil {
		return ""
	}
	return d.EndDate.Format("2006-01-02")
}

func TestTermDates(t *testing.T) {
	tests := []struct {
		name      string
		mt        model.MembershipType
		join      string
		numTerms  int
		wantStart string
		wantEnd   string
	}{
		{
			name:      "RollingYear",
			mt:        model.MembershipType{PeriodType: model.PeriodRolling, DurationUnit: model.UnitYear, DurationInterval: 1},
			join:      "2026-03-15",
			numTerms:  1,
			wantStart: "2026-03-15",
			wantEnd:   "2027-03-14",
		},
		{
			name:      "RollingMonthTwoTerms",
			mt:        model.MembershipType{PeriodType: model.PeriodRolling, DurationUnit: model.UnitMonth, DurationInterval: 1},
			join:      "2026-01-10",
			numTerms:  2,
			wantStart: "2026-01-10",
			wantEnd:   "2026-03-09",
		},
		{
			name:      "RollingDays",
			mt:        model.MembershipType{PeriodType: model.PeriodRolling, DurationUnit: model.UnitDay, DurationInterval: 30},
			join:      "2026-01-01",
			numTerms:  0,
			wantStart: "2026-01-01",
			wantEnd:   "2026-01-30",
		},
		{
			name:      "FixedYear",
			mt:        model.MembershipType{PeriodType: model.PeriodFixed, DurationUnit: model.UnitYear, DurationInterval: 1, FixedPeriodStartDay: 101},
			join:      "2026-05-20",
			numTerms:  1,
			wantStart: "2026-01-01",
			wantEnd:   "2026-12-31",
		},
		{
			name:      "FixedYearAfterRollover",
			mt:        model.MembershipType{PeriodType: model.PeriodFixed, DurationUnit: model.UnitYear, DurationInterval: 1, FixedPeriodStartDay: 101, FixedPeriodRolloverDay: 1001},
			join:      "2026-10-15",
			numTerms:  1,
			wantStart: "2026-01-01",
			wantEnd:   "2027-12-31",
		},
		{
			name:      "FixedYearStartingInJuly",
			mt:        model.MembershipType{PeriodType: model.PeriodFixed, DurationUnit: model.UnitYear, DurationInterval: 1, FixedPeriodStartDay: 701},
			join:      "2026-03-01",
			numTerms:  1,
			wantStart: "2025-07-01",
			wantEnd:   "2026-06-30",
		},
		{
			name:      "Lifetime",
			mt:        model.MembershipType{PeriodType: model.PeriodRolling, DurationUnit: model.UnitLifetime, DurationInterval: 1},
			join:      "2026-03-15",
			numTerms:  1,
			wantStart: "2026-03-15",
			wantEnd:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := components.TermDates(&tt.mt, date(tt.join), tt.numTerms)
			assert.Equal(t, tt.join, got.JoinDate.Format("2006-01-02"))
			assert.Equal(t, tt.wantStart, got.StartDate.Format("2006-01-02"))
			assert.Equal(t, tt.wantEnd, end(got))
		})
	}
}

func TestRenewalDates(t *testing.T) {
	mt := &model.MembershipType{PeriodType: model.PeriodRolling, DurationUnit: model.UnitYear, DurationInterval: 1}
	join, start, endDate := date("2024-01-01"), date("2026-01-01"), date("2026-12-31")

	t.Run("Current", func(t *testing.T) {
		m := &model.Membership{JoinDate: &join, StartDate: &start, EndDate: &endDate, Status: model.MembershipCurrent}
		got := components.RenewalDates(mt, m, date("2026-11-20"), 2)
		assert.Equal(t, "2024-01-01", got.JoinDate.Format("2006-01-02"))
		assert.Equal(t, "2026-01-01", got.StartDate.Format("2006-01-02"))
		assert.Equal(t, "2028-12-31", end(got))
	})

	t.Run("Expired", func(t *testing.T) {
		m := &model.Membership{JoinDate: &join, StartDate: &start, EndDate: &endDate, Status: model.MembershipExpired}
		got := components.RenewalDates(mt, m, date("2027-06-01"), 1)
		assert.Equal(t, "2024-01-01", got.JoinDate.Format("2006-01-02"))
		assert.Equal(t, "2027-06-01", got.StartDate.Format("2006-01-02"))
		assert.Equal(t, "2028-05-31", end(got))
	})
}

func TestStatusByDate(t *testing.T) {
	endDate := date("2026-12-31")
	d := components.Dates{JoinDate: date("2026-01-01"), StartDate: date("2026-01-01"), EndDate: &endDate}

	tests := []struct {
		today string
		want  model.MembershipStatus
	}{
		{"2025-12-01", model.MembershipPending},
		{"2026-02-01", model.MembershipNew},
		{"2026-06-01", model.MembershipCurrent},
		{"2026-12-31", model.MembershipCurrent},
		{"2027-01-15", model.MembershipGrace},
		{"2027-02-15", model.MembershipExpired},
	}
	for _, tt := range tests {
		t.Run(tt.today, func(t *testing.T) {
			assert.Equal(t, tt.want, components.StatusByDate(d, date(tt.today)))
		})
	}

	t.Run("Lifetime", func(t *testing.T) {
		lifetime := components.Dates{JoinDate: date("2020-01-01"), StartDate: date("2020-01-01")}
		assert.Equal(t, model.MembershipCurrent, components.StatusByDate(lifetime, date("2030-01-01")))
	})
}

func TestPledgeStatusOf(t *testing.T) {
	today := date("2026-03-01")
	payment := func(status model.PledgeStatus, scheduled string) model.PledgePayment {
		return model.PledgePayment{Status: status, ScheduledDate: date(scheduled)}
	}

	tests := []struct {
		name     string
		payments []model.PledgePayment
		want     model.PledgeStatus
	}{
		{"Empty", nil, model.PledgePending},
		{"AllScheduled", []model.PledgePayment{payment(model.PledgePending, "2026-04-01")}, model.PledgePending},
		{"SomePaid", []model.PledgePayment{payment(model.PledgeCompleted, "2026-02-01"), payment(model.PledgePending, "2026-04-01")}, model.PledgeInProgress},
		{"Overdue", []model.PledgePayment{payment(model.PledgeCompleted, "2026-01-01"), payment(model.PledgePending, "2026-02-01")}, model.PledgeOverdue},
		{"AllPaid", []model.PledgePayment{payment(model.PledgeCompleted, "2026-01-01"), payment(model.PledgeCompleted, "2026-02-01")}, model.PledgeCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, components.PledgeStatusOf(tt.payments, today))
		})
	}
}
