package components

import (
	"time"

	"github.com/robinvdvleuten/contribute/model"
)

// Dates is the term of a membership. EndDate is nil for lifetime types.
type Dates struct {
	JoinDate  time.Time
	StartDate time.Time
	EndDate   *time.Time
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time { return &t }

// addTerms moves t forward by n terms of the membership type.
func addTerms(mt *model.MembershipType, t time.Time, n int) time.Time {
	interval := mt.DurationInterval
	if interval < 1 {
		interval = 1
	}
	switch mt.DurationUnit {
	case model.UnitDay:
		return t.AddDate(0, 0, interval*n)
	case model.UnitMonth:
		return t.AddDate(0, interval*n, 0)
	}
	return t.AddDate(interval*n, 0, 0)
}

// splitMMDD decodes a fixed period day such as 1231.
func splitMMDD(v int) (time.Month, int) {
	if v <= 0 {
		return time.January, 1
	}
	return time.Month(v / 100), v % 100
}

// periodStart returns the start of the fixed period containing t.
func periodStart(mt *model.MembershipType, t time.Time) time.Time {
	if mt.DurationUnit == model.UnitMonth {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	month, d := splitMMDD(mt.FixedPeriodStartDay)
	start := time.Date(t.Year(), month, d, 0, 0, 0, 0, time.UTC)
	if t.Before(start) {
		start = start.AddDate(-1, 0, 0)
	}
	return start
}

// pastRollover reports whether joining on t falls after the rollover day of
// the fixed period starting at start, in which case the first term also
// covers the next period.
func pastRollover(mt *model.MembershipType, start, t time.Time) bool {
	if mt.FixedPeriodRolloverDay <= 0 {
		return false
	}
	if mt.DurationUnit == model.UnitMonth {
		return t.Day() >= mt.FixedPeriodRolloverDay
	}
	month, d := splitMMDD(mt.FixedPeriodRolloverDay)
	rollover := time.Date(start.Year(), month, d, 0, 0, 0, 0, time.UTC)
	if rollover.Before(start) {
		rollover = rollover.AddDate(1, 0, 0)
	}
	return !t.Before(rollover)
}

// TermDates returns the dates of a new membership joining on join for
// numTerms terms.
func TermDates(mt *model.MembershipType, join time.Time, numTerms int) Dates {
	if numTerms < 1 {
		numTerms = 1
	}
	join = day(join)
	dates := Dates{JoinDate: join, StartDate: join}
	if mt.DurationUnit == model.UnitLifetime {
		return dates
	}

	if mt.PeriodType == model.PeriodFixed && mt.DurationUnit != model.UnitDay {
		dates.StartDate = periodStart(mt, join)
		if pastRollover(mt, dates.StartDate, join) {
			numTerms++
		}
	}
	dates.EndDate = datePtr(addTerms(mt, dates.StartDate, numTerms).AddDate(0, 0, -1))
	return dates
}

// RenewalDates extends m by numTerms terms. A membership that still counts
// as current keeps its start date and is extended from the day after its end
// date. Any other membership starts a new term on changeDate and keeps its
// join date.
func RenewalDates(mt *model.MembershipType, m *model.Membership, changeDate time.Time, numTerms int) Dates {
	if numTerms < 1 {
		numTerms = 1
	}
	join := day(changeDate)
	if m.JoinDate != nil {
		join = day(*m.JoinDate)
	}

	if mt.DurationUnit == model.UnitLifetime {
		start := join
		if m.StartDate != nil {
			start = day(*m.StartDate)
		}
		return Dates{JoinDate: join, StartDate: start}
	}

	if m.Status.IsCurrentMember() && m.EndDate != nil {
		start := join
		if m.StartDate != nil {
			start = day(*m.StartDate)
		}
		next := day(*m.EndDate).AddDate(0, 0, 1)
		return Dates{
			JoinDate:  join,
			StartDate: start,
			EndDate:   datePtr(addTerms(mt, next, numTerms).AddDate(0, 0, -1)),
		}
	}

	dates := TermDates(mt, changeDate, numTerms)
	dates.JoinDate = join
	return dates
}

// StatusByDate computes the status of a membership on today.
//
//	today < start              Pending
//	today > end + 1 month      Expired
//	today > end                Grace
//	today < join + 3 months    New
//	otherwise                  Current
func StatusByDate(d Dates, today time.Time) model.MembershipStatus {
	today = day(today)
	if today.Before(d.StartDate) {
		return model.MembershipPending
	}
	if d.EndDate != nil && today.After(*d.EndDate) {
		if today.After(d.EndDate.AddDate(0, 1, 0)) {
			return model.MembershipExpired
		}
		return model.MembershipGrace
	}
	if today.Before(d.JoinDate.AddDate(0, 3, 0)) {
		return model.MembershipNew
	}
	return model.MembershipCurrent
}
