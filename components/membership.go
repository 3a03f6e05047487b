package components

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/model"
)

func (e *Engine) transitionMemberships(ctx context.Context, c *model.Contribution, ch Change, res *Result) error {
	memberships, err := e.store.ContributionMemberships(ctx, c.ID)
	if err != nil {
		return err
	}

	for i := range memberships {
		m := &memberships[i]
		switch ch.To {
		case model.StatusCancelled:
			err = e.endMembership(ctx, c, m, model.MembershipCancelled, res)
		case model.StatusFailed:
			err = e.endMembership(ctx, c, m, model.MembershipExpired, res)
		case model.StatusCompleted:
			err = e.renewMembership(ctx, c, m, ch, res)
		}
		if err != nil {
			return fmt.Errorf("membership %s: %w", m.ID, err)
		}
	}
	return nil
}

// fundedElsewhere reports whether another Completed contribution pays for m.
func (e *Engine) fundedElsewhere(ctx context.Context, m *model.Membership, contributionID snowflake.ID) (snowflake.ID, error) {
	contributions, err := e.store.MembershipContributions(ctx, m.ID)
	if err != nil {
		return 0, err
	}
	for i := range contributions {
		if contributions[i].ID != contributionID && contributions[i].Status == model.StatusCompleted {
			return contributions[i].ID, nil
		}
	}
	return 0, nil
}

func (e *Engine) endMembership(ctx context.Context, c *model.Contribution, m *model.Membership, status model.MembershipStatus, res *Result) error {
	other, err := e.fundedElsewhere(ctx, m, c.ID)
	if err != nil {
		return err
	}
	if other != 0 {
		res.addf("Membership %s is kept: it is also paid by contribution %s.", m.ID, other)
		e.logger.Debug("membership funded elsewhere",
			zap.Stringer("membership_id", m.ID),
			zap.Stringer("contribution_id", other))
		return nil
	}
	if m.Status == status {
		return nil
	}

	prev := m.Status
	m.Status = status
	m.IsOverride = true
	if err := e.store.Save(ctx, m); err != nil {
		return err
	}
	if err := e.logMembership(ctx, m); err != nil {
		return err
	}
	if err := e.statusActivity(ctx, m, prev); err != nil {
		return err
	}

	res.Memberships = append(res.Memberships, m.ID)
	res.addf("Membership %s status changed from %s to %s.", m.ID, prev, status)
	return nil
}

func (e *Engine) renewMembership(ctx context.Context, c *model.Contribution, m *model.Membership, ch Change, res *Result) error {
	typeID, err := e.pendingType(ctx, m)
	if err != nil {
		return err
	}
	mt, err := e.store.GetMembershipType(ctx, typeID)
	if err != nil {
		return err
	}
	numTerms, err := e.numTerms(ctx, c.ID, typeID)
	if err != nil {
		return err
	}

	changeDate := e.now()
	switch {
	case ch.ReceiveDate != nil:
		changeDate = *ch.ReceiveDate
	case c.ReceiveDate != nil:
		changeDate = *c.ReceiveDate
	}

	var dates Dates
	if m.Status.IsCurrentMember() {
		dates = RenewalDates(mt, m, changeDate, numTerms)
	} else {
		join := changeDate
		if m.JoinDate != nil {
			join = *m.JoinDate
		}
		dates = TermDates(mt, changeDate, numTerms)
		dates.JoinDate = day(join)
	}

	prev := m.Status
	status := StatusByDate(dates, e.now())
	apply := func(m *model.Membership) {
		m.MembershipTypeID = typeID
		m.JoinDate = datePtr(dates.JoinDate)
		m.StartDate = datePtr(dates.StartDate)
		m.EndDate = dates.EndDate
		m.Status = status
		m.IsOverride = false
	}
	apply(m)
	if err := e.store.Save(ctx, m); err != nil {
		return err
	}
	if err := e.logMembership(ctx, m); err != nil {
		return err
	}
	res.Memberships = append(res.Memberships, m.ID)

	inherited, err := e.store.InheritedMemberships(ctx, m.ID)
	if err != nil {
		return err
	}
	for i := range inherited {
		apply(&inherited[i])
		if err := e.store.Save(ctx, &inherited[i]); err != nil {
			return err
		}
		res.Memberships = append(res.Memberships, inherited[i].ID)
	}

	if err := e.completeScheduled(ctx, m.ID); err != nil {
		return err
	}
	if prev != status {
		if err := e.statusActivity(ctx, m, prev); err != nil {
			return err
		}
	}

	res.addf("Membership %s is %s until %s.", m.ID, status, formatEnd(dates.EndDate))
	return nil
}

// pendingType returns the membership type the contribution pays for: the
// type of the latest log row, which records a pending type change, else the
// current type.
func (e *Engine) pendingType(ctx context.Context, m *model.Membership) (snowflake.ID, error) {
	logs, err := e.store.MembershipLogs(ctx, m.ID)
	if err != nil {
		return 0, err
	}
	if n := len(logs); n > 0 && logs[n-1].MembershipTypeID != 0 {
		return logs[n-1].MembershipTypeID, nil
	}
	return m.MembershipTypeID, nil
}

// numTerms reads the number of terms bought from the line item of the
// membership type, defaulting to one.
func (e *Engine) numTerms(ctx context.Context, contributionID, typeID snowflake.ID) (int, error) {
	lines, err := e.store.LineItems(ctx, contributionID)
	if err != nil {
		return 0, err
	}
	for i := range lines {
		if lines[i].MembershipTypeID == typeID && lines[i].MembershipNumTerms > 0 {
			return lines[i].MembershipNumTerms, nil
		}
	}
	return 1, nil
}

func (e *Engine) logMembership(ctx context.Context, m *model.Membership) error {
	return e.store.CreateMembershipLog(ctx, &model.MembershipLog{
		MembershipID:     m.ID,
		MembershipTypeID: m.MembershipTypeID,
		Status:           m.Status,
		StartDate:        m.StartDate,
		EndDate:          m.EndDate,
		ModifiedDate:     e.now(),
	})
}

func (e *Engine) statusActivity(ctx context.Context, m *model.Membership, prev model.MembershipStatus) error {
	subject := fmt.Sprintf("Status changed from %s to %s", prev, m.Status)
	return e.activity(ctx, model.ActivityChangeMembershipStatus, subject, m.ID, m.ContactID, model.ActivityCompleted)
}

// completeScheduled completes the oldest scheduled signup or renewal
// activity of a membership.
func (e *Engine) completeScheduled(ctx context.Context, membershipID snowflake.ID) error {
	scheduled, err := e.store.ScheduledActivities(ctx, membershipID,
		model.ActivityMembershipSignup, model.ActivityMembershipRenewal)
	if err != nil || len(scheduled) == 0 {
		return err
	}
	a := scheduled[0]
	a.Status = model.ActivityCompleted
	a.ActivityDate = e.now()
	return e.store.Save(ctx, &a)
}

func formatEnd(end *time.Time) string {
	if end == nil {
		return "lifetime"
	}
	return end.Format("2006-01-02")
}
