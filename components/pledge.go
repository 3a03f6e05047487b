package components

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/contribute/model"
)

func (e *Engine) transitionPledgePayments(ctx context.Context, c *model.Contribution, ch Change, res *Result) error {
	payments, err := e.store.ContributionPledgePayments(ctx, c.ID)
	if err != nil || len(payments) == 0 {
		return err
	}

	var pledges []snowflake.ID
	for i := range payments {
		pp := &payments[i]
		if ch.To == model.StatusCompleted {
			pp.Status = model.PledgeCompleted
			pp.ActualAmount = decimal.NewNullDecimal(pp.ScheduledAmount)
			if len(payments) == 1 {
				pp.ActualAmount = decimal.NewNullDecimal(c.TotalAmount)
			}
		} else {
			e.resetPledgePayment(pp)
		}
		if err := e.store.Save(ctx, pp); err != nil {
			return err
		}
		res.PledgePayments = append(res.PledgePayments, pp.ID)
		if !slices.Contains(pledges, pp.PledgeID) {
			pledges = append(pledges, pp.PledgeID)
		}
	}

	for _, id := range pledges {
		status, err := e.RecalculatePledge(ctx, id)
		if err != nil {
			return err
		}
		res.addf("Pledge %s is %s.", id, status)
	}
	return nil
}

// resetPledgePayment unlinks a payment from its contribution and schedules
// it again.
func (e *Engine) resetPledgePayment(pp *model.PledgePayment) {
	pp.ContributionID = 0
	pp.ActualAmount = decimal.NullDecimal{}
	pp.Status = model.PledgePending
	if day(pp.ScheduledDate).Before(day(e.now())) {
		pp.Status = model.PledgeOverdue
	}
}

// ResetPledgePayments unschedules every pledge payment linked to a
// contribution that is being deleted and recalculates the pledges.
func (e *Engine) ResetPledgePayments(ctx context.Context, contributionID snowflake.ID) ([]snowflake.ID, error) {
	payments, err := e.store.ContributionPledgePayments(ctx, contributionID)
	if err != nil || len(payments) == 0 {
		return nil, err
	}

	var ids, pledges []snowflake.ID
	err = e.store.Transaction(ctx, func(ctx context.Context) error {
		for i := range payments {
			e.resetPledgePayment(&payments[i])
			if err := e.store.Save(ctx, &payments[i]); err != nil {
				return err
			}
			ids = append(ids, payments[i].ID)
			if !slices.Contains(pledges, payments[i].PledgeID) {
				pledges = append(pledges, payments[i].PledgeID)
			}
		}
		for _, id := range pledges {
			if _, err := e.RecalculatePledge(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	return ids, err
}

// PledgeStatusOf derives the status of a pledge from its payments.
func PledgeStatusOf(payments []model.PledgePayment, today time.Time) model.PledgeStatus {
	if len(payments) == 0 {
		return model.PledgePending
	}
	completed, overdue := 0, 0
	for i := range payments {
		switch {
		case payments[i].Status == model.PledgeCompleted:
			completed++
		case payments[i].Status == model.PledgeCancelled:
		case day(payments[i].ScheduledDate).Before(day(today)):
			overdue++
		}
	}
	switch {
	case completed == len(payments):
		return model.PledgeCompleted
	case overdue > 0:
		return model.PledgeOverdue
	case completed > 0:
		return model.PledgeInProgress
	}
	return model.PledgePending
}

// RecalculatePledge updates the status of a pledge from its payments.
func (e *Engine) RecalculatePledge(ctx context.Context, pledgeID snowflake.ID) (model.PledgeStatus, error) {
	p, err := e.store.GetPledge(ctx, pledgeID)
	if err != nil {
		return "", err
	}
	if p.Status == model.PledgeCancelled {
		return p.Status, nil
	}
	payments, err := e.store.PledgePayments(ctx, pledgeID)
	if err != nil {
		return "", err
	}
	status := PledgeStatusOf(payments, e.now())
	if status == p.Status {
		return status, nil
	}
	p.Status = status
	return status, e.store.Save(ctx, p)
}
