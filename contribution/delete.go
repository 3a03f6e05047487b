package contribution

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/telemetry"
)

// Delete removes a contribution with its line items, ledger rows, activities
// and component links. Pledge payments it paid become due again.
func (e *Engine) Delete(ctx context.Context, id snowflake.ID) error {
	timer := telemetry.StartTimer(ctx, "contribution.delete")
	defer timer.End()

	e.hooks.fire(ctx, Event{Phase: PhasePre, Action: ActionDelete, ContributionID: id})

	var reset []snowflake.ID
	err := e.store.Transaction(ctx, func(ctx context.Context) error {
		if _, err := e.store.GetContribution(ctx, id); err != nil {
			return err
		}
		if err := e.store.DeleteActivities(ctx, id); err != nil {
			return err
		}
		var err error
		if reset, err = e.components.ResetPledgePayments(ctx, id); err != nil {
			return err
		}
		if err := e.store.DeleteContributionLedger(ctx, id); err != nil {
			return err
		}
		if err := e.store.DeleteLineItems(ctx, id); err != nil {
			return err
		}
		if err := e.store.DeleteMembershipPayments(ctx, id); err != nil {
			return err
		}
		if err := e.store.DeleteParticipantPayments(ctx, id); err != nil {
			return err
		}
		return e.store.DeleteContribution(ctx, id)
	})
	if err != nil {
		return err
	}

	e.hooks.fire(ctx, Event{Phase: PhasePost, Action: ActionDelete, ContributionID: id})
	e.logger.Info("contribution deleted",
		zap.Stringer("id", id),
		zap.Int("pledge_payments_reset", len(reset)))
	return nil
}
