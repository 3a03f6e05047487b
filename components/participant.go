package components

import (
	"context"

	"github.com/robinvdvleuten/contribute/model"
)

func participantStatusFor(to model.ContributionStatus) (model.ParticipantStatus, bool) {
	switch to {
	case model.StatusCompleted:
		return model.ParticipantRegistered, true
	case model.StatusCancelled, model.StatusFailed:
		return model.ParticipantCancelled, true
	}
	return "", false
}

func (e *Engine) transitionParticipants(ctx context.Context, c *model.Contribution, ch Change, res *Result) error {
	status, ok := participantStatusFor(ch.To)
	if !ok {
		return nil
	}
	participants, err := e.store.ContributionParticipants(ctx, c.ID)
	if err != nil {
		return err
	}

	for i := range participants {
		p := &participants[i]
		if p.Status == status {
			continue
		}
		prev := p.Status
		p.Status = status
		if status == model.ParticipantRegistered {
			p.IsPayLater = false
		}
		if err := e.store.Save(ctx, p); err != nil {
			return err
		}
		res.Participants = append(res.Participants, p.ID)
		res.addf("Participant %s status changed from %s to %s.", p.ID, prev, status)
	}
	return nil
}
