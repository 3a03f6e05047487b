// Package components cascades a contribution status change to the records
// the contribution pays for: memberships, event participants and pledge
// payments.
//
// Only three target statuses cascade. Completed (from Pending or Partially
// paid) activates, Cancelled cancels and Failed expires. Every other change
// is a no-op. The engine never touches the ledger; it runs inside the
// transaction of the caller when the context carries one.
package components

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/store"
	"github.com/robinvdvleuten/contribute/telemetry"
)

// Kind is a kind of component a contribution can pay for.
type Kind int

const (
	KindMembership Kind = iota + 1
	KindEvent
	KindPledge
)

func (k Kind) String() string {
	switch k {
	case KindMembership:
		return "membership"
	case KindEvent:
		return "event"
	case KindPledge:
		return "pledge"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kinds returns every component kind in cascade order.
func Kinds() []Kind {
	return []Kind{KindMembership, KindEvent, KindPledge}
}

// Change is a contribution status change to cascade.
type Change struct {
	ContributionID snowflake.ID
	From           model.ContributionStatus
	To             model.ContributionStatus

	// ReceiveDate starts new membership terms. Defaults to the receive date
	// of the contribution.
	ReceiveDate *time.Time

	// Kinds limits the cascade. Empty means every kind.
	Kinds []Kind
}

// Result lists the components updated by a cascade.
type Result struct {
	Memberships    []snowflake.ID `json:"memberships,omitempty"`
	Participants   []snowflake.ID `json:"participants,omitempty"`
	PledgePayments []snowflake.ID `json:"pledge_payments,omitempty"`

	// Messages are shown to the operator.
	Messages []string `json:"messages,omitempty"`
}

// Updated reports whether any component changed.
func (r *Result) Updated() bool {
	return len(r.Memberships)+len(r.Participants)+len(r.PledgePayments) > 0
}

func (r *Result) addf(format string, args ...any) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// Engine applies status changes to components.
type Engine struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the clock used for status-by-date calculations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cascades reports whether a change from one status to another updates
// components at all.
func Cascades(from, to model.ContributionStatus) bool {
	switch to {
	case model.StatusCancelled, model.StatusFailed:
		return true
	case model.StatusCompleted:
		return from == model.StatusPending || from == model.StatusPartiallyPaid
	}
	return false
}

// Transition cascades ch to every component of the contribution.
func (e *Engine) Transition(ctx context.Context, ch Change) (*Result, error) {
	res := &Result{}
	if ch.ContributionID == 0 || !Cascades(ch.From, ch.To) {
		return res, nil
	}

	timer := telemetry.StartTimer(ctx, "components.transition")
	defer timer.End()

	c, err := e.store.GetContribution(ctx, ch.ContributionID)
	if err != nil {
		return nil, err
	}

	kinds := ch.Kinds
	if len(kinds) == 0 {
		kinds = Kinds()
	}

	err = e.store.Transaction(ctx, func(ctx context.Context) error {
		for _, kind := range kinds {
			if err := e.dispatch(ctx, kind, c, ch, res); err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("components updated",
		zap.Stringer("contribution_id", c.ID),
		zap.Stringer("from", ch.From),
		zap.Stringer("to", ch.To),
		zap.Int("memberships", len(res.Memberships)),
		zap.Int("participants", len(res.Participants)),
		zap.Int("pledge_payments", len(res.PledgePayments)))
	return res, nil
}

func (e *Engine) dispatch(ctx context.Context, kind Kind, c *model.Contribution, ch Change, res *Result) error {
	switch kind {
	case KindMembership:
		return e.transitionMemberships(ctx, c, ch, res)
	case KindEvent:
		return e.transitionParticipants(ctx, c, ch, res)
	case KindPledge:
		return e.transitionPledgePayments(ctx, c, ch, res)
	}
	return fmt.Errorf("unknown component kind %d", int(kind))
}

func (e *Engine) activity(ctx context.Context, activityType, subject string, sourceID, contactID snowflake.ID, status model.ActivityStatus) error {
	return e.store.CreateActivity(ctx, &model.Activity{
		ActivityType:    activityType,
		Subject:         subject,
		SourceRecordID:  sourceID,
		SourceContactID: contactID,
		Status:          status,
		ActivityDate:    e.now(),
	})
}
