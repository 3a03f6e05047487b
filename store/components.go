package store

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/robinvdvleuten/contribute/model"
)

// CreateMembershipType inserts a membership type.
func (s *Store) CreateMembershipType(ctx context.Context, mt *model.MembershipType) error {
	return s.create(ctx, &mt.ID, mt)
}

// GetMembershipType loads a membership type by id.
func (s *Store) GetMembershipType(ctx context.Context, id snowflake.ID) (*model.MembershipType, error) {
	return get[model.MembershipType](ctx, s, "membership type", id)
}

// CreateMembership inserts a membership.
func (s *Store) CreateMembership(ctx context.Context, m *model.Membership) error {
	return s.create(ctx, &m.ID, m)
}

// GetMembership loads a membership by id.
func (s *Store) GetMembership(ctx context.Context, id snowflake.ID) (*model.Membership, error) {
	return get[model.Membership](ctx, s, "membership", id)
}

// InheritedMemberships returns the memberships inherited from owner.
func (s *Store) InheritedMemberships(ctx context.Context, ownerID snowflake.ID) ([]model.Membership, error) {
	var rows []model.Membership
	err := s.conn(ctx).Where("owner_membership_id = ?", ownerID).Order("id").Find(&rows).Error
	return rows, err
}

// CreateMembershipPayment links a membership to a contribution.
func (s *Store) CreateMembershipPayment(ctx context.Context, mp *model.MembershipPayment) error {
	return s.create(ctx, &mp.ID, mp)
}

// ContributionMemberships returns the memberships paid for by a contribution.
func (s *Store) ContributionMemberships(ctx context.Context, contributionID snowflake.ID) ([]model.Membership, error) {
	var rows []model.Membership
	err := s.conn(ctx).
		Joins("JOIN membership_payments mp ON mp.membership_id = memberships.id").
		Where("mp.contribution_id = ?", contributionID).
		Order("memberships.id").
		Find(&rows).Error
	return rows, err
}

// MembershipContributions returns every contribution that pays for a
// membership.
func (s *Store) MembershipContributions(ctx context.Context, membershipID snowflake.ID) ([]model.Contribution, error) {
	var rows []model.Contribution
	err := s.conn(ctx).
		Joins("JOIN membership_payments mp ON mp.contribution_id = contributions.id").
		Where("mp.membership_id = ?", membershipID).
		Order("contributions.id").
		Find(&rows).Error
	return rows, err
}

// DeleteMembershipPayments unlinks a contribution from its memberships.
func (s *Store) DeleteMembershipPayments(ctx context.Context, contributionID snowflake.ID) error {
	return s.conn(ctx).Delete(&model.MembershipPayment{}, "contribution_id = ?", contributionID).Error
}

// CreateMembershipLog inserts a membership log row.
func (s *Store) CreateMembershipLog(ctx context.Context, ml *model.MembershipLog) error {
	return s.create(ctx, &ml.ID, ml)
}

// MembershipLogs returns the log of a membership, oldest first.
func (s *Store) MembershipLogs(ctx context.Context, membershipID snowflake.ID) ([]model.MembershipLog, error) {
	var rows []model.MembershipLog
	err := s.conn(ctx).Where("membership_id = ?", membershipID).Order("id").Find(&rows).Error
	return rows, err
}

// CreateParticipant inserts a participant.
func (s *Store) CreateParticipant(ctx context.Context, p *model.Participant) error {
	return s.create(ctx, &p.ID, p)
}

// GetParticipant loads a participant by id.
func (s *Store) GetParticipant(ctx context.Context, id snowflake.ID) (*model.Participant, error) {
	return get[model.Participant](ctx, s, "participant", id)
}

// CreateParticipantPayment links a participant to a contribution.
func (s *Store) CreateParticipantPayment(ctx context.Context, pp *model.ParticipantPayment) error {
	return s.create(ctx, &pp.ID, pp)
}

// ContributionParticipants returns the participants paid for by a contribution.
func (s *Store) ContributionParticipants(ctx context.Context, contributionID snowflake.ID) ([]model.Participant, error) {
	var rows []model.Participant
	err := s.conn(ctx).
		Joins("JOIN participant_payments pp ON pp.participant_id = participants.id").
		Where("pp.contribution_id = ?", contributionID).
		Order("participants.id").
		Find(&rows).Error
	return rows, err
}

// DeleteParticipantPayments unlinks a contribution from its participants.
func (s *Store) DeleteParticipantPayments(ctx context.Context, contributionID snowflake.ID) error {
	return s.conn(ctx).Delete(&model.ParticipantPayment{}, "contribution_id = ?", contributionID).Error
}

// CreatePledge inserts a pledge.
func (s *Store) CreatePledge(ctx context.Context, p *model.Pledge) error {
	return s.create(ctx, &p.ID, p)
}

// GetPledge loads a pledge by id.
func (s *Store) GetPledge(ctx context.Context, id snowflake.ID) (*model.Pledge, error) {
	return get[model.Pledge](ctx, s, "pledge", id)
}

// CreatePledgePayment inserts a scheduled pledge payment.
func (s *Store) CreatePledgePayment(ctx context.Context, pp *model.PledgePayment) error {
	return s.create(ctx, &pp.ID, pp)
}

// PledgePayments returns the installments of a pledge in schedule order.
func (s *Store) PledgePayments(ctx context.Context, pledgeID snowflake.ID) ([]model.PledgePayment, error) {
	var rows []model.PledgePayment
	err := s.conn(ctx).Where("pledge_id = ?", pledgeID).Order("scheduled_date, id").Find(&rows).Error
	return rows, err
}

// ContributionPledgePayments returns the installments paid by a contribution.
func (s *Store) ContributionPledgePayments(ctx context.Context, contributionID snowflake.ID) ([]model.PledgePayment, error) {
	var rows []model.PledgePayment
	err := s.conn(ctx).Where("contribution_id = ?", contributionID).Order("scheduled_date, id").Find(&rows).Error
	return rows, err
}

// CreateActivity inserts an activity.
func (s *Store) CreateActivity(ctx context.Context, a *model.Activity) error {
	return s.create(ctx, &a.ID, a)
}

// Activities returns the activities recorded against a source record.
func (s *Store) Activities(ctx context.Context, sourceRecordID snowflake.ID) ([]model.Activity, error) {
	var rows []model.Activity
	err := s.conn(ctx).Where("source_record_id = ?", sourceRecordID).Order("id").Find(&rows).Error
	return rows, err
}

// ScheduledActivities returns the scheduled activities of the given types
// recorded against a source record.
func (s *Store) ScheduledActivities(ctx context.Context, sourceRecordID snowflake.ID, activityTypes ...string) ([]model.Activity, error) {
	var rows []model.Activity
	err := s.conn(ctx).
		Where("source_record_id = ? AND status = ? AND activity_type IN ?", sourceRecordID, model.ActivityScheduled, activityTypes).
		Order("id").
		Find(&rows).Error
	return rows, err
}

// DeleteActivities removes the activities recorded against a source record.
func (s *Store) DeleteActivities(ctx context.Context, sourceRecordID snowflake.ID) error {
	return s.conn(ctx).Delete(&model.Activity{}, "source_record_id = ?", sourceRecordID).Error
}
