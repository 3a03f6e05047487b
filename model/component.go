package model

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Membership period types.
const (
	PeriodRolling = "rolling"
	PeriodFixed   = "fixed"
)

// Duration units for membership terms.
const (
	UnitDay      = "day"
	UnitMonth    = "month"
	UnitYear     = "year"
	UnitLifetime = "lifetime"
)

// MembershipType defines the term and renewal rules of a membership.
type MembershipType struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name             string          `gorm:"type:text;not null;uniqueIndex" json:"name"`
	FinancialTypeID  snowflake.ID    `json:"financial_type_id"`
	MinimumFee       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"minimum_fee"`
	DurationUnit     string          `gorm:"type:text;not null" json:"duration_unit"`
	DurationInterval int             `gorm:"not null" json:"duration_interval"`
	PeriodType       string          `gorm:"type:text;not null" json:"period_type"`

	// FixedPeriodStartDay and FixedPeriodRolloverDay are MMDD encoded, e.g. 101
	// for January 1st.
	FixedPeriodStartDay    int `json:"fixed_period_start_day,omitempty"`
	FixedPeriodRolloverDay int `json:"fixed_period_rollover_day,omitempty"`
}

// TableName sets the database table name.
func (MembershipType) TableName() string { return "membership_types" }

// Membership of a contact. OwnerMembershipID is set on memberships inherited
// through a relationship with the owner.
type Membership struct {
	ID                  snowflake.ID     `gorm:"primaryKey" json:"id"`
	ContactID           snowflake.ID     `gorm:"not null;index" json:"contact_id"`
	MembershipTypeID    snowflake.ID     `gorm:"not null" json:"membership_type_id"`
	JoinDate            *time.Time       `json:"join_date,omitempty"`
	StartDate           *time.Time       `json:"start_date,omitempty"`
	EndDate             *time.Time       `json:"end_date,omitempty"`
	Source              string           `gorm:"type:text" json:"source,omitempty"`
	Status              MembershipStatus `gorm:"type:text;not null" json:"status"`
	IsOverride          bool             `gorm:"not null;default:false" json:"is_override"`
	OwnerMembershipID   snowflake.ID     `gorm:"index" json:"owner_membership_id,omitempty"`
	ContributionRecurID snowflake.ID     `json:"contribution_recur_id,omitempty"`
	CampaignID          snowflake.ID     `json:"campaign_id,omitempty"`
	IsTest              bool             `gorm:"not null;default:false" json:"is_test"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "memberships" }

// MembershipPayment links a membership to a contribution that pays for it.
type MembershipPayment struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	MembershipID   snowflake.ID `gorm:"not null;uniqueIndex:ux_membership_payments,priority:1" json:"membership_id"`
	ContributionID snowflake.ID `gorm:"not null;uniqueIndex:ux_membership_payments,priority:2;index" json:"contribution_id"`
}

// TableName sets the database table name.
func (MembershipPayment) TableName() string { return "membership_payments" }

// MembershipLog records every status or date change of a membership.
type MembershipLog struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	MembershipID     snowflake.ID     `gorm:"not null;index" json:"membership_id"`
	MembershipTypeID snowflake.ID     `json:"membership_type_id"`
	Status           MembershipStatus `gorm:"type:text;not null" json:"status"`
	StartDate        *time.Time       `json:"start_date,omitempty"`
	EndDate          *time.Time       `json:"end_date,omitempty"`
	ModifiedDate     time.Time        `gorm:"not null" json:"modified_date"`
}

// TableName sets the database table name.
func (MembershipLog) TableName() string { return "membership_logs" }

// Participant is a contact registered for an event.
type Participant struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	ContactID    snowflake.ID      `gorm:"not null;index" json:"contact_id"`
	EventID      snowflake.ID      `gorm:"not null;index" json:"event_id"`
	Status       ParticipantStatus `gorm:"type:text;not null" json:"status"`
	RegisterDate time.Time         `json:"register_date"`
	Source       string            `gorm:"type:text" json:"source,omitempty"`
	FeeAmount    decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"fee_amount"`
	IsPayLater   bool              `gorm:"not null;default:false" json:"is_pay_later"`
	IsTest       bool              `gorm:"not null;default:false" json:"is_test"`
}

// TableName sets the database table name.
func (Participant) TableName() string { return "participants" }

// ParticipantPayment links a participant to the contribution paying the fee.
type ParticipantPayment struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	ParticipantID  snowflake.ID `gorm:"not null;index" json:"participant_id"`
	ContributionID snowflake.ID `gorm:"not null;index" json:"contribution_id"`
}

// TableName sets the database table name.
func (ParticipantPayment) TableName() string { return "participant_payments" }

// Pledge is a promise to pay an amount in installments.
type Pledge struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	ContactID       snowflake.ID    `gorm:"not null;index" json:"contact_id"`
	FinancialTypeID snowflake.ID    `json:"financial_type_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency        string          `gorm:"type:text;not null" json:"currency"`
	Installments    int             `gorm:"not null" json:"installments"`
	FrequencyUnit   string          `gorm:"type:text;not null" json:"frequency_unit"`
	StartDate       time.Time       `json:"start_date"`
	Status          PledgeStatus    `gorm:"type:text;not null" json:"status"`
}

// TableName sets the database table name.
func (Pledge) TableName() string { return "pledges" }

// PledgePayment is one scheduled installment of a pledge.
type PledgePayment struct {
	ID              snowflake.ID        `gorm:"primaryKey" json:"id"`
	PledgeID        snowflake.ID        `gorm:"not null;index" json:"pledge_id"`
	ContributionID  snowflake.ID        `gorm:"index" json:"contribution_id,omitempty"`
	ScheduledAmount decimal.Decimal     `gorm:"type:decimal(20,2);not null" json:"scheduled_amount"`
	ActualAmount    decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"actual_amount"`
	Currency        string              `gorm:"type:text;not null" json:"currency"`
	ScheduledDate   time.Time           `gorm:"not null" json:"scheduled_date"`
	Status          PledgeStatus        `gorm:"type:text;not null" json:"status"`
}

// TableName sets the database table name.
func (PledgePayment) TableName() string { return "pledge_payments" }

// Activity is an audit record attached to a contribution or membership.
type Activity struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	ActivityType    string         `gorm:"type:text;not null;index" json:"activity_type"`
	Subject         string         `gorm:"type:text" json:"subject"`
	SourceRecordID  snowflake.ID   `gorm:"index" json:"source_record_id"`
	SourceContactID snowflake.ID   `json:"source_contact_id,omitempty"`
	Status          ActivityStatus `gorm:"type:text;not null" json:"status"`
	ActivityDate    time.Time      `gorm:"not null" json:"activity_date"`
	Details         string         `gorm:"type:text" json:"details,omitempty"`
	IsTest          bool           `gorm:"not null;default:false" json:"is_test"`
}

// TableName sets the database table name.
func (Activity) TableName() string { return "activities" }
