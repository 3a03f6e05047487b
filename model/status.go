package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ContributionStatus is the lifecycle state of a contribution. Numeric values
// are stable and persisted; labels are only used at the edges (API, CLI).
type ContributionStatus int

const (
	StatusUnknown       ContributionStatus = 0
	StatusCompleted     ContributionStatus = 1
	StatusPending       ContributionStatus = 2
	StatusCancelled     ContributionStatus = 3
	StatusFailed        ContributionStatus = 4
	StatusInProgress    ContributionStatus = 5
	StatusRefunded      ContributionStatus = 7
	StatusPartiallyPaid ContributionStatus = 8
	StatusPendingRefund ContributionStatus = 9
	StatusChargeback    ContributionStatus = 10
	StatusTemplate      ContributionStatus = 11
)

var contributionStatusLabels = map[ContributionStatus]string{
	StatusCompleted:     "Completed",
	StatusPending:       "Pending",
	StatusCancelled:     "Cancelled",
	StatusFailed:        "Failed",
	StatusInProgress:    "In Progress",
	StatusRefunded:      "Refunded",
	StatusPartiallyPaid: "Partially paid",
	StatusPendingRefund: "Pending refund",
	StatusChargeback:    "Chargeback",
	StatusTemplate:      "Template",
}

// contributionStatusByLabel is the reverse lookup, keyed by lower-cased label.
var contributionStatusByLabel map[string]ContributionStatus

func init() {
	contributionStatusByLabel = make(map[string]ContributionStatus, len(contributionStatusLabels))
	for status, label := range contributionStatusLabels {
		contributionStatusByLabel[strings.ToLower(label)] = status
	}
}

// ContributionStatuses returns every selectable status in display order.
// Template is internal and never part of the list.
func ContributionStatuses() []ContributionStatus {
	return []ContributionStatus{
		StatusPending,
		StatusInProgress,
		StatusPartiallyPaid,
		StatusCompleted,
		StatusCancelled,
		StatusFailed,
		StatusRefunded,
		StatusChargeback,
		StatusPendingRefund,
	}
}

// ParseContributionStatus accepts either a label ("Partially paid") or the
// numeric value ("8").
func ParseContributionStatus(s string) (ContributionStatus, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		status := ContributionStatus(n)
		if _, ok := contributionStatusLabels[status]; ok {
			return status, nil
		}
		return StatusUnknown, fmt.Errorf("unknown contribution status %d", n)
	}
	if status, ok := contributionStatusByLabel[strings.ToLower(s)]; ok {
		return status, nil
	}
	return StatusUnknown, fmt.Errorf("unknown contribution status %q", s)
}

func (s ContributionStatus) String() string {
	if label, ok := contributionStatusLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Valid reports whether s is a known status.
func (s ContributionStatus) Valid() bool {
	_, ok := contributionStatusLabels[s]
	return ok
}

// IsReversal reports whether moving into s from Completed reverses the posting.
func (s ContributionStatus) IsReversal() bool {
	return s == StatusCancelled || s == StatusRefunded || s == StatusChargeback
}

// IsPending reports whether s is an accrual state that has not been paid.
func (s ContributionStatus) IsPending() bool {
	return s == StatusPending || s == StatusInProgress
}

func (s ContributionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ContributionStatus) UnmarshalText(text []byte) error {
	status, err := ParseContributionStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// UnmarshalJSON accepts both quoted labels and bare numbers.
func (s *ContributionStatus) UnmarshalJSON(data []byte) error {
	return s.UnmarshalText([]byte(strings.Trim(string(data), `"`)))
}

// ItemStatus is the payment state of a single financial item.
type ItemStatus int

const (
	ItemPaid          ItemStatus = 1
	ItemPartiallyPaid ItemStatus = 2
	ItemUnpaid        ItemStatus = 3
)

func (s ItemStatus) String() string {
	switch s {
	case ItemPaid:
		return "Paid"
	case ItemPartiallyPaid:
		return "Partially paid"
	case ItemUnpaid:
		return "Unpaid"
	}
	return fmt.Sprintf("ItemStatus(%d)", int(s))
}

func (s ItemStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ItemStatusFor maps the status of a contribution to the status its new
// financial items start in.
func ItemStatusFor(status ContributionStatus) ItemStatus {
	switch status {
	case StatusCompleted:
		return ItemPaid
	case StatusPartiallyPaid:
		return ItemPartiallyPaid
	}
	return ItemUnpaid
}

// MembershipStatus is computed from membership dates or set by a cascade.
type MembershipStatus string

const (
	MembershipNew       MembershipStatus = "New"
	MembershipCurrent   MembershipStatus = "Current"
	MembershipGrace     MembershipStatus = "Grace"
	MembershipExpired   MembershipStatus = "Expired"
	MembershipPending   MembershipStatus = "Pending"
	MembershipCancelled MembershipStatus = "Cancelled"
	MembershipDeceased  MembershipStatus = "Deceased"
)

// IsCurrentMember reports whether the status still grants membership.
func (s MembershipStatus) IsCurrentMember() bool {
	return s == MembershipNew || s == MembershipCurrent || s == MembershipGrace
}

// ParticipantStatus is the registration state of an event participant.
type ParticipantStatus string

const (
	ParticipantRegistered        ParticipantStatus = "Registered"
	ParticipantAttended          ParticipantStatus = "Attended"
	ParticipantPendingPayLater   ParticipantStatus = "Pending from pay later"
	ParticipantPendingIncomplete ParticipantStatus = "Pending from incomplete transaction"
	ParticipantPartiallyPaid     ParticipantStatus = "Partially paid"
	ParticipantPendingRefund     ParticipantStatus = "Pending refund"
	ParticipantCancelled         ParticipantStatus = "Cancelled"
	ParticipantExpired           ParticipantStatus = "Expired"
)

// IsPending reports whether the participant is waiting for a payment.
func (s ParticipantStatus) IsPending() bool {
	return s == ParticipantPendingPayLater || s == ParticipantPendingIncomplete || s == ParticipantPartiallyPaid
}

// PledgeStatus is shared by pledges and their scheduled payments.
type PledgeStatus string

const (
	PledgePending    PledgeStatus = "Pending"
	PledgeInProgress PledgeStatus = "In Progress"
	PledgeCompleted  PledgeStatus = "Completed"
	PledgeOverdue    PledgeStatus = "Overdue"
	PledgeCancelled  PledgeStatus = "Cancelled"
)

// ActivityStatus of an audit activity.
type ActivityStatus string

const (
	ActivityScheduled ActivityStatus = "Scheduled"
	ActivityCompleted ActivityStatus = "Completed"
	ActivityCancelled ActivityStatus = "Cancelled"
)

// Activity types written by the engine.
const (
	ActivityContribution           = "Contribution"
	ActivityPayment                = "Payment"
	ActivityRefund                 = "Refund"
	ActivityFailedPayment          = "Failed Payment"
	ActivityMembershipSignup       = "Membership Signup"
	ActivityMembershipRenewal      = "Membership Renewal"
	ActivityChangeMembershipStatus = "Change Membership Status"
	ActivityEventRegistration      = "Event Registration"
)
