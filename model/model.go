// Package model defines the persisted entities of the contribution ledger:
// contributions and their line items, the append-only ledger rows
// (financial transactions, financial items and the join rows between them),
// the chart of accounts, and the related components a contribution pays for
// (memberships, event participants and pledge payments).
//
// All entities are plain gorm models with snowflake primary keys. Amounts are
// decimal.Decimal values stored as decimal(20,2).
package model

// Entity tables used by polymorphic references (line items, financial items,
// entity links and account relationships).
const (
	TableContribution      = "contribution"
	TableLineItem          = "line_item"
	TableFinancialItem     = "financial_item"
	TableFinancialTrxn     = "financial_trxn"
	TableFinancialType     = "financial_type"
	TablePaymentInstrument = "payment_instrument"
	TablePaymentProcessor  = "payment_processor"
	TableMembership        = "membership"
	TableParticipant       = "participant"
)

// All returns every entity in migration order.
func All() []any {
	return []any{
		&FinancialAccount{},
		&FinancialType{},
		&EntityFinancialAccount{},
		&PaymentInstrument{},
		&PaymentProcessor{},
		&ContributionRecur{},
		&Contribution{},
		&LineItem{},
		&FinancialTrxn{},
		&FinancialItem{},
		&EntityFinancialTrxn{},
		&MembershipType{},
		&Membership{},
		&MembershipPayment{},
		&MembershipLog{},
		&Participant{},
		&ParticipantPayment{},
		&Pledge{},
		&PledgePayment{},
		&Activity{},
	}
}
