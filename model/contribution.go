package model

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Contribution is a single financial contribution by a contact.
type Contribution struct {
	ID                     snowflake.ID        `gorm:"primaryKey" json:"id"`
	ContactID              snowflake.ID        `gorm:"not null;index" json:"contact_id"`
	FinancialTypeID        snowflake.ID        `gorm:"not null;index" json:"financial_type_id"`
	ContributionPageID     snowflake.ID        `json:"contribution_page_id,omitempty"`
	PaymentInstrumentID    snowflake.ID        `json:"payment_instrument_id,omitempty"`
	ReceiveDate            *time.Time          `json:"receive_date,omitempty"`
	NonDeductibleAmount    decimal.Decimal     `gorm:"type:decimal(20,2);not null;default:0" json:"non_deductible_amount"`
	TotalAmount            decimal.Decimal     `gorm:"type:decimal(20,2);not null" json:"total_amount"`
	FeeAmount              decimal.Decimal     `gorm:"type:decimal(20,2);not null;default:0" json:"fee_amount"`
	NetAmount              decimal.Decimal     `gorm:"type:decimal(20,2);not null;default:0" json:"net_amount"`
	TaxAmount              decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"tax_amount"`
	Currency               string              `gorm:"type:text;not null" json:"currency"`
	TrxnID                 string              `gorm:"type:text;index" json:"trxn_id,omitempty"`
	InvoiceID              string              `gorm:"type:text;index" json:"invoice_id,omitempty"`
	InvoiceNumber          string              `gorm:"type:text" json:"invoice_number,omitempty"`
	CreditNoteID           string              `gorm:"type:text;index" json:"creditnote_id,omitempty"`
	CancelDate             *time.Time          `json:"cancel_date,omitempty"`
	CancelReason           string              `gorm:"type:text" json:"cancel_reason,omitempty"`
	ReceiptDate            *time.Time          `json:"receipt_date,omitempty"`
	ThankyouDate           *time.Time          `json:"thankyou_date,omitempty"`
	RevenueRecognitionDate *time.Time          `json:"revenue_recognition_date,omitempty"`
	Source                 string              `gorm:"type:text" json:"source,omitempty"`
	AmountLevel            string              `gorm:"type:text" json:"amount_level,omitempty"`
	ContributionRecurID    snowflake.ID        `gorm:"index" json:"contribution_recur_id,omitempty"`
	CampaignID             snowflake.ID        `json:"campaign_id,omitempty"`
	Status                 ContributionStatus  `gorm:"not null;index" json:"contribution_status_id"`
	IsTest                 bool                `gorm:"not null;default:false" json:"is_test"`
	IsPayLater             bool                `gorm:"not null;default:false" json:"is_pay_later"`
	IsTemplate             bool                `gorm:"not null;default:false" json:"is_template"`
	CheckNumber            string              `gorm:"type:text" json:"check_number,omitempty"`
	CardTypeID             int                 `json:"card_type_id,omitempty"`
	PanTruncation          string              `gorm:"type:text" json:"pan_truncation,omitempty"`
	CreatedAt              time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time           `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Contribution) TableName() string { return "contributions" }

// Tax returns the tax amount, zero when none is set.
func (c *Contribution) Tax() decimal.Decimal {
	if c.TaxAmount.Valid {
		return c.TaxAmount.Decimal
	}
	return decimal.Zero
}

// ContributionRecur owns the schedule of a recurring contribution series.
type ContributionRecur struct {
	ID                  snowflake.ID       `gorm:"primaryKey" json:"id"`
	ContactID           snowflake.ID       `gorm:"not null;index" json:"contact_id"`
	FinancialTypeID     snowflake.ID       `json:"financial_type_id"`
	PaymentInstrumentID snowflake.ID       `json:"payment_instrument_id,omitempty"`
	PaymentProcessorID  snowflake.ID       `json:"payment_processor_id,omitempty"`
	CampaignID          snowflake.ID       `json:"campaign_id,omitempty"`
	Amount              decimal.Decimal    `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency            string             `gorm:"type:text;not null" json:"currency"`
	FrequencyUnit       string             `gorm:"type:text;not null;default:month" json:"frequency_unit"`
	FrequencyInterval   int                `gorm:"not null;default:1" json:"frequency_interval"`
	Installments        int                `json:"installments,omitempty"`
	StartDate           time.Time          `json:"start_date"`
	Status              ContributionStatus `gorm:"not null" json:"contribution_status_id"`
	IsTest              bool               `gorm:"not null;default:false" json:"is_test"`
	CreatedAt           time.Time          `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (ContributionRecur) TableName() string { return "contribution_recurs" }

// LineItem is one priced component of a contribution total.
type LineItem struct {
	ID                  snowflake.ID        `gorm:"primaryKey" json:"id"`
	ContributionID      snowflake.ID        `gorm:"not null;index" json:"contribution_id"`
	EntityTable         string              `gorm:"type:text;not null" json:"entity_table"`
	EntityID            snowflake.ID        `gorm:"not null;index" json:"entity_id"`
	PriceFieldID        int64               `json:"price_field_id,omitempty"`
	PriceFieldValueID   int64               `json:"price_field_value_id,omitempty"`
	FinancialTypeID     snowflake.ID        `gorm:"not null" json:"financial_type_id"`
	Label               string              `gorm:"type:text" json:"label"`
	Qty                 decimal.Decimal     `gorm:"type:decimal(20,2);not null" json:"qty"`
	UnitPrice           decimal.Decimal     `gorm:"type:decimal(20,2);not null" json:"unit_price"`
	LineTotal           decimal.Decimal     `gorm:"type:decimal(20,2);not null" json:"line_total"`
	TaxAmount           decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"tax_amount"`
	NonDeductibleAmount decimal.Decimal     `gorm:"type:decimal(20,2);not null;default:0" json:"non_deductible_amount"`
	ParticipantCount    int                 `json:"participant_count,omitempty"`
	MembershipNumTerms  int                 `json:"membership_num_terms,omitempty"`
	MembershipTypeID    snowflake.ID        `json:"membership_type_id,omitempty"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "line_items" }

// Tax returns the tax amount of the line, zero when none is set.
func (l *LineItem) Tax() decimal.Decimal {
	if l.TaxAmount.Valid {
		return l.TaxAmount.Decimal
	}
	return decimal.Zero
}

// Total returns line_total + tax_amount.
func (l *LineItem) Total() decimal.Decimal {
	return l.LineTotal.Add(l.Tax())
}
