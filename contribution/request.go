package contribution

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/lineitem"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/params"
)

// Request creates a contribution (ID == 0) or edits one. Zero values mean
// "not submitted" and leave the stored value alone on edit.
type Request struct {
	ID                  snowflake.ID
	ContactID           snowflake.ID
	FinancialTypeID     snowflake.ID
	ContributionPageID  snowflake.ID
	PaymentInstrumentID snowflake.ID
	PaymentProcessorID  snowflake.ID
	ContributionRecurID snowflake.ID
	CampaignID          snowflake.ID

	// MembershipID links a new contribution to a membership; its start date
	// becomes the revenue recognition date.
	MembershipID snowflake.ID

	Status model.ContributionStatus

	TotalAmount         decimal.NullDecimal
	FeeAmount           decimal.NullDecimal
	NetAmount           decimal.NullDecimal
	NonDeductibleAmount decimal.NullDecimal
	TaxAmount           decimal.NullDecimal
	Currency            string

	ReceiveDate            *time.Time
	CancelDate             *time.Time
	ReceiptDate            *time.Time
	ThankyouDate           *time.Time
	RevenueRecognitionDate *time.Time

	TrxnID         string
	TrxnResultCode string
	InvoiceID      string
	InvoiceNumber  string
	CreditNoteID   string
	Source         string
	AmountLevel    string
	CancelReason   string
	CheckNumber    string
	CardTypeID     int
	PanTruncation  string

	IsPayLater *bool
	IsTest     *bool
	IsTemplate *bool

	// LineItems replaces the default single line. Lines are matched to the
	// stored lines by price field and price field value id.
	LineItems lineitem.Set
	// SkipLineItem saves the contribution without touching its lines.
	SkipLineItem bool
	// IsPostPaymentCreate saves the contribution without posting to the
	// ledger; the payment that triggered the save already did.
	IsPostPaymentCreate bool

	// PartialPaymentTotal and PartialAmountToPay record a partial payment:
	// the contribution total becomes PartialPaymentTotal and only
	// PartialAmountToPay is posted as paid.
	PartialPaymentTotal decimal.NullDecimal
	PartialAmountToPay  decimal.NullDecimal

	// RefundTrxnID is the processor id of a refund. It is stored on the
	// refund transaction, not on the contribution.
	RefundTrxnID *string

	// SkipCascade leaves memberships, participants and pledges alone.
	SkipCascade bool
}

func (r *Request) isPartial() bool {
	return r.PartialPaymentTotal.Valid && r.PartialAmountToPay.Valid
}

func boolPtr(v bool) *bool { return &v }

type bagReader struct {
	bag       params.Bag
	thousands string
	point     string
	err       error
}

func (r *bagReader) id(keys ...string) snowflake.ID {
	for _, key := range keys {
		if r.err != nil || !r.bag.Has(key) {
			continue
		}
		var id snowflake.ID
		id, r.err = r.bag.ID(key)
		return id
	}
	return 0
}

func (r *bagReader) amount(key string) decimal.NullDecimal {
	if r.err != nil {
		return decimal.NullDecimal{}
	}
	var d decimal.NullDecimal
	d, r.err = r.bag.Decimal(key, r.thousands, r.point)
	return d
}

func (r *bagReader) date(key string) *time.Time {
	if r.err != nil {
		return nil
	}
	var t *time.Time
	t, r.err = r.bag.Time(key)
	return t
}

func (r *bagReader) flag(key string) *bool {
	if !r.bag.Has(key) {
		return nil
	}
	return boolPtr(r.bag.Bool(key))
}

func (r *bagReader) integer(key string) int {
	if r.err != nil {
		return 0
	}
	var n int
	n, r.err = r.bag.Int(key)
	return n
}

// RequestFromParams reads a form or API parameter bag. Amounts are cleaned
// with the separators of settings unless skipCleanMoney is set, in which case
// they must already be plain decimals.
func RequestFromParams(bag params.Bag, settings *config.Settings) (*Request, error) {
	r := &bagReader{bag: bag, thousands: settings.ThousandsSeparator, point: settings.DecimalPoint}
	if bag.Bool("skipCleanMoney") {
		r.thousands, r.point = "", "."
	}

	req := &Request{
		ID:                  r.id("id", "contribution_id"),
		ContactID:           r.id("contact_id"),
		FinancialTypeID:     r.id("financial_type_id"),
		ContributionPageID:  r.id("contribution_page_id"),
		PaymentInstrumentID: r.id("payment_instrument_id"),
		PaymentProcessorID:  r.id("payment_processor_id", "payment_processor"),
		ContributionRecurID: r.id("contribution_recur_id"),
		CampaignID:          r.id("campaign_id"),
		MembershipID:        r.id("membership_id"),

		TotalAmount:         r.amount("total_amount"),
		FeeAmount:           r.amount("fee_amount"),
		NetAmount:           r.amount("net_amount"),
		NonDeductibleAmount: r.amount("non_deductible_amount"),
		TaxAmount:           r.amount("tax_amount"),
		Currency:            bag.String("currency"),

		ReceiveDate:            r.date("receive_date"),
		CancelDate:             r.date("cancel_date"),
		ReceiptDate:            r.date("receipt_date"),
		ThankyouDate:           r.date("thankyou_date"),
		RevenueRecognitionDate: r.date("revenue_recognition_date"),

		TrxnID:         bag.String("trxn_id"),
		TrxnResultCode: bag.String("trxn_result_code"),
		InvoiceID:      bag.String("invoice_id"),
		InvoiceNumber:  bag.String("invoice_number"),
		CreditNoteID:   bag.String("creditnote_id"),
		Source:         bag.String("source"),
		AmountLevel:    bag.String("amount_level"),
		CancelReason:   bag.String("cancel_reason"),
		CheckNumber:    bag.String("check_number"),
		CardTypeID:     r.integer("card_type_id"),
		PanTruncation:  bag.String("pan_truncation"),

		IsPayLater: r.flag("is_pay_later"),
		IsTest:     r.flag("is_test"),
		IsTemplate: r.flag("is_template"),

		SkipLineItem:        bag.Bool("skipLineItem"),
		IsPostPaymentCreate: bag.Bool("is_post_payment_create"),
		PartialPaymentTotal: r.amount("partial_payment_total"),
		PartialAmountToPay:  r.amount("partial_amount_to_pay"),
		SkipCascade:         bag.Bool("skip_cascade"),
	}
	if r.err != nil {
		return nil, r.err
	}

	if r.bag.Has("contribution_status_id") {
		status, err := bag.Status("contribution_status_id")
		if err != nil {
			return nil, err
		}
		req.Status = status
	}
	if _, ok := bag["refund_trxn_id"]; ok {
		refund := bag.String("refund_trxn_id")
		req.RefundTrxnID = &refund
	}
	if lines, ok := bag.Bag("line_item"); ok {
		set, err := lineitem.ParseSet(lines, r.thousands, r.point)
		if err != nil {
			return nil, err
		}
		req.LineItems = set
	}
	return req, nil
}

// apply copies the submitted fields of r onto c.
func (r *Request) apply(c *model.Contribution) {
	setID := func(dst *snowflake.ID, v snowflake.ID) {
		if v != 0 {
			*dst = v
		}
	}
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setTime := func(dst **time.Time, v *time.Time) {
		if v != nil {
			*dst = v
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}

	setID(&c.ContactID, r.ContactID)
	setID(&c.FinancialTypeID, r.FinancialTypeID)
	setID(&c.ContributionPageID, r.ContributionPageID)
	setID(&c.PaymentInstrumentID, r.PaymentInstrumentID)
	setID(&c.ContributionRecurID, r.ContributionRecurID)
	setID(&c.CampaignID, r.CampaignID)

	if r.Status != model.StatusUnknown {
		c.Status = r.Status
	}
	if r.TotalAmount.Valid {
		c.TotalAmount = r.TotalAmount.Decimal
	}
	if r.FeeAmount.Valid {
		c.FeeAmount = r.FeeAmount.Decimal
	}
	if r.NetAmount.Valid {
		c.NetAmount = r.NetAmount.Decimal
	}
	if r.NonDeductibleAmount.Valid {
		c.NonDeductibleAmount = r.NonDeductibleAmount.Decimal
	}
	if r.TaxAmount.Valid {
		c.TaxAmount = r.TaxAmount
	}
	setString(&c.Currency, r.Currency)

	setTime(&c.ReceiveDate, r.ReceiveDate)
	setTime(&c.CancelDate, r.CancelDate)
	setTime(&c.ReceiptDate, r.ReceiptDate)
	setTime(&c.ThankyouDate, r.ThankyouDate)
	setTime(&c.RevenueRecognitionDate, r.RevenueRecognitionDate)

	setString(&c.TrxnID, r.TrxnID)
	setString(&c.InvoiceID, r.InvoiceID)
	setString(&c.InvoiceNumber, r.InvoiceNumber)
	setString(&c.CreditNoteID, r.CreditNoteID)
	setString(&c.Source, r.Source)
	setString(&c.AmountLevel, r.AmountLevel)
	setString(&c.CancelReason, r.CancelReason)
	setString(&c.CheckNumber, r.CheckNumber)
	setString(&c.PanTruncation, r.PanTruncation)
	if r.CardTypeID != 0 {
		c.CardTypeID = r.CardTypeID
	}

	setBool(&c.IsPayLater, r.IsPayLater)
	setBool(&c.IsTest, r.IsTest)
	setBool(&c.IsTemplate, r.IsTemplate)
}
