package order

import (
	"github.com/bwmarrin/snowflake"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/params"
)

// InputFromParams reads a Contribution.completetransaction parameter bag.
// The first invalid value aborts the read.
func InputFromParams(bag params.Bag, settings *config.Settings) (Input, error) {
	thousands, point := settings.ThousandsSeparator, settings.DecimalPoint
	if bag.Bool("skipCleanMoney") {
		thousands, point = "", "."
	}

	var in Input
	var err error
	read := func(fn func() error) {
		if err == nil {
			err = fn()
		}
	}
	read(func() (e error) { in.ContributionID, e = firstID(bag, "contribution_id", "id"); return })
	read(func() (e error) { in.ContributionRecurID, e = bag.ID("contribution_recur_id"); return })
	read(func() (e error) { in.PaymentInstrumentID, e = bag.ID("payment_instrument_id"); return })
	read(func() (e error) { in.PaymentProcessorID, e = firstID(bag, "payment_processor_id", "payment_processor"); return })
	read(func() (e error) { in.CampaignID, e = bag.ID("campaign_id"); return })
	read(func() (e error) { in.FinancialTypeID, e = bag.ID("financial_type_id"); return })
	read(func() (e error) { in.TotalAmount, e = bag.Decimal("total_amount", thousands, point); return })
	read(func() (e error) { in.FeeAmount, e = bag.Decimal("fee_amount", thousands, point); return })
	read(func() (e error) { in.NetAmount, e = bag.Decimal("net_amount", thousands, point); return })
	read(func() (e error) { in.TrxnDate, e = bag.Time("trxn_date"); return })
	read(func() (e error) { in.ReceiptDate, e = bag.Time("receipt_date"); return })
	read(func() (e error) { in.CardTypeID, e = bag.Int("card_type_id"); return })
	if err != nil {
		return Input{}, err
	}

	in.TrxnID = bag.String("trxn_id")
	in.CheckNumber = bag.String("check_number")
	in.PanTruncation = bag.String("pan_truncation")
	in.Source = bag.String("source")
	if bag.Has("is_test") {
		in.IsTest = boolPtr(bag.Bool("is_test"))
	}
	if _, ok := bag["is_email_receipt"]; ok {
		in.IsEmailReceipt = boolPtr(bag.Bool("is_email_receipt"))
	}
	return in, nil
}

// firstID returns the id held by the first of keys that is set.
func firstID(bag params.Bag, keys ...string) (snowflake.ID, error) {
	for _, key := range keys {
		if bag.Has(key) {
			return bag.ID(key)
		}
	}
	return 0, nil
}
