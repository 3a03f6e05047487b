// Package lineitem reads and writes the decomposition of a contribution
// total into priced line items.
//
// The lines of a contribution must always add up to its total:
//
//	sum(line_total + tax_amount) == contribution.total_amount
//
// Check enforces this before anything is posted to the ledger.
package lineitem

import (
	"cmp"
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/money"
	"github.com/robinvdvleuten/contribute/params"
	"github.com/robinvdvleuten/contribute/store"
)

// DefaultLabel labels the single line of a contribution without a price set.
const DefaultLabel = "Contribution Amount"

// MismatchError is returned when the lines do not add up to the total.
type MismatchError struct {
	Total    decimal.Decimal
	LineSum  decimal.Decimal
	Currency string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("line item total %s doesn't match with total amount %s",
		money.Format(e.LineSum, e.Currency), money.Format(e.Total, e.Currency))
}

// Code returns the API error code.
func (e *MismatchError) Code() string { return "validation_error" }

// Set mirrors the nested line_item parameter. A line with a price field is
// unique per price field and price field value id. Lines without a price
// field are all kept.
type Set struct {
	lines []model.LineItem
}

// Add puts line into the set, replacing the line with the same price field
// and value ids.
func (s *Set) Add(line model.LineItem) {
	if line.PriceFieldID != 0 || line.PriceFieldValueID != 0 {
		i := slices.IndexFunc(s.lines, func(l model.LineItem) bool {
			return l.PriceFieldID == line.PriceFieldID && l.PriceFieldValueID == line.PriceFieldValueID
		})
		if i >= 0 {
			s.lines[i] = line
			return
		}
	}
	s.lines = append(s.lines, line)
}

// Len returns the number of lines.
func (s Set) Len() int {
	return len(s.lines)
}

// Flatten returns the lines ordered by price field id, then price field
// value id. Lines with equal ids keep the order they were added in.
func (s Set) Flatten() []model.LineItem {
	lines := slices.Clone(s.lines)
	slices.SortStableFunc(lines, func(a, b model.LineItem) int {
		if c := cmp.Compare(a.PriceFieldID, b.PriceFieldID); c != 0 {
			return c
		}
		return cmp.Compare(a.PriceFieldValueID, b.PriceFieldValueID)
	})
	return lines
}

// ParseSet reads the nested line_item bag. Amounts in strings are cleaned
// with the given separators.
func ParseSet(bag params.Bag, thousands, decimalPoint string) (Set, error) {
	var set Set
	for fieldKey := range bag {
		fieldID, err := strconv.ParseInt(fieldKey, 10, 64)
		if err != nil {
			return Set{}, &params.InvalidError{Key: "line_item", Value: fieldKey, Reason: "price field id is not a number"}
		}
		values, ok := bag.Bag(fieldKey)
		if !ok {
			return Set{}, &params.InvalidError{Key: "line_item", Value: bag[fieldKey], Reason: "expected price field values"}
		}
		for valueKey := range values {
			valueID, err := strconv.ParseInt(valueKey, 10, 64)
			if err != nil {
				return Set{}, &params.InvalidError{Key: "line_item", Value: valueKey, Reason: "price field value id is not a number"}
			}
			raw, ok := values.Bag(valueKey)
			if !ok {
				return Set{}, &params.InvalidError{Key: "line_item", Value: values[valueKey], Reason: "expected a line item"}
			}
			line, err := parseLine(raw, thousands, decimalPoint)
			if err != nil {
				return Set{}, err
			}
			line.PriceFieldID = fieldID
			line.PriceFieldValueID = valueID
			set.Add(line)
		}
	}
	return set, nil
}

func parseLine(raw params.Bag, thousands, decimalPoint string) (model.LineItem, error) {
	line := model.LineItem{
		Label:       raw.String("label"),
		EntityTable: raw.String("entity_table"),
		Qty:         decimal.NewFromInt(1),
	}

	var err error
	if line.FinancialTypeID, err = raw.ID("financial_type_id"); err != nil {
		return line, err
	}
	if line.EntityID, err = raw.ID("entity_id"); err != nil {
		return line, err
	}
	if line.MembershipTypeID, err = raw.ID("membership_type_id"); err != nil {
		return line, err
	}
	if line.MembershipNumTerms, err = raw.Int("membership_num_terms"); err != nil {
		return line, err
	}
	if line.ParticipantCount, err = raw.Int("participant_count"); err != nil {
		return line, err
	}

	amount := func(key string) (decimal.NullDecimal, error) {
		return raw.Decimal(key, thousands, decimalPoint)
	}

	qty, err := amount("qty")
	if err != nil {
		return line, err
	}
	if qty.Valid {
		line.Qty = qty.Decimal
	}
	unitPrice, err := amount("unit_price")
	if err != nil {
		return line, err
	}
	lineTotal, err := amount("line_total")
	if err != nil {
		return line, err
	}
	if line.TaxAmount, err = amount("tax_amount"); err != nil {
		return line, err
	}
	nonDeductible, err := amount("non_deductible_amount")
	if err != nil {
		return line, err
	}
	line.NonDeductibleAmount = nonDeductible.Decimal

	switch {
	case lineTotal.Valid:
		line.LineTotal = lineTotal.Decimal
		line.UnitPrice = unitPrice.Decimal
		if !unitPrice.Valid && !line.Qty.IsZero() {
			line.UnitPrice = lineTotal.Decimal.Div(line.Qty).Round(2)
		}
	case unitPrice.Valid:
		line.UnitPrice = unitPrice.Decimal
		line.LineTotal = unitPrice.Decimal.Mul(line.Qty).Round(2)
	default:
		return line, &params.InvalidError{Key: "line_item", Value: raw, Reason: "line_total or unit_price is required"}
	}
	return line, nil
}

// ForContribution loads the persisted lines of a contribution.
func ForContribution(ctx context.Context, s *store.Store, contributionID snowflake.ID) ([]model.LineItem, error) {
	return s.LineItems(ctx, contributionID)
}

// Default returns the single line of a contribution without a price set.
// The line carries the contribution total net of tax.
func Default(c *model.Contribution) model.LineItem {
	net := c.TotalAmount.Sub(c.Tax())
	return model.LineItem{
		ContributionID:      c.ID,
		EntityTable:         model.TableContribution,
		EntityID:            c.ID,
		FinancialTypeID:     c.FinancialTypeID,
		Label:               DefaultLabel,
		Qty:                 decimal.NewFromInt(1),
		UnitPrice:           net,
		LineTotal:           net,
		TaxAmount:           c.TaxAmount,
		NonDeductibleAmount: c.NonDeductibleAmount,
	}
}

// Sync rewrites a single line after the contribution total or financial
// type changed. Contributions with several lines are left alone. It
// reports whether the line was changed.
func Sync(lines []model.LineItem, c *model.Contribution) bool {
	if len(lines) != 1 {
		return false
	}
	line := &lines[0]
	net := c.TotalAmount.Sub(c.Tax())
	if line.LineTotal.Equal(net) && line.Tax().Equal(c.Tax()) && line.FinancialTypeID == c.FinancialTypeID {
		return false
	}

	line.LineTotal = net
	if line.Qty.IsZero() {
		line.Qty = decimal.NewFromInt(1)
	}
	line.UnitPrice = net.Div(line.Qty).Round(2)
	line.TaxAmount = c.TaxAmount
	line.FinancialTypeID = c.FinancialTypeID
	return true
}

// Total returns the sum of line_total + tax_amount over lines.
func Total(lines []model.LineItem) decimal.Decimal {
	total := decimal.Zero
	for i := range lines {
		total = total.Add(lines[i].Total())
	}
	return total
}

// TaxTotal returns the sum of the line taxes.
func TaxTotal(lines []model.LineItem) decimal.Decimal {
	total := decimal.Zero
	for i := range lines {
		total = total.Add(lines[i].Tax())
	}
	return total
}

// Check verifies that lines add up to total. A nil total is taken from the
// lines and returned.
func Check(lines []model.LineItem, total *decimal.Decimal, currency string) (decimal.Decimal, error) {
	sum := Total(lines)
	if total == nil {
		return sum, nil
	}
	if !money.Equals(sum, *total, currency) {
		return *total, &MismatchError{Total: *total, LineSum: sum, Currency: currency}
	}
	return *total, nil
}

// FinancialTypes returns the distinct financial types of lines, sorted.
func FinancialTypes(lines []model.LineItem) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(lines))
	for i := range lines {
		seen[lines[i].FinancialTypeID] = struct{}{}
	}
	types := maps.Keys(seen)
	slices.Sort(types)
	return types
}

// TaxRates resolves the sales tax rate of a financial type.
type TaxRates interface {
	TaxRate(ctx context.Context, financialTypeID snowflake.ID) (decimal.Decimal, bool, error)
}

// ApplyTax computes the tax of every line of a taxable financial type that
// does not carry a tax amount yet, and returns the tax total of lines.
func ApplyTax(ctx context.Context, rates TaxRates, lines []model.LineItem) (decimal.Decimal, error) {
	for i := range lines {
		line := &lines[i]
		if line.TaxAmount.Valid {
			continue
		}
		rate, taxable, err := rates.TaxRate(ctx, line.FinancialTypeID)
		if err != nil {
			return decimal.Zero, err
		}
		if taxable {
			line.TaxAmount = decimal.NewNullDecimal(money.CalculateTax(line.LineTotal, rate))
		}
	}
	return TaxTotal(lines), nil
}

// Save persists lines for a contribution. Lines without an id are created;
// lines representing the contribution itself get its id as entity id.
func Save(ctx context.Context, s *store.Store, contributionID snowflake.ID, lines []model.LineItem) error {
	for i := range lines {
		line := &lines[i]
		line.ContributionID = contributionID
		if line.EntityTable == "" {
			line.EntityTable = model.TableContribution
		}
		if line.EntityTable == model.TableContribution {
			line.EntityID = contributionID
		}

		if line.ID == 0 {
			if err := s.CreateLineItem(ctx, line); err != nil {
				return err
			}
			continue
		}
		if err := s.Save(ctx, line); err != nil {
			return err
		}
	}
	return nil
}
