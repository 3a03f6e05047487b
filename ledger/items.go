package ledger

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/model"
)

// Context tells CreateFinancialItem why an item is posted and so how its
// amount is derived from the line item.
type Context int

const (
	ContextNone Context = iota
	ContextChangedAmount
	ContextChangeFinancialType
	ContextChangedStatus
)

func (c Context) String() string {
	switch c {
	case ContextChangedAmount:
		return "changedAmount"
	case ContextChangeFinancialType:
		return "changeFinancialType"
	case ContextChangedStatus:
		return "changedStatus"
	}
	return "none"
}

var minusOne = decimal.NewFromInt(-1)

// Multiplier returns the sign applied to items posted in c for a contribution
// moving to target.
func Multiplier(c Context, target model.ContributionStatus) decimal.Decimal {
	if c == ContextChangeFinancialType || target.IsReversal() {
		return minusOne
	}
	return decimal.NewFromInt(1)
}

// ItemParams describes a financial item to post.
type ItemParams struct {
	ContactID       snowflake.ID
	Description     string
	Currency        string
	TransactionDate time.Time
	AccountID       snowflake.ID
	Status          model.ItemStatus

	// Line is the line item the financial item mirrors. EntityTable and
	// EntityID default to it.
	Line        *model.LineItem
	EntityTable string
	EntityID    snowflake.ID

	// PrevLine is the line before an amount change (ContextChangedAmount).
	PrevLine *model.LineItem
	// Target is the status the contribution moves to.
	Target model.ContributionStatus
	// IncludeTax adds the line tax to a ContextChangedStatus amount.
	IncludeTax bool

	// Amount overrides the computed amount, e.g. for tax and fee items.
	Amount decimal.NullDecimal
}

// ItemAmount returns the signed amount of an item posted in c.
func ItemAmount(c Context, p *ItemParams) decimal.Decimal {
	if p.Amount.Valid {
		return p.Amount.Decimal
	}
	if p.Line == nil {
		return decimal.Zero
	}

	line := p.Line.LineTotal
	switch c {
	case ContextChangedAmount:
		if p.PrevLine == nil {
			return line
		}
		return line.Sub(p.PrevLine.LineTotal)
	case ContextChangeFinancialType:
		return line.Neg()
	case ContextChangedStatus:
		if p.IncludeTax {
			line = line.Add(p.Line.Tax())
		}
		return Multiplier(c, p.Target).Mul(line)
	}
	return line
}

// CreateFinancialItem inserts one financial item and links it to every
// transaction in trxnIDs for the full item amount.
func (r *Recorder) CreateFinancialItem(ctx context.Context, p ItemParams, c Context, trxnIDs []snowflake.ID) (*model.FinancialItem, error) {
	if p.AccountID == 0 {
		return nil, &MissingFieldError{Entity: "financial item", Field: "financial_account_id"}
	}

	entityTable, entityID := p.EntityTable, p.EntityID
	if entityTable == "" && p.Line != nil {
		entityTable, entityID = model.TableLineItem, p.Line.ID
	}
	if entityTable == "" {
		return nil, &MissingFieldError{Entity: "financial item", Field: "entity_table"}
	}

	description := p.Description
	if description == "" && p.Line != nil {
		description = p.Line.Label
	}
	date := p.TransactionDate
	if date.IsZero() {
		date = r.now()
	}
	status := p.Status
	if status == 0 {
		status = model.ItemUnpaid
	}

	item := &model.FinancialItem{
		TransactionDate:    date,
		ContactID:          p.ContactID,
		Description:        description,
		Amount:             ItemAmount(c, &p),
		Currency:           p.Currency,
		FinancialAccountID: p.AccountID,
		Status:             status,
		EntityTable:        entityTable,
		EntityID:           entityID,
		CreatedAt:          r.now(),
	}

	err := r.store.Transaction(ctx, func(ctx context.Context) error {
		if err := r.store.CreateFinancialItem(ctx, item); err != nil {
			return err
		}
		for _, trxnID := range trxnIDs {
			if _, err := r.CreateEntityLink(ctx, trxnID, item.ID, item.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SetItemsStatus updates the status of every financial item of a
// contribution's line items.
func (r *Recorder) SetItemsStatus(ctx context.Context, contributionID snowflake.ID, status model.ItemStatus) ([]model.FinancialItem, error) {
	items, err := r.store.ContributionFinancialItems(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, len(items))
	for i := range items {
		ids[i] = items[i].ID
		items[i].Status = status
	}
	if err := r.store.SetFinancialItemsStatus(ctx, ids, status); err != nil {
		return nil, err
	}
	return items, nil
}

// LinkItems joins every financial item of a contribution's line items to
// each transaction in trxnIDs.
func (r *Recorder) LinkItems(ctx context.Context, items []model.FinancialItem, trxnIDs []snowflake.ID) error {
	for _, trxnID := range trxnIDs {
		for i := range items {
			if _, err := r.CreateEntityLink(ctx, trxnID, items[i].ID, items[i].Amount); err != nil {
				return err
			}
		}
	}
	return nil
}
