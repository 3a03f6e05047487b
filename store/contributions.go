package store

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/robinvdvleuten/contribute/model"
)

// CreateContribution inserts a contribution and assigns its id.
func (s *Store) CreateContribution(ctx context.Context, c *model.Contribution) error {
	return s.create(ctx, &c.ID, c)
}

// GetContribution loads a contribution by id.
func (s *Store) GetContribution(ctx context.Context, id snowflake.ID) (*model.Contribution, error) {
	return get[model.Contribution](ctx, s, "contribution", id)
}

// Contributions lists contributions, newest first.
func (s *Store) Contributions(ctx context.Context, limit int) ([]model.Contribution, error) {
	var rows []model.Contribution
	db := s.conn(ctx).Order("id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&rows).Error
	return rows, err
}

// FindDuplicates returns contributions other than exclude whose trxn id or
// invoice id matches. Empty values never match.
func (s *Store) FindDuplicates(ctx context.Context, trxnID, invoiceID string, exclude snowflake.ID) ([]model.Contribution, error) {
	if trxnID == "" && invoiceID == "" {
		return nil, nil
	}

	db := s.conn(ctx).Where("id <> ?", exclude)
	switch {
	case trxnID != "" && invoiceID != "":
		db = db.Where("trxn_id = ? OR invoice_id = ?", trxnID, invoiceID)
	case trxnID != "":
		db = db.Where("trxn_id = ?", trxnID)
	default:
		db = db.Where("invoice_id = ?", invoiceID)
	}

	var rows []model.Contribution
	err := db.Order("id").Find(&rows).Error
	return rows, err
}

// CountCreditNotes returns the number of contributions carrying a credit note.
func (s *Store) CountCreditNotes(ctx context.Context) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&model.Contribution{}).Where("credit_note_id <> ''").Count(&count).Error
	return count, err
}

// CreditNoteExists reports whether a credit note id is already taken.
func (s *Store) CreditNoteExists(ctx context.Context, creditNoteID string) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&model.Contribution{}).Where("credit_note_id = ?", creditNoteID).Count(&count).Error
	return count > 0, err
}

// RecurTemplate returns the contribution used as template when repeating a
// recurring series: the explicit template when one exists, otherwise the most
// recent contribution of the series.
func (s *Store) RecurTemplate(ctx context.Context, recurID snowflake.ID) (*model.Contribution, error) {
	tmpl, err := first[model.Contribution](s.conn(ctx).
		Where("contribution_recur_id = ? AND is_template = ?", recurID, true).
		Order("id DESC"))
	if err != nil || tmpl != nil {
		return tmpl, err
	}

	tmpl, err = first[model.Contribution](s.conn(ctx).
		Where("contribution_recur_id = ? AND is_template = ?", recurID, false).
		Order("receive_date DESC, id DESC"))
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, &NotFoundError{Entity: "template contribution for recurring", ID: recurID}
	}
	return tmpl, nil
}

// DeleteContribution removes the contribution row itself.
func (s *Store) DeleteContribution(ctx context.Context, id snowflake.ID) error {
	return s.conn(ctx).Delete(&model.Contribution{}, "id = ?", id).Error
}

// CreateContributionRecur inserts a recurring contribution.
func (s *Store) CreateContributionRecur(ctx context.Context, r *model.ContributionRecur) error {
	return s.create(ctx, &r.ID, r)
}

// GetContributionRecur loads a recurring contribution by id.
func (s *Store) GetContributionRecur(ctx context.Context, id snowflake.ID) (*model.ContributionRecur, error) {
	return get[model.ContributionRecur](ctx, s, "recurring contribution", id)
}

// CreateLineItem inserts a line item.
func (s *Store) CreateLineItem(ctx context.Context, li *model.LineItem) error {
	return s.create(ctx, &li.ID, li)
}

// LineItems returns the line items of a contribution in insertion order.
func (s *Store) LineItems(ctx context.Context, contributionID snowflake.ID) ([]model.LineItem, error) {
	var rows []model.LineItem
	err := s.conn(ctx).Where("contribution_id = ?", contributionID).Order("id").Find(&rows).Error
	return rows, err
}

// LineItemsForEntity returns the line items that price an entity, such as a
// membership or participant.
func (s *Store) LineItemsForEntity(ctx context.Context, entityTable string, entityID snowflake.ID) ([]model.LineItem, error) {
	var rows []model.LineItem
	err := s.conn(ctx).Where("entity_table = ? AND entity_id = ?", entityTable, entityID).Order("id").Find(&rows).Error
	return rows, err
}

// DeleteLineItems removes every line item of a contribution.
func (s *Store) DeleteLineItems(ctx context.Context, contributionID snowflake.ID) error {
	return s.conn(ctx).Delete(&model.LineItem{}, "contribution_id = ?", contributionID).Error
}
