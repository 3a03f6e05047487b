package store

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/robinvdvleuten/contribute/model"
)

// CreateFinancialTrxn inserts a ledger transaction.
func (s *Store) CreateFinancialTrxn(ctx context.Context, t *model.FinancialTrxn) error {
	return s.create(ctx, &t.ID, t)
}

// GetFinancialTrxn loads a ledger transaction by id.
func (s *Store) GetFinancialTrxn(ctx context.Context, id snowflake.ID) (*model.FinancialTrxn, error) {
	return get[model.FinancialTrxn](ctx, s, "financial transaction", id)
}

// CreateFinancialItem inserts a financial item.
func (s *Store) CreateFinancialItem(ctx context.Context, fi *model.FinancialItem) error {
	return s.create(ctx, &fi.ID, fi)
}

// CreateEntityFinancialTrxn inserts a link between a transaction and an entity.
func (s *Store) CreateEntityFinancialTrxn(ctx context.Context, eft *model.EntityFinancialTrxn) error {
	return s.create(ctx, &eft.ID, eft)
}

// ContributionTrxns returns every transaction linked to a contribution in
// posting order.
func (s *Store) ContributionTrxns(ctx context.Context, contributionID snowflake.ID) ([]model.FinancialTrxn, error) {
	var rows []model.FinancialTrxn
	err := s.conn(ctx).
		Joins("JOIN entity_financial_trxns eft ON eft.financial_trxn_id = financial_trxns.id").
		Where("eft.entity_table = ? AND eft.entity_id = ?", model.TableContribution, contributionID).
		Order("financial_trxns.id").
		Find(&rows).Error
	return rows, err
}

// LatestContributionTrxn returns the most recent non-fee transaction of a
// contribution, or nil.
func (s *Store) LatestContributionTrxn(ctx context.Context, contributionID snowflake.ID) (*model.FinancialTrxn, error) {
	return first[model.FinancialTrxn](s.conn(ctx).
		Joins("JOIN entity_financial_trxns eft ON eft.financial_trxn_id = financial_trxns.id").
		Where("eft.entity_table = ? AND eft.entity_id = ?", model.TableContribution, contributionID).
		Where("financial_trxns.is_fee = ?", false).
		Order("financial_trxns.id DESC"))
}

// HasContributionTrxnTo reports whether a contribution already has a
// transaction posted to the given account.
func (s *Store) HasContributionTrxnTo(ctx context.Context, contributionID, toAccountID snowflake.ID) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&model.FinancialTrxn{}).
		Joins("JOIN entity_financial_trxns eft ON eft.financial_trxn_id = financial_trxns.id").
		Where("eft.entity_table = ? AND eft.entity_id = ?", model.TableContribution, contributionID).
		Where("financial_trxns.to_financial_account_id = ?", toAccountID).
		Count(&count).Error
	return count > 0, err
}

// FinancialItems returns the financial items of an entity (a line item or a
// fee transaction) in posting order.
func (s *Store) FinancialItems(ctx context.Context, entityTable string, entityID snowflake.ID) ([]model.FinancialItem, error) {
	var rows []model.FinancialItem
	err := s.conn(ctx).Where("entity_table = ? AND entity_id = ?", entityTable, entityID).Order("id").Find(&rows).Error
	return rows, err
}

// ContributionFinancialItems returns every line item financial item of a
// contribution in posting order.
func (s *Store) ContributionFinancialItems(ctx context.Context, contributionID snowflake.ID) ([]model.FinancialItem, error) {
	var rows []model.FinancialItem
	err := s.conn(ctx).
		Joins("JOIN line_items li ON li.id = financial_items.entity_id").
		Where("financial_items.entity_table = ? AND li.contribution_id = ?", model.TableLineItem, contributionID).
		Order("financial_items.id").
		Find(&rows).Error
	return rows, err
}

// SetFinancialItemsStatus updates the status of the given items.
func (s *Store) SetFinancialItemsStatus(ctx context.Context, ids []snowflake.ID, status model.ItemStatus) error {
	if len(ids) == 0 {
		return nil
	}
	return s.conn(ctx).Model(&model.FinancialItem{}).Where("id IN ?", ids).Update("status", status).Error
}

// EntityTrxns returns the links of an entity.
func (s *Store) EntityTrxns(ctx context.Context, entityTable string, entityID snowflake.ID) ([]model.EntityFinancialTrxn, error) {
	var rows []model.EntityFinancialTrxn
	err := s.conn(ctx).Where("entity_table = ? AND entity_id = ?", entityTable, entityID).Order("id").Find(&rows).Error
	return rows, err
}

// TrxnLinks returns every link of a transaction.
func (s *Store) TrxnLinks(ctx context.Context, trxnID snowflake.ID) ([]model.EntityFinancialTrxn, error) {
	var rows []model.EntityFinancialTrxn
	err := s.conn(ctx).Where("financial_trxn_id = ?", trxnID).Order("id").Find(&rows).Error
	return rows, err
}

// DeleteContributionLedger removes every ledger row of a contribution: its
// transactions, the financial items of its line items and fees, and the join
// rows between them.
func (s *Store) DeleteContributionLedger(ctx context.Context, contributionID snowflake.ID) error {
	trxns, err := s.ContributionTrxns(ctx, contributionID)
	if err != nil {
		return err
	}
	items, err := s.ContributionFinancialItems(ctx, contributionID)
	if err != nil {
		return err
	}

	trxnIDs := make([]snowflake.ID, 0, len(trxns))
	for _, t := range trxns {
		trxnIDs = append(trxnIDs, t.ID)
	}

	var feeItems []model.FinancialItem
	if len(trxnIDs) > 0 {
		if err := s.conn(ctx).Where("entity_table = ? AND entity_id IN ?", model.TableFinancialTrxn, trxnIDs).Find(&feeItems).Error; err != nil {
			return err
		}
	}

	itemIDs := make([]snowflake.ID, 0, len(items)+len(feeItems))
	for _, fi := range append(items, feeItems...) {
		itemIDs = append(itemIDs, fi.ID)
	}

	db := s.conn(ctx)
	if err := db.Delete(&model.EntityFinancialTrxn{}, "entity_table = ? AND entity_id = ?", model.TableContribution, contributionID).Error; err != nil {
		return err
	}
	if len(itemIDs) > 0 {
		if err := db.Delete(&model.EntityFinancialTrxn{}, "entity_table = ? AND entity_id IN ?", model.TableFinancialItem, itemIDs).Error; err != nil {
			return err
		}
		if err := db.Delete(&model.FinancialItem{}, "id IN ?", itemIDs).Error; err != nil {
			return err
		}
	}
	if len(trxnIDs) > 0 {
		if err := db.Delete(&model.FinancialTrxn{}, "id IN ?", trxnIDs).Error; err != nil {
			return err
		}
	}
	return nil
}
