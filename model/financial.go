package model

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AccountType classifies a financial account in the chart of accounts.
type AccountType string

const (
	AccountAsset     AccountType = "Asset"
	AccountLiability AccountType = "Liability"
	AccountRevenue   AccountType = "Revenue"
	AccountCostSales AccountType = "Cost of Sales"
	AccountExpenses  AccountType = "Expenses"
)

// Relationship names the role an account plays for a financial type,
// payment instrument or payment processor.
type Relationship string

const (
	RelIncome             Relationship = "Income Account is"
	RelAccountsReceivable Relationship = "Accounts Receivable Account is"
	RelExpense            Relationship = "Expense Account is"
	RelCostOfSales        Relationship = "Cost of Sales Account is"
	RelContraRevenue      Relationship = "Credit/Contra Revenue Account is"
	RelChargeback         Relationship = "Chargeback Account is"
	RelDeferredRevenue    Relationship = "Deferred Revenue Account is"
	RelSalesTax           Relationship = "Sales Tax Account is"
	RelAsset              Relationship = "Asset Account is"
)

// FinancialAccount is a ledger account.
type FinancialAccount struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"type:text;not null;uniqueIndex" json:"name"`
	AccountCode  string          `gorm:"type:text" json:"accounting_code,omitempty"`
	AccountType  AccountType     `gorm:"type:text;not null" json:"financial_account_type"`
	IsTax        bool            `gorm:"not null;default:false" json:"is_tax"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(10,8);not null;default:0" json:"tax_rate"`
	IsDeductible bool            `gorm:"not null;default:false" json:"is_deductible"`
	IsDefault    bool            `gorm:"not null;default:false" json:"is_default"`
	IsActive     bool            `gorm:"not null" json:"is_active"`
}

// TableName sets the database table name.
func (FinancialAccount) TableName() string { return "financial_accounts" }

// FinancialType categorises income, e.g. "Donation" or "Member Dues".
type FinancialType struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	IsDeductible bool         `gorm:"not null;default:false" json:"is_deductible"`
	IsActive     bool         `gorm:"not null" json:"is_active"`
}

// TableName sets the database table name.
func (FinancialType) TableName() string { return "financial_types" }

// EntityFinancialAccount maps an entity to an account through a relationship.
type EntityFinancialAccount struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	EntityTable        string       `gorm:"type:text;not null;uniqueIndex:ux_entity_financial_accounts,priority:1" json:"entity_table"`
	EntityID           snowflake.ID `gorm:"not null;uniqueIndex:ux_entity_financial_accounts,priority:2" json:"entity_id"`
	Relationship       Relationship `gorm:"type:text;not null;uniqueIndex:ux_entity_financial_accounts,priority:3" json:"account_relationship"`
	FinancialAccountID snowflake.ID `gorm:"not null;index" json:"financial_account_id"`
}

// TableName sets the database table name.
func (EntityFinancialAccount) TableName() string { return "entity_financial_accounts" }

// Payment instrument names with special handling.
const (
	InstrumentCheck      = "Check"
	InstrumentCreditCard = "Credit Card"
	InstrumentCash       = "Cash"
	InstrumentEFT        = "EFT"
)

// PaymentInstrument is a payment method such as "Check" or "Credit Card".
type PaymentInstrument struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	IsDefault bool         `gorm:"not null;default:false" json:"is_default"`
}

// TableName sets the database table name.
func (PaymentInstrument) TableName() string { return "payment_instruments" }

// PaymentProcessor is a configured payment gateway.
type PaymentProcessor struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	Name                string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	PaymentInstrumentID snowflake.ID `json:"payment_instrument_id,omitempty"`
	IsTest              bool         `gorm:"not null;default:false" json:"is_test"`
}

// TableName sets the database table name.
func (PaymentProcessor) TableName() string { return "payment_processors" }

// FinancialTrxn moves money between two accounts. Rows are append-only.
type FinancialTrxn struct {
	ID                     snowflake.ID       `gorm:"primaryKey" json:"id"`
	FromFinancialAccountID snowflake.ID       `gorm:"index" json:"from_financial_account_id,omitempty"`
	ToFinancialAccountID   snowflake.ID       `gorm:"not null;index" json:"to_financial_account_id"`
	TrxnDate               time.Time          `gorm:"not null" json:"trxn_date"`
	TotalAmount            decimal.Decimal    `gorm:"type:decimal(20,2);not null" json:"total_amount"`
	FeeAmount              decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"fee_amount"`
	NetAmount              decimal.Decimal    `gorm:"type:decimal(20,2);not null;default:0" json:"net_amount"`
	Currency               string             `gorm:"type:text;not null" json:"currency"`
	IsFee                  bool               `gorm:"not null;default:false" json:"is_fee"`
	IsPayment              bool               `gorm:"not null;default:false" json:"is_payment"`
	TrxnID                 string             `gorm:"type:text" json:"trxn_id,omitempty"`
	TrxnResultCode         string             `gorm:"type:text" json:"trxn_result_code,omitempty"`
	Status                 ContributionStatus `gorm:"not null" json:"status_id"`
	PaymentProcessorID     snowflake.ID       `json:"payment_processor_id,omitempty"`
	PaymentInstrumentID    snowflake.ID       `json:"payment_instrument_id,omitempty"`
	CheckNumber            string             `gorm:"type:text" json:"check_number,omitempty"`
	CardTypeID             int                `json:"card_type_id,omitempty"`
	PanTruncation          string             `gorm:"type:text" json:"pan_truncation,omitempty"`
	CreatedAt              time.Time          `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (FinancialTrxn) TableName() string { return "financial_trxns" }

// FinancialItem mirrors a line item (or a fee) at the ledger level.
type FinancialItem struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	TransactionDate    time.Time       `gorm:"not null" json:"transaction_date"`
	ContactID          snowflake.ID    `gorm:"not null" json:"contact_id"`
	Description        string          `gorm:"type:text" json:"description"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency           string          `gorm:"type:text;not null" json:"currency"`
	FinancialAccountID snowflake.ID    `gorm:"not null;index" json:"financial_account_id"`
	Status             ItemStatus      `gorm:"not null" json:"status_id"`
	EntityTable        string          `gorm:"type:text;not null;index:ix_financial_items_entity,priority:1" json:"entity_table"`
	EntityID           snowflake.ID    `gorm:"not null;index:ix_financial_items_entity,priority:2" json:"entity_id"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (FinancialItem) TableName() string { return "financial_items" }

// EntityFinancialTrxn links a transaction to a contribution or a financial
// item with the share of the transaction allocated to it.
type EntityFinancialTrxn struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	EntityTable     string          `gorm:"type:text;not null;index:ix_entity_financial_trxns_entity,priority:1" json:"entity_table"`
	EntityID        snowflake.ID    `gorm:"not null;index:ix_entity_financial_trxns_entity,priority:2" json:"entity_id"`
	FinancialTrxnID snowflake.ID    `gorm:"not null;index" json:"financial_trxn_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
}

// TableName sets the database table name.
func (EntityFinancialTrxn) TableName() string { return "entity_financial_trxns" }
