// Package config holds the runtime settings of the contribution engine.
//
// Settings start from Default, are overlaid by a YAML file and CONTRIBUTE_*
// environment variables (see Load), and travel through a request in the
// context (WithContext / FromContext). A Holder keeps the current settings
// for long running processes and is refreshed by a Watcher when the file
// changes on disk.
package config

import (
	"context"
	"sync/atomic"
	"time"
)

// Settings is the complete configuration.
type Settings struct {
	Database DatabaseSettings `yaml:"database" mapstructure:"database"`
	Log      LogSettings      `yaml:"log" mapstructure:"log"`
	Server   ServerSettings   `yaml:"server" mapstructure:"server"`

	// Currency used when a contribution does not name one.
	Currency           string `yaml:"currency" mapstructure:"currency"`
	ThousandsSeparator string `yaml:"thousands_separator" mapstructure:"thousands_separator"`
	DecimalPoint       string `yaml:"decimal_point" mapstructure:"decimal_point"`

	InvoicePrefix     string `yaml:"invoice_prefix" mapstructure:"invoice_prefix"`
	CreditNotesPrefix string `yaml:"credit_notes_prefix" mapstructure:"credit_notes_prefix"`
	TaxTerm           string `yaml:"tax_term" mapstructure:"tax_term"`

	DeferredRevenueEnabled         bool `yaml:"deferred_revenue_enabled" mapstructure:"deferred_revenue_enabled"`
	AlwaysPostToAccountsReceivable bool `yaml:"always_post_to_accounts_receivable" mapstructure:"always_post_to_accounts_receivable"`

	// AccountCacheTTL bounds how long resolved account mappings are reused.
	AccountCacheTTL time.Duration `yaml:"account_cache_ttl" mapstructure:"account_cache_ttl"`

	Receipt   ReceiptSettings   `yaml:"receipt" mapstructure:"receipt"`
	Processor ProcessorSettings `yaml:"processor" mapstructure:"processor"`
	Chart     ChartSettings     `yaml:"chart" mapstructure:"chart"`
}

// DatabaseSettings locates the sqlite database.
type DatabaseSettings struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// ReceiptSettings configures confirmation receipts.
type ReceiptSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	From    string `yaml:"from" mapstructure:"from"`

	// Bucket enables archiving rendered receipts to S3 when set.
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	Region string `yaml:"region" mapstructure:"region"`
}

// ProcessorSettings maps payment processor notifications onto completion
// requests. Each field holds a JSONPath expression evaluated against the
// notification body.
type ProcessorSettings struct {
	ContributionID string `yaml:"contribution_id" mapstructure:"contribution_id"`
	RecurID        string `yaml:"contribution_recur_id" mapstructure:"contribution_recur_id"`
	TrxnID         string `yaml:"trxn_id" mapstructure:"trxn_id"`
	Amount         string `yaml:"amount" mapstructure:"amount"`
	FeeAmount      string `yaml:"fee_amount" mapstructure:"fee_amount"`
	TrxnDate       string `yaml:"trxn_date" mapstructure:"trxn_date"`
	Status         string `yaml:"status" mapstructure:"status"`
}

// ChartSettings describes the chart of accounts created by `contribute seed`.
type ChartSettings struct {
	Accounts           []AccountSpec       `yaml:"accounts" mapstructure:"accounts"`
	FinancialTypes     []FinancialTypeSpec `yaml:"financial_types" mapstructure:"financial_types"`
	PaymentInstruments []InstrumentSpec    `yaml:"payment_instruments" mapstructure:"payment_instruments"`
}

// AccountSpec declares a financial account.
type AccountSpec struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Type      string `yaml:"type" mapstructure:"type"`
	Code      string `yaml:"code,omitempty" mapstructure:"code"`
	IsTax     bool   `yaml:"is_tax,omitempty" mapstructure:"is_tax"`
	TaxRate   string `yaml:"tax_rate,omitempty" mapstructure:"tax_rate"`
	IsDefault bool   `yaml:"is_default,omitempty" mapstructure:"is_default"`
}

// FinancialTypeSpec declares a financial type and its account relationships.
type FinancialTypeSpec struct {
	Name         string             `yaml:"name" mapstructure:"name"`
	IsDeductible bool               `yaml:"is_deductible,omitempty" mapstructure:"is_deductible"`
	Accounts     []RelationshipSpec `yaml:"accounts" mapstructure:"accounts"`
}

// RelationshipSpec binds an account to a relationship name.
type RelationshipSpec struct {
	Relationship string `yaml:"relationship" mapstructure:"relationship"`
	Account      string `yaml:"account" mapstructure:"account"`
}

// InstrumentSpec declares a payment instrument and its asset account.
type InstrumentSpec struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Account   string `yaml:"account" mapstructure:"account"`
	IsDefault bool   `yaml:"is_default,omitempty" mapstructure:"is_default"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		Database: DatabaseSettings{Path: "contribute.db"},
		Log:      LogSettings{Level: "info", Format: "console"},
		Server:   ServerSettings{Host: "127.0.0.1", Port: 8080},

		Currency:           "USD",
		ThousandsSeparator: ",",
		DecimalPoint:       ".",
		InvoicePrefix:      "INV_",
		CreditNotesPrefix:  "CN_",
		TaxTerm:            "Sales Tax",

		AccountCacheTTL: 5 * time.Minute,

		Receipt: ReceiptSettings{Enabled: true, From: "donations@example.org", Prefix: "receipts/"},
		Processor: ProcessorSettings{
			ContributionID: "$.contribution_id",
			RecurID:        "$.contribution_recur_id",
			TrxnID:         "$.trxn_id",
			Amount:         "$.amount",
			FeeAmount:      "$.fee_amount",
			TrxnDate:       "$.trxn_date",
			Status:         "$.status",
		},
		Chart: DefaultChart(),
	}
}

// DefaultChart returns the chart of accounts shipped with a new install.
func DefaultChart() ChartSettings {
	typeAccounts := func(income string) []RelationshipSpec {
		return []RelationshipSpec{
			{Relationship: "Income Account is", Account: income},
			{Relationship: "Accounts Receivable Account is", Account: "Accounts Receivable"},
			{Relationship: "Expense Account is", Account: "Banking Fees"},
			{Relationship: "Cost of Sales Account is", Account: "Premiums"},
			{Relationship: "Credit/Contra Revenue Account is", Account: "Refunds"},
			{Relationship: "Chargeback Account is", Account: "Chargeback"},
			{Relationship: "Deferred Revenue Account is", Account: "Deferred Revenue"},
		}
	}

	return ChartSettings{
		Accounts: []AccountSpec{
			{Name: "Donation", Type: "Revenue", Code: "4200", IsDefault: true},
			{Name: "Member Dues", Type: "Revenue", Code: "4400"},
			{Name: "Event Fee", Type: "Revenue", Code: "4300"},
			{Name: "Refunds", Type: "Revenue", Code: "4500"},
			{Name: "Chargeback", Type: "Revenue", Code: "4510"},
			{Name: "Banking Fees", Type: "Expenses", Code: "5200", IsDefault: true},
			{Name: "Premiums", Type: "Cost of Sales", Code: "5100", IsDefault: true},
			{Name: "Deposit Bank Account", Type: "Asset", Code: "1100", IsDefault: true},
			{Name: "Accounts Receivable", Type: "Asset", Code: "1200"},
			{Name: "Payment Processor Account", Type: "Asset", Code: "1150"},
			{Name: "Deferred Revenue", Type: "Liability", Code: "2730"},
			{Name: "Sales Tax", Type: "Liability", Code: "2200", IsTax: true, TaxRate: "0"},
		},
		FinancialTypes: []FinancialTypeSpec{
			{Name: "Donation", IsDeductible: true, Accounts: typeAccounts("Donation")},
			{Name: "Member Dues", IsDeductible: true, Accounts: typeAccounts("Member Dues")},
			{Name: "Event Fee", Accounts: typeAccounts("Event Fee")},
		},
		PaymentInstruments: []InstrumentSpec{
			{Name: "Credit Card", Account: "Payment Processor Account", IsDefault: true},
			{Name: "Check", Account: "Deposit Bank Account"},
			{Name: "Cash", Account: "Deposit Bank Account"},
			{Name: "EFT", Account: "Deposit Bank Account"},
		},
	}
}

// contextKey is a private type to avoid key collisions in context.
type contextKey struct{}

// WithContext returns a new context with the Settings attached.
func (s *Settings) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext retrieves the Settings from context.
// Returns the default Settings if not found.
func FromContext(ctx context.Context) *Settings {
	if s, ok := ctx.Value(contextKey{}).(*Settings); ok {
		return s
	}
	return Default()
}

// Holder keeps the current Settings of a running process.
type Holder struct {
	current atomic.Pointer[Settings]
}

// NewHolder returns a Holder initialised with s.
func NewHolder(s *Settings) *Holder {
	h := &Holder{}
	h.current.Store(s)
	return h
}

// Load returns the current settings.
func (h *Holder) Load() *Settings {
	return h.current.Load()
}

// Store replaces the current settings.
func (h *Holder) Store(s *Settings) {
	h.current.Store(s)
}
