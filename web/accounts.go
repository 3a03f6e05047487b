package web

import (
	"net/http"
	"sort"

	"github.com/bwmarrin/snowflake"
)

// AccountInfo represents basic information about a financial account.
type AccountInfo struct {
	ID        snowflake.ID `json:"id"`
	Name      string       `json:"name"`
	Type      string       `json:"financial_account_type"`
	IsTax     bool         `json:"is_tax,omitempty"`
	TaxRate   string       `json:"tax_rate,omitempty"`
	IsDefault bool         `json:"is_default,omitempty"`
}

// AccountsResponse is the JSON response structure for the accounts endpoint.
type AccountsResponse struct {
	Accounts []AccountInfo `json:"accounts"`
}

// handleGetAccounts handles GET requests to /api/FinancialAccount/get.
// Returns the chart of accounts, sorted alphabetically by name.
func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.Store().FinancialAccounts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Pre-allocate slice with capacity hint
	accounts := make([]AccountInfo, 0, len(rows))

	for _, account := range rows {
		info := AccountInfo{
			ID:        account.ID,
			Name:      account.Name,
			Type:      string(account.AccountType),
			IsTax:     account.IsTax,
			IsDefault: account.IsDefault,
		}
		if account.IsTax {
			info.TaxRate = account.TaxRate.String()
		}
		accounts = append(accounts, info)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Name < accounts[j].Name
	})

	writeJSONResponse(w, http.StatusOK, Response{Values: &AccountsResponse{Accounts: accounts}})
}
