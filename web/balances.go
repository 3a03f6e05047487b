package web

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BalancesResponse is the JSON response structure for the balances endpoint.
type BalancesResponse struct {
	ContributionID snowflake.ID          `json:"contribution_id"`
	Currency       string                `json:"currency"`
	Accounts       []BalanceNodeResponse `json:"accounts"`
	Paid           decimal.Decimal       `json:"paid"`
	Balance        decimal.Decimal       `json:"balance"`
}

// BalanceNodeResponse is the net amount a contribution moved in or out of
// one account.
type BalanceNodeResponse struct {
	AccountID snowflake.ID    `json:"financial_account_id"`
	Name      string          `json:"name"`
	Type      string          `json:"financial_account_type"`
	Amount    decimal.Decimal `json:"amount"`
}

// handleGetBalances handles GET requests to /api/Contribution/balances.
//
// Query parameters:
//   - id: the contribution id.
//
// Every account touched by a transaction of the contribution is listed with
// the net amount credited to it.
func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	bag, err := readParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := requireID(bag)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx := r.Context()
	info, err := s.engine.PaymentInfo(ctx, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	totals, err := s.engine.Recorder().AccountTotals(ctx, id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := &BalancesResponse{
		ContributionID: id,
		Currency:       info.Currency,
		Accounts:       make([]BalanceNodeResponse, 0, len(totals)),
		Paid:           info.Paid,
		Balance:        info.Balance,
	}
	for _, total := range totals {
		account, err := s.engine.Store().GetFinancialAccount(ctx, total.AccountID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Accounts = append(resp.Accounts, BalanceNodeResponse{
			AccountID: total.AccountID,
			Name:      account.Name,
			Type:      string(account.AccountType),
			Amount:    total.Amount,
		})
	}

	writeJSONResponse(w, http.StatusOK, Response{ID: id, Values: resp})
}
