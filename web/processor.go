package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/contribution"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/order"
	"github.com/robinvdvleuten/contribute/params"
)

// ExpressionError is returned when a configured JSONPath expression cannot
// be evaluated.
type ExpressionError struct {
	Key        string
	Expression string
	Err        error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("processor mapping %s: invalid expression %q: %v", e.Key, e.Expression, e.Err)
}

// Code returns the API error code.
func (e *ExpressionError) Code() string { return "configuration_error" }

func (e *ExpressionError) Unwrap() error { return e.Err }

// MapNotification evaluates the JSONPath expressions of settings against a
// decoded notification body and returns the completetransaction parameters
// they select. An expression that does not parse is an *ExpressionError; one
// that selects nothing in doc leaves its key unset.
func MapNotification(ctx context.Context, doc any, settings config.ProcessorSettings) (params.Bag, error) {
	mapping := []struct {
		key  string
		expr string
	}{
		{"contribution_id", settings.ContributionID},
		{"contribution_recur_id", settings.RecurID},
		{"trxn_id", settings.TrxnID},
		{"total_amount", settings.Amount},
		{"fee_amount", settings.FeeAmount},
		{"trxn_date", settings.TrxnDate},
		{"status", settings.Status},
	}

	bag := params.Bag{"skipCleanMoney": true}
	for _, m := range mapping {
		if m.expr == "" {
			continue
		}
		eval, err := jsonpath.New(m.expr)
		if err != nil {
			return nil, &ExpressionError{Key: m.key, Expression: m.expr, Err: err}
		}
		v, err := eval(ctx, doc)
		if err != nil {
			// Missing keys and out of range indexes fail evaluation.
			continue
		}
		// jsonpath returns a list for wildcard and slice expressions; the
		// first match is used.
		if list, ok := v.([]any); ok {
			if len(list) == 0 {
				continue
			}
			v = list[0]
		}
		if v != nil {
			bag[m.key] = v
		}
	}
	return bag, nil
}

// NotifyResponse is the value returned by the notification endpoint.
type NotifyResponse struct {
	Action string `json:"action"`
	Values any    `json:"result"`
}

// handleNotify handles POST requests to /api/processor/notify. A notification
// with a failed status fails the contribution; any other completes it.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings := config.FromContext(ctx)

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		s.writeError(w, &params.InvalidError{Key: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	bag, err := MapNotification(ctx, doc, settings.Processor)
	if err != nil {
		s.writeError(w, err)
		return
	}

	in, err := order.InputFromParams(bag, settings)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if isFailure(bag.String("status")) {
		id, err := requireID(bag)
		if err != nil {
			s.writeError(w, err)
			return
		}
		message := contribution.FailedPaymentSubject
		if in.TrxnID != "" {
			message += ": " + in.TrxnID
		}
		res, err := s.engine.FailPayment(ctx, id, message)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.logger.Info("processor notification", zap.String("action", "fail"), zap.Stringer("contribution_id", id))
		writeJSONResponse(w, http.StatusOK, Response{ID: id, Values: NotifyResponse{Action: "fail", Values: res}})
		return
	}

	res, err := s.orders.CompleteOrder(ctx, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("processor notification", zap.String("action", "complete"), zap.Stringer("contribution_id", res.Contribution.ID))
	writeJSONResponse(w, http.StatusOK, Response{ID: res.Contribution.ID, Values: NotifyResponse{Action: "complete", Values: res}})
}

// isFailure reports whether a processor status reports a failed payment.
func isFailure(status string) bool {
	if parsed, err := model.ParseContributionStatus(status); err == nil {
		return parsed == model.StatusFailed
	}
	switch strings.ToLower(status) {
	case "failure", "declined", "payment_failed":
		return true
	}
	return false
}
