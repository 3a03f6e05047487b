package web

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/contribution"
	"github.com/robinvdvleuten/contribute/errors"
	"github.com/robinvdvleuten/contribute/order"
	"github.com/robinvdvleuten/contribute/params"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Response is the envelope of a successful API action.
type Response struct {
	IsError int          `json:"is_error"`
	ID      snowflake.ID `json:"id,omitempty"`
	Values  any          `json:"values"`
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter.
// If encoding fails, it writes an error response.
func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes err as an {error_message, error_code} object with the
// HTTP status matching its code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	errJSON := errors.NewJSONFormatter().ToJSON(err)

	status := http.StatusInternalServerError
	switch errJSON.ErrorCode {
	case errors.CodeValidation, errors.CodeDuplicate:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("api action failed", zap.Error(err))
	}
	writeJSONResponse(w, status, errJSON)
}

// readParams collects the parameters of a request: the query string, then
// a JSON object or form encoded body.
func readParams(r *http.Request) (params.Bag, error) {
	bag := params.Bag{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			bag[key] = values[0]
		}
	}
	if r.Body == nil || r.ContentLength == 0 {
		return bag, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodySize)
		if err := r.ParseForm(); err != nil {
			return nil, &params.InvalidError{Key: "body", Reason: err.Error()}
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				bag[key] = values[0]
			}
		}
		return bag, nil
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, &params.InvalidError{Key: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	for key, value := range body {
		bag[key] = value
	}
	return bag, nil
}

// requireID reads the id of the contribution an action works on.
func requireID(bag params.Bag) (snowflake.ID, error) {
	for _, key := range []string{"id", "contribution_id"} {
		if bag.Has(key) {
			return bag.ID(key)
		}
	}
	return 0, &contribution.MissingFieldError{Field: "id"}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	bag, err := readParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, err := contribution.RequestFromParams(bag, config.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.engine.Save(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, Response{ID: res.Contribution.ID, Values: res})
}

func (s *Server) handleCompleteTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := s.orderInput(w, r)
	if !ok {
		return
	}
	res, err := s.orders.CompleteOrder(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, Response{ID: res.Contribution.ID, Values: res})
}

func (s *Server) handleRepeatTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := s.orderInput(w, r)
	if !ok {
		return
	}
	res, err := s.orders.RepeatTransaction(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, Response{ID: res.Contribution.ID, Values: res})
}

func (s *Server) orderInput(w http.ResponseWriter, r *http.Request) (order.Input, bool) {
	bag, err := readParams(r)
	if err != nil {
		s.writeError(w, err)
		return order.Input{}, false
	}
	in, err := order.InputFromParams(bag, config.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return order.Input{}, false
	}
	return in, true
}

func (s *Server) handleSendConfirmation(w http.ResponseWriter, r *http.Request) {
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
	rcpt, err := s.orders.SendConfirmation(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, Response{ID: id, Values: rcpt})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
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
	if err := s.engine.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, Response{ID: id, Values: map[string]bool{"deleted": true}})
}

// ContributionResponse is the value returned by Contribution.get.
type ContributionResponse struct {
	Contribution any `json:"contribution"`
	PaymentInfo  any `json:"payment_info"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
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
	c, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	info, err := s.engine.PaymentInfo(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, Response{ID: id, Values: ContributionResponse{Contribution: c, PaymentInfo: info}})
}

func (s *Server) handlePaymentCreate(w http.ResponseWriter, r *http.Request) {
	bag, err := readParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := contribution.PaymentRequestFromParams(bag, config.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.engine.RecordPayment(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, Response{ID: res.Trxn.ID, Values: res})
}
