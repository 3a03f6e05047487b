package errors

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/bwmarrin/snowflake"
)

type codedError struct {
	code string
	msg  string
	id   snowflake.ID
}

func (e *codedError) Error() string                   { return e.msg }
func (e *codedError) Code() string                    { return e.code }
func (e *codedError) GetContributionID() snowflake.ID { return e.id }

type fieldError struct{ field string }

func (e *fieldError) Error() string    { return e.field + " is required" }
func (e *fieldError) Code() string     { return CodeValidation }
func (e *fieldError) GetField() string { return e.field }

type transitionError struct{ allowed []string }

func (e *transitionError) Error() string        { return "Cannot change contribution status" }
func (e *transitionError) Code() string         { return CodeValidation }
func (e *transitionError) GetAllowed() []string { return e.allowed }

type multiError []error

func (m multiError) Error() string   { return fmt.Sprintf("%d errors", len(m)) }
func (m multiError) Unwrap() []error { return m }

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "Direct", err: &codedError{code: CodeDuplicate}, want: CodeDuplicate},
		{name: "Wrapped", err: fmt.Errorf("saving: %w", &codedError{code: CodeNotFound}), want: CodeNotFound},
		{name: "Plain", err: fmt.Errorf("disk full"), want: CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestFlatten(t *testing.T) {
	a := &fieldError{field: "contact_id"}
	b := &fieldError{field: "total_amount"}
	c := &codedError{code: CodeValidation, msg: "bad status"}

	assert.Equal(t, []error{a, b, c}, Flatten(multiError{a, multiError{b, c}}))
	assert.Equal(t, []error{a}, Flatten(a))
	assert.Zero(t, Flatten(nil))
}

func TestTextFormatter_Format(t *testing.T) {
	err := &codedError{code: CodeValidation, msg: "cannot change financial type", id: 12}

	assert.Equal(t, "cannot change financial type\n\n   contribution_id: 12\n", NewTextFormatter().Format(err))
	assert.Equal(t, "[validation_error] disk full", NewTextFormatter(WithCodes()).Format(fmt.Errorf("disk full")))
}

func TestTextFormatter_FormatAll(t *testing.T) {
	out := NewTextFormatter().FormatAll([]error{
		&fieldError{field: "contact_id"},
		fmt.Errorf("disk full"),
	})
	assert.Equal(t, "contact_id is required\n\n   field: contact_id\n\ndisk full", out)
	assert.Equal(t, "", NewTextFormatter().FormatAll(nil))
}

func TestJSONFormatter(t *testing.T) {
	jf := NewJSONFormatter()

	var got map[string]any
	assert.NoError(t, json.Unmarshal([]byte(jf.Format(&fieldError{field: "contact_id"})), &got))
	assert.Equal(t, map[string]any{
		"is_error":      float64(1),
		"error_message": "contact_id is required",
		"error_code":    "validation_error",
		"details":       map[string]any{"field": "contact_id"},
	}, got)

	all := jf.FormatAllToSlice([]error{fmt.Errorf("disk full")})
	assert.Equal(t, []ErrorJSON{{IsError: 1, ErrorMessage: "disk full", ErrorCode: CodeInternal}}, all)
}

func TestAllowedDetail(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		want    string
	}{
		{name: "Listed", allowed: []string{"Cancelled", "Refunded"}, want: "Cannot change contribution status\n\n   allowed: Cancelled, Refunded\n"},
		{name: "Final", want: "Cannot change contribution status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTextFormatter().Format(&transitionError{allowed: tt.allowed}))
		})
	}
}
