// Package errors provides error formatting infrastructure for contribution
// errors. It separates error formatting from domain logic, allowing errors to
// be rendered in multiple formats (text, JSON) for different consumers (CLI,
// API).
//
// The package defines a Formatter interface and provides two implementations:
//   - TextFormatter: Formats errors for command-line output
//   - JSONFormatter: Formats errors as {error_message, error_code} objects for the API
//
// Domain-specific error types remain in their respective packages (e.g.,
// contribution, store), while this package handles the presentation layer.
// Errors expose their API code with a Code() method and their context with
// Get* accessors.
package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Error codes returned by the API.
const (
	CodeValidation    = "validation_error"
	CodeDuplicate     = "duplicate_error"
	CodeNotFound      = "not_found"
	CodeConfiguration = "configuration_error"
	CodeInternal      = "internal_error"
)

// Formatter formats errors for output in different formats.
type Formatter interface {
	// Format formats a single error.
	Format(err error) string

	// FormatAll formats multiple errors.
	FormatAll(errs []error) string
}

// Code returns the API code of err, or CodeInternal when no error in its
// chain carries one.
func Code(err error) string {
	var coded interface{ Code() string }
	if stderrors.As(err, &coded) {
		return coded.Code()
	}
	return CodeInternal
}

// Flatten expands errors wrapping several errors, such as
// ledger.ValidationErrors, into their leaves.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range multi.Unwrap() {
			out = append(out, Flatten(e)...)
		}
		return out
	}
	return []error{err}
}

// TextFormatter formats errors for command-line output.
type TextFormatter struct {
	showCodes bool
}

// TextFormatterOption is an option for configuring TextFormatter.
type TextFormatterOption func(*TextFormatter)

// WithCodes prefixes every message with its error code.
func WithCodes() TextFormatterOption {
	return func(tf *TextFormatter) {
		tf.showCodes = true
	}
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(opts ...TextFormatterOption) *TextFormatter {
	tf := &TextFormatter{}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// Format formats a single error followed by its context, one indented line
// per detail.
func (tf *TextFormatter) Format(err error) string {
	var buf bytes.Buffer

	if tf.showCodes {
		fmt.Fprintf(&buf, "[%s] ", Code(err))
	}
	buf.WriteString(err.Error())

	details := detailsOf(err)
	if len(details) == 0 {
		return buf.String()
	}
	buf.WriteString("\n\n")
	for _, key := range detailKeys {
		if v, ok := details[key]; ok {
			fmt.Fprintf(&buf, "   %s: %v\n", key, v)
		}
	}
	return buf.String()
}

// FormatAll formats multiple errors, separating them with blank lines.
func (tf *TextFormatter) FormatAll(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var buf bytes.Buffer
	for i, err := range errs {
		buf.WriteString(strings.TrimRight(tf.Format(err), "\n"))

		// Add blank line between errors (but not after the last one)
		if i < len(errs)-1 {
			buf.WriteString("\n\n")
		}
	}

	return buf.String()
}

// JSONFormatter formats errors as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// ErrorJSON represents an error in JSON format.
type ErrorJSON struct {
	IsError      int            `json:"is_error"`
	ErrorMessage string         `json:"error_message"`
	ErrorCode    string         `json:"error_code"`
	Details      map[string]any `json:"details,omitempty"`
}

// Format formats a single error as JSON.
func (jf *JSONFormatter) Format(err error) string {
	data, _ := json.Marshal(jf.ToJSON(err))
	return string(data)
}

// FormatAll formats multiple errors as a JSON array.
func (jf *JSONFormatter) FormatAll(errs []error) string {
	data, _ := json.MarshalIndent(jf.FormatAllToSlice(errs), "", "  ")
	return string(data)
}

// FormatAllToSlice returns errors as a slice of ErrorJSON structs.
func (jf *JSONFormatter) FormatAllToSlice(errs []error) []ErrorJSON {
	result := make([]ErrorJSON, 0, len(errs))
	for _, err := range errs {
		result = append(result, jf.ToJSON(err))
	}
	return result
}

// ToJSON converts an error to ErrorJSON.
func (jf *JSONFormatter) ToJSON(err error) ErrorJSON {
	errJSON := ErrorJSON{
		IsError:      1,
		ErrorMessage: err.Error(),
		ErrorCode:    Code(err),
	}
	if details := detailsOf(err); len(details) > 0 {
		errJSON.Details = details
	}
	return errJSON
}

var detailKeys = []string{"contribution_id", "ids", "field", "entity", "allowed"}

// detailsOf extracts the context exposed by the accessors of err.
func detailsOf(err error) map[string]any {
	details := map[string]any{}

	var withContribution interface{ GetContributionID() snowflake.ID }
	if stderrors.As(err, &withContribution) {
		if id := withContribution.GetContributionID(); id != 0 {
			details["contribution_id"] = id.String()
		}
	}

	var withIDs interface{ GetIDs() []snowflake.ID }
	if stderrors.As(err, &withIDs) {
		ids := make([]string, 0, len(withIDs.GetIDs()))
		for _, id := range withIDs.GetIDs() {
			ids = append(ids, id.String())
		}
		details["ids"] = strings.Join(ids, ", ")
	}

	var withField interface{ GetField() string }
	if stderrors.As(err, &withField) {
		details["field"] = withField.GetField()
	}

	var withEntity interface{ GetEntity() string }
	if stderrors.As(err, &withEntity) {
		details["entity"] = withEntity.GetEntity()
	}

	var withAllowed interface{ GetAllowed() []string }
	if stderrors.As(err, &withAllowed) {
		if allowed := withAllowed.GetAllowed(); len(allowed) > 0 {
			details["allowed"] = strings.Join(allowed, ", ")
		}
	}

	return details
}
