// Package params reads the flat key/value bags submitted by forms, API
// callers and payment processors. Values arrive as strings, JSON numbers or
// booleans; the getters convert them into typed values and report malformed
// input as *InvalidError.
package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"

	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/money"
)

// InvalidError reports a parameter that could not be converted.
type InvalidError struct {
	Key    string
	Value  any
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid value %v for %s: %s", e.Value, e.Key, e.Reason)
}

// Code returns the API error code.
func (e *InvalidError) Code() string { return "validation_error" }

// Bag is a parameter bag.
type Bag map[string]any

// Formats accepted by Time, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"20060102150405",
	"2006-01-02",
	"20060102",
}

// Has reports whether key is set to a non-empty value.
func (b Bag) Has(key string) bool {
	v, ok := b[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// String returns the value of key as a string.
func (b Bag) String(key string) string {
	if !b.Has(key) {
		return ""
	}
	switch v := b[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Bool reports whether key holds a truthy value ("1", "true", true, 1).
func (b Bag) Bool(key string) bool {
	if !b.Has(key) {
		return false
	}
	switch v := b[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	parsed, err := strconv.ParseBool(b.String(key))
	return err == nil && parsed
}

// Int returns the value of key as an int, 0 when unset.
func (b Bag) Int(key string) (int, error) {
	if !b.Has(key) {
		return 0, nil
	}
	switch v := b[key].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	}
	n, err := strconv.Atoi(b.String(key))
	if err != nil {
		return 0, &InvalidError{Key: key, Value: b[key], Reason: "not an integer"}
	}
	return n, nil
}

// ID returns the value of key as a row id, 0 when unset.
func (b Bag) ID(key string) (snowflake.ID, error) {
	if !b.Has(key) {
		return 0, nil
	}
	switch v := b[key].(type) {
	case snowflake.ID:
		return v, nil
	case int64:
		return snowflake.ID(v), nil
	case int:
		return snowflake.ID(v), nil
	}
	id, err := snowflake.ParseString(b.String(key))
	if err != nil || id < 0 {
		return 0, &InvalidError{Key: key, Value: b[key], Reason: "not an id"}
	}
	return id, nil
}

// Decimal returns the value of key as a money amount. Strings are cleaned of
// currency symbols and the given thousands separator. The result is null
// when key is unset.
func (b Bag) Decimal(key, thousands, decimalPoint string) (decimal.NullDecimal, error) {
	if !b.Has(key) {
		return decimal.NullDecimal{}, nil
	}
	switch v := b[key].(type) {
	case decimal.Decimal:
		return decimal.NewNullDecimal(v), nil
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(v)), nil
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(v))), nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.NullDecimal{}, &InvalidError{Key: key, Value: v, Reason: "not a number"}
		}
		return decimal.NewNullDecimal(d), nil
	}
	d, err := money.CleanWith(b.String(key), thousands, decimalPoint)
	if err != nil {
		return decimal.NullDecimal{}, &InvalidError{Key: key, Value: b[key], Reason: err.Error()}
	}
	return decimal.NewNullDecimal(d), nil
}

// Time returns the value of key as a time, nil when unset.
func (b Bag) Time(key string) (*time.Time, error) {
	if !b.Has(key) {
		return nil, nil
	}
	if t, ok := b[key].(time.Time); ok {
		return &t, nil
	}
	s := b.String(key)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, &InvalidError{Key: key, Value: b[key], Reason: "not a date"}
}

// Status returns the contribution status held by key, accepting labels and
// numeric ids. The zero status is returned when key is unset.
func (b Bag) Status(key string) (model.ContributionStatus, error) {
	if !b.Has(key) {
		return model.StatusUnknown, nil
	}
	if s, ok := b[key].(model.ContributionStatus); ok {
		return s, nil
	}
	status, err := model.ParseContributionStatus(b.String(key))
	if err != nil {
		return model.StatusUnknown, &InvalidError{Key: key, Value: b[key], Reason: err.Error()}
	}
	return status, nil
}

// Bag returns the nested bag held by key.
func (b Bag) Bag(key string) (Bag, bool) {
	switch v := b[key].(type) {
	case Bag:
		return v, true
	case map[string]any:
		return Bag(v), true
	}
	return nil, false
}

// Clone returns a shallow copy of b.
func (b Bag) Clone() Bag {
	return maps.Clone(b)
}
