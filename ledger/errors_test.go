package ledger

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestValidationErrors(t *testing.T) {
	missing := &MissingFieldError{Entity: "financial trxn", Field: "total_amount"}
	status := &InvalidStatusError{Status: 42}

	t.Run("Single", func(t *testing.T) {
		err := &ValidationErrors{Errors: []error{missing}}
		assert.Equal(t, "financial trxn: total_amount is required", err.Error())
	})

	t.Run("Multiple", func(t *testing.T) {
		err := &ValidationErrors{Errors: []error{missing, status}}
		assert.Equal(t, "2 validation errors occurred", err.Error())
		assert.Equal(t, "validation_error", err.Code())

		var target *InvalidStatusError
		assert.True(t, errors.As(err, &target))
		assert.Equal(t, 42, target.Status)
		assert.Equal(t, "total_amount", missing.GetField())
	})
}

func TestTrxnParamsValidate(t *testing.T) {
	p := TrxnParams{}
	err := p.validate()

	var verrs *ValidationErrors
	assert.True(t, errors.As(err, &verrs))
	assert.Equal(t, 3, len(verrs.Errors))
}
