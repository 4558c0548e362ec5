// Package validation turns loosely typed request bodies into fully populated
// inputs for the service layer, or an apperr validation error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxBudget is the first amount that no longer fits NUMERIC(14,2).
var MaxBudget = decimal.New(1, 12)

// maxBudgetLength bounds the literal before it reaches decimal arithmetic.
// Every amount below MaxBudget with two decimals fits.
const maxBudgetLength = 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("priority", validatePriority)

	return v
}

// ParseBudget parses a non-negative amount with at most two decimal places.
// Only plain decimal literals are accepted: exponents would let a few bytes
// of input demand arbitrarily large rescaling. Errors read as a suffix to the
// field name.
func ParseBudget(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if len(s) > maxBudgetLength {
		return decimal.Decimal{}, errors.New("is too long")
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, errors.New("must be a plain decimal number")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.New("must be a number")
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, errors.New("must not be negative")
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Decimal{}, errors.New("must have at most 2 decimal places")
	}
	if amount.GreaterThanOrEqual(MaxBudget) {
		return decimal.Decimal{}, errors.New("is too large")
	}
	return amount, nil
}

func validatePriority(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "low", "medium", "high":
		return true
	}
	return false
}

// check runs struct validation and converts failures into a field map.
func check(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return apperr.Validation(fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "uuid":
		return "must be a UUID"
	case "priority":
		return "must be one of low, medium, high"
	}
	return "is invalid"
}
