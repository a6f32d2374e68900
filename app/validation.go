package app

import (
	"catalog/pkg/httperror"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var maxMoney = decimal.RequireFromString("999999.99")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return ""
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		switch d := field.Interface().(type) {
		case decimal.Decimal:
			return d.String()
		case NullableDecimal:
			if d.Value != nil {
				return d.Value.String()
			}
		}
		return nil
	}, decimal.Decimal{}, NullableDecimal{})

	// money accepts a non-negative amount up to 999999.99.
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative() && d.LessThanOrEqual(maxMoney)
	})

	return v
}

// validateRequest checks req against its struct tags and reports failures as
// a 400 under code.
func validateRequest(code string, req any) error {
	if err := validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return httperror.BadRequest(
				code,
				"Validation failed for the request",
				validationDetails(ve),
			)
		}

		return httperror.InternalServerError(
			code+"_error",
			"An unexpected validation error occurred",
			nil,
		)
	}
	return nil
}

func validationDetails(ve validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(ve))
	for _, fe := range ve {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[fe.Field()] = rule
	}
	return details
}
