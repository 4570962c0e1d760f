package chiefpay

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ChiefPay/chiefpay-go/providers"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// Decimals are compared as floats so required and gt work on them.
		validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
			if d, ok := v.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
	})
	return validate
}

// validateRequest runs the struct tags of req and converts the first
// failures into a *providers.ValidationError.
func validateRequest(req any) error {
	err := requestValidator().Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !asValidationErrors(err, &fieldErrs) {
		return providers.NewValidationError(err.Error())
	}

	fields := make([]string, 0, len(fieldErrs))
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
		msgs = append(msgs, describe(fe))
	}
	return providers.NewValidationError(strings.Join(msgs, "; "), fields...)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}
	return ok
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

type identifier struct {
	name  string
	value string
}

// requireAtLeast fails unless n of the identifiers are non-empty. The
// error names every identifier in the order given.
func requireAtLeast(n int, ids ...identifier) error {
	set := 0
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, id.name)
		if id.value != "" {
			set++
		}
	}
	if set >= n {
		return nil
	}
	if n == 1 {
		return providers.NewValidationError("at least one must be provided", names...)
	}
	return providers.NewValidationError(fmt.Sprintf("at least %d must be provided", n), names...)
}
