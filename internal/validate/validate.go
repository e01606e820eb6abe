// Package validate runs struct-tag validation and reports the first failing field as an
// *apperr.ValidationError named after its JSON key.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	// notblank: like required, but whitespace-only strings fail too
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Struct validates s and returns the first failure in field order.
func Struct(s any) error {
	return StructAt("", s)
}

// StructAt is Struct with every reported field prefixed, e.g. "items[2]".
func StructAt(prefix string, s any) error {
	return firstError(prefix, v.Struct(s))
}

// Var validates a single value against tag, reporting it as field.
func Var(field string, value any, tag string) error {
	err := v.Var(value, tag)
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		return &apperr.ValidationError{Field: field, Message: message(ves[0], field)}
	}
	return err
}

func firstError(prefix string, err error) error {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	fe := ves[0]
	field := fieldName(fe.Namespace())
	if prefix != "" {
		field = prefix + "." + field
	}
	return &apperr.ValidationError{Field: field, Message: message(fe, field)}
}

// fieldName drops the root type from a namespace like "Cart.customer_email".
func fieldName(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func isCollection(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array || k == reflect.Map
}

func message(fe validator.FieldError, field string) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "missing field: " + field
	case "email":
		return "invalid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte", "max":
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("must have at most %s entries", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "min":
		if isCollection(fe.Kind()) {
			if fe.Param() == "1" {
				return "missing field: " + field
			}
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "gtfield":
		return "must be after " + snake(fe.Param())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
