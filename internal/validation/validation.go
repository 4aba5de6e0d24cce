// Package validation checks request payloads with go-playground/validator
// and turns failures into the human-readable message lists the API returns.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"kiramate-backend/internal/period"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Errors is a list of messages reported together. Status is 422 for bad
// input and 409 for uniqueness conflicts.
type Errors struct {
	Status   int
	Messages []string
}

func (e *Errors) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *Errors) Add(format string, args ...any) {
	e.Messages = append(e.Messages, fmt.Sprintf(format, args...))
}

// Err returns e, or nil when no message was added.
func (e *Errors) Err() error {
	if e == nil || len(e.Messages) == 0 {
		return nil
	}
	return e
}

func New(messages ...string) *Errors {
	return &Errors{Status: fiber.StatusUnprocessableEntity, Messages: messages}
}

func Conflict(messages ...string) *Errors {
	return &Errors{Status: fiber.StatusConflict, Messages: messages}
}

// Merge appends the messages of err when it is an *Errors, and returns any
// other error unchanged.
func (e *Errors) Merge(err error) error {
	if err == nil {
		return nil
	}
	var other *Errors
	if errors.As(err, &other) {
		e.Messages = append(e.Messages, other.Messages...)
		return nil
	}
	return err
}

var (
	panRe        = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	shopNoRe     = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	personNameRe = regexp.MustCompile(`^[A-Za-z\s]+$`)
	digitsRe     = regexp.MustCompile(`^[0-9]+$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})

	// Money is carried as decimal.Decimal; compare it as a float.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	mustRegister(v, "pan", regexRule(panRe))
	mustRegister(v, "shop_no", regexRule(shopNoRe))
	mustRegister(v, "person_name", regexRule(personNameRe))
	mustRegister(v, "digits", regexRule(digitsRe))
	mustRegister(v, "financial_year", func(fl validator.FieldLevel) bool {
		_, err := period.ParseFinancialYear(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "rent_month", func(fl validator.FieldLevel) bool {
		_, err := period.ParseMonth(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func regexRule(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Struct validates s and returns *Errors listing every failed field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := New()
	for _, fe := range fieldErrs {
		out.Messages = append(out.Messages, message(fe))
	}
	return out
}

// Var validates a single value against tag, labelled as label.
func Var(label string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := New()
	for _, fe := range fieldErrs {
		out.Messages = append(out.Messages, messageFor(label, fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	return messageFor(fe.Field(), fe)
}

func messageFor(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return label + " is required"
	case "email":
		return "Invalid email format"
	case "len":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be exactly %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must have exactly %s items", label, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", label, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", label, fe.Param())
	case "numeric":
		return label + " must be a number"
	case "digits":
		return label + " must contain only digits"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eqfield":
		return fmt.Sprintf("%s does not match", label)
	case "datetime":
		return label + " must be a date in YYYY-MM-DD format"
	case "pan":
		return "Invalid PAN card number format"
	case "shop_no":
		return label + " may only contain letters, digits and hyphens"
	case "person_name":
		return label + " may only contain letters and spaces"
	case "financial_year":
		if _, err := period.ParseFinancialYear(fmt.Sprint(fe.Value())); err != nil {
			return capitalize(err.Error())
		}
		return label + " is invalid"
	case "rent_month":
		return label + " must be in format YYYY-MM"
	}
	return label + " is invalid"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
