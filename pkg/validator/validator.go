package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is returned by Check when a struct fails validation.
type Errors []ValidationError

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Message)
	}

	return strings.Join(msgs, "; ")
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]

		if name == "-" {
			return ""
		}

		return name
	})

	return &Validator{validate: v}
}

func (v *Validator) Validate(i any) ([]ValidationError, bool) {
	err := v.validate.Struct(i)
	if err == nil {
		return nil, true
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []ValidationError{{Code: "INVALID", Message: err.Error()}}, false
	}

	errs := make([]ValidationError, 0, len(validationErrors))
	for _, err := range validationErrors {
		errs = append(errs, ValidationError{
			Field:   err.Field(),
			Code:    strings.ToUpper(err.Tag()),
			Message: message(err),
		})
	}

	return errs, false
}

// Check is Validate for callers that want an error.
func (v *Validator) Check(i any) error {
	if errs, ok := v.Validate(i); !ok {
		return Errors(errs)
	}

	return nil
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", err.Field(), err.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "hexcolor":
		return fmt.Sprintf("%s must be a hex color", err.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a uuid", err.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", err.Field(), err.Param())
	default:
		return fmt.Sprintf("%s is invalid", err.Field())
	}
}
