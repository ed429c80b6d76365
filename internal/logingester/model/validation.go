package model

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Problem describes why a single field of a submitted event was rejected.
type Problem struct {
	// Path to the offending field, e.g. "tenantId" or "[3].statusCode" for the fourth event of a batch
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a request body is well formed JSON but does not describe valid events.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Message
	}
	return "invalid log event: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Swagger style clients default string fields to the literal "string"
	if err := v.RegisterValidation("notplaceholder", func(fl validator.FieldLevel) bool {
		return !strings.EqualFold(strings.TrimSpace(fl.Field().String()), "string")
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate normalises e in place and checks it against the event contract.
func (e *LogEvent) Validate() error {
	e.normalise()
	err := validate.Struct(e)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	problems := make([]Problem, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		problems = append(problems, Problem{
			Field:   stripPrefix(fieldErr.Namespace()),
			Message: describe(fieldErr),
		})
	}
	return &ValidationError{Problems: problems}
}

func describe(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "field required"
	case "notplaceholder":
		return "must be a real value, not empty/'string'"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fieldErr.Param(), " ", ", "))
	case "min":
		if fieldErr.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fieldErr.Param())
		}
		return fmt.Sprintf("must be greater than or equal to %s", fieldErr.Param())
	case "max":
		if fieldErr.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
		}
		return fmt.Sprintf("must be less than or equal to %s", fieldErr.Param())
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}

// Namespaces are rooted at the struct name, e.g. LogEvent.tenantId
func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
