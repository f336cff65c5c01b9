package validator

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var profileRoles = []string{"user", "admin"}

// Validator wraps the go-playground validator with custom rules
type Validator struct {
	validator *validator.Validate
}

// New creates a new validator instance with custom rules
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	registerCustomValidators(validate)

	// Use JSON field names for validation error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: validate}
}

// Validate validates a struct and returns a *ValidationError on failure
func (v *Validator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationError(verrs)
	}
	return err
}

// ValidateVar validates a single variable
func (v *Validator) ValidateVar(field any, tag string) error {
	return v.validator.Var(field, tag)
}

// ValidationError represents a validation error with user-friendly messages
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, ", "))
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	messages := make(map[string]string, len(errs))

	for _, err := range errs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			messages[field] = fmt.Sprintf("%s is required", field)
		case "email":
			messages[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "max":
			messages[field] = fmt.Sprintf("%s must be at most %s characters long", field, err.Param())
		case "url":
			messages[field] = fmt.Sprintf("%s must be a valid URL", field)
		case "uuid":
			messages[field] = fmt.Sprintf("%s must be a valid UUID", field)
		case "profile_role":
			messages[field] = fmt.Sprintf("%s must be one of %s", field, strings.Join(profileRoles, ", "))
		case "oneof":
			messages[field] = fmt.Sprintf("%s must be one of %s", field, err.Param())
		default:
			messages[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return &ValidationError{Errors: messages}
}

// registerCustomValidators registers custom validation rules
func registerCustomValidators(validate *validator.Validate) {
	_ = validate.RegisterValidation("profile_role", func(fl validator.FieldLevel) bool {
		return slices.Contains(profileRoles, fl.Field().String())
	})
}

// IsValidUUID checks if a string is a valid UUID
func IsValidUUID(id string) bool {
	return New().ValidateVar(id, "required,uuid") == nil
}
