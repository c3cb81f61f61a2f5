package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidationError represents an input validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// ValidationRule checks one value and returns nil when it passes
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Validator collects validation errors across fields
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns the collected failures as one VALIDATION_ERROR, or nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return NewAppError(CodeValidation, strings.Join(messages, "; "), ErrInvalidInput)
}

// Required fails on empty strings and nil values
func Required() ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		switch v := value.(type) {
		case nil:
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		case string:
			if strings.TrimSpace(v) == "" {
				return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
			}
		}
		return nil
	}
}

// ValidUUID fails when a string value does not parse as a UUID
func ValidUUID() ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		s, ok := value.(string)
		if !ok {
			return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
		}
		if _, err := uuid.Parse(s); err != nil {
			return &ValidationError{Field: fieldName, Value: value, Message: "must be a valid UUID"}
		}
		return nil
	}
}
