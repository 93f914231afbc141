package controller

import "strings"

const CodeValidation = "VALIDATION"

// ValidationError reports a bad caller-supplied value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func requireNonEmpty(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}

func requireBoard(n int) error {
	if n < 1 {
		return &ValidationError{Field: "board", Message: "board must be >= 1"}
	}
	return nil
}
