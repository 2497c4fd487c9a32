package model

import (
	"errors"
	"fmt"
)

// ErrValidationFailed matches every *ErrValidation via errors.Is.
var ErrValidationFailed = errors.New("validation failed")

// ErrAgentNotFound is returned when an agent has never had a declaration.
var ErrAgentNotFound = errors.New("agent not found")

// ErrValidation is returned by service methods when the caller supplies invalid
// input. Field names the offending input using its JSON name.
type ErrValidation struct {
	Field    string `json:"field"`
	Msg      string `json:"message"`
	Expected string `json:"expected,omitempty"`
}

func (e *ErrValidation) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("%s: %s (expected %s)", e.Field, e.Msg, e.Expected)
	}
	return e.Field + ": " + e.Msg
}

// Is lets callers match any validation error with errors.Is(err, ErrValidationFailed).
func (e *ErrValidation) Is(target error) bool { return target == ErrValidationFailed }

func invalid(field, msg, expected string) *ErrValidation {
	return &ErrValidation{Field: field, Msg: msg, Expected: expected}
}
