// Package validation holds the field-scoped error type and the ordered rule
// set the ledger applies before an expense is written.
package validation

import (
	"errors"
	"fmt"
)

// Kind distinguishes input problems from credential problems.
type Kind int

const (
	// Invalid marks malformed or rule-breaking input.
	Invalid Kind = iota
	// Authentication marks an unknown email or a wrong password.
	Authentication
)

func (k Kind) String() string {
	switch k {
	case Authentication:
		return "authentication"
	default:
		return "invalid"
	}
}

// Error reports the first failing rule for one request: which field failed and
// a message fit to show the user.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Fields returns the error as a field to message mapping.
func (e *Error) Fields() map[string]string {
	return map[string]string{e.Field: e.Message}
}

// New returns an Invalid error for field.
func New(field, message string) *Error {
	return &Error{Kind: Invalid, Field: field, Message: message}
}

// Newf is New with a formatted message.
func Newf(field, format string, args ...any) *Error {
	return New(field, fmt.Sprintf(format, args...))
}

// Unauthenticated returns an Authentication error for field.
func Unauthenticated(field, message string) *Error {
	return &Error{Kind: Authentication, Field: field, Message: message}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
