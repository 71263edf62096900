package account

import (
	"errors"
	"fmt"
	"strings"
)

// Form field names that errors are attributed to.
const (
	FieldUsername           = "username"
	FieldEmail              = "email"
	FieldFirstName          = "firstName"
	FieldLastName           = "lastName"
	FieldPassword           = "password"
	FieldConfirmPassword    = "confirmPassword"
	FieldOldPassword        = "oldPassword"
	FieldNewPassword        = "newPassword"
	FieldConfirmNewPassword = "confirmNewPassword"
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationErrors is an ordered list of field errors reported together.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.As reach the individual field errors.
func (e ValidationErrors) Unwrap() []error {
	out := make([]error, 0, len(e))
	for _, fe := range e {
		out = append(out, fe)
	}
	return out
}

// orNil returns nil for an empty list so callers can return it directly.
func (e ValidationErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ConflictError reports that the requested email already belongs to another
// account.
type ConflictError struct {
	Field string
	Email string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %q is already in use", e.Field, e.Email)
}

// PasswordErrorKind classifies a failed password change.
type PasswordErrorKind int

const (
	InvalidNewPassword PasswordErrorKind = iota + 1
	ConfirmationMismatch
	OldPasswordIncorrect
)

func (k PasswordErrorKind) String() string {
	switch k {
	case InvalidNewPassword:
		return "invalid new password"
	case ConfirmationMismatch:
		return "password confirmation does not match"
	case OldPasswordIncorrect:
		return "old password is incorrect"
	default:
		return "unknown password error"
	}
}

// PasswordError reports a failed password change check, bound to a field.
type PasswordError struct {
	Kind   PasswordErrorKind
	Field  string
	Reason string
}

func (e *PasswordError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", e.Field, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Kind)
}

// PasswordErrors collects every failed check of one password change, in rule
// order.
type PasswordErrors []*PasswordError

func (e PasswordErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, pe := range e {
		parts = append(parts, pe.Error())
	}
	return "password change rejected: " + strings.Join(parts, "; ")
}

func (e PasswordErrors) Unwrap() []error {
	out := make([]error, 0, len(e))
	for _, pe := range e {
		out = append(out, pe)
	}
	return out
}

// Has reports whether a check of the given kind failed.
func (e PasswordErrors) Has(kind PasswordErrorKind) bool {
	for _, pe := range e {
		if pe.Kind == kind {
			return true
		}
	}
	return false
}

// NotFoundError reports that an account identifier does not resolve.
type NotFoundError struct {
	AccountID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("account %q not found", e.AccountID)
}

// MissingAccount builds the error returned when an update targets an account
// the store cannot resolve.
func MissingAccount(accountID string) *NotFoundError {
	return &NotFoundError{AccountID: accountID}
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// FieldErrors flattens validation, conflict and password errors found
// anywhere in err's tree into a field -> message map. The first message per
// field wins. It returns nil when err carries no field-scoped error.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	collectFieldErrors(err, out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func collectFieldErrors(err error, out map[string]string) {
	add := func(field, msg string) {
		if _, ok := out[field]; !ok {
			out[field] = msg
		}
	}

	switch e := err.(type) {
	case nil:
	case *ValidationError:
		add(e.Field, e.Reason)
	case *PasswordError:
		if e.Reason != "" {
			add(e.Field, e.Reason)
		} else {
			add(e.Field, e.Kind.String())
		}
	case *ConflictError:
		add(e.Field, "already in use")
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collectFieldErrors(inner, out)
		}
	case interface{ Unwrap() error }:
		collectFieldErrors(e.Unwrap(), out)
	}
}
