// Package account holds the account identity and credential rules: email
// canonicalization, detection of email collisions on profile updates, and
// password change checks. It performs no I/O itself; lookups and hashing are
// supplied by the caller.
package account

import (
	"net/mail"
	"strings"
)

const maxEmailLength = 254

// NormalizeEmail returns the canonical form of an email address used for
// storage and every lookup. NormalizeEmail(NormalizeEmail(e)) == NormalizeEmail(e).
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateEmailSyntax checks that raw is a bare local@domain address whose
// domain has at least two dot-separated labels.
func ValidateEmailSyntax(raw string) error {
	email := strings.TrimSpace(raw)
	if email == "" {
		return &ValidationError{Field: FieldEmail, Reason: "must not be empty"}
	}
	if len(email) > maxEmailLength {
		return &ValidationError{Field: FieldEmail, Reason: "is too long"}
	}

	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email || parsed.Name != "" {
		return &ValidationError{Field: FieldEmail, Reason: "is not a valid email address"}
	}

	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return &ValidationError{Field: FieldEmail, Reason: "is not a valid email address"}
	}
	if !validDomain(email[at+1:]) {
		return &ValidationError{Field: FieldEmail, Reason: "must have a domain like example.com"}
	}
	return nil
}

func validDomain(domain string) bool {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if r == '[' || r == ']' || r == ' ' {
				return false
			}
		}
	}
	return true
}
