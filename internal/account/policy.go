package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// bcrypt ignores input past 72 bytes; longer passwords are rejected instead.
const (
	DefaultMinPasswordLength = 8
	MaxPasswordLength        = 72
)

// maxDisplayFieldLength matches the VARCHAR(64) columns of username and names.
const maxDisplayFieldLength = 64

// Ref is the minimal identity of an account: its id and canonical email.
type Ref struct {
	ID    string
	Email string
}

// EmailLookup resolves a canonical email to the account owning it. found is
// false when no account has that email.
type EmailLookup interface {
	FindByCanonicalEmail(ctx context.Context, email string) (ref Ref, found bool, err error)
}

// Credentials hashes and verifies passwords.
type Credentials interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
}

// DecisionKind tells the caller what to do with the email of a profile update.
type DecisionKind int

const (
	NoChange DecisionKind = iota
	Change
)

func (k DecisionKind) String() string {
	if k == Change {
		return "change"
	}
	return "no-change"
}

// UpdateDecision is the outcome of ResolveUpdateTarget. Email always holds the
// canonical email the account should have after the update.
type UpdateDecision struct {
	Kind  DecisionKind
	Email string
}

// Changed reports whether the stored email must be rewritten.
func (d UpdateDecision) Changed() bool {
	return d.Kind == Change
}

// ResolveUpdateTarget decides whether a profile update may move the account
// identified by current to the requested email. It never mutates anything;
// the caller applies a Change decision to the record.
//
// The check and the later write are not atomic. The store must enforce email
// uniqueness so a concurrent claim of the same email surfaces as a conflict
// at write time.
func ResolveUpdateTarget(ctx context.Context, current Ref, requested string, lookup EmailLookup) (UpdateDecision, error) {
	if err := ValidateEmailSyntax(requested); err != nil {
		return UpdateDecision{}, err
	}

	email := NormalizeEmail(requested)
	if email == NormalizeEmail(current.Email) {
		return UpdateDecision{Kind: NoChange, Email: email}, nil
	}

	owner, found, err := lookup.FindByCanonicalEmail(ctx, email)
	if err != nil {
		return UpdateDecision{}, fmt.Errorf("lookup email: %w", err)
	}
	if found && owner.ID != current.ID {
		return UpdateDecision{}, &ConflictError{Field: FieldEmail, Email: email}
	}

	return UpdateDecision{Kind: Change, Email: email}, nil
}

// PasswordChange carries the plaintext fields of a password change form.
type PasswordChange struct {
	OldPassword        string
	NewPassword        string
	ConfirmNewPassword string
}

// SignUp carries the fields of a sign-up form.
type SignUp struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

// ProfileUpdate carries the fields of a profile update form.
type ProfileUpdate struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// Policy holds the tunable password rules.
type Policy struct {
	MinPasswordLength int
}

// NewPolicy returns a Policy; a non-positive minimum falls back to the default.
func NewPolicy(minPasswordLength int) Policy {
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}
	if minPasswordLength > MaxPasswordLength {
		minPasswordLength = MaxPasswordLength
	}
	return Policy{MinPasswordLength: minPasswordLength}
}

// ValidatePassword checks plain against the password rules and attributes a
// failure to field.
func (p Policy) ValidatePassword(field, plain string) *ValidationError {
	switch {
	case plain == "":
		return &ValidationError{Field: field, Reason: "must not be empty"}
	case strings.TrimSpace(plain) == "":
		return &ValidationError{Field: field, Reason: "must not be blank"}
	case len(plain) < p.minLength():
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at least %d characters", p.minLength())}
	case len(plain) > MaxPasswordLength:
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d bytes", MaxPasswordLength)}
	}
	return nil
}

func (p Policy) minLength() int {
	if p.MinPasswordLength <= 0 {
		return DefaultMinPasswordLength
	}
	return p.MinPasswordLength
}

// ChangePassword verifies a password change against currentHash and returns
// the hash to store. Every check runs; failures come back together as
// PasswordErrors in rule order: new password policy, confirmation, old
// password.
func (p Policy) ChangePassword(req PasswordChange, currentHash string, creds Credentials) (string, error) {
	var errs PasswordErrors

	if verr := p.ValidatePassword(FieldNewPassword, req.NewPassword); verr != nil {
		errs = append(errs, &PasswordError{Kind: InvalidNewPassword, Field: FieldNewPassword, Reason: verr.Reason})
	}
	if req.NewPassword != req.ConfirmNewPassword {
		errs = append(errs, &PasswordError{Kind: ConfirmationMismatch, Field: FieldConfirmNewPassword})
	}
	if err := creds.Compare(currentHash, []byte(req.OldPassword)); err != nil {
		errs = append(errs, &PasswordError{Kind: OldPasswordIncorrect, Field: FieldOldPassword})
	}
	if len(errs) > 0 {
		return "", errs
	}

	hashed, err := creds.Hash([]byte(req.NewPassword))
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if hashed == "" || hashed == req.NewPassword {
		return "", errors.New("hash password: hasher returned plaintext")
	}
	return hashed, nil
}

// ValidateSignUp checks a sign-up form and returns the canonical email.
// Uniqueness is the caller's concern.
func (p Policy) ValidateSignUp(req SignUp) (string, error) {
	var errs ValidationErrors

	errs = appendDisplayField(errs, FieldUsername, req.Username)
	if err := ValidateEmailSyntax(req.Email); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			errs = append(errs, verr)
		}
	}
	if verr := p.ValidatePassword(FieldPassword, req.Password); verr != nil {
		errs = append(errs, verr)
	}
	if req.Password != req.ConfirmPassword {
		errs = append(errs, &ValidationError{Field: FieldConfirmPassword, Reason: "does not match password"})
	}
	errs = appendDisplayField(errs, FieldFirstName, req.FirstName)
	errs = appendDisplayField(errs, FieldLastName, req.LastName)

	if err := errs.orNil(); err != nil {
		return "", err
	}
	return NormalizeEmail(req.Email), nil
}

// ValidateProfile checks the display fields of a profile update. The email is
// checked by ResolveUpdateTarget.
func ValidateProfile(req ProfileUpdate) error {
	var errs ValidationErrors
	errs = appendDisplayField(errs, FieldUsername, req.Username)
	errs = appendDisplayField(errs, FieldFirstName, req.FirstName)
	errs = appendDisplayField(errs, FieldLastName, req.LastName)
	return errs.orNil()
}

func appendDisplayField(errs ValidationErrors, field, value string) ValidationErrors {
	switch {
	case strings.TrimSpace(value) == "":
		return append(errs, &ValidationError{Field: field, Reason: "must not be empty"})
	case utf8.RuneCountInString(value) > maxDisplayFieldLength:
		return append(errs, &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", maxDisplayFieldLength)})
	}
	return errs
}
