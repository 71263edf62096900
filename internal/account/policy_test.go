package account

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLookup struct {
	byEmail map[string]Ref
	err     error
	calls   int
}

func (m *mapLookup) FindByCanonicalEmail(ctx context.Context, email string) (Ref, bool, error) {
	m.calls++
	if m.err != nil {
		return Ref{}, false, m.err
	}
	ref, ok := m.byEmail[email]
	return ref, ok, nil
}

// prefixCreds "hashes" by prefixing, which is enough to tell hash from plaintext.
type prefixCreds struct {
	hashErr  error
	compared int
}

func (c *prefixCreds) Hash(password []byte) (string, error) {
	if c.hashErr != nil {
		return "", c.hashErr
	}
	return "hashed:" + string(password), nil
}

func (c *prefixCreds) Compare(hash string, password []byte) error {
	c.compared++
	if hash != "hashed:"+string(password) {
		return errors.New("mismatch")
	}
	return nil
}

type identityCreds struct{ prefixCreds }

func (identityCreds) Hash(password []byte) (string, error) { return string(password), nil }

func TestResolveUpdateTarget(t *testing.T) {
	current := Ref{ID: "acc-1", Email: "test@test.test"}
	lookup := &mapLookup{byEmail: map[string]Ref{
		"test@test.test":  current,
		"other@test.test": {ID: "acc-2", Email: "other@test.test"},
	}}

	t.Run("same email is no change", func(t *testing.T) {
		d, err := ResolveUpdateTarget(context.Background(), current, "test@test.test", lookup)
		require.NoError(t, err)
		assert.Equal(t, NoChange, d.Kind)
		assert.False(t, d.Changed())
		assert.Equal(t, "test@test.test", d.Email)
	})

	t.Run("case-only change is no change", func(t *testing.T) {
		cur := Ref{ID: "acc-3", Email: "test@test.ru"}
		before := lookup.calls
		d, err := ResolveUpdateTarget(context.Background(), cur, "TEST@TEST.RU", lookup)
		require.NoError(t, err)
		assert.Equal(t, NoChange, d.Kind)
		assert.Equal(t, "test@test.ru", d.Email)
		assert.Equal(t, before, lookup.calls, "no lookup is needed for the current email")
	})

	t.Run("free email is a change", func(t *testing.T) {
		d, err := ResolveUpdateTarget(context.Background(), current, " New@Test.Test ", lookup)
		require.NoError(t, err)
		assert.True(t, d.Changed())
		assert.Equal(t, "new@test.test", d.Email)
	})

	t.Run("email of another account conflicts", func(t *testing.T) {
		_, err := ResolveUpdateTarget(context.Background(), current, "OTHER@test.test", lookup)
		var cerr *ConflictError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, FieldEmail, cerr.Field)
		assert.Equal(t, "other@test.test", cerr.Email)
	})

	t.Run("malformed email is a validation error", func(t *testing.T) {
		before := lookup.calls
		_, err := ResolveUpdateTarget(context.Background(), current, "test@test", lookup)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, FieldEmail, verr.Field)
		assert.Equal(t, before, lookup.calls)
	})

	t.Run("lookup failure propagates", func(t *testing.T) {
		failing := &mapLookup{err: errors.New("db down")}
		_, err := ResolveUpdateTarget(context.Background(), current, "x@y.zz", failing)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
		assert.Nil(t, FieldErrors(err))
	})
}

func TestChangePassword_Success(t *testing.T) {
	creds := &prefixCreds{}
	p := NewPolicy(8)

	hashed, err := p.ChangePassword(PasswordChange{
		OldPassword:        "_Qwe1234",
		NewPassword:        "_Asd5678",
		ConfirmNewPassword: "_Asd5678",
	}, "hashed:_Qwe1234", creds)

	require.NoError(t, err)
	assert.NotEqual(t, "_Asd5678", hashed)
	assert.NotEqual(t, "hashed:_Qwe1234", hashed)
	assert.Equal(t, "hashed:_Asd5678", hashed)
}

func TestChangePassword_Failures(t *testing.T) {
	const current = "hashed:_Qwe1234"
	tests := []struct {
		name  string
		req   PasswordChange
		kinds []PasswordErrorKind
		field string
	}{
		{
			name:  "wrong old password",
			req:   PasswordChange{OldPassword: "wrongPassword", NewPassword: "_Asd5678", ConfirmNewPassword: "_Asd5678"},
			kinds: []PasswordErrorKind{OldPasswordIncorrect},
			field: FieldOldPassword,
		},
		{
			name:  "empty new password",
			req:   PasswordChange{OldPassword: "_Qwe1234", NewPassword: "", ConfirmNewPassword: ""},
			kinds: []PasswordErrorKind{InvalidNewPassword},
			field: FieldNewPassword,
		},
		{
			name:  "confirmation mismatch",
			req:   PasswordChange{OldPassword: "_Qwe1234", NewPassword: "_Asd5678", ConfirmNewPassword: "_Asd5679"},
			kinds: []PasswordErrorKind{ConfirmationMismatch},
			field: FieldConfirmNewPassword,
		},
		{
			name:  "everything wrong",
			req:   PasswordChange{OldPassword: "nope", NewPassword: "short", ConfirmNewPassword: "other"},
			kinds: []PasswordErrorKind{InvalidNewPassword, ConfirmationMismatch, OldPasswordIncorrect},
			field: FieldNewPassword,
		},
		{
			name:  "too long",
			req:   PasswordChange{OldPassword: "_Qwe1234", NewPassword: strings.Repeat("a", 73), ConfirmNewPassword: strings.Repeat("a", 73)},
			kinds: []PasswordErrorKind{InvalidNewPassword},
			field: FieldNewPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := &prefixCreds{}
			hashed, err := NewPolicy(8).ChangePassword(tt.req, current, creds)
			require.Error(t, err)
			assert.Empty(t, hashed)
			assert.Equal(t, 1, creds.compared, "old password is always checked")

			var perrs PasswordErrors
			require.True(t, errors.As(err, &perrs))
			require.Len(t, perrs, len(tt.kinds))
			for i, kind := range tt.kinds {
				assert.Equal(t, kind, perrs[i].Kind)
				assert.True(t, perrs.Has(kind))
			}

			var first *PasswordError
			require.True(t, errors.As(err, &first))
			assert.Equal(t, tt.field, first.Field)
		})
	}
}

func TestChangePassword_HasherFaults(t *testing.T) {
	req := PasswordChange{OldPassword: "_Qwe1234", NewPassword: "_Asd5678", ConfirmNewPassword: "_Asd5678"}

	_, err := NewPolicy(0).ChangePassword(req, "hashed:_Qwe1234", &prefixCreds{hashErr: errors.New("boom")})
	require.Error(t, err)
	assert.Nil(t, FieldErrors(err))

	_, err = NewPolicy(0).ChangePassword(req, "hashed:_Qwe1234", &identityCreds{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plaintext")
}

func TestValidateSignUp(t *testing.T) {
	p := NewPolicy(8)
	valid := SignUp{
		Username:        "testUser",
		Email:           "TEST@test.Ru",
		Password:        "_Qwe1234",
		ConfirmPassword: "_Qwe1234",
		FirstName:       "Test",
		LastName:        "User",
	}

	email, err := p.ValidateSignUp(valid)
	require.NoError(t, err)
	assert.Equal(t, "test@test.ru", email)

	bad := valid
	bad.Email = "test@test"
	bad.ConfirmPassword = "_Qwe12345"
	bad.LastName = " "
	_, err = p.ValidateSignUp(bad)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := FieldErrors(err)
	assert.Len(t, fields, 3)
	assert.Contains(t, fields, FieldEmail)
	assert.Contains(t, fields, FieldConfirmPassword)
	assert.Contains(t, fields, FieldLastName)
}

func TestValidateProfile(t *testing.T) {
	assert.NoError(t, ValidateProfile(ProfileUpdate{Username: "u", FirstName: "f", LastName: "l"}))

	err := ValidateProfile(ProfileUpdate{Username: "", FirstName: "f", LastName: ""})
	fields := FieldErrors(err)
	assert.Equal(t, map[string]string{
		FieldUsername: "must not be empty",
		FieldLastName: "must not be empty",
	}, fields)
}

func TestDisplayFieldLength(t *testing.T) {
	long := strings.Repeat("я", maxDisplayFieldLength+1)
	edge := strings.Repeat("я", maxDisplayFieldLength)

	tests := []struct {
		name   string
		req    ProfileUpdate
		fields []string
	}{
		{"64 runes", ProfileUpdate{Username: edge, FirstName: edge, LastName: edge}, nil},
		{"65 rune username", ProfileUpdate{Username: long, FirstName: "f", LastName: "l"}, []string{FieldUsername}},
		{"65 rune names", ProfileUpdate{Username: "u", FirstName: long, LastName: long}, []string{FieldFirstName, FieldLastName}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfile(tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			fields := FieldErrors(err)
			require.Len(t, fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Equal(t, "must be at most 64 characters", fields[f])
			}
		})
	}

	_, err := NewPolicy(8).ValidateSignUp(SignUp{
		Username: long, Email: "test@test.ru", Password: "_Qwe1234", ConfirmPassword: "_Qwe1234",
		FirstName: long, LastName: long,
	})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
}

func TestNewPolicy_Bounds(t *testing.T) {
	assert.Equal(t, DefaultMinPasswordLength, NewPolicy(0).MinPasswordLength)
	assert.Equal(t, MaxPasswordLength, NewPolicy(500).MinPasswordLength)
	assert.Equal(t, 10, NewPolicy(10).MinPasswordLength)
}

func TestMissingAccount(t *testing.T) {
	err := error(MissingAccount("acc-404"))
	assert.True(t, IsNotFound(err))
	assert.Nil(t, FieldErrors(err))
	assert.False(t, IsNotFound(&ValidationError{Field: FieldEmail}))
}
