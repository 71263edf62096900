package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/typoreporter/apiserver/internal/account"
	"github.com/typoreporter/apiserver/internal/logging"
	"github.com/typoreporter/apiserver/internal/mq"
	"github.com/typoreporter/apiserver/internal/storage"
	"github.com/typoreporter/apiserver/internal/store"
	"github.com/typoreporter/apiserver/types"
)

var (
	// ErrInvalidCredentials is returned by Authenticate for an unknown email
	// or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAvatarsDisabled is returned when no object storage is configured.
	ErrAvatarsDisabled = errors.New("avatar storage is not configured")
	// ErrNoAvatar is returned when the account has no stored avatar.
	ErrNoAvatar = errors.New("account has no avatar")
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	Create(ctx context.Context, acc types.Account) (types.Account, error)
	Update(ctx context.Context, acc types.Account) (types.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetAvatar(ctx context.Context, id, key string) error
}

// WorkspaceRoleRepository lists the workspaces an account belongs to.
type WorkspaceRoleRepository interface {
	ListByAccount(ctx context.Context, accountID string) ([]types.WorkspaceRoleInfo, error)
}

// EventPublisher emits account events.
type EventPublisher interface {
	Publish(ctx context.Context, evt mq.AccountEvent) error
}

// AvatarStore saves and loads profile pictures.
type AvatarStore interface {
	Save(ctx context.Context, accountID string, data []byte) (string, error)
	Load(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// AccountInfo is an account together with its workspace memberships.
type AccountInfo struct {
	types.Account
	WorkspaceRoles []types.WorkspaceRoleInfo `json:"workspaceRoles"`
}

// AccountService encapsulates account use-cases.
type AccountService struct {
	repo    AccountRepository
	roles   WorkspaceRoleRepository
	policy  account.Policy
	creds   account.Credentials
	logger  logging.Logger
	events  EventPublisher
	avatars AvatarStore

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(
	repo AccountRepository,
	roles WorkspaceRoleRepository,
	policy account.Policy,
	creds account.Credentials,
	logger logging.Logger,
) *AccountService {
	return &AccountService{
		repo:   repo,
		roles:  roles,
		policy: policy,
		creds:  creds,
		logger: logger,
	}
}

// WithEvents enables publishing of account events.
func (s *AccountService) WithEvents(events EventPublisher) *AccountService {
	s.events = events
	return s
}

// WithAvatars enables avatar uploads.
func (s *AccountService) WithAvatars(avatars AvatarStore) *AccountService {
	s.avatars = avatars
	return s
}

// SignUp validates the form and creates a new account with a hashed password.
func (s *AccountService) SignUp(ctx context.Context, req account.SignUp) (types.Account, error) {
	email, err := s.policy.ValidateSignUp(req)
	if err != nil {
		return types.Account{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.Account{}, &account.ConflictError{Field: account.FieldEmail, Email: email}
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Account{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := s.creds.Hash([]byte(req.Password))
	if err != nil {
		return types.Account{}, fmt.Errorf("hash password: %w", err)
	}

	acc, err := s.repo.Create(ctx, types.Account{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Account{}, &account.ConflictError{Field: account.FieldEmail, Email: email}
		}
		return types.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info(ctx, "account created", "account_id", acc.ID)
	s.publish(ctx, mq.AccountCreated, acc)
	return acc, nil
}

// Authenticate resolves an email and password to an account.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (types.Account, error) {
	acc, err := s.repo.GetByEmail(ctx, account.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.compareDummy(password)
			return types.Account{}, ErrInvalidCredentials
		}
		return types.Account{}, err
	}
	if err := s.creds.Compare(acc.PasswordHash, []byte(password)); err != nil {
		return types.Account{}, ErrInvalidCredentials
	}
	return acc, nil
}

// compareDummy spends the same hashing work as a real login so an unknown
// email is not told apart by response time.
func (s *AccountService) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.creds.Hash([]byte("typoreporter-dummy-password"))
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		_ = s.creds.Compare(s.dummyHash, []byte(password))
	}
}

// Get loads an account. A missing account yields *account.NotFoundError.
func (s *AccountService) Get(ctx context.Context, id string) (types.Account, error) {
	acc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, account.MissingAccount(id)
		}
		return types.Account{}, err
	}
	return acc, nil
}

// Info loads an account and its workspace roles.
func (s *AccountService) Info(ctx context.Context, id string) (AccountInfo, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return AccountInfo{}, err
	}
	roles, err := s.roles.ListByAccount(ctx, id)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("list workspace roles: %w", err)
	}
	return AccountInfo{Account: acc, WorkspaceRoles: roles}, nil
}

// ProfileForm returns the current profile values for an edit form.
func (s *AccountService) ProfileForm(ctx context.Context, id string) (account.ProfileUpdate, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return account.ProfileUpdate{}, err
	}
	return account.ProfileUpdate{
		Username:  acc.Username,
		Email:     acc.Email,
		FirstName: acc.FirstName,
		LastName:  acc.LastName,
	}, nil
}

// UpdateProfile applies a profile update. Display field errors and email
// errors are reported together.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, req account.ProfileUpdate) (types.Account, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return types.Account{}, err
	}

	profileErr := account.ValidateProfile(req)
	decision, emailErr := account.ResolveUpdateTarget(
		ctx,
		account.Ref{ID: current.ID, Email: current.Email},
		req.Email,
		emailLookup{repo: s.repo},
	)
	if emailErr != nil && account.FieldErrors(emailErr) == nil {
		return types.Account{}, emailErr
	}
	if profileErr != nil || emailErr != nil {
		return types.Account{}, errors.Join(profileErr, emailErr)
	}

	next := current
	next.Username = req.Username
	next.FirstName = req.FirstName
	next.LastName = req.LastName
	next.Email = decision.Email

	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.Account{}, account.MissingAccount(id)
		case errors.Is(err, store.ErrConflict):
			return types.Account{}, &account.ConflictError{Field: account.FieldEmail, Email: decision.Email}
		default:
			return types.Account{}, fmt.Errorf("update account: %w", err)
		}
	}

	s.logger.Info(ctx, "account updated", "account_id", id, "email_changed", decision.Changed())
	s.publish(ctx, mq.AccountUpdated, updated)
	return updated, nil
}

// ChangePassword verifies and stores a new password.
func (s *AccountService) ChangePassword(ctx context.Context, id string, req account.PasswordChange) error {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	hashed, err := s.policy.ChangePassword(req, acc.PasswordHash, s.creds)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, id, hashed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return account.MissingAccount(id)
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info(ctx, "password changed", "account_id", id)
	s.publish(ctx, mq.AccountPasswordChanged, acc)
	return nil
}

// SetAvatar stores a new avatar and removes the previous one.
func (s *AccountService) SetAvatar(ctx context.Context, id string, data []byte) (types.Account, error) {
	if s.avatars == nil {
		return types.Account{}, ErrAvatarsDisabled
	}
	acc, err := s.Get(ctx, id)
	if err != nil {
		return types.Account{}, err
	}

	key, err := s.avatars.Save(ctx, id, data)
	if err != nil {
		return types.Account{}, err
	}
	if err := s.repo.SetAvatar(ctx, id, key); err != nil {
		if key != acc.AvatarKey {
			if derr := s.avatars.Delete(ctx, key); derr != nil {
				s.logger.Warn(ctx, "delete orphaned avatar", "account_id", id, "key", key, "err", derr)
			}
		}
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, account.MissingAccount(id)
		}
		return types.Account{}, fmt.Errorf("set avatar: %w", err)
	}

	previous := acc.AvatarKey
	acc.AvatarKey = key
	if previous != "" && previous != key {
		if err := s.avatars.Delete(ctx, previous); err != nil {
			s.logger.Warn(ctx, "delete previous avatar", "account_id", id, "key", previous, "err", err)
		}
	}

	s.publish(ctx, mq.AccountAvatarChanged, acc)
	return acc, nil
}

// Avatar returns the stored avatar and its content type.
func (s *AccountService) Avatar(ctx context.Context, id string) ([]byte, string, error) {
	if s.avatars == nil {
		return nil, "", ErrAvatarsDisabled
	}
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if acc.AvatarKey == "" {
		return nil, "", ErrNoAvatar
	}

	data, contentType, err := s.avatars.Load(ctx, acc.AvatarKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", ErrNoAvatar
		}
		return nil, "", err
	}
	return data, contentType, nil
}

// publish emits an event. Failures are logged and never fail the caller.
func (s *AccountService) publish(ctx context.Context, eventType string, acc types.Account) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, mq.AccountEvent{
		Type:      eventType,
		AccountID: acc.ID,
		Email:     acc.Email,
	})
	if err != nil {
		s.logger.Warn(ctx, "publish account event", "type", eventType, "account_id", acc.ID, "err", err)
	}
}

// emailLookup adapts AccountRepository to account.EmailLookup.
type emailLookup struct {
	repo AccountRepository
}

func (l emailLookup) FindByCanonicalEmail(ctx context.Context, email string) (account.Ref, bool, error) {
	acc, err := l.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return account.Ref{}, false, nil
		}
		return account.Ref{}, false, err
	}
	return account.Ref{ID: acc.ID, Email: acc.Email}, true, nil
}
