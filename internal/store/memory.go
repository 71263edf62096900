package store

import (
	"context"
	"sync"
	"time"

	"github.com/typoreporter/apiserver/types"
)

// MemoryAccountRepository keeps accounts in process memory. It enforces the
// same email uniqueness as the accounts table.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]types.Account
	roles    map[string][]types.WorkspaceRoleInfo
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]types.Account),
		roles:    make(map[string][]types.WorkspaceRoleInfo),
	}
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (types.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[id]
	if !ok {
		return types.Account{}, ErrNotFound
	}
	return acc, nil
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (types.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, acc := range r.accounts {
		if acc.Email == email {
			return acc, nil
		}
	}
	return types.Account{}, ErrNotFound
}

func (r *MemoryAccountRepository) Create(_ context.Context, acc types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[acc.ID]; ok {
		return types.Account{}, ErrConflict
	}
	if r.emailTakenLocked(acc.Email, acc.ID) {
		return types.Account{}, ErrConflict
	}

	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	r.accounts[acc.ID] = acc
	return acc, nil
}

func (r *MemoryAccountRepository) Update(_ context.Context, acc types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[acc.ID]
	if !ok {
		return types.Account{}, ErrNotFound
	}
	if r.emailTakenLocked(acc.Email, acc.ID) {
		return types.Account{}, ErrConflict
	}

	stored.Username = acc.Username
	stored.Email = acc.Email
	stored.FirstName = acc.FirstName
	stored.LastName = acc.LastName
	stored.UpdatedAt = time.Now().UTC()
	r.accounts[acc.ID] = stored
	return stored, nil
}

func (r *MemoryAccountRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	stored.PasswordHash = passwordHash
	stored.UpdatedAt = time.Now().UTC()
	r.accounts[id] = stored
	return nil
}

func (r *MemoryAccountRepository) SetAvatar(_ context.Context, id, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	stored.AvatarKey = key
	stored.UpdatedAt = time.Now().UTC()
	r.accounts[id] = stored
	return nil
}

// Delete removes an account. It exists so tests can simulate an account
// disappearing between authentication and an update.
func (r *MemoryAccountRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(r.accounts, id)
	delete(r.roles, id)
	return nil
}

// AddRole records a workspace membership for accountID.
func (r *MemoryAccountRepository) AddRole(accountID string, role types.WorkspaceRoleInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[accountID] = append(r.roles[accountID], role)
}

func (r *MemoryAccountRepository) ListByAccount(_ context.Context, accountID string) ([]types.WorkspaceRoleInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]types.WorkspaceRoleInfo, len(r.roles[accountID]))
	copy(roles, r.roles[accountID])
	return roles, nil
}

func (r *MemoryAccountRepository) emailTakenLocked(email, exceptID string) bool {
	for id, acc := range r.accounts {
		if id != exceptID && acc.Email == email {
			return true
		}
	}
	return false
}
