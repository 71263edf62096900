package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/typoreporter/apiserver/types"
)

const accountColumns = `id, username, email, first_name, last_name, password, avatar_key, created_date, modified_date`

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail looks an account up by its canonical email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg any) (types.Account, error) {
	var acc types.Account
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&acc.ID,
		&acc.Username,
		&acc.Email,
		&acc.FirstName,
		&acc.LastName,
		&acc.PasswordHash,
		&acc.AvatarKey,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return acc, nil
}

func (r *AccountRepository) Create(ctx context.Context, acc types.Account) (types.Account, error) {
	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	const query = `
		INSERT INTO accounts (id, username, email, first_name, last_name, password, avatar_key, created_date, modified_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		acc.ID,
		acc.Username,
		acc.Email,
		acc.FirstName,
		acc.LastName,
		acc.PasswordHash,
		acc.AvatarKey,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		return types.Account{}, mapWriteError(err)
	}
	return acc, nil
}

// Update rewrites the profile fields of an account. The password and avatar
// are left untouched.
func (r *AccountRepository) Update(ctx context.Context, acc types.Account) (types.Account, error) {
	acc.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE accounts
		SET username = $1,
			email = $2,
			first_name = $3,
			last_name = $4,
			modified_date = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		acc.Username,
		acc.Email,
		acc.FirstName,
		acc.LastName,
		acc.UpdatedAt,
		acc.ID,
	)
	if err != nil {
		return types.Account{}, mapWriteError(err)
	}
	if err := expectAffected(result); err != nil {
		return types.Account{}, err
	}
	return acc, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `
		UPDATE accounts
		SET password = $1,
			modified_date = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *AccountRepository) SetAvatar(ctx context.Context, id, key string) error {
	const query = `
		UPDATE accounts
		SET avatar_key = $1,
			modified_date = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
