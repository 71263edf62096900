package types

import "time"

// Account represents a registered user of typoreporter.
// The email is stored in canonical (lower-cased) form and is unique.
type Account struct {
	// ID is the opaque unique identifier of the account. It never changes
	// after sign-up.
	ID string `json:"id" db:"id"`

	// Username is the display login name. It is not unique.
	Username string `json:"username" db:"username"`

	// Email is the canonical email address identifying the account.
	Email string `json:"email" db:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"firstName" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"lastName" db:"last_name"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password"`

	// AvatarKey is the object storage key of the profile picture, or empty
	// when none was uploaded.
	AvatarKey string `json:"avatarKey,omitempty" db:"avatar_key"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_date"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updatedAt" db:"modified_date"`
}

// WorkspaceRoleInfo describes the role an account holds in a workspace.
type WorkspaceRoleInfo struct {
	// WorkspaceID identifies the workspace.
	WorkspaceID int64 `json:"workspaceId" db:"workspace_id"`

	// WorkspaceName is the human-readable workspace name.
	WorkspaceName string `json:"workspaceName" db:"name"`

	// WorkspaceURL is the site the workspace collects typos for.
	WorkspaceURL string `json:"workspaceUrl" db:"url"`

	// Role is the account's role in the workspace (e.g., "ADMIN", "USER").
	Role string `json:"role" db:"role"`
}
