package store

import (
	"context"
	"database/sql"

	"github.com/typoreporter/apiserver/types"
)

// WorkspaceRoleRepository reads the workspace memberships of accounts.
type WorkspaceRoleRepository struct {
	db *sql.DB
}

func NewWorkspaceRoleRepository(db *sql.DB) *WorkspaceRoleRepository {
	return &WorkspaceRoleRepository{db: db}
}

func (r *WorkspaceRoleRepository) ListByAccount(ctx context.Context, accountID string) ([]types.WorkspaceRoleInfo, error) {
	const query = `
		SELECT w.id, w.name, w.url, wr.role
		FROM workspace_roles wr
		JOIN workspaces w ON w.id = wr.workspace_id
		WHERE wr.account_id = $1
		ORDER BY w.name`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]types.WorkspaceRoleInfo, 0)
	for rows.Next() {
		var info types.WorkspaceRoleInfo
		if err := rows.Scan(&info.WorkspaceID, &info.WorkspaceName, &info.WorkspaceURL, &info.Role); err != nil {
			return nil, err
		}
		roles = append(roles, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
