package persistence

import (
	"context"
	"fmt"

	"github.com/iota-uz/orgledger/modules/role/domain/events"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/repo"

	"github.com/google/uuid"
)

type RoleRepository struct{}

func NewRoleRepository() *RoleRepository {
	return &RoleRepository{}
}

func (r *RoleRepository) CreateRole(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, roleID string, p events.RoleCreatedV1) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO roles (tenant_id, role_id, name, description, permissions)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id, role_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     description = EXCLUDED.description,
		     permissions = EXCLUDED.permissions,
		     is_deleted = FALSE,
		     updated_at = now()`,
		tenantID, roleID, p.Name, p.Description, p.Permissions,
	)
	if err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (r *RoleRepository) UpdateRole(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, roleID string, p events.RoleUpdatedV1) error {
	tag, err := tx.Exec(ctx,
		`UPDATE roles
		    SET name = COALESCE($3, name),
		        description = COALESCE($4, description),
		        permissions = COALESCE($5, permissions),
		        updated_at = now()
		  WHERE tenant_id = $1 AND role_id = $2 AND NOT is_deleted`,
		tenantID, roleID, p.Name, p.Description, p.Permissions,
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: update of unknown role %s", eventstore.ErrProjectionConstraint, roleID)
	}
	return nil
}

func (r *RoleRepository) DeleteRole(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, roleID string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE roles SET is_deleted = TRUE, updated_at = now()
		  WHERE tenant_id = $1 AND role_id = $2`,
		tenantID, roleID,
	)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: delete of unknown role %s", eventstore.ErrProjectionConstraint, roleID)
	}
	return nil
}

func (r *RoleRepository) Reset(ctx context.Context, tx repo.Tx) error {
	_, err := tx.Exec(ctx, `TRUNCATE roles`)
	return err
}
