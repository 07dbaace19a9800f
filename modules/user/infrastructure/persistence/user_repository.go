package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iota-uz/orgledger/modules/user/domain/events"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/repo"
)

type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) CreateUser(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, userID string, p events.UserCreatedV1) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO users (tenant_id, user_id, email, first_name, last_name, organization_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'active')
		 ON CONFLICT (tenant_id, user_id) DO UPDATE
		 SET email = EXCLUDED.email,
		     first_name = EXCLUDED.first_name,
		     last_name = EXCLUDED.last_name,
		     organization_id = EXCLUDED.organization_id,
		     updated_at = now()`,
		tenantID, userID, p.Email, p.FirstName, p.LastName, p.OrganizationID,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, userID string, p events.UserUpdatedV1) error {
	tag, err := tx.Exec(ctx,
		`UPDATE users
		    SET email = COALESCE($3, email),
		        first_name = COALESCE($4, first_name),
		        last_name = COALESCE($5, last_name),
		        updated_at = now()
		  WHERE tenant_id = $1 AND user_id = $2 AND status <> 'deactivated'`,
		tenantID, userID, p.Email, p.FirstName, p.LastName,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: update of unknown user %s", eventstore.ErrProjectionConstraint, userID)
	}
	return nil
}

func (r *UserRepository) DeactivateUser(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, userID string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE users SET status = 'deactivated', updated_at = now()
		  WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: deactivate of unknown user %s", eventstore.ErrProjectionConstraint, userID)
	}
	return nil
}

// AssignRole writes the junction row and the denormalized role list in one
// call. The array update is conditional on membership, so applying the same
// assignment twice leaves a single entry. A re-grant after a revoke revives
// the tombstoned junction row.
func (r *UserRepository) AssignRole(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, userID, roleID, grantedBy string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO user_roles (id, tenant_id, user_id, role_id, granted_by)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id, user_id, role_id) DO UPDATE
		 SET granted_by = EXCLUDED.granted_by,
		     is_deleted = FALSE,
		     revoked_at = NULL`,
		uuid.New(), tenantID, userID, roleID, grantedBy,
	)
	if err != nil {
		return fmt.Errorf("insert user role: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users
		    SET roles = CASE WHEN $3 = ANY(roles) THEN roles ELSE array_append(roles, $3) END,
		        updated_at = now()
		  WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("denormalize user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role assignment for unknown user %s", eventstore.ErrProjectionConstraint, userID)
	}
	return nil
}

func (r *UserRepository) RevokeRole(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, userID, roleID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE user_roles
		    SET is_deleted = TRUE, revoked_at = now()
		  WHERE tenant_id = $1 AND user_id = $2 AND role_id = $3`,
		tenantID, userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("tombstone user role: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users
		    SET roles = array_remove(roles, $3), updated_at = now()
		  WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("denormalize role revoke: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role revoke for unknown user %s", eventstore.ErrProjectionConstraint, userID)
	}
	return nil
}

func (r *UserRepository) Reset(ctx context.Context, tx repo.Tx) error {
	_, err := tx.Exec(ctx, `TRUNCATE users, user_roles`)
	return err
}
