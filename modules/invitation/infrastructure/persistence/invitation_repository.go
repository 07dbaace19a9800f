package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/orgledger/modules/invitation/domain/events"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/repo"
)

type InvitationRepository struct{}

func NewInvitationRepository() *InvitationRepository {
	return &InvitationRepository{}
}

func (r *InvitationRepository) CreateInvitation(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, invitationID string, p events.UserInvitedV1) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO invitations (tenant_id, invitation_id, email, organization_id, role_id, token, expires_at, invited_by, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		 ON CONFLICT (tenant_id, invitation_id) DO UPDATE
		 SET email = EXCLUDED.email,
		     organization_id = EXCLUDED.organization_id,
		     role_id = EXCLUDED.role_id,
		     token = EXCLUDED.token,
		     expires_at = EXCLUDED.expires_at,
		     invited_by = EXCLUDED.invited_by,
		     updated_at = now()`,
		tenantID, invitationID, p.Email, p.OrganizationID, p.RoleID,
		p.Token, p.ExpiresAt, p.InvitedBy,
	)
	if err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

func (r *InvitationRepository) Resend(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, invitationID string, p events.InvitationResentV1) error {
	tag, err := tx.Exec(ctx,
		`UPDATE invitations
		    SET token = $3, expires_at = $4, updated_at = now()
		  WHERE tenant_id = $1 AND invitation_id = $2 AND status = 'pending'`,
		tenantID, invitationID, p.Token, p.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("resend invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: resend of unknown or non-pending invitation %s", eventstore.ErrProjectionConstraint, invitationID)
	}
	return nil
}

// Accept flips the row to accepted and grants the invited role to the
// accepting user, all inside the event's transaction.
func (r *InvitationRepository) Accept(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, invitationID, userID string) error {
	var roleID string
	err := tx.QueryRow(ctx,
		`UPDATE invitations
		    SET status = 'accepted', accepted_by = $3, updated_at = now()
		  WHERE tenant_id = $1 AND invitation_id = $2 AND status = 'pending'
		  RETURNING role_id`,
		tenantID, invitationID, userID,
	).Scan(&roleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: accept of unknown or non-pending invitation %s", eventstore.ErrProjectionConstraint, invitationID)
	}
	if err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_roles (id, tenant_id, user_id, role_id, granted_by)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id, user_id, role_id) DO UPDATE
		 SET granted_by = EXCLUDED.granted_by,
		     is_deleted = FALSE,
		     revoked_at = NULL`,
		uuid.New(), tenantID, userID, roleID, "invitation:"+invitationID,
	)
	if err != nil {
		return fmt.Errorf("grant invited role: %w", err)
	}
	return nil
}

func (r *InvitationRepository) Revoke(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, invitationID string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE invitations
		    SET status = 'revoked', updated_at = now()
		  WHERE tenant_id = $1 AND invitation_id = $2 AND status = 'pending'`,
		tenantID, invitationID,
	)
	if err != nil {
		return fmt.Errorf("revoke invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: revoke of unknown or non-pending invitation %s", eventstore.ErrProjectionConstraint, invitationID)
	}
	return nil
}

func (r *InvitationRepository) Reset(ctx context.Context, tx repo.Tx) error {
	_, err := tx.Exec(ctx, `TRUNCATE invitations`)
	return err
}
