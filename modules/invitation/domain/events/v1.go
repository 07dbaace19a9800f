package events

import "time"

// user.invited opens the invitation stream; the invited user may not exist
// yet, so linkage to the organization and the eventual user travels in the
// payload and the shared correlation id.
const (
	UserInvited        = "user.invited"
	InvitationResent   = "invitation.resent"
	InvitationAccepted = "invitation.accepted"
	InvitationRevoked  = "invitation.revoked"
)

type UserInvitedV1 struct {
	Email          string    `json:"email"`
	OrganizationID string    `json:"organization_id"`
	RoleID         string    `json:"role_id"`
	Token          string    `json:"token"`
	ExpiresAt      time.Time `json:"expires_at"`
	InvitedBy      string    `json:"invited_by,omitempty"`
}

// Resend rotates the token and pushes the expiry; everything else stays.
type InvitationResentV1 struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type InvitationAcceptedV1 struct {
	UserID string `json:"user_id"`
}

type InvitationRevokedV1 struct {
	Reason string `json:"reason,omitempty"`
}
