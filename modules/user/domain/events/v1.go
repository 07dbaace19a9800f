package events

const (
	UserCreated     = "user.created"
	UserUpdated     = "user.updated"
	UserDeactivated = "user.deactivated"
	RoleAssigned    = "user.role.assigned"
	RoleRevoked     = "user.role.revoked"
)

type UserCreatedV1 struct {
	Email          string `json:"email"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// Nil fields keep the current value.
type UserUpdatedV1 struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

type UserDeactivatedV1 struct {
	Reason string `json:"reason,omitempty"`
}

type RoleAssignedV1 struct {
	RoleID         string `json:"role_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	GrantedBy      string `json:"granted_by,omitempty"`
}

type RoleRevokedV1 struct {
	RoleID string `json:"role_id"`
}
