package events

const (
	RoleCreated = "role.created"
	RoleUpdated = "role.updated"
	RoleDeleted = "role.deleted"
)

type RoleCreatedV1 struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Permissions is set-to: the payload value replaces the stored list, it is
// never merged element-wise.
type RoleUpdatedV1 struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type RoleDeletedV1 struct {
	Reason string `json:"reason,omitempty"`
}
