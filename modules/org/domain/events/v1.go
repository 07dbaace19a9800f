package events

// Event types handled by the organization processor. Payloads are versioned
// by convention: breaking schema changes introduce a new event type rather
// than mutating an existing one.
const (
	OrganizationCreated   = "organization.created"
	OrganizationUpdated   = "organization.updated"
	OrganizationArchived  = "organization.archived"
	ContactAdded          = "organization.contact.added"
	ContactUpdated        = "organization.contact.updated"
	ContactRemoved        = "organization.contact.removed"
	AddressAdded          = "organization.address.added"
	AddressUpdated        = "organization.address.updated"
	AddressRemoved        = "organization.address.removed"
	PhoneAdded            = "organization.phone.added"
	PhoneUpdated          = "organization.phone.updated"
	PhoneRemoved          = "organization.phone.removed"
	ProvisioningRequested = "organization.provisioning.requested"
)

type OrganizationCreatedV1 struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Domain string `json:"domain,omitempty"`
	Plan   string `json:"plan,omitempty"`
}

// Update payloads carry pointers: nil means "not supplied, keep current".
// Every set operation is set-to, never increment, so replay is idempotent.
type OrganizationUpdatedV1 struct {
	Name   *string `json:"name,omitempty"`
	Slug   *string `json:"slug,omitempty"`
	Domain *string `json:"domain,omitempty"`
	Plan   *string `json:"plan,omitempty"`
}

type OrganizationArchivedV1 struct {
	Reason string `json:"reason,omitempty"`
}

type ContactAddedV1 struct {
	ContactID string `json:"contact_id"`
	Label     string `json:"label,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

type ContactUpdatedV1 struct {
	ContactID string  `json:"contact_id"`
	Label     *string `json:"label,omitempty"`
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	IsPrimary *bool   `json:"is_primary,omitempty"`
}

type ContactRemovedV1 struct {
	ContactID string `json:"contact_id"`
}

type AddressAddedV1 struct {
	AddressID  string `json:"address_id"`
	Label      string `json:"label,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	IsPrimary  bool   `json:"is_primary,omitempty"`
}

type AddressUpdatedV1 struct {
	AddressID  string  `json:"address_id"`
	Label      *string `json:"label,omitempty"`
	Line1      *string `json:"line1,omitempty"`
	Line2      *string `json:"line2,omitempty"`
	City       *string `json:"city,omitempty"`
	Region     *string `json:"region,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    *string `json:"country,omitempty"`
	IsPrimary  *bool   `json:"is_primary,omitempty"`
}

type AddressRemovedV1 struct {
	AddressID string `json:"address_id"`
}

type PhoneAddedV1 struct {
	PhoneID   string `json:"phone_id"`
	Label     string `json:"label,omitempty"`
	Number    string `json:"number"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

type PhoneUpdatedV1 struct {
	PhoneID   string  `json:"phone_id"`
	Label     *string `json:"label,omitempty"`
	Number    *string `json:"number,omitempty"`
	IsPrimary *bool   `json:"is_primary,omitempty"`
}

type PhoneRemovedV1 struct {
	PhoneID string `json:"phone_id"`
}

// ProvisioningRequested starts asynchronous work (DNS/email provisioning is
// performed by an external worker). JobID names the job stream the engine
// opens with a synthetic job.enqueued event in the same transaction.
type ProvisioningRequestedV1 struct {
	JobID       string `json:"job_id"`
	Process     string `json:"process"`
	ExternalRef string `json:"external_ref,omitempty"`
}
