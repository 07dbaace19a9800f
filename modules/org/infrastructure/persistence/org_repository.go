package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iota-uz/orgledger/modules/org/domain/events"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/repo"
)

// OrgRepository owns every write into the organization projections. All
// writes are upsert-on-natural-key or conditional updates; the natural key
// of an organization is its stream id.
type OrgRepository struct{}

func NewOrgRepository() *OrgRepository {
	return &OrgRepository{}
}

func (r *OrgRepository) CreateOrganization(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID string, p events.OrganizationCreatedV1) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO organizations (tenant_id, org_id, name, slug, domain, plan, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'active')
		 ON CONFLICT (tenant_id, org_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     slug = EXCLUDED.slug,
		     domain = EXCLUDED.domain,
		     plan = EXCLUDED.plan,
		     updated_at = now()`,
		tenantID, orgID, p.Name, p.Slug, p.Domain, p.Plan,
	)
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (r *OrgRepository) UpdateOrganization(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID string, p events.OrganizationUpdatedV1) error {
	tag, err := tx.Exec(ctx,
		`UPDATE organizations
		    SET name = COALESCE($3, name),
		        slug = COALESCE($4, slug),
		        domain = COALESCE($5, domain),
		        plan = COALESCE($6, plan),
		        updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2 AND NOT is_deleted`,
		tenantID, orgID, p.Name, p.Slug, p.Domain, p.Plan,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: update of unknown organization %s", eventstore.ErrProjectionConstraint, orgID)
	}
	return nil
}

func (r *OrgRepository) ArchiveOrganization(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE organizations
		    SET status = 'archived', is_deleted = TRUE, updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2`,
		tenantID, orgID,
	)
	if err != nil {
		return fmt.Errorf("archive organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: archive of unknown organization %s", eventstore.ErrProjectionConstraint, orgID)
	}
	return nil
}

func (r *OrgRepository) SetProvisioningStatus(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID, status string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE organizations
		    SET provisioning_status = $3, updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2 AND NOT is_deleted`,
		tenantID, orgID, status,
	)
	if err != nil {
		return fmt.Errorf("set provisioning status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: provisioning for unknown organization %s", eventstore.ErrProjectionConstraint, orgID)
	}
	return nil
}

// demotePrimary clears the primary flag on every row of one table for one
// organization. Runs immediately before a row is written as primary, inside
// the same transaction, which is what keeps "at most one primary per parent"
// true without a partial unique index fighting replays.
func demotePrimary(ctx context.Context, tx repo.Tx, table string, tenantID uuid.UUID, orgID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE `+table+` SET is_primary = FALSE, updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2 AND is_primary`,
		tenantID, orgID,
	)
	if err != nil {
		return fmt.Errorf("demote primary in %s: %w", table, err)
	}
	return nil
}

func (r *OrgRepository) UpsertContact(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID string, p events.ContactAddedV1) error {
	if p.IsPrimary {
		if err := demotePrimary(ctx, tx, "organization_contacts", tenantID, orgID); err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO organization_contacts (id, tenant_id, org_id, contact_id, label, name, email, is_primary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tenant_id, org_id, contact_id) DO UPDATE
		 SET label = EXCLUDED.label,
		     name = EXCLUDED.name,
		     email = EXCLUDED.email,
		     is_primary = EXCLUDED.is_primary,
		     is_deleted = FALSE,
		     updated_at = now()`,
		uuid.New(), tenantID, orgID, p.ContactID, p.Label, p.Name, p.Email, p.IsPrimary,
	)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (r *OrgRepository) MergeContact(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID string, p events.ContactUpdatedV1) error {
	if p.IsPrimary != nil && *p.IsPrimary {
		if err := demotePrimary(ctx, tx, "organization_contacts", tenantID, orgID); err != nil {
			return err
		}
	}
	tag, err := tx.Exec(ctx,
		`UPDATE organization_contacts
		    SET label = COALESCE($4, label),
		        name = COALESCE($5, name),
		        email = COALESCE($6, email),
		        is_primary = COALESCE($7, is_primary),
		        updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2 AND contact_id = $3 AND NOT is_deleted`,
		tenantID, orgID, p.ContactID, p.Label, p.Name, p.Email, p.IsPrimary,
	)
	if err != nil {
		return fmt.Errorf("merge contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: update of unknown contact %s", eventstore.ErrProjectionConstraint, p.ContactID)
	}
	return nil
}

func (r *OrgRepository) RemoveContact(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID, contactID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE organization_contacts
		    SET is_deleted = TRUE, is_primary = FALSE, updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2 AND contact_id = $3`,
		tenantID, orgID, contactID,
	)
	if err != nil {
		return fmt.Errorf("remove contact: %w", err)
	}
	return nil
}

func (r *OrgRepository) UpsertAddress(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID string, p events.AddressAddedV1) error {
	if p.IsPrimary {
		if err := demotePrimary(ctx, tx, "organization_addresses", tenantID, orgID); err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO organization_addresses (id, tenant_id, org_id, address_id, label, line1, line2, city, region, postal_code, country, is_primary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (tenant_id, org_id, address_id) DO UPDATE
		 SET label = EXCLUDED.label,
		     line1 = EXCLUDED.line1,
		     line2 = EXCLUDED.line2,
		     city = EXCLUDED.city,
		     region = EXCLUDED.region,
		     postal_code = EXCLUDED.postal_code,
		     country = EXCLUDED.country,
		     is_primary = EXCLUDED.is_primary,
		     is_deleted = FALSE,
		     updated_at = now()`,
		uuid.New(), tenantID, orgID, p.AddressID, p.Label, p.Line1, p.Line2,
		p.City, p.Region, p.PostalCode, p.Country, p.IsPrimary,
	)
	if err != nil {
		return fmt.Errorf("upsert address: %w", err)
	}
	return nil
}

func (r *OrgRepository) MergeAddress(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID string, p events.AddressUpdatedV1) error {
	if p.IsPrimary != nil && *p.IsPrimary {
		if err := demotePrimary(ctx, tx, "organization_addresses", tenantID, orgID); err != nil {
			return err
		}
	}
	tag, err := tx.Exec(ctx,
		`UPDATE organization_addresses
		    SET label = COALESCE($4, label),
		        line1 = COALESCE($5, line1),
		        line2 = COALESCE($6, line2),
		        city = COALESCE($7, city),
		        region = COALESCE($8, region),
		        postal_code = COALESCE($9, postal_code),
		        country = COALESCE($10, country),
		        is_primary = COALESCE($11, is_primary),
		        updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2 AND address_id = $3 AND NOT is_deleted`,
		tenantID, orgID, p.AddressID, p.Label, p.Line1, p.Line2,
		p.City, p.Region, p.PostalCode, p.Country, p.IsPrimary,
	)
	if err != nil {
		return fmt.Errorf("merge address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: update of unknown address %s", eventstore.ErrProjectionConstraint, p.AddressID)
	}
	return nil
}

func (r *OrgRepository) RemoveAddress(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID, addressID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE organization_addresses
		    SET is_deleted = TRUE, is_primary = FALSE, updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2 AND address_id = $3`,
		tenantID, orgID, addressID,
	)
	if err != nil {
		return fmt.Errorf("remove address: %w", err)
	}
	return nil
}

func (r *OrgRepository) UpsertPhone(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID string, p events.PhoneAddedV1) error {
	if p.IsPrimary {
		if err := demotePrimary(ctx, tx, "organization_phones", tenantID, orgID); err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO organization_phones (id, tenant_id, org_id, phone_id, label, number, is_primary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, org_id, phone_id) DO UPDATE
		 SET label = EXCLUDED.label,
		     number = EXCLUDED.number,
		     is_primary = EXCLUDED.is_primary,
		     is_deleted = FALSE,
		     updated_at = now()`,
		uuid.New(), tenantID, orgID, p.PhoneID, p.Label, p.Number, p.IsPrimary,
	)
	if err != nil {
		return fmt.Errorf("upsert phone: %w", err)
	}
	return nil
}

func (r *OrgRepository) MergePhone(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID string, p events.PhoneUpdatedV1) error {
	if p.IsPrimary != nil && *p.IsPrimary {
		if err := demotePrimary(ctx, tx, "organization_phones", tenantID, orgID); err != nil {
			return err
		}
	}
	tag, err := tx.Exec(ctx,
		`UPDATE organization_phones
		    SET label = COALESCE($4, label),
		        number = COALESCE($5, number),
		        is_primary = COALESCE($6, is_primary),
		        updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2 AND phone_id = $3 AND NOT is_deleted`,
		tenantID, orgID, p.PhoneID, p.Label, p.Number, p.IsPrimary,
	)
	if err != nil {
		return fmt.Errorf("merge phone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: update of unknown phone %s", eventstore.ErrProjectionConstraint, p.PhoneID)
	}
	return nil
}

func (r *OrgRepository) RemovePhone(ctx context.Context, tx repo.Tx, tenantID uuid.UUID, orgID, phoneID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE organization_phones
		    SET is_deleted = TRUE, is_primary = FALSE, updated_at = now()
		  WHERE tenant_id = $1 AND org_id = $2 AND phone_id = $3`,
		tenantID, orgID, phoneID,
	)
	if err != nil {
		return fmt.Errorf("remove phone: %w", err)
	}
	return nil
}

func (r *OrgRepository) Reset(ctx context.Context, tx repo.Tx) error {
	_, err := tx.Exec(ctx,
		`TRUNCATE organizations, organization_contacts, organization_addresses, organization_phones`)
	return err
}
