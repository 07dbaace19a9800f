package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgledger/modules/org/domain/events"
	"github.com/iota-uz/orgledger/modules/org/infrastructure/persistence"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/jobqueue"
	"github.com/iota-uz/orgledger/pkg/repo"
)

// Processor projects organization streams into the organizations tables and,
// for provisioning requests, enqueues the derived job in the same
// transaction.
type Processor struct {
	repo *persistence.OrgRepository
	log  *logrus.Logger
}

func NewProcessor(log *logrus.Logger) *Processor {
	return &Processor{repo: persistence.NewOrgRepository(), log: log}
}

func (p *Processor) StreamType() eventstore.StreamType {
	return eventstore.StreamOrganization
}

func (p *Processor) Reset(ctx context.Context, tx repo.Tx) error {
	return p.repo.Reset(ctx, tx)
}

func (p *Processor) Handle(ctx context.Context, tx repo.Tx, evt *eventstore.Event, appender eventstore.Appender) error {
	switch evt.EventType {
	case events.OrganizationCreated:
		var payload events.OrganizationCreatedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.CreateOrganization(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.OrganizationUpdated:
		var payload events.OrganizationUpdatedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.UpdateOrganization(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.OrganizationArchived:
		return p.repo.ArchiveOrganization(ctx, tx, evt.TenantID, evt.StreamID)

	case events.ContactAdded:
		var payload events.ContactAddedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.UpsertContact(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.ContactUpdated:
		var payload events.ContactUpdatedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.MergeContact(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.ContactRemoved:
		var payload events.ContactRemovedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.RemoveContact(ctx, tx, evt.TenantID, evt.StreamID, payload.ContactID)

	case events.AddressAdded:
		var payload events.AddressAddedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.UpsertAddress(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.AddressUpdated:
		var payload events.AddressUpdatedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.MergeAddress(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.AddressRemoved:
		var payload events.AddressRemovedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.RemoveAddress(ctx, tx, evt.TenantID, evt.StreamID, payload.AddressID)

	case events.PhoneAdded:
		var payload events.PhoneAddedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.UpsertPhone(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.PhoneUpdated:
		var payload events.PhoneUpdatedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.MergePhone(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.PhoneRemoved:
		var payload events.PhoneRemovedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.RemovePhone(ctx, tx, evt.TenantID, evt.StreamID, payload.PhoneID)

	case events.ProvisioningRequested:
		return p.applyProvisioningRequested(ctx, tx, evt, appender)

	default:
		return fmt.Errorf("%w: %s", eventstore.ErrUnhandledEventType, evt.EventType)
	}
}

// applyProvisioningRequested marks the organization as provisioning and
// opens the job stream with a synthetic job.enqueued event. Both writes
// share the request's transaction, so the job cannot exist without the
// request nor the other way around.
func (p *Processor) applyProvisioningRequested(ctx context.Context, tx repo.Tx, evt *eventstore.Event, appender eventstore.Appender) error {
	var payload events.ProvisioningRequestedV1
	if err := decode(evt, &payload); err != nil {
		return err
	}
	if payload.JobID == "" || payload.Process == "" {
		return fmt.Errorf("%w: provisioning request without job id or process", eventstore.ErrProjectionConstraint)
	}

	if err := p.repo.SetProvisioningStatus(ctx, tx, evt.TenantID, evt.StreamID, "provisioning"); err != nil {
		return err
	}

	data, err := json.Marshal(jobqueue.EnqueuedPayload{
		Process:     payload.Process,
		Subject:     evt.StreamID,
		ExternalRef: payload.ExternalRef,
	})
	if err != nil {
		return fmt.Errorf("encode enqueue payload: %w", err)
	}

	_, err = appender.AppendInTx(ctx, tx, eventstore.AppendParams{
		StreamID:        payload.JobID,
		StreamType:      eventstore.StreamJob,
		ExpectedVersion: 0,
		EventType:       jobqueue.EventEnqueued,
		Data:            data,
		Metadata: eventstore.Metadata{
			CorrelationID: evt.Metadata.CorrelationID,
			CausationID:   evt.ID.String(),
			ActorID:       evt.Metadata.ActorID,
			Source:        "org.projection",
		},
	})
	return err
}

func decode(evt *eventstore.Event, v any) error {
	if err := json.Unmarshal(evt.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", evt.EventType, err)
	}
	return nil
}
