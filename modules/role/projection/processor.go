package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgledger/modules/role/domain/events"
	"github.com/iota-uz/orgledger/modules/role/infrastructure/persistence"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/repo"
)

type Processor struct {
	repo *persistence.RoleRepository
	log  *logrus.Logger
}

func NewProcessor(log *logrus.Logger) *Processor {
	return &Processor{repo: persistence.NewRoleRepository(), log: log}
}

func (p *Processor) StreamType() eventstore.StreamType {
	return eventstore.StreamRole
}

func (p *Processor) Reset(ctx context.Context, tx repo.Tx) error {
	return p.repo.Reset(ctx, tx)
}

func (p *Processor) Handle(ctx context.Context, tx repo.Tx, evt *eventstore.Event, _ eventstore.Appender) error {
	switch evt.EventType {
	case events.RoleCreated:
		var payload events.RoleCreatedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		if payload.Name == "" {
			return fmt.Errorf("%w: role without name", eventstore.ErrProjectionConstraint)
		}
		return p.repo.CreateRole(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.RoleUpdated:
		var payload events.RoleUpdatedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.UpdateRole(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.RoleDeleted:
		return p.repo.DeleteRole(ctx, tx, evt.TenantID, evt.StreamID)

	default:
		return fmt.Errorf("%w: %s", eventstore.ErrUnhandledEventType, evt.EventType)
	}
}

func decode(evt *eventstore.Event, v any) error {
	if err := json.Unmarshal(evt.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", evt.EventType, err)
	}
	return nil
}
