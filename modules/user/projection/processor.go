package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgledger/modules/user/domain/events"
	"github.com/iota-uz/orgledger/modules/user/infrastructure/persistence"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/repo"
)

type Processor struct {
	repo *persistence.UserRepository
	log  *logrus.Logger
}

func NewProcessor(log *logrus.Logger) *Processor {
	return &Processor{repo: persistence.NewUserRepository(), log: log}
}

func (p *Processor) StreamType() eventstore.StreamType {
	return eventstore.StreamUser
}

func (p *Processor) Reset(ctx context.Context, tx repo.Tx) error {
	return p.repo.Reset(ctx, tx)
}

func (p *Processor) Handle(ctx context.Context, tx repo.Tx, evt *eventstore.Event, _ eventstore.Appender) error {
	switch evt.EventType {
	case events.UserCreated:
		var payload events.UserCreatedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.CreateUser(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.UserUpdated:
		var payload events.UserUpdatedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.UpdateUser(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.UserDeactivated:
		return p.repo.DeactivateUser(ctx, tx, evt.TenantID, evt.StreamID)

	case events.RoleAssigned:
		var payload events.RoleAssignedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		if payload.RoleID == "" {
			return fmt.Errorf("%w: role assignment without role id", eventstore.ErrProjectionConstraint)
		}
		return p.repo.AssignRole(ctx, tx, evt.TenantID, evt.StreamID, payload.RoleID, payload.GrantedBy)

	case events.RoleRevoked:
		var payload events.RoleRevokedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.RevokeRole(ctx, tx, evt.TenantID, evt.StreamID, payload.RoleID)

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
