package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgledger/modules/invitation/domain/events"
	"github.com/iota-uz/orgledger/modules/invitation/infrastructure/persistence"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/repo"
)

type Processor struct {
	repo *persistence.InvitationRepository
	log  *logrus.Logger
}

func NewProcessor(log *logrus.Logger) *Processor {
	return &Processor{repo: persistence.NewInvitationRepository(), log: log}
}

func (p *Processor) StreamType() eventstore.StreamType {
	return eventstore.StreamInvitation
}

func (p *Processor) Reset(ctx context.Context, tx repo.Tx) error {
	return p.repo.Reset(ctx, tx)
}

func (p *Processor) Handle(ctx context.Context, tx repo.Tx, evt *eventstore.Event, _ eventstore.Appender) error {
	switch evt.EventType {
	case events.UserInvited:
		var payload events.UserInvitedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		if payload.Email == "" || payload.RoleID == "" {
			return fmt.Errorf("%w: invitation without email or role", eventstore.ErrProjectionConstraint)
		}
		return p.repo.CreateInvitation(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.InvitationResent:
		var payload events.InvitationResentV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		return p.repo.Resend(ctx, tx, evt.TenantID, evt.StreamID, payload)

	case events.InvitationAccepted:
		var payload events.InvitationAcceptedV1
		if err := decode(evt, &payload); err != nil {
			return err
		}
		if payload.UserID == "" {
			return fmt.Errorf("%w: acceptance without user id", eventstore.ErrProjectionConstraint)
		}
		return p.repo.Accept(ctx, tx, evt.TenantID, evt.StreamID, payload.UserID)

	case events.InvitationRevoked:
		return p.repo.Revoke(ctx, tx, evt.TenantID, evt.StreamID)

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
