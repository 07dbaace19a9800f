package modules

import (
	"github.com/iota-uz/orgledger/modules/invitation"
	"github.com/iota-uz/orgledger/modules/org"
	"github.com/iota-uz/orgledger/modules/role"
	"github.com/iota-uz/orgledger/modules/user"
	"github.com/iota-uz/orgledger/pkg/application"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/jobqueue"
)

// BuiltIn returns every module of the engine in registration order. The
// system module comes last so domain processors exist before the queue that
// serves them.
func BuiltIn() []application.Module {
	return []application.Module{
		org.NewModule(),
		user.NewModule(),
		role.NewModule(),
		invitation.NewModule(),
		&systemModule{},
	}
}

// systemModule owns the stream types that are not a domain: the job queue
// projector and the intentionally projection-less audit and telemetry
// streams.
type systemModule struct{}

func (m *systemModule) Name() string {
	return "system"
}

func (m *systemModule) Register(app *application.Application) error {
	if err := app.Registry().Register(jobqueue.NewProcessor(app.Logger())); err != nil {
		return err
	}
	if err := app.Registry().Ignore(eventstore.StreamAudit); err != nil {
		return err
	}
	return app.Registry().Ignore(eventstore.StreamTelemetry)
}
