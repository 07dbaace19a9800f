package application

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgledger/pkg/eventbus"
	"github.com/iota-uz/orgledger/pkg/eventstore"
)

// Application holds the shared runtime of the engine: the connection pool,
// the processor registry, the event store and the post-commit bus. Modules
// attach their processors to it during Load.
type Application struct {
	pool     *pgxpool.Pool
	log      *logrus.Logger
	bus      eventbus.EventBus
	registry *eventstore.Registry
	store    *eventstore.Store
}

// Module is the unit of composition: each domain contributes its processors
// and routing decisions through Register.
type Module interface {
	Name() string
	Register(app *Application) error
}

func New(pool *pgxpool.Pool, log *logrus.Logger) *Application {
	bus := eventbus.NewEventPublisher(log)
	registry := eventstore.NewRegistry(log)
	return &Application{
		pool:     pool,
		log:      log,
		bus:      bus,
		registry: registry,
		store:    eventstore.NewStore(registry, bus, log),
	}
}

func (a *Application) Pool() *pgxpool.Pool            { return a.pool }
func (a *Application) Logger() *logrus.Logger         { return a.log }
func (a *Application) Bus() eventbus.EventBus         { return a.bus }
func (a *Application) Registry() *eventstore.Registry { return a.registry }
func (a *Application) Store() *eventstore.Store       { return a.store }

// Load registers every module and then validates the registry, so a stream
// type left without a routing decision fails startup rather than the first
// append.
func (a *Application) Load(modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(a); err != nil {
			return err
		}
		a.log.WithField("module", m.Name()).Info("module registered")
	}
	return a.registry.Validate()
}
