package eventstore

import (
	"context"
	"fmt"

	"github.com/iota-uz/orgledger/pkg/repo"
	"github.com/sirupsen/logrus"
)

// Appender is the slice of the store processors may use to emit synthetic
// events (e.g. a job enqueue) inside the transaction of the event they are
// currently handling. During replay the returned event is nil: the synthetic
// event already exists in the log.
type Appender interface {
	AppendInTx(ctx context.Context, tx repo.Tx, params AppendParams) (*Event, error)
}

// Processor applies one event to one domain's projections. Handle must be
// idempotent (upsert on natural key, set-to merges) and must return
// ErrUnhandledEventType for event types it does not recognize — silence is
// indistinguishable from a missing handler.
type Processor interface {
	StreamType() StreamType
	Handle(ctx context.Context, tx repo.Tx, evt *Event, appender Appender) error
	// Reset truncates the processor's projection tables so the log can be
	// replayed from the beginning.
	Reset(ctx context.Context, tx repo.Tx) error
}

// Registry is the static dispatch table from stream type to processor. It is
// built once at startup and validated for exhaustiveness before use.
type Registry struct {
	processors map[StreamType]Processor
	ignored    map[StreamType]struct{}
	log        *logrus.Logger
}

func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{
		processors: map[StreamType]Processor{},
		ignored:    map[StreamType]struct{}{},
		log:        log,
	}
}

func (r *Registry) Register(p Processor) error {
	st := p.StreamType()
	if _, exists := r.processors[st]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProcessor, st)
	}
	if _, exists := r.ignored[st]; exists {
		return fmt.Errorf("%w: %s is marked ignored", ErrDuplicateProcessor, st)
	}
	r.processors[st] = p
	return nil
}

// Ignore declares a stream type as intentionally projection-less.
func (r *Registry) Ignore(st StreamType) error {
	if _, exists := r.processors[st]; exists {
		return fmt.Errorf("%w: %s already has a processor", ErrDuplicateProcessor, st)
	}
	r.ignored[st] = struct{}{}
	return nil
}

// Validate fails unless every declared stream type has a routing decision.
// Adding a StreamType constant without registering or ignoring it is caught
// here, at startup, not at the first event.
func (r *Registry) Validate() error {
	for _, st := range AllStreamTypes() {
		_, routed := r.processors[st]
		_, ignored := r.ignored[st]
		if !routed && !ignored {
			return fmt.Errorf("%w: %s", ErrUnroutedDeclaredStreamType, st)
		}
	}
	return nil
}

// Route resolves the processor for a stream type. ignored=true means the
// event is intentionally dropped from projections; an error means the event
// must not be accepted at all.
func (r *Registry) Route(st StreamType) (proc Processor, ignored bool, err error) {
	if p, ok := r.processors[st]; ok {
		return p, false, nil
	}
	if _, ok := r.ignored[st]; ok {
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("%w: %q", ErrUnroutedStreamType, st)
}

// Processors returns the registered processors, for replay resets.
func (r *Registry) Processors() []Processor {
	out := make([]Processor, 0, len(r.processors))
	for _, st := range AllStreamTypes() {
		if p, ok := r.processors[st]; ok {
			out = append(out, p)
		}
	}
	return out
}
