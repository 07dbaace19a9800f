package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/orgledger/pkg/composables"
	"github.com/iota-uz/orgledger/pkg/eventbus"
	"github.com/iota-uz/orgledger/pkg/repo"
)

// Store is the append-only event log plus the synchronous dispatch pipeline.
// Append writes the event row, routes it to the processor for its stream
// type and applies every projection write inside one transaction; partial
// failure rolls the whole append back. There is no other write path into any
// projection.
type Store struct {
	registry *Registry
	bus      eventbus.EventBus
	validate *validator.Validate
	log      *logrus.Logger
	m        *metrics
	tracer   trace.Tracer
}

func NewStore(registry *Registry, bus eventbus.EventBus, log *logrus.Logger) *Store {
	return &Store{
		registry: registry,
		bus:      bus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		m:        getMetrics(),
		tracer:   otel.Tracer("orgledger/eventstore"),
	}
}

type appendedKey struct{}

// Append accepts one event from a producer. The caller supplies the expected
// current stream version (AnyVersion to skip the check); a mismatch returns
// ErrVersionConflict and the caller re-reads and retries.
func (s *Store) Append(ctx context.Context, params AppendParams) (*Event, error) {
	ctx, span := s.tracer.Start(ctx, "eventstore.Append",
		trace.WithAttributes(
			attribute.String("stream.id", params.StreamID),
			attribute.String("stream.type", string(params.StreamType)),
			attribute.String("event.type", params.EventType),
		))
	defer span.End()

	var appended []*Event
	ctx = context.WithValue(ctx, appendedKey{}, &appended)

	var evt *Event
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		evt, err = s.AppendInTx(txCtx, tx, params)
		return err
	})
	if err != nil {
		s.m.appendsTotal.WithLabelValues(string(params.StreamType), resultLabel(err)).Inc()
		return nil, err
	}
	s.m.appendsTotal.WithLabelValues(string(params.StreamType), "success").Inc()

	if s.bus != nil {
		for _, e := range appended {
			s.bus.Publish(e)
		}
	}
	return evt, nil
}

// AppendInTx appends one event inside an existing transaction and dispatches
// it. Processors use it (through the Appender interface) to emit synthetic
// events, such as a job enqueue, atomically with the event they are handling.
func (s *Store) AppendInTx(ctx context.Context, tx repo.Tx, params AppendParams) (*Event, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAppend, err)
	}

	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(stream_version), 0) FROM events WHERE tenant_id = $1 AND stream_id = $2`,
		tenantID, params.StreamID,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("read stream version: %w", err)
	}

	if params.ExpectedVersion != AnyVersion && params.ExpectedVersion != current {
		s.m.conflictsTotal.WithLabelValues(string(params.StreamType)).Inc()
		return nil, fmt.Errorf("%w: stream %s expected %d, current %d",
			ErrVersionConflict, params.StreamID, params.ExpectedVersion, current)
	}

	evt := &Event{
		ID:            uuid.New(),
		TenantID:      tenantID,
		StreamID:      params.StreamID,
		StreamType:    params.StreamType,
		StreamVersion: current + 1,
		EventType:     params.EventType,
		Data:          params.Data,
		Metadata:      params.Metadata,
	}
	if evt.Data == nil {
		evt.Data = json.RawMessage(`{}`)
	}
	if evt.Metadata.Timestamp.IsZero() {
		evt.Metadata.Timestamp = time.Now().UTC()
	}

	metaJSON, err := json.Marshal(evt.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal event metadata: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO events (id, tenant_id, stream_id, stream_type, stream_version, event_type, event_data, event_metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, global_seq`,
		evt.ID, evt.TenantID, evt.StreamID, string(evt.StreamType), evt.StreamVersion,
		evt.EventType, []byte(evt.Data), metaJSON,
	).Scan(&evt.CreatedAt, &evt.GlobalSeq)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost the race on (tenant_id, stream_id, stream_version).
			s.m.conflictsTotal.WithLabelValues(string(params.StreamType)).Inc()
			return nil, fmt.Errorf("%w: stream %s version %d already written",
				ErrVersionConflict, evt.StreamID, evt.StreamVersion)
		}
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if err := s.dispatch(ctx, tx, evt); err != nil {
		return nil, err
	}

	if pending, ok := ctx.Value(appendedKey{}).(*[]*Event); ok {
		*pending = append(*pending, evt)
	}
	return evt, nil
}

// dispatch routes the event to its processor. Unrouted stream types and
// unhandled event types fail the append: the engine never silently drops an
// event. Streams on the ignore list go to an explicit no-op.
func (s *Store) dispatch(ctx context.Context, tx repo.Tx, evt *Event) error {
	return s.dispatchWith(ctx, tx, evt, s)
}

func (s *Store) dispatchWith(ctx context.Context, tx repo.Tx, evt *Event, appender Appender) error {
	ctx, span := s.tracer.Start(ctx, "eventstore.dispatch",
		trace.WithAttributes(attribute.String("event.type", evt.EventType)))
	defer span.End()

	proc, ignored, err := s.registry.Route(evt.StreamType)
	if err != nil {
		return err
	}
	if ignored {
		s.m.ignoredTotal.WithLabelValues(string(evt.StreamType)).Inc()
		return nil
	}

	start := time.Now()
	err = proc.Handle(ctx, tx, evt, appender)
	s.m.dispatchLatency.WithLabelValues(string(evt.StreamType)).Observe(time.Since(start).Seconds())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") && !isEngineError(err) {
			return fmt.Errorf("%w: %s on %s: %v", ErrProjectionConstraint, evt.EventType, evt.StreamID, err)
		}
		return fmt.Errorf("dispatch %s (%s v%d): %w", evt.EventType, evt.StreamID, evt.StreamVersion, err)
	}
	return nil
}

// replayAppender swallows synthetic appends during replay: the synthetic
// events a handler would emit are already in the log and are replayed in
// their own right.
type replayAppender struct{}

func (replayAppender) AppendInTx(ctx context.Context, tx repo.Tx, params AppendParams) (*Event, error) {
	return nil, nil
}

func isEngineError(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrUnroutedStreamType) ||
		errors.Is(err, ErrUnhandledEventType) ||
		errors.Is(err, ErrProjectionConstraint)
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrVersionConflict):
		return "conflict"
	case errors.Is(err, ErrUnroutedStreamType):
		return "unrouted"
	case errors.Is(err, ErrUnhandledEventType):
		return "unhandled"
	case errors.Is(err, ErrProjectionConstraint):
		return "constraint"
	case errors.Is(err, ErrInvalidAppend):
		return "invalid"
	default:
		return "error"
	}
}

const eventColumns = `id, tenant_id, stream_id, stream_type, stream_version, event_type, event_data, event_metadata, created_at, global_seq`

// ListByStream returns every event of one stream in version order.
func (s *Store) ListByStream(ctx context.Context, streamID string) ([]*Event, error) {
	return s.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tenant_id = $1 AND stream_id = $2 ORDER BY stream_version`,
		streamID)
}

// ListByStreamType returns every event of one stream type in global append
// order.
func (s *Store) ListByStreamType(ctx context.Context, st StreamType) ([]*Event, error) {
	return s.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tenant_id = $1 AND stream_type = $2 ORDER BY global_seq`,
		string(st))
}

// ListByCorrelation returns the full cross-stream audit trail of one logical
// business transaction, in creation order.
func (s *Store) ListByCorrelation(ctx context.Context, correlationID string) ([]*Event, error) {
	return s.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tenant_id = $1 AND event_metadata->>'correlation_id' = $2 ORDER BY created_at, global_seq`,
		correlationID)
}

func (s *Store) list(ctx context.Context, query string, arg any) ([]*Event, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID, arg)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		evt      Event
		st       string
		data     []byte
		metaJSON []byte
	)
	if err := row.Scan(
		&evt.ID, &evt.TenantID, &evt.StreamID, &st, &evt.StreamVersion,
		&evt.EventType, &data, &metaJSON, &evt.CreatedAt, &evt.GlobalSeq,
	); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	evt.StreamType = StreamType(st)
	evt.Data = data
	if err := json.Unmarshal(metaJSON, &evt.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal event metadata: %w", err)
	}
	return &evt, nil
}

// Replay rebuilds every projection from the log: all registered processors
// reset their tables, then every event is re-dispatched in global order.
// Runs in a single transaction so a half-rebuilt read model is never visible.
func (s *Store) Replay(ctx context.Context) (int, error) {
	var replayed int
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}

		for _, proc := range s.registry.Processors() {
			if err := proc.Reset(txCtx, tx); err != nil {
				return fmt.Errorf("reset %s projections: %w", proc.StreamType(), err)
			}
		}

		rows, err := tx.Query(txCtx, `SELECT `+eventColumns+` FROM events ORDER BY global_seq`)
		if err != nil {
			return fmt.Errorf("replay select: %w", err)
		}
		events := make([]*Event, 0, 1024)
		for rows.Next() {
			evt, err := scanEvent(rows)
			if err != nil {
				rows.Close()
				return err
			}
			events = append(events, evt)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, evt := range events {
			if err := s.dispatchWith(txCtx, tx, evt, replayAppender{}); err != nil {
				return err
			}
		}
		replayed = len(events)
		s.log.WithField("events", replayed).Info("eventstore: replay complete")
		return nil
	})
	return replayed, err
}
