package eventstore

import "github.com/iota-uz/orgledger/pkg/serrors"

// All four failure classes abort the whole append transaction. None are
// recoverable inside the engine; VersionConflict is the only one the caller
// is expected to retry.
var (
	ErrVersionConflict = serrors.NewError(
		"EVENTSTORE_VERSION_CONFLICT",
		"expected stream version does not match current version",
		"",
	)
	ErrUnroutedStreamType = serrors.NewError(
		"EVENTSTORE_UNROUTED_STREAM_TYPE",
		"no processor registered for stream type",
		"",
	)
	ErrUnhandledEventType = serrors.NewError(
		"EVENTSTORE_UNHANDLED_EVENT_TYPE",
		"processor does not recognize event type",
		"",
	)
	ErrProjectionConstraint = serrors.NewError(
		"EVENTSTORE_PROJECTION_CONSTRAINT",
		"event payload violates a projection invariant",
		"",
	)
	ErrInvalidAppend = serrors.NewError(
		"EVENTSTORE_INVALID_APPEND",
		"invalid append envelope",
		"",
	)
	ErrDuplicateProcessor = serrors.NewError(
		"EVENTSTORE_DUPLICATE_PROCESSOR",
		"stream type already has a registered processor",
		"",
	)
	ErrUnroutedDeclaredStreamType = serrors.NewError(
		"EVENTSTORE_UNDECIDED_STREAM_TYPE",
		"declared stream type is neither routed nor explicitly ignored",
		"",
	)
)
