package jobqueue

import "github.com/iota-uz/orgledger/pkg/serrors"

var (
	// ErrNotClaimable is returned when a claim event arrives for a row that
	// is no longer pending. The losing worker's append rolls back and the
	// worker moves on.
	ErrNotClaimable = serrors.NewError(
		"JOBQUEUE_NOT_CLAIMABLE",
		"job is not in pending state",
		"",
	)
	// ErrInvalidTransition is returned for a terminal event on a row that is
	// not processing, or any other out-of-order transition.
	ErrInvalidTransition = serrors.NewError(
		"JOBQUEUE_INVALID_TRANSITION",
		"job status transition is not permitted",
		"",
	)
	ErrInvalidConfig = serrors.NewError(
		"JOBQUEUE_INVALID_CONFIG",
		"invalid job queue configuration",
		"",
	)
)
