package bot

import "errors"

// Error variables for registration-time and dispatch-time failures.
var (
	// ErrEmptyState is returned when the dispatch loop is started with no
	// registered states. Checked once before the loop, never per message.
	ErrEmptyState = errors.New("no states registered")
	// ErrUnknownState indicates a sender's tracked state, or a fallback
	// target, is not in the state table.
	ErrUnknownState = errors.New("unknown state")
	// ErrInvalidTrigger indicates a malformed trigger at registration time.
	ErrInvalidTrigger = errors.New("invalid trigger")
	// ErrInvalidStateKey rejects the empty state key, which is reserved as
	// the "stay in current state" marker.
	ErrInvalidStateKey = errors.New("invalid state key")
	// ErrQueueClosed is returned by queue operations after shutdown.
	ErrQueueClosed = errors.New("update queue closed")
)
