package party

import "errors"

// Sentinel errors for the session coordinator. Authorization and admission
// failures are distinct so callers can surface specific messages; they are
// never retried.
var (
	// ErrNoParty is returned when an operation targets a party that is not
	// live on this instance.
	ErrNoParty = errors.New("no active party")

	// ErrPartyNotFound is the join-by-id/code "not found" signal. It is
	// deliberately distinct from ErrFriendsOnly.
	ErrPartyNotFound = errors.New("party not found")

	// ErrFriendsOnly is emitted when friends-only admission denies a
	// non-follower. Never folded into ErrPartyNotFound.
	ErrFriendsOnly = errors.New("party is friends-only")

	// ErrBanned is emitted when a banned user attempts to join.
	ErrBanned = errors.New("user is banned from this party")

	// ErrNotHost guards host-only moderation actions.
	ErrNotHost = errors.New("only the host may do this")

	// ErrNotModerator guards host-or-co-host actions.
	ErrNotModerator = errors.New("only the host or a co-host may do this")

	// ErrQueueDenied is the "queue permission denied" signal raised when
	// WhoCanAddSongs rejects a caller.
	ErrQueueDenied = errors.New("not allowed to modify the queue")

	// ErrTimeout is raised by the timeout race helper when the operation
	// side loses.
	ErrTimeout = errors.New("operation timed out")

	// ErrPartyEnded is returned for operations against an ended party.
	ErrPartyEnded = errors.New("party has ended")
)
