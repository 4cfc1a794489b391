package models

import "errors"

var (
	ErrAlreadyVoted        = errors.New("user has already voted in this match")
	ErrPollNotActive       = errors.New("poll is not active")
	ErrPollMismatch        = errors.New("poll is not the active poll for this match")
	ErrInvalidCandidate    = errors.New("candidate is not an option in this poll")
	ErrDuplicateActivePoll = errors.New("an active poll already exists for this match")
	ErrNotFound            = errors.New("poll not found")
	ErrPollClosed          = errors.New("poll is closed")
	ErrInvalidPoll         = errors.New("invalid poll input")
	ErrInvalidVote         = errors.New("invalid vote input")

	// ErrTransactionConflict is returned by a store when the poll changed
	// between read and commit. Callers retry it.
	ErrTransactionConflict = errors.New("poll was modified concurrently")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// IsValidation reports whether err is a caller-facing validation failure that must not be retried.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrAlreadyVoted,
		ErrPollNotActive,
		ErrPollMismatch,
		ErrInvalidCandidate,
		ErrDuplicateActivePoll,
		ErrNotFound,
		ErrPollClosed,
		ErrInvalidPoll,
		ErrInvalidVote,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
