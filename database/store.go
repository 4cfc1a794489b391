package database

import (
	"context"
	"errors"

	"github.com/courtside/livevote/models"
)

// ErrUnchanged is returned by a Mutation that decided the poll needs no write.
// MutatePoll passes it through together with the unmodified poll.
var ErrUnchanged = errors.New("poll unchanged")

// Mutation edits a private copy of a poll inside the store's atomic update.
// It must re-check every precondition it relies on, since the copy reflects
// the poll as of the commit attempt and not as of any earlier read.
type Mutation func(poll *models.Poll) error

// Store persists polls and vote records.
//
// MutatePoll is the only way to change an existing poll. It reads the poll,
// applies mutate to a copy and commits the copy only if the stored poll is
// unchanged since the read, inserting vote (when non-nil) in the same
// all-or-nothing unit. Lost races return models.ErrTransactionConflict.
type Store interface {
	CreatePoll(ctx context.Context, poll *models.Poll) error
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
	// GetPollByMatch returns the active poll of the match, or else its most recently created one.
	GetPollByMatch(ctx context.Context, matchID string) (*models.Poll, error)
	GetActivePoll(ctx context.Context, matchID string) (*models.Poll, error)
	MutatePoll(ctx context.Context, pollID string, mutate Mutation, vote *models.VoteRecord) (*models.Poll, error)
	HasVoted(ctx context.Context, userID, matchID string) (bool, error)
	// FindVote returns the user's vote in the match, or models.ErrNotFound.
	FindVote(ctx context.Context, userID, matchID string) (*models.VoteRecord, error)
	ListVotes(ctx context.Context, pollID string) ([]models.VoteRecord, error)
	// WatchActivePoll delivers the match's active poll, or nil when there is
	// none, immediately and after every change until unsubscribe is called.
	WatchActivePoll(ctx context.Context, matchID string, onUpdate func(*models.Poll), onError func(error)) (unsubscribe func(), err error)
}

// MatchFeed is the read-only view of the match schedule.
type MatchFeed interface {
	ListMatches(ctx context.Context, statuses ...models.MatchStatus) ([]models.Match, error)
	WatchMatches(ctx context.Context, onChange func(models.Match), onError func(error)) (unsubscribe func(), err error)
}

type PlayerDirectory interface {
	ListPlayers(ctx context.Context) ([]models.Player, error)
}
