/*
Package voting implements the live MVP poll core: the poll lifecycle, exactly
once vote casting and the Service facade the HTTP layer and the match bridge
use.

Every change to a stored poll goes through database.Store.MutatePoll. The
mutation functions here re-check their preconditions against the poll the
store hands them, so a check made before the call is only advisory:

	svc := voting.NewService(store, voting.Options{Notifier: broker})
	poll, err := svc.CreatePoll(ctx, voting.CreatePollInput{
		MatchID:      "match-42",
		Title:        "Player of the match",
		CandidateIDs: []string{"p1", "p2", "p3"},
		CreatedBy:    "admin",
	})
	err = svc.CastVote(ctx, poll.ID, "match-42", "fan-7", "p2")

Transient store failures and optimistic-concurrency conflicts are retried with
bounded exponential backoff, then reported as models.ErrStoreUnavailable.
Validation failures (models.ErrAlreadyVoted and friends) are returned as is.
*/
package voting
