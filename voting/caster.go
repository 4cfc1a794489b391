package voting

import (
	"context"
	"strings"

	"github.com/courtside/livevote/database"
	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/models"
	"github.com/sirupsen/logrus"
)

// Caster records votes. At most one vote is ever accepted per user per match.
type Caster struct {
	store database.Store
	opts  Options
}

func NewCaster(store database.Store, opts Options) *Caster {
	return &Caster{store: store, opts: opts.resolve()}
}

// CastVote records userID's vote for candidateID in pollID.
//
// The already-voted, poll and candidate checks run first to fail fast, then
// run again inside the store's atomic update, where the tally increment and
// the vote record insert commit together or not at all.
func (c *Caster) CastVote(ctx context.Context, pollID, matchID, userID, candidateID string) error {
	log := c.opts.Logger.WithFields(logging.Fields("voting")).WithFields(logrus.Fields{
		"pollId":      pollID,
		"matchId":     matchID,
		"userId":      userID,
		"candidateId": candidateID,
	})

	poll, err := c.cast(ctx, log, pollID, matchID, userID, candidateID)
	if err != nil {
		if models.IsValidation(err) {
			log.WithField("error", err).Info("vote rejected")
		} else {
			log.WithField("error", err).Error("vote failed")
		}
		c.opts.Notifier.Notify(Event{
			Type:        VoteRejected,
			PollID:      pollID,
			MatchID:     matchID,
			UserID:      userID,
			CandidateID: candidateID,
			Reason:      err.Error(),
			At:          c.opts.Clock(),
		})
		return err
	}

	log.WithField("totalVotes", poll.TotalVotes).Info("vote cast")
	c.opts.Notifier.Notify(Event{
		Type:        VoteCast,
		PollID:      poll.ID,
		MatchID:     poll.MatchID,
		UserID:      userID,
		CandidateID: candidateID,
		TotalVotes:  poll.TotalVotes,
		At:          c.opts.Clock(),
	})
	return nil
}

func (c *Caster) cast(ctx context.Context, log *logrus.Entry, pollID, matchID, userID, candidateID string) (*models.Poll, error) {
	for _, v := range []string{pollID, matchID, userID, candidateID} {
		if strings.TrimSpace(v) == "" {
			return nil, models.ErrInvalidVote
		}
	}

	voted, err := withRetry(ctx, c.opts.Retry, log, func() (bool, error) {
		return c.store.HasVoted(ctx, userID, matchID)
	})
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, models.ErrAlreadyVoted
	}

	poll, err := withRetry(ctx, c.opts.Retry, log, func() (*models.Poll, error) {
		return c.store.GetPoll(ctx, pollID)
	})
	if err != nil {
		return nil, err
	}
	if err := checkVotable(poll, matchID, candidateID); err != nil {
		return nil, err
	}

	vote := &models.VoteRecord{
		ID:          c.opts.NewID(),
		PollID:      pollID,
		MatchID:     matchID,
		UserID:      userID,
		CandidateID: candidateID,
		CreatedAt:   c.opts.Clock(),
	}
	attempts := 0
	return withRetry(ctx, c.opts.Retry, log, func() (*models.Poll, error) {
		attempts++
		poll, err := c.store.MutatePoll(ctx, pollID, func(p *models.Poll) error {
			if err := checkVotable(p, matchID, candidateID); err != nil {
				return err
			}
			return p.AddVote(candidateID)
		}, vote)
		if err != nil && attempts > 1 && models.IsValidation(err) && c.committed(ctx, vote) {
			// An earlier attempt committed but its result never reached us.
			log.Warn("vote committed by an earlier attempt")
			return c.store.GetPoll(ctx, pollID)
		}
		return poll, err
	})
}

// committed reports whether vote itself, not just some vote by the same
// user, is stored.
func (c *Caster) committed(ctx context.Context, vote *models.VoteRecord) bool {
	stored, err := c.store.FindVote(ctx, vote.UserID, vote.MatchID)
	return err == nil && stored.ID == vote.ID
}

// checkVotable reports why p cannot take a vote for candidateID in matchID.
// An active poll belonging to the match is that match's only active poll.
func checkVotable(p *models.Poll, matchID, candidateID string) error {
	if p.MatchID != matchID {
		return models.ErrPollMismatch
	}
	if !p.IsActive {
		return models.ErrPollNotActive
	}
	if !p.HasCandidate(candidateID) {
		return models.ErrInvalidCandidate
	}
	return nil
}
