package voting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/courtside/livevote/database"
	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/models"
	"github.com/sirupsen/logrus"
)

type CreatePollInput struct {
	MatchID      string
	Title        string
	Description  string
	CandidateIDs []string
	CreatedBy    string
	StartActive  bool
}

func (in CreatePollInput) validate() error {
	if strings.TrimSpace(in.MatchID) == "" {
		return fmt.Errorf("%w: match id is required", models.ErrInvalidPoll)
	}
	if len(in.CandidateIDs) == 0 {
		return fmt.Errorf("%w: at least one candidate is required", models.ErrInvalidPoll)
	}
	seen := make(map[string]struct{}, len(in.CandidateIDs))
	for _, id := range in.CandidateIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: blank candidate id", models.ErrInvalidPoll)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate candidate %q", models.ErrInvalidPoll, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Lifecycle owns the poll state machine: upcoming → active → closed.
type Lifecycle struct {
	store database.Store
	opts  Options
}

func NewLifecycle(store database.Store, opts Options) *Lifecycle {
	return &Lifecycle{store: store, opts: opts.resolve()}
}

// CreatePoll stores a new poll whose option set is the candidate list, all at zero votes.
func (l *Lifecycle) CreatePoll(ctx context.Context, in CreatePollInput) (*models.Poll, error) {
	log := l.opts.Logger.WithFields(logging.Fields("voting")).WithField("matchId", in.MatchID)

	if err := in.validate(); err != nil {
		log.WithField("error", err).Warn("rejected poll creation")
		return nil, err
	}

	_, err := withRetry(ctx, l.opts.Retry, log, func() (*models.Poll, error) {
		return l.store.GetActivePoll(ctx, in.MatchID)
	})
	switch {
	case err == nil:
		log.Warn("match already has an active poll")
		return nil, models.ErrDuplicateActivePoll
	case !errors.Is(err, models.ErrNotFound):
		log.WithField("error", err).Error("error checking for active poll")
		return nil, err
	}

	now := l.opts.Clock()
	poll := &models.Poll{
		ID:          l.opts.NewID(),
		MatchID:     in.MatchID,
		Title:       in.Title,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		Options:     make([]models.Option, 0, len(in.CandidateIDs)),
	}
	for _, id := range in.CandidateIDs {
		poll.Options = append(poll.Options, models.Option{CandidateID: id})
	}
	if in.StartActive {
		poll.IsActive = true
		poll.StartedAt = &now
	}

	if _, err := withRetry(ctx, l.opts.Retry, log, func() (struct{}, error) {
		return struct{}{}, l.store.CreatePoll(ctx, poll)
	}); err != nil {
		log.WithField("error", err).Error("error creating poll")
		return nil, err
	}

	log.WithFields(logrus.Fields{"pollId": poll.ID, "active": poll.IsActive}).Info("poll created")
	if poll.IsActive {
		l.emit(poll, VotingOpened, TriggerAdmin)
	}
	return poll, nil
}

// Activate opens voting on an upcoming poll. It reports changed=false
// without error when the poll is already active.
func (l *Lifecycle) Activate(ctx context.Context, pollID string, trigger Trigger) (bool, error) {
	log := l.opts.Logger.WithFields(logging.Fields("voting")).WithFields(logrus.Fields{"pollId": pollID, "trigger": trigger})

	poll, err := withRetry(ctx, l.opts.Retry, log, func() (*models.Poll, error) {
		return l.store.MutatePoll(ctx, pollID, func(p *models.Poll) error {
			switch p.State() {
			case models.PollActive:
				return database.ErrUnchanged
			case models.PollClosed:
				return models.ErrPollClosed
			}
			now := l.opts.Clock()
			p.IsActive = true
			p.StartedAt = &now
			return nil
		}, nil)
	})
	if errors.Is(err, database.ErrUnchanged) {
		log.Debug("poll already active")
		return false, nil
	}
	if err != nil {
		log.WithField("error", err).Warn("poll activation failed")
		return false, err
	}

	log.WithField("matchId", poll.MatchID).Info("poll activated")
	l.emit(poll, VotingOpened, trigger)
	return true, nil
}

// Close ends voting on an active poll and freezes its results from the
// tallies current at commit time. It reports changed=false without error
// when the poll is already closed.
func (l *Lifecycle) Close(ctx context.Context, pollID string, trigger Trigger) (bool, error) {
	log := l.opts.Logger.WithFields(logging.Fields("voting")).WithFields(logrus.Fields{"pollId": pollID, "trigger": trigger})

	poll, err := withRetry(ctx, l.opts.Retry, log, func() (*models.Poll, error) {
		return l.store.MutatePoll(ctx, pollID, func(p *models.Poll) error {
			switch p.State() {
			case models.PollClosed:
				return database.ErrUnchanged
			case models.PollUpcoming:
				return models.ErrPollNotActive
			}
			now := l.opts.Clock()
			p.IsActive = false
			p.ClosedAt = &now
			p.Results = p.Freeze(now)
			return nil
		}, nil)
	})
	if errors.Is(err, database.ErrUnchanged) {
		log.Debug("poll already closed")
		return false, nil
	}
	if err != nil {
		log.WithField("error", err).Warn("poll close failed")
		return false, err
	}

	log.WithFields(logrus.Fields{"matchId": poll.MatchID, "totalVotes": poll.TotalVotes}).Info("poll closed")
	l.emit(poll, VotingClosed, trigger)
	return true, nil
}

func (l *Lifecycle) emit(poll *models.Poll, typ EventType, trigger Trigger) {
	l.opts.Notifier.Notify(Event{
		Type:       typ,
		PollID:     poll.ID,
		MatchID:    poll.MatchID,
		TotalVotes: poll.TotalVotes,
		Trigger:    trigger,
		At:         l.opts.Clock(),
	})
}
