package voting

import (
	"context"
	"errors"

	"github.com/courtside/livevote/database"
	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/models"
)

// Service is the poll API exposed to the HTTP layer and the match bridge.
type Service struct {
	*Lifecycle
	*Caster

	store database.Store
	opts  Options
}

func NewService(store database.Store, opts Options) *Service {
	opts = opts.resolve()
	return &Service{
		Lifecycle: NewLifecycle(store, opts),
		Caster:    NewCaster(store, opts),
		store:     store,
		opts:      opts,
	}
}

func (s *Service) ActivatePoll(ctx context.Context, pollID string) error {
	_, err := s.Activate(ctx, pollID, TriggerAdmin)
	return err
}

func (s *Service) ClosePoll(ctx context.Context, pollID string) error {
	_, err := s.Close(ctx, pollID, TriggerAdmin)
	return err
}

func (s *Service) HasVoted(ctx context.Context, userID, matchID string) (bool, error) {
	log := s.opts.Logger.WithFields(logging.Fields("voting"))
	return withRetry(ctx, s.opts.Retry, log, func() (bool, error) {
		return s.store.HasVoted(ctx, userID, matchID)
	})
}

func (s *Service) GetPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	log := s.opts.Logger.WithFields(logging.Fields("voting"))
	return withRetry(ctx, s.opts.Retry, log, func() (*models.Poll, error) {
		return s.store.GetPoll(ctx, pollID)
	})
}

// GetPollByMatch returns the match's active poll, else its latest poll, else nil.
func (s *Service) GetPollByMatch(ctx context.Context, matchID string) (*models.Poll, error) {
	log := s.opts.Logger.WithFields(logging.Fields("voting"))
	poll, err := withRetry(ctx, s.opts.Retry, log, func() (*models.Poll, error) {
		return s.store.GetPollByMatch(ctx, matchID)
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return poll, err
}

func (s *Service) ListVotes(ctx context.Context, pollID string) ([]models.VoteRecord, error) {
	log := s.opts.Logger.WithFields(logging.Fields("voting"))
	if _, err := s.GetPoll(ctx, pollID); err != nil {
		return nil, err
	}
	return withRetry(ctx, s.opts.Retry, log, func() ([]models.VoteRecord, error) {
		return s.store.ListVotes(ctx, pollID)
	})
}

// SubscribeToActivePoll streams the match's active poll (nil when there is
// none) to onUpdate until the returned unsubscribe is called.
func (s *Service) SubscribeToActivePoll(ctx context.Context, matchID string, onUpdate func(*models.Poll), onError func(error)) (func(), error) {
	log := s.opts.Logger.WithFields(logging.Fields("voting")).WithField("matchId", matchID)
	if onError == nil {
		onError = func(err error) {
			log.WithField("error", err).Warn("active poll subscription error")
		}
	}
	return withRetry(ctx, s.opts.Retry, log, func() (func(), error) {
		return s.store.WatchActivePoll(ctx, matchID, onUpdate, onError)
	})
}
