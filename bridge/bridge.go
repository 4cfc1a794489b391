// Package bridge drives poll transitions from match status: a match going
// live opens its poll, a completed match closes it.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courtside/livevote/database"
	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/models"
	"github.com/courtside/livevote/voting"
	"github.com/sirupsen/logrus"
)

// PollReader finds the poll attached to a match; nil means the match has none.
type PollReader interface {
	GetPollByMatch(ctx context.Context, matchID string) (*models.Poll, error)
}

type Transitioner interface {
	Activate(ctx context.Context, pollID string, trigger voting.Trigger) (bool, error)
	Close(ctx context.Context, pollID string, trigger voting.Trigger) (bool, error)
}

type Bridge struct {
	feed  database.MatchFeed
	polls PollReader
	life  Transitioner
	log   *logrus.Logger
}

func New(feed database.MatchFeed, polls PollReader, life Transitioner, logger *logrus.Logger) *Bridge {
	return &Bridge{
		feed:  feed,
		polls: polls,
		life:  life,
		log:   logging.Resolve(logger),
	}
}

// HandleChange applies one match status observation. Repeated observations
// of the same status are no-ops.
func (b *Bridge) HandleChange(ctx context.Context, match models.Match) error {
	if match.Status != models.MatchLive && match.Status != models.MatchCompleted {
		return nil
	}

	log := b.log.WithFields(logging.Fields("bridge")).WithFields(logrus.Fields{"matchId": match.ID, "status": match.Status})

	poll, err := b.polls.GetPollByMatch(ctx, match.ID)
	if err != nil {
		return fmt.Errorf("match %s: load poll: %w", match.ID, err)
	}
	if poll == nil {
		log.Debug("no poll for match")
		return nil
	}
	log = log.WithField("pollId", poll.ID)

	switch {
	case match.Status == models.MatchLive && poll.State() == models.PollUpcoming:
		changed, err := b.life.Activate(ctx, poll.ID, voting.TriggerMatch)
		if err != nil {
			return fmt.Errorf("match %s: activate poll %s: %w", match.ID, poll.ID, err)
		}
		if changed {
			log.Info("voting opened for live match")
		}
	case match.Status == models.MatchCompleted && poll.State() == models.PollActive:
		changed, err := b.life.Close(ctx, poll.ID, voting.TriggerMatch)
		if err != nil {
			return fmt.Errorf("match %s: close poll %s: %w", match.ID, poll.ID, err)
		}
		if changed {
			log.Info("voting closed for completed match")
		}
	}
	return nil
}

// Scan handles every live or completed match independently. A failing match
// is logged and skipped; the returned error joins all per-match failures.
func (b *Bridge) Scan(ctx context.Context) error {
	log := b.log.WithFields(logging.Fields("bridge"))

	matches, err := b.feed.ListMatches(ctx, models.MatchLive, models.MatchCompleted)
	if err != nil {
		log.WithField("error", err).Error("error listing matches")
		return err
	}

	var errs []error
	for _, match := range matches {
		if err := b.HandleChange(ctx, match); err != nil {
			log.WithFields(logrus.Fields{"matchId": match.ID, "error": err}).Error("match transition failed")
			errs = append(errs, err)
		}
	}

	log.WithFields(logrus.Fields{"matches": len(matches), "failed": len(errs)}).Debug("scan finished")
	return errors.Join(errs...)
}

// Run scans once immediately and then on every tick of interval until ctx is done.
func (b *Bridge) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.log.WithFields(logging.Fields("bridge")).WithField("interval", interval).Info("match scanner started")
	for {
		_ = b.Scan(ctx)

		select {
		case <-ctx.Done():
			b.log.WithFields(logging.Fields("bridge")).Info("match scanner stopped")
			return
		case <-ticker.C:
		}
	}
}

// Watch feeds pushed match changes to HandleChange until unsubscribe is called.
func (b *Bridge) Watch(ctx context.Context) (func(), error) {
	log := b.log.WithFields(logging.Fields("bridge"))

	return b.feed.WatchMatches(ctx, func(match models.Match) {
		if err := b.HandleChange(ctx, match); err != nil {
			log.WithFields(logrus.Fields{"matchId": match.ID, "error": err}).Error("match transition failed")
		}
	}, func(err error) {
		log.WithField("error", err).Warn("match feed error")
	})
}
