package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *Mongo) CreatePoll(ctx context.Context, poll *models.Poll) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if _, err := m.polls().InsertOne(ctx, poll); err != nil {
		return translatePollWrite(err)
	}

	m.log.WithFields(logging.Fields("database")).WithFields(logrus.Fields{
		"pollId":  poll.ID,
		"matchId": poll.MatchID,
	}).Debug("poll created")
	return nil
}

func (m *Mongo) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	return m.findPoll(ctx, bson.D{{Key: "_id", Value: id}})
}

func (m *Mongo) GetActivePoll(ctx context.Context, matchID string) (*models.Poll, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	return m.findActivePoll(ctx, matchID)
}

func (m *Mongo) GetPollByMatch(ctx context.Context, matchID string) (*models.Poll, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	poll, err := m.findActivePoll(ctx, matchID)
	if !errors.Is(err, models.ErrNotFound) {
		return poll, err
	}

	return m.findPoll(ctx,
		bson.D{{Key: "matchId", Value: matchID}},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
}

func (m *Mongo) MutatePoll(ctx context.Context, pollID string, mutate Mutation, vote *models.VoteRecord) (*models.Poll, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	current, err := m.findPoll(ctx, bson.D{{Key: "_id", Value: pollID}})
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return current, err
	}
	next.Version = current.Version + 1

	if vote == nil {
		if err := m.replacePoll(ctx, current.Version, next); err != nil {
			return nil, err
		}
		return next, nil
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := m.votes().InsertOne(sc, vote); err != nil {
			return nil, translateVoteWrite(err)
		}
		return nil, m.replacePoll(sc, current.Version, next)
	})
	if err != nil {
		m.log.WithFields(logging.Fields("database")).WithFields(logrus.Fields{
			"pollId": pollID,
			"userId": vote.UserID,
			"error":  err,
		}).Debug("vote transaction aborted")
		return nil, err
	}

	return next, nil
}

// replacePoll writes next only if the stored document still carries version expected.
func (m *Mongo) replacePoll(ctx context.Context, expected int64, next *models.Poll) error {
	res, err := m.polls().ReplaceOne(ctx, bson.D{
		{Key: "_id", Value: next.ID},
		{Key: "version", Value: expected},
	}, next)
	if err != nil {
		return translatePollWrite(err)
	}
	if res.MatchedCount == 0 {
		return models.ErrTransactionConflict
	}
	return nil
}

func (m *Mongo) findActivePoll(ctx context.Context, matchID string) (*models.Poll, error) {
	return m.findPoll(ctx, bson.D{
		{Key: "matchId", Value: matchID},
		{Key: "isActive", Value: true},
	})
}

func (m *Mongo) findPoll(ctx context.Context, filter bson.D, opts ...*options.FindOneOptions) (*models.Poll, error) {
	var poll models.Poll
	if err := m.polls().FindOne(ctx, filter, opts...).Decode(&poll); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &poll, nil
}

func translatePollWrite(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", models.ErrDuplicateActivePoll, err)
	}
	return err
}

func translateVoteWrite(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", models.ErrAlreadyVoted, err)
	}
	return err
}
