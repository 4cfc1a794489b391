package database

import (
	"context"
	"errors"

	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type changeEvent[T any] struct {
	OperationType string `bson:"operationType"`
	FullDocument  *T     `bson:"fullDocument"`
}

func (m *Mongo) WatchActivePoll(ctx context.Context, matchID string, onUpdate func(*models.Poll), onError func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := m.polls().Watch(ctx,
		mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "fullDocument.matchId", Value: matchID}}}}},
		options.ChangeStream().SetFullDocument(options.UpdateLookup),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	initial, err := m.currentActivePoll(ctx, matchID)
	if err != nil {
		cancel()
		stream.Close(context.Background())
		return nil, err
	}

	log := m.log.WithFields(logging.Fields("database")).WithField("matchId", matchID)
	log.Debug("active poll subscription opened")

	go func() {
		defer stream.Close(context.Background())
		onUpdate(initial)

		for stream.Next(ctx) {
			var event changeEvent[models.Poll]
			if err := stream.Decode(&event); err != nil {
				onError(err)
				continue
			}
			if event.FullDocument != nil && event.FullDocument.IsActive {
				onUpdate(event.FullDocument)
				continue
			}
			// A poll of this match stopped being active or an inactive one
			// changed; re-read which poll, if any, is active now.
			active, err := m.currentActivePoll(ctx, matchID)
			if err != nil {
				if ctx.Err() == nil {
					onError(err)
				}
				continue
			}
			onUpdate(active)
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			log.WithField("error", err).Error("active poll subscription failed")
			onError(err)
		}
		log.Debug("active poll subscription closed")
	}()

	return cancel, nil
}

func (m *Mongo) WatchMatches(ctx context.Context, onChange func(models.Match), onError func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := m.matches().Watch(ctx,
		mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "operationType", Value: bson.D{
			{Key: "$in", Value: bson.A{"insert", "update", "replace"}},
		}}}}}},
		options.ChangeStream().SetFullDocument(options.UpdateLookup),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var event changeEvent[models.Match]
			if err := stream.Decode(&event); err != nil {
				onError(err)
				continue
			}
			if event.FullDocument != nil {
				onChange(*event.FullDocument)
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			m.log.WithFields(logging.Fields("database")).WithFields(logrus.Fields{"error": err}).Error("match subscription failed")
			onError(err)
		}
	}()

	return cancel, nil
}

func (m *Mongo) currentActivePoll(ctx context.Context, matchID string) (*models.Poll, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	poll, err := m.findActivePoll(ctx, matchID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return poll, err
}
