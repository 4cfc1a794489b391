package database

import (
	"context"
	"errors"

	"github.com/courtside/livevote/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *Mongo) HasVoted(ctx context.Context, userID, matchID string) (bool, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	count, err := m.votes().CountDocuments(ctx,
		bson.D{{Key: "userId", Value: userID}, {Key: "matchId", Value: matchID}},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (m *Mongo) FindVote(ctx context.Context, userID, matchID string) (*models.VoteRecord, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var vote models.VoteRecord
	err := m.votes().FindOne(ctx, bson.D{{Key: "userId", Value: userID}, {Key: "matchId", Value: matchID}}).Decode(&vote)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &vote, nil
}

func (m *Mongo) ListVotes(ctx context.Context, pollID string) ([]models.VoteRecord, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	cursor, err := m.votes().Find(ctx,
		bson.D{{Key: "pollId", Value: pollID}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}

	var votes []models.VoteRecord
	if err := cursor.All(ctx, &votes); err != nil {
		return nil, err
	}

	return votes, nil
}
