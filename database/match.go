package database

import (
	"context"

	"github.com/courtside/livevote/models"
	"go.mongodb.org/mongo-driver/bson"
)

func (m *Mongo) ListMatches(ctx context.Context, statuses ...models.MatchStatus) ([]models.Match, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	filter := bson.D{}
	if len(statuses) > 0 {
		filter = bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: statuses}}}}
	}

	cursor, err := m.matches().Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var matches []models.Match
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, err
	}

	return matches, nil
}

func (m *Mongo) ListPlayers(ctx context.Context) ([]models.Player, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	cursor, err := m.players().Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}

	var players []models.Player
	if err := cursor.All(ctx, &players); err != nil {
		return nil, err
	}

	return players, nil
}
