package database

import (
	"context"
	"time"

	"github.com/courtside/livevote/logging"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	pollsCollection   = "polls"
	votesCollection   = "votes"
	matchesCollection = "matches"
	playersCollection = "players"

	activePollIndex = "active_poll_per_match"
	userMatchIndex  = "vote_per_user_match"
)

// Mongo is the MongoDB-backed Store, MatchFeed and PlayerDirectory.
// Vote casting uses multi-document transactions and the feeds use change
// streams, so the server must run as a replica set.
type Mongo struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	log     *logrus.Logger
}

var (
	_ Store           = (*Mongo)(nil)
	_ MatchFeed       = (*Mongo)(nil)
	_ PlayerDirectory = (*Mongo)(nil)
)

func Connect(ctx context.Context, uri, database string, timeout time.Duration, logger *logrus.Logger) (*Mongo, error) {
	log := logging.Resolve(logger)
	log.WithFields(logging.Fields("database")).Info("beginning database connection")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.WithFields(logging.Fields("database")).WithError(err).Error("error connecting to database")
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.WithFields(logging.Fields("database")).WithError(err).Error("error pinging database")
		return nil, err
	}

	log.WithFields(logging.Fields("database")).WithField("database", database).Info("connected to mongodb")

	return &Mongo{
		client:  client,
		db:      client.Database(database),
		timeout: timeout,
		log:     log,
	}, nil
}

func (m *Mongo) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		m.log.WithFields(logging.Fields("database")).WithError(err).Error("error disconnecting from database")
		return err
	}

	m.log.WithFields(logging.Fields("database")).Info("disconnected from database")
	return nil
}

// EnsureIndexes creates the indexes the store's invariants rely on: one
// active poll per match and one vote per user per match.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.polls().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "matchId", Value: 1}},
			Options: options.Index().
				SetName(activePollIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "isActive", Value: true}}),
		},
		{
			Keys: bson.D{{Key: "matchId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	})
	if err != nil {
		m.log.WithFields(logging.Fields("database")).WithError(err).Error("error creating poll indexes")
		return err
	}

	_, err = m.votes().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "matchId", Value: 1}},
			Options: options.Index().SetName(userMatchIndex).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "pollId", Value: 1}},
		},
	})
	if err != nil {
		m.log.WithFields(logging.Fields("database")).WithError(err).Error("error creating vote indexes")
		return err
	}

	m.log.WithFields(logging.Fields("database")).Info("indexes ensured")
	return nil
}

func (m *Mongo) polls() *mongo.Collection   { return m.db.Collection(pollsCollection) }
func (m *Mongo) votes() *mongo.Collection   { return m.db.Collection(votesCollection) }
func (m *Mongo) matches() *mongo.Collection { return m.db.Collection(matchesCollection) }
func (m *Mongo) players() *mongo.Collection { return m.db.Collection(playersCollection) }

func (m *Mongo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}
