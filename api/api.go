// Package api exposes the voting service over HTTP with gin.
package api

import (
	"context"

	"github.com/courtside/livevote/leaderboard"
	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/models"
	"github.com/courtside/livevote/voting"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PollService is the slice of voting.Service the HTTP layer drives.
type PollService interface {
	CreatePoll(ctx context.Context, in voting.CreatePollInput) (*models.Poll, error)
	ActivatePoll(ctx context.Context, pollID string) error
	ClosePoll(ctx context.Context, pollID string) error
	CastVote(ctx context.Context, pollID, matchID, userID, candidateID string) error
	HasVoted(ctx context.Context, userID, matchID string) (bool, error)
	GetPoll(ctx context.Context, pollID string) (*models.Poll, error)
	GetPollByMatch(ctx context.Context, matchID string) (*models.Poll, error)
	ListVotes(ctx context.Context, pollID string) ([]models.VoteRecord, error)
	SubscribeToActivePoll(ctx context.Context, matchID string, onUpdate func(*models.Poll), onError func(error)) (func(), error)
}

var _ PollService = (*voting.Service)(nil)

type Options struct {
	// Auth wraps every /api and /stream handler. Nil leaves them open.
	Auth Wrapper
	// Identity resolves the caller; defaults to CSHResolver.
	Identity    Resolver
	AdminGroups []string
	// LeaderboardSize is the top-K of projected leaderboards.
	LeaderboardSize int
	// Events serves /stream/:topic when set.
	Events gin.HandlerFunc
	Logger *logrus.Logger
}

type Server struct {
	polls PollService
	dir   leaderboard.Directory
	opts  Options
	log   *logrus.Logger
}

func NewServer(polls PollService, dir leaderboard.Directory, opts Options) *Server {
	if opts.Auth == nil {
		opts.Auth = func(h gin.HandlerFunc) gin.HandlerFunc { return h }
	}
	if opts.Identity == nil {
		opts.Identity = CSHResolver
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = leaderboard.DefaultSize
	}
	return &Server{polls: polls, dir: dir, opts: opts, log: logging.Resolve(opts.Logger)}
}

// Register mounts the API routes on r.
func (s *Server) Register(r gin.IRouter) {
	auth := s.opts.Auth

	polls := r.Group("/api/polls")
	polls.POST("", auth(s.admin(s.createPoll)))
	polls.POST("/:id/activate", auth(s.admin(s.activatePoll)))
	polls.POST("/:id/close", auth(s.admin(s.closePoll)))
	polls.POST("/:id/votes", auth(s.castVote))
	polls.GET("/:id/votes", auth(s.admin(s.listVotes)))

	matches := r.Group("/api/matches/:matchId")
	matches.GET("/poll", auth(s.pollByMatch))
	matches.GET("/voted", auth(s.hasVoted))
	matches.GET("/leaderboard", auth(s.leaderboard))
	matches.GET("/leaderboard/stream", auth(s.leaderboardStream))

	if s.opts.Events != nil {
		r.GET("/stream/:topic", auth(s.opts.Events))
	}
}

// Router builds a gin engine with the API routes and gin's recovery middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.Register(r)
	return r
}
