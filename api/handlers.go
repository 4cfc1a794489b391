package api

import (
	"context"
	"io"
	"net/http"

	"github.com/courtside/livevote/leaderboard"
	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/models"
	"github.com/courtside/livevote/voting"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const identityKey = "livevote.identity"

type createPollRequest struct {
	MatchID      string   `json:"matchId" binding:"required"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	CandidateIDs []string `json:"candidateIds" binding:"required,min=1"`
	StartActive  bool     `json:"startActive"`
}

type castVoteRequest struct {
	MatchID     string `json:"matchId" binding:"required"`
	CandidateID string `json:"candidateId" binding:"required"`
}

type leaderboardResponse struct {
	MatchID string              `json:"matchId"`
	PollID  string              `json:"pollId,omitempty"`
	Entries []leaderboard.Entry `json:"entries"`
}

func (s *Server) identity(c *gin.Context) (Identity, bool) {
	if id, ok := c.Get(identityKey); ok {
		return id.(Identity), true
	}
	id, ok := s.opts.Identity(c)
	if !ok || id.Username == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "code": "unauthenticated"})
		return Identity{}, false
	}
	c.Set(identityKey, id)
	return id, true
}

func (s *Server) admin(next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.identity(c)
		if !ok {
			return
		}
		if !id.InAny(s.opts.AdminGroups) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required", "code": "forbidden"})
			return
		}
		next(c)
	}
}

func (s *Server) createPoll(c *gin.Context) {
	id, _ := s.identity(c)

	var req createPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_poll"})
		return
	}

	poll, err := s.polls.CreatePoll(c.Request.Context(), voting.CreatePollInput{
		MatchID:      req.MatchID,
		Title:        req.Title,
		Description:  req.Description,
		CandidateIDs: req.CandidateIDs,
		CreatedBy:    id.Username,
		StartActive:  req.StartActive,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, poll)
}

func (s *Server) activatePoll(c *gin.Context) {
	if err := s.polls.ActivatePoll(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	s.respondPoll(c, c.Param("id"))
}

func (s *Server) closePoll(c *gin.Context) {
	if err := s.polls.ClosePoll(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	s.respondPoll(c, c.Param("id"))
}

func (s *Server) respondPoll(c *gin.Context, pollID string) {
	poll, err := s.polls.GetPoll(c.Request.Context(), pollID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, poll)
}

func (s *Server) castVote(c *gin.Context) {
	id, ok := s.identity(c)
	if !ok {
		return
	}

	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_vote"})
		return
	}

	pollID := c.Param("id")
	if err := s.polls.CastVote(c.Request.Context(), pollID, req.MatchID, id.Username, req.CandidateID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pollId": pollID, "matchId": req.MatchID, "candidateId": req.CandidateID})
}

func (s *Server) listVotes(c *gin.Context) {
	votes, err := s.polls.ListVotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if votes == nil {
		votes = []models.VoteRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}

func (s *Server) pollByMatch(c *gin.Context) {
	poll, err := s.polls.GetPollByMatch(c.Request.Context(), c.Param("matchId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if poll == nil {
		s.fail(c, models.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, poll)
}

func (s *Server) hasVoted(c *gin.Context) {
	id, ok := s.identity(c)
	if !ok {
		return
	}
	voted, err := s.polls.HasVoted(c.Request.Context(), id.Username, c.Param("matchId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasVoted": voted})
}

func (s *Server) leaderboard(c *gin.Context) {
	matchID := c.Param("matchId")
	poll, err := s.polls.GetPollByMatch(c.Request.Context(), matchID)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := leaderboardResponse{MatchID: matchID}
	if poll != nil {
		resp.PollID = poll.ID
	}
	resp.Entries = leaderboard.Snapshot(s.dir, s.opts.LeaderboardSize, poll)
	c.JSON(http.StatusOK, resp)
}

// leaderboardStream pushes a fresh leaderboard every time the match's active
// poll changes. Slow clients only ever see the latest board.
func (s *Server) leaderboardStream(c *gin.Context) {
	matchID := c.Param("matchId")
	ctx := c.Request.Context()
	log := s.log.WithFields(logging.Fields("api")).WithField("matchId", matchID)

	updates := make(chan []leaderboard.Entry, 1)
	publish := func(entries []leaderboard.Entry) {
		for {
			select {
			case updates <- entries:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}
	source := func(ctx context.Context, onUpdate func(*models.Poll), onError func(error)) (func(), error) {
		return s.polls.SubscribeToActivePoll(ctx, matchID, onUpdate, onError)
	}

	stop, err := leaderboard.Follow(ctx, source, leaderboard.NewProjector(s.dir, s.opts.LeaderboardSize), publish, func(err error) {
		log.WithField("error", err).Warn("leaderboard feed error")
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	defer stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	log.Debug("leaderboard stream opened")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case entries := <-updates:
			c.SSEvent("leaderboard", entries)
			return true
		}
	})
	log.WithFields(logrus.Fields{"reason": ctx.Err()}).Debug("leaderboard stream closed")
}
