package api

import (
	"errors"
	"net/http"

	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrInvalidCandidate, http.StatusBadRequest, "invalid_candidate"},
	{models.ErrInvalidPoll, http.StatusBadRequest, "invalid_poll"},
	{models.ErrInvalidVote, http.StatusBadRequest, "invalid_vote"},
	{models.ErrPollMismatch, http.StatusBadRequest, "poll_mismatch"},
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrAlreadyVoted, http.StatusConflict, "already_voted"},
	{models.ErrPollNotActive, http.StatusConflict, "poll_not_active"},
	{models.ErrPollClosed, http.StatusConflict, "poll_closed"},
	{models.ErrDuplicateActivePoll, http.StatusConflict, "duplicate_active_poll"},
	{models.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
	{models.ErrTransactionConflict, http.StatusServiceUnavailable, "transaction_conflict"},
}

func statusFor(err error) (int, string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithFields(logging.Fields("api")).WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err,
		}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}
