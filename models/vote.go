package models

import "time"

type VoteRecord struct {
	ID          string    `bson:"_id" json:"id"`
	PollID      string    `bson:"pollId" json:"pollId"`
	MatchID     string    `bson:"matchId" json:"matchId"`
	UserID      string    `bson:"userId" json:"userId"`
	CandidateID string    `bson:"candidateId" json:"candidateId"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}
