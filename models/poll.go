package models

import (
	"sort"
	"time"
)

type PollState string

const (
	PollUpcoming PollState = "upcoming"
	PollActive   PollState = "active"
	PollClosed   PollState = "closed"
)

type Option struct {
	CandidateID string `bson:"candidateId" json:"candidateId"`
	Votes       int    `bson:"votes" json:"votes"`
}

// Results is the frozen outcome written when a poll closes.
type Results struct {
	Winner     *Option   `bson:"winner" json:"winner"`
	Rankings   []Option  `bson:"rankings" json:"rankings"`
	TotalVotes int       `bson:"totalVotes" json:"totalVotes"`
	ClosedAt   time.Time `bson:"closedAt" json:"closedAt"`
}

type Poll struct {
	ID          string     `bson:"_id" json:"id"`
	MatchID     string     `bson:"matchId" json:"matchId"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description" json:"description"`
	IsActive    bool       `bson:"isActive" json:"isActive"`
	StartedAt   *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	ClosedAt    *time.Time `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	Options     []Option   `bson:"options" json:"options"`
	TotalVotes  int        `bson:"totalVotes" json:"totalVotes"`
	CreatedBy   string     `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	Results     *Results   `bson:"results,omitempty" json:"results,omitempty"`
	Version     int64      `bson:"version" json:"-"`
}

func (p *Poll) State() PollState {
	switch {
	case p.ClosedAt != nil:
		return PollClosed
	case p.IsActive:
		return PollActive
	default:
		return PollUpcoming
	}
}

// HasCandidate reports whether candidateID is one of the poll's options.
func (p *Poll) HasCandidate(candidateID string) bool {
	return p.optionIndex(candidateID) >= 0
}

// AddVote increments the option for candidateID and the poll total.
func (p *Poll) AddVote(candidateID string) error {
	i := p.optionIndex(candidateID)
	if i < 0 {
		return ErrInvalidCandidate
	}
	p.Options[i].Votes++
	p.TotalVotes++
	return nil
}

func (p *Poll) optionIndex(candidateID string) int {
	for i, opt := range p.Options {
		if opt.CandidateID == candidateID {
			return i
		}
	}
	return -1
}

// SumVotes adds up the option tallies. It equals TotalVotes for every consistent poll.
func (p *Poll) SumVotes() int {
	sum := 0
	for _, opt := range p.Options {
		sum += opt.Votes
	}
	return sum
}

// Freeze computes the results of the poll as it stands at closedAt.
// The winner is the first option, in insertion order, holding the maximum vote count.
func (p *Poll) Freeze(closedAt time.Time) *Results {
	rankings := make([]Option, len(p.Options))
	copy(rankings, p.Options)
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Votes > rankings[j].Votes
	})

	var winner *Option
	for i := range p.Options {
		if winner == nil || p.Options[i].Votes > winner.Votes {
			opt := p.Options[i]
			winner = &opt
		}
	}

	return &Results{
		Winner:     winner,
		Rankings:   rankings,
		TotalVotes: p.TotalVotes,
		ClosedAt:   closedAt,
	}
}

// Clone returns a deep copy safe to mutate.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	c := *p
	c.Options = append([]Option(nil), p.Options...)
	if p.StartedAt != nil {
		t := *p.StartedAt
		c.StartedAt = &t
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}
	if p.Results != nil {
		r := *p.Results
		r.Rankings = append([]Option(nil), p.Results.Rankings...)
		if p.Results.Winner != nil {
			w := *p.Results.Winner
			r.Winner = &w
		}
		c.Results = &r
	}
	return &c
}
