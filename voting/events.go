package voting

import (
	"time"
)

type EventType string

const (
	VotingOpened EventType = "voting_opened"
	VotingClosed EventType = "voting_closed"
	VoteCast     EventType = "vote_cast"
	VoteRejected EventType = "vote_rejected"
)

// Trigger records who drove a lifecycle transition.
type Trigger string

const (
	TriggerAdmin Trigger = "admin"
	TriggerMatch Trigger = "match"
)

type Event struct {
	Type        EventType `json:"type"`
	PollID      string    `json:"pollId"`
	MatchID     string    `json:"matchId"`
	UserID      string    `json:"userId,omitempty"`
	CandidateID string    `json:"candidateId,omitempty"`
	TotalVotes  int       `json:"totalVotes"`
	Trigger     Trigger   `json:"trigger,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier receives domain events after the change they describe is durable.
// Implementations must not block for long; they run on the caller's goroutine.
type Notifier interface {
	Notify(event Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(event Event) { f(event) }

// Notifiers fans an event out to every notifier in order.
type Notifiers []Notifier

func (n Notifiers) Notify(event Event) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.Notify(event)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
