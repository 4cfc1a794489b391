// Package leaderboard turns live poll snapshots into a ranked top-K view
// annotated with how each candidate moved since the previous snapshot.
package leaderboard

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/courtside/livevote/models"
)

const DefaultSize = 3

type Movement string

const (
	MovementUp   Movement = "up"
	MovementDown Movement = "down"
	MovementNone Movement = "none"
)

type Entry struct {
	CandidateID     string   `json:"candidateId"`
	DisplayName     string   `json:"displayName"`
	Photo           string   `json:"photo,omitempty"`
	Position        string   `json:"position,omitempty"`
	JerseyNumber    int      `json:"jerseyNumber,omitempty"`
	Votes           int      `json:"votes"`
	Percentage      int      `json:"percentage"`
	IsNew           bool     `json:"isNew"`
	PositionChanged Movement `json:"positionChanged"`
}

// Projector keeps the previously emitted ranking so that each new snapshot
// can be annotated with rank changes. A Projector follows one feed; give
// every consumer its own.
type Projector struct {
	dir  Directory
	size int

	mu       sync.Mutex
	pollID   string
	previous []string
}

func NewProjector(dir Directory, size int) *Projector {
	if size <= 0 {
		size = DefaultSize
	}
	if dir == nil {
		dir = StaticDirectory{}
	}
	return &Projector{dir: dir, size: size}
}

// Project ranks poll's options. A nil or inactive poll, or one without votes,
// yields an empty list and forgets the retained ranking.
func (p *Projector) Project(poll *models.Poll) []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if poll == nil || !poll.IsActive {
		p.reset("")
		return []Entry{}
	}
	if poll.ID != p.pollID {
		p.reset(poll.ID)
	}

	entries := rank(p.dir, p.size, poll)
	if len(entries) == 0 {
		p.reset(poll.ID)
		return entries
	}

	prevIndex := make(map[string]int, len(p.previous))
	for i, id := range p.previous {
		prevIndex[id] = i
	}

	ids := make([]string, len(entries))
	for i := range entries {
		e := &entries[i]
		if prev, ok := prevIndex[e.CandidateID]; !ok {
			e.IsNew = true
		} else if prev > i {
			e.PositionChanged = MovementUp
		} else if prev < i {
			e.PositionChanged = MovementDown
		}
		ids[i] = e.CandidateID
	}
	p.previous = ids
	return entries
}

// Snapshot ranks poll without any history: no entry is new and none moved.
func Snapshot(dir Directory, size int, poll *models.Poll) []Entry {
	if size <= 0 {
		size = DefaultSize
	}
	if dir == nil {
		dir = StaticDirectory{}
	}
	if poll == nil || !poll.IsActive {
		return []Entry{}
	}
	return rank(dir, size, poll)
}

// rank builds the top size entries of poll, ordered by votes with ties kept
// in option order, with movement left at none.
func rank(dir Directory, size int, poll *models.Poll) []Entry {
	total := poll.TotalVotes
	if total == 0 {
		total = poll.SumVotes()
	}

	ranked := make([]models.Option, 0, len(poll.Options))
	for _, opt := range poll.Options {
		if opt.Votes > 0 {
			ranked = append(ranked, opt)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Votes > ranked[j].Votes })
	if len(ranked) > size {
		ranked = ranked[:size]
	}

	entries := make([]Entry, len(ranked))
	for i, opt := range ranked {
		e := Entry{
			CandidateID:     opt.CandidateID,
			DisplayName:     opt.CandidateID,
			Votes:           opt.Votes,
			Percentage:      percentage(opt.Votes, total),
			PositionChanged: MovementNone,
		}
		if player, ok := dir.Lookup(opt.CandidateID); ok {
			if player.DisplayName != "" {
				e.DisplayName = player.DisplayName
			}
			e.Photo = player.Photo
			e.Position = player.Position
			e.JerseyNumber = player.JerseyNumber
		}
		entries[i] = e
	}
	return entries
}

func (p *Projector) reset(pollID string) {
	p.pollID = pollID
	p.previous = nil
}

func percentage(votes, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(votes) / float64(total) * 100))
}

// Source subscribes to a stream of active-poll snapshots.
type Source func(ctx context.Context, onUpdate func(*models.Poll), onError func(error)) (func(), error)

// Follow projects every snapshot from source and hands the result to publish.
// The subscription is released when ctx is done or the returned func is called.
func Follow(ctx context.Context, source Source, p *Projector, publish func([]Entry), onError func(error)) (func(), error) {
	unsubscribe, err := source(ctx, func(poll *models.Poll) {
		publish(p.Project(poll))
	}, onError)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			unsubscribe()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			release()
		case <-stop:
		}
	}()
	return release, nil
}
