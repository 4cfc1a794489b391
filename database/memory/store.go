// Package memory is an in-process implementation of the database contracts.
// A single lock serialises every write, which makes MutatePoll trivially
// atomic; it backs the tests and VOTE_STORE=memory local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/courtside/livevote/database"
	"github.com/courtside/livevote/models"
)

type voteKey struct {
	userID  string
	matchID string
}

type pollWatcher struct {
	matchID  string
	onUpdate func(*models.Poll)
	removed  atomic.Bool
}

type matchWatcher struct {
	onChange func(models.Match)
	removed  atomic.Bool
}

type Store struct {
	mu      sync.Mutex
	polls   map[string]*models.Poll
	order   []string
	votes   map[voteKey]models.VoteRecord
	matches map[string]models.Match
	players map[string]models.Player

	// pollNotifyMu orders poll callbacks to match commit order and
	// matchNotifyMu does the same for match callbacks. Callbacks run with
	// neither mu nor watchMu held, so they may unsubscribe. Poll callbacks
	// must not write to the store.
	pollNotifyMu  sync.Mutex
	matchNotifyMu sync.Mutex

	watchMu       sync.Mutex
	nextWatch     int
	pollWatchers  map[int]*pollWatcher
	matchWatchers map[int]*matchWatcher
}

var (
	_ database.Store           = (*Store)(nil)
	_ database.MatchFeed       = (*Store)(nil)
	_ database.PlayerDirectory = (*Store)(nil)
)

func New() *Store {
	return &Store{
		polls:         make(map[string]*models.Poll),
		votes:         make(map[voteKey]models.VoteRecord),
		matches:       make(map[string]models.Match),
		players:       make(map[string]models.Player),
		pollWatchers:  make(map[int]*pollWatcher),
		matchWatchers: make(map[int]*matchWatcher),
	}
}

func (s *Store) CreatePoll(ctx context.Context, poll *models.Poll) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.polls[poll.ID]; ok {
		s.mu.Unlock()
		return models.ErrDuplicateActivePoll
	}
	if poll.IsActive && s.activeLocked(poll.MatchID) != nil {
		s.mu.Unlock()
		return models.ErrDuplicateActivePoll
	}
	s.polls[poll.ID] = poll.Clone()
	s.order = append(s.order, poll.ID)
	s.publishLocked(poll.MatchID)
	return nil
}

func (s *Store) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return poll.Clone(), nil
}

func (s *Store) GetActivePoll(ctx context.Context, matchID string) (*models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if poll := s.activeLocked(matchID); poll != nil {
		return poll.Clone(), nil
	}
	return nil, models.ErrNotFound
}

func (s *Store) GetPollByMatch(ctx context.Context, matchID string) (*models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if poll := s.activeLocked(matchID); poll != nil {
		return poll.Clone(), nil
	}
	for i := len(s.order) - 1; i >= 0; i-- {
		if poll := s.polls[s.order[i]]; poll.MatchID == matchID {
			return poll.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) MutatePoll(ctx context.Context, pollID string, mutate database.Mutation, vote *models.VoteRecord) (*models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	current, ok := s.polls[pollID]
	if !ok {
		s.mu.Unlock()
		return nil, models.ErrNotFound
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		s.mu.Unlock()
		return current.Clone(), err
	}

	if vote != nil {
		if _, ok := s.votes[voteKey{vote.UserID, vote.MatchID}]; ok {
			s.mu.Unlock()
			return nil, models.ErrAlreadyVoted
		}
	}
	if next.IsActive && !current.IsActive {
		if other := s.activeLocked(next.MatchID); other != nil && other.ID != next.ID {
			s.mu.Unlock()
			return nil, models.ErrDuplicateActivePoll
		}
	}

	next.Version = current.Version + 1
	s.polls[pollID] = next
	if vote != nil {
		s.votes[voteKey{vote.UserID, vote.MatchID}] = *vote
	}
	result := next.Clone()
	s.publishLocked(next.MatchID)
	return result, nil
}

func (s *Store) HasVoted(ctx context.Context, userID, matchID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.votes[voteKey{userID, matchID}]
	return ok, nil
}

func (s *Store) FindVote(ctx context.Context, userID, matchID string) (*models.VoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votes[voteKey{userID, matchID}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &v, nil
}

func (s *Store) ListVotes(ctx context.Context, pollID string) ([]models.VoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var votes []models.VoteRecord
	for _, v := range s.votes {
		if v.PollID == pollID {
			votes = append(votes, v)
		}
	}
	sort.Slice(votes, func(i, j int) bool {
		if votes[i].CreatedAt.Equal(votes[j].CreatedAt) {
			return votes[i].ID < votes[j].ID
		}
		return votes[i].CreatedAt.Before(votes[j].CreatedAt)
	})
	return votes, nil
}

func (s *Store) WatchActivePoll(ctx context.Context, matchID string, onUpdate func(*models.Poll), onError func(error)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := &pollWatcher{matchID: matchID, onUpdate: onUpdate}

	s.mu.Lock()
	s.pollNotifyMu.Lock()
	s.watchMu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.pollWatchers[id] = w
	s.watchMu.Unlock()
	initial := s.activeLocked(matchID).Clone()
	s.mu.Unlock()
	onUpdate(initial)
	s.pollNotifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.removed.Store(true)
			s.watchMu.Lock()
			delete(s.pollWatchers, id)
			s.watchMu.Unlock()
		})
	}, nil
}

// SetMatch inserts or updates a match and notifies match watchers.
func (s *Store) SetMatch(match models.Match) {
	s.mu.Lock()
	s.matches[match.ID] = match
	s.mu.Unlock()

	// Match callbacks may drive poll transitions, so they run with no store lock held.
	s.matchNotifyMu.Lock()
	defer s.matchNotifyMu.Unlock()

	s.watchMu.Lock()
	watchers := make([]*matchWatcher, 0, len(s.matchWatchers))
	for _, w := range s.matchWatchers {
		watchers = append(watchers, w)
	}
	s.watchMu.Unlock()

	for _, w := range watchers {
		if !w.removed.Load() {
			w.onChange(match)
		}
	}
}

func (s *Store) ListMatches(ctx context.Context, statuses ...models.MatchStatus) ([]models.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []models.Match
	for _, m := range s.matches {
		if len(statuses) == 0 || containsStatus(statuses, m.Status) {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (s *Store) WatchMatches(ctx context.Context, onChange func(models.Match), onError func(error)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := &matchWatcher{onChange: onChange}
	s.watchMu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.matchWatchers[id] = w
	s.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.removed.Store(true)
			s.watchMu.Lock()
			delete(s.matchWatchers, id)
			s.watchMu.Unlock()
		})
	}, nil
}

func (s *Store) PutPlayer(player models.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player
}

func (s *Store) ListPlayers(ctx context.Context) ([]models.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]models.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

func (s *Store) activeLocked(matchID string) *models.Poll {
	for _, poll := range s.polls {
		if poll.MatchID == matchID && poll.IsActive {
			return poll
		}
	}
	return nil
}

// publishLocked releases mu, which the caller holds, and delivers the
// match's active poll to its watchers in commit order.
func (s *Store) publishLocked(matchID string) {
	active := s.activeLocked(matchID).Clone()
	s.pollNotifyMu.Lock()
	s.watchMu.Lock()
	var watchers []*pollWatcher
	for _, w := range s.pollWatchers {
		if w.matchID == matchID {
			watchers = append(watchers, w)
		}
	}
	s.watchMu.Unlock()
	s.mu.Unlock()
	defer s.pollNotifyMu.Unlock()

	for _, w := range watchers {
		if !w.removed.Load() {
			w.onUpdate(active.Clone())
		}
	}
}

func containsStatus(statuses []models.MatchStatus, status models.MatchStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
