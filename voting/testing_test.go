package voting

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/courtside/livevote/database"
	"github.com/courtside/livevote/database/memory"
	"github.com/courtside/livevote/models"
	"github.com/sirupsen/logrus"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// faultyStore wraps the memory store with injectable failures.
type faultyStore struct {
	*memory.Store

	mu           sync.Mutex
	conflicts    int
	lostAcks     int
	getPollErr   error
	beforeMutate func()
	mutateCalls  int
}

func (f *faultyStore) MutatePoll(ctx context.Context, pollID string, mutate database.Mutation, vote *models.VoteRecord) (*models.Poll, error) {
	f.mu.Lock()
	f.mutateCalls++
	hook := f.beforeMutate
	f.beforeMutate = nil
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return nil, models.ErrTransactionConflict
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	poll, err := f.Store.MutatePoll(ctx, pollID, mutate, vote)

	// A lost acknowledgement: the write committed but the caller sees a failure.
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil && f.lostAcks > 0 {
		f.lostAcks--
		return nil, models.ErrTransactionConflict
	}
	return poll, err
}

func (f *faultyStore) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	f.mu.Lock()
	err := f.getPollErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.GetPoll(ctx, id)
}

type fixture struct {
	svc   *Service
	store *faultyStore
	rec   *recorder
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &faultyStore{Store: memory.New()}
	rec := &recorder{}

	var mu sync.Mutex
	seq := 0
	clock := time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)

	svc := NewService(store, Options{
		Notifier: rec,
		Logger:   quietLogger(),
		Retry: RetryPolicy{
			MaxTries:        4,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
		Clock: func() time.Time { return clock },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	return &fixture{svc: svc, store: store, rec: rec}
}

func (f *fixture) createPoll(t *testing.T, matchID string, active bool, candidates ...string) *models.Poll {
	t.Helper()
	if len(candidates) == 0 {
		candidates = []string{"P1", "P2", "P3"}
	}
	poll, err := f.svc.CreatePoll(context.Background(), CreatePollInput{
		MatchID:      matchID,
		Title:        "Player of the match",
		CandidateIDs: candidates,
		CreatedBy:    "admin",
		StartActive:  active,
	})
	if err != nil {
		t.Fatalf("CreatePoll: %v", err)
	}
	return poll
}

func (f *fixture) poll(t *testing.T, id string) *models.Poll {
	t.Helper()
	poll, err := f.store.Store.GetPoll(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPoll(%s): %v", id, err)
	}
	return poll
}

func votesFor(p *models.Poll, candidateID string) int {
	for _, opt := range p.Options {
		if opt.CandidateID == candidateID {
			return opt.Votes
		}
	}
	return -1
}
