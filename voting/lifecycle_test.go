package voting

import (
	"context"
	"errors"
	"testing"

	"github.com/courtside/livevote/models"
)

func TestCreatePoll(t *testing.T) {
	f := newFixture(t)
	poll := f.createPoll(t, "m1", false, "P1", "P2", "P3")

	if poll.IsActive || poll.StartedAt != nil || poll.State() != models.PollUpcoming {
		t.Errorf("new poll should be upcoming: %+v", poll)
	}
	if len(poll.Options) != 3 || poll.TotalVotes != 0 {
		t.Fatalf("unexpected options: %+v", poll.Options)
	}
	for i, id := range []string{"P1", "P2", "P3"} {
		if poll.Options[i].CandidateID != id || poll.Options[i].Votes != 0 {
			t.Errorf("option %d = %+v", i, poll.Options[i])
		}
	}
	if len(f.rec.ofType(VotingOpened)) != 0 {
		t.Errorf("inactive poll must not announce voting")
	}
}

func TestCreatePollStartActive(t *testing.T) {
	f := newFixture(t)
	poll := f.createPoll(t, "m1", true)

	if !poll.IsActive || poll.StartedAt == nil {
		t.Errorf("expected active poll with startedAt: %+v", poll)
	}
	opened := f.rec.ofType(VotingOpened)
	if len(opened) != 1 || opened[0].Trigger != TriggerAdmin {
		t.Errorf("expected one admin VotingOpened event, got %+v", opened)
	}
}

func TestCreatePollRejectsDuplicateActive(t *testing.T) {
	f := newFixture(t)
	f.createPoll(t, "m1", true)

	for _, active := range []bool{true, false} {
		_, err := f.svc.CreatePoll(context.Background(), CreatePollInput{
			MatchID:      "m1",
			CandidateIDs: []string{"P1"},
			StartActive:  active,
		})
		if !errors.Is(err, models.ErrDuplicateActivePoll) {
			t.Errorf("startActive=%v: expected ErrDuplicateActivePoll, got %v", active, err)
		}
	}

	if _, err := f.svc.CreatePoll(context.Background(), CreatePollInput{
		MatchID:      "m2",
		CandidateIDs: []string{"P1"},
		StartActive:  true,
	}); err != nil {
		t.Errorf("other match should be unaffected: %v", err)
	}
}

func TestCreatePollValidation(t *testing.T) {
	tests := []struct {
		name string
		in   CreatePollInput
	}{
		{"missing match", CreatePollInput{CandidateIDs: []string{"P1"}}},
		{"no candidates", CreatePollInput{MatchID: "m1"}},
		{"blank candidate", CreatePollInput{MatchID: "m1", CandidateIDs: []string{"P1", " "}}},
		{"duplicate candidate", CreatePollInput{MatchID: "m1", CandidateIDs: []string{"P1", "P1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.svc.CreatePoll(context.Background(), tt.in); !errors.Is(err, models.ErrInvalidPoll) {
				t.Errorf("expected ErrInvalidPoll, got %v", err)
			}
		})
	}
}

func TestActivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	poll := f.createPoll(t, "m1", false)

	changed, err := f.svc.Activate(ctx, poll.ID, TriggerAdmin)
	if err != nil || !changed {
		t.Fatalf("Activate = %v, %v", changed, err)
	}
	after := f.poll(t, poll.ID)
	if !after.IsActive || after.StartedAt == nil {
		t.Fatalf("poll not active after Activate: %+v", after)
	}

	changed, err = f.svc.Activate(ctx, poll.ID, TriggerMatch)
	if err != nil || changed {
		t.Fatalf("second Activate = %v, %v; want no-op", changed, err)
	}
	again := f.poll(t, poll.ID)
	if again.Version != after.Version {
		t.Errorf("idempotent activate wrote the poll: version %d -> %d", after.Version, again.Version)
	}
	if n := len(f.rec.ofType(VotingOpened)); n != 1 {
		t.Errorf("expected 1 VotingOpened event, got %d", n)
	}
}

func TestActivateErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.svc.ActivatePoll(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	closed := f.createPoll(t, "m1", true)
	if err := f.svc.ClosePoll(ctx, closed.ID); err != nil {
		t.Fatalf("ClosePoll: %v", err)
	}
	if err := f.svc.ActivatePoll(ctx, closed.ID); !errors.Is(err, models.ErrPollClosed) {
		t.Errorf("expected ErrPollClosed, got %v", err)
	}

	f.createPoll(t, "m2", true)
	if err := f.store.Store.CreatePoll(ctx, &models.Poll{ID: "extra", MatchID: "m2", Options: []models.Option{{CandidateID: "P1"}}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.svc.ActivatePoll(ctx, "extra"); !errors.Is(err, models.ErrDuplicateActivePoll) {
		t.Errorf("expected ErrDuplicateActivePoll, got %v", err)
	}
}

func TestCloseFreezesResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	poll := f.createPoll(t, "m1", true, "P1", "P2", "P3")

	ballots := map[string]string{"u1": "P2", "u2": "P2", "u3": "P1", "u4": "P3", "u5": "P2", "u6": "P1"}
	for user, candidate := range ballots {
		if err := f.svc.CastVote(ctx, poll.ID, "m1", user, candidate); err != nil {
			t.Fatalf("CastVote(%s): %v", user, err)
		}
	}

	changed, err := f.svc.Close(ctx, poll.ID, TriggerAdmin)
	if err != nil || !changed {
		t.Fatalf("Close = %v, %v", changed, err)
	}

	closed := f.poll(t, poll.ID)
	if closed.IsActive || closed.ClosedAt == nil || closed.Results == nil {
		t.Fatalf("poll not closed: %+v", closed)
	}
	res := closed.Results
	want := []models.Option{{CandidateID: "P2", Votes: 3}, {CandidateID: "P1", Votes: 2}, {CandidateID: "P3", Votes: 1}}
	for i, opt := range want {
		if res.Rankings[i] != opt {
			t.Errorf("rankings[%d] = %+v, want %+v", i, res.Rankings[i], opt)
		}
	}
	if res.Winner == nil || res.Winner.CandidateID != "P2" {
		t.Errorf("winner = %+v, want P2", res.Winner)
	}
	if res.TotalVotes != 6 || !res.ClosedAt.Equal(*closed.ClosedAt) {
		t.Errorf("unexpected results %+v", res)
	}

	changed, err = f.svc.Close(ctx, poll.ID, TriggerMatch)
	if err != nil || changed {
		t.Errorf("second Close = %v, %v; want no-op", changed, err)
	}
	if again := f.poll(t, poll.ID); again.Version != closed.Version {
		t.Errorf("idempotent close wrote the poll")
	}
	closedEvents := f.rec.ofType(VotingClosed)
	if len(closedEvents) != 1 || closedEvents[0].TotalVotes != 6 {
		t.Errorf("expected one VotingClosed with 6 votes, got %+v", closedEvents)
	}
}

func TestCloseTieBreak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	poll := f.createPoll(t, "m1", true, "P1", "P2", "P3")

	for user, candidate := range map[string]string{"u1": "P3", "u2": "P2"} {
		if err := f.svc.CastVote(ctx, poll.ID, "m1", user, candidate); err != nil {
			t.Fatalf("CastVote: %v", err)
		}
	}
	if err := f.svc.ClosePoll(ctx, poll.ID); err != nil {
		t.Fatalf("ClosePoll: %v", err)
	}
	if w := f.poll(t, poll.ID).Results.Winner; w.CandidateID != "P2" {
		t.Errorf("tie should go to the earlier option P2, got %s", w.CandidateID)
	}
}

func TestCloseUpcomingPoll(t *testing.T) {
	f := newFixture(t)
	poll := f.createPoll(t, "m1", false)
	if err := f.svc.ClosePoll(context.Background(), poll.ID); !errors.Is(err, models.ErrPollNotActive) {
		t.Errorf("expected ErrPollNotActive, got %v", err)
	}
	if err := f.svc.ClosePoll(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCloseRetriesConflicts(t *testing.T) {
	f := newFixture(t)
	poll := f.createPoll(t, "m1", true)

	f.store.conflicts = 2
	if err := f.svc.ClosePoll(context.Background(), poll.ID); err != nil {
		t.Fatalf("ClosePoll: %v", err)
	}
	if f.poll(t, poll.ID).State() != models.PollClosed {
		t.Errorf("poll should be closed after retried conflicts")
	}
}
