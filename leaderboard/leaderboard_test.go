package leaderboard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/courtside/livevote/database/memory"
	"github.com/courtside/livevote/models"
)

func snapshot(id string, active bool, votes ...int) *models.Poll {
	poll := &models.Poll{ID: id, MatchID: "m1", IsActive: active}
	for i, v := range votes {
		poll.Options = append(poll.Options, models.Option{CandidateID: "P" + string(rune('1'+i)), Votes: v})
		poll.TotalVotes += v
	}
	return poll
}

type expect struct {
	id      string
	pct     int
	isNew   bool
	changed Movement
}

func check(t *testing.T, got []Entry, want []expect) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d entries %+v, want %d", len(got), got, len(want))
	}
	for i, w := range want {
		g := got[i]
		if g.CandidateID != w.id || g.Percentage != w.pct || g.IsNew != w.isNew || g.PositionChanged != w.changed {
			t.Errorf("entry %d = {%s %d%% new=%v %s}, want {%s %d%% new=%v %s}",
				i, g.CandidateID, g.Percentage, g.IsNew, g.PositionChanged, w.id, w.pct, w.isNew, w.changed)
		}
	}
}

func TestProjectRanksAndTracksMovement(t *testing.T) {
	dir := StaticDirectory{"P2": {ID: "P2", DisplayName: "Bea", JerseyNumber: 8, Position: "MF"}}
	p := NewProjector(dir, 0)

	first := p.Project(snapshot("poll", true, 5, 8, 2))
	check(t, first, []expect{
		{"P2", 53, true, MovementNone},
		{"P1", 33, true, MovementNone},
		{"P3", 13, true, MovementNone},
	})
	if first[0].DisplayName != "Bea" || first[0].JerseyNumber != 8 || first[1].DisplayName != "P1" {
		t.Errorf("directory details not applied: %+v", first)
	}

	// Same ordering again: nobody moved.
	check(t, p.Project(snapshot("poll", true, 5, 8, 2)), []expect{
		{"P2", 53, false, MovementNone},
		{"P1", 33, false, MovementNone},
		{"P3", 13, false, MovementNone},
	})

	check(t, p.Project(snapshot("poll", true, 9, 8, 2)), []expect{
		{"P1", 47, false, MovementUp},
		{"P2", 42, false, MovementDown},
		{"P3", 11, false, MovementNone},
	})
}

func TestProjectTopK(t *testing.T) {
	p := NewProjector(nil, 2)

	check(t, p.Project(snapshot("poll", true, 1, 0, 3, 2)), []expect{
		{"P3", 50, true, MovementNone},
		{"P4", 33, true, MovementNone},
	})
	check(t, p.Project(snapshot("poll", true, 5, 0, 3, 2)), []expect{
		{"P1", 50, true, MovementNone},
		{"P3", 30, false, MovementDown},
	})
}

func TestProjectEmptyStates(t *testing.T) {
	p := NewProjector(nil, 3)
	p.Project(snapshot("poll", true, 1, 2))

	tests := []struct {
		name string
		poll *models.Poll
	}{
		{"no poll", nil},
		{"inactive", snapshot("poll", false, 4, 2)},
		{"zero votes", snapshot("poll", true, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Project(tt.poll)
			if got == nil || len(got) != 0 {
				t.Errorf("expected empty non-nil list, got %+v", got)
			}
		})
	}

	// The retained ranking was dropped, so everyone is new again.
	check(t, p.Project(snapshot("poll", true, 1, 2)), []expect{
		{"P2", 67, true, MovementNone},
		{"P1", 33, true, MovementNone},
	})
}

func TestProjectResetsOnNewPoll(t *testing.T) {
	p := NewProjector(nil, 3)
	p.Project(snapshot("first", true, 3, 1))

	check(t, p.Project(snapshot("second", true, 3, 1)), []expect{
		{"P1", 75, true, MovementNone},
		{"P2", 25, true, MovementNone},
	})
}

func TestLoadDirectory(t *testing.T) {
	store := memory.New()
	store.PutPlayer(models.Player{ID: "P1", DisplayName: "Ana", Photo: "ana.png"})

	dir, err := LoadDirectory(context.Background(), store)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if p, ok := dir.Lookup("P1"); !ok || p.Photo != "ana.png" {
		t.Errorf("Lookup(P1) = %+v, %v", p, ok)
	}
	if _, ok := dir.Lookup("P9"); ok {
		t.Errorf("unknown player resolved")
	}
}

func TestFollow(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	poll := snapshot("poll", true, 0, 0, 0)
	if err := store.CreatePoll(ctx, poll); err != nil {
		t.Fatalf("CreatePoll: %v", err)
	}

	source := func(ctx context.Context, onUpdate func(*models.Poll), onError func(error)) (func(), error) {
		return store.WatchActivePoll(ctx, "m1", onUpdate, onError)
	}

	var mu sync.Mutex
	var boards [][]Entry
	stop, err := Follow(ctx, source, NewProjector(nil, 3), func(entries []Entry) {
		mu.Lock()
		defer mu.Unlock()
		boards = append(boards, entries)
	}, nil)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}

	vote := func(candidate string) {
		if _, err := store.MutatePoll(ctx, "poll", func(p *models.Poll) error { return p.AddVote(candidate) }, nil); err != nil {
			t.Fatalf("MutatePoll: %v", err)
		}
	}
	vote("P2")
	vote("P1")
	vote("P1")
	stop()
	stop()
	vote("P3")

	mu.Lock()
	defer mu.Unlock()
	if len(boards) != 4 {
		t.Fatalf("expected 4 projections, got %d", len(boards))
	}
	if len(boards[0]) != 0 {
		t.Errorf("zero-vote poll should project empty, got %+v", boards[0])
	}
	// A tie keeps option order, so P1 overtook P2 on the third snapshot.
	check(t, boards[2], []expect{
		{"P1", 50, true, MovementNone},
		{"P2", 50, false, MovementDown},
	})
	check(t, boards[3], []expect{
		{"P1", 67, false, MovementNone},
		{"P2", 33, false, MovementNone},
	})
}

func TestFollowReleasesOnCancel(t *testing.T) {
	released := make(chan struct{})
	source := func(ctx context.Context, onUpdate func(*models.Poll), onError func(error)) (func(), error) {
		return func() { close(released) }, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := Follow(ctx, source, NewProjector(nil, 3), func([]Entry) {}, nil); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	cancel()
	<-released
}

func TestFollowSourceError(t *testing.T) {
	boom := errors.New("feed down")
	source := func(ctx context.Context, onUpdate func(*models.Poll), onError func(error)) (func(), error) {
		return nil, boom
	}
	if _, err := Follow(context.Background(), source, NewProjector(nil, 3), func([]Entry) {}, nil); !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
}

func TestSnapshotHasNoHistory(t *testing.T) {
	dir := StaticDirectory{"P2": {ID: "P2", DisplayName: "Bea"}}

	for i := 0; i < 2; i++ {
		got := Snapshot(dir, 0, snapshot("poll", true, 5, 8, 2))
		check(t, got, []expect{
			{"P2", 53, false, MovementNone},
			{"P1", 33, false, MovementNone},
			{"P3", 13, false, MovementNone},
		})
		if got[0].DisplayName != "Bea" {
			t.Errorf("directory details not applied: %+v", got[0])
		}
	}

	for _, poll := range []*models.Poll{nil, snapshot("poll", false, 1), snapshot("poll", true, 0, 0)} {
		if got := Snapshot(dir, 3, poll); got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil list, got %+v", got)
		}
	}
}
