package leaderboard

import (
	"context"
	"fmt"

	"github.com/courtside/livevote/database"
	"github.com/courtside/livevote/models"
)

// Directory resolves candidate ids to player details. Lookups must not block.
type Directory interface {
	Lookup(candidateID string) (models.Player, bool)
}

// StaticDirectory is an in-memory player snapshot keyed by player id.
type StaticDirectory map[string]models.Player

func (d StaticDirectory) Lookup(candidateID string) (models.Player, bool) {
	p, ok := d[candidateID]
	return p, ok
}

// LoadDirectory snapshots every player the source knows about.
func LoadDirectory(ctx context.Context, src database.PlayerDirectory) (StaticDirectory, error) {
	players, err := src.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	dir := make(StaticDirectory, len(players))
	for _, p := range players {
		dir[p.ID] = p
	}
	return dir, nil
}
