package repository

import (
	"context"
	"fmt"

	"github.com/okian/duelrank/pkg/logger"
)

// Reconcile makes the store's population match names: missing names are added
// at the initial rating, players whose name is gone are removed. Ratings of
// players present on both sides are untouched.
func Reconcile(ctx context.Context, s Store, names []string) (added, removed int, err error) {
	current, err := s.ListPlayers(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list players: %w", err)
	}

	want := make(map[string]struct{}, len(names))
	for _, name := range names {
		want[name] = struct{}{}
	}

	var vanished []string
	have := make(map[string]struct{}, len(current))
	for _, p := range current {
		have[p.Name] = struct{}{}
		if _, ok := want[p.Name]; !ok {
			vanished = append(vanished, p.Name)
		}
	}

	var missing []string
	for _, name := range names {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
			have[name] = struct{}{}
		}
	}

	if len(missing) > 0 {
		ps, err := s.AddPlayers(ctx, missing...)
		if err != nil {
			return 0, 0, fmt.Errorf("add players: %w", err)
		}
		added = len(ps)
	}
	if len(vanished) > 0 {
		removed, err = s.RemovePlayers(ctx, vanished...)
		if err != nil {
			return added, 0, fmt.Errorf("remove players: %w", err)
		}
	}

	logger.Get().Named("repository").Info(ctx, "population reconciled",
		logger.Int("added", added),
		logger.Int("removed", removed),
		logger.Int("total", len(current)+added-removed))
	return added, removed, nil
}
