// Package matchmaking decides which two players meet next.
//
// Homes are the players whose rating is least certain, since a duel teaches
// the most about them. Each home gets a guest drawn from the players whose
// rating lies within k deviations of its own; when nobody is in that band
// the guest is drawn from the whole population so no home is dropped.
package matchmaking

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/okian/duelrank/internal/adapters/repository"
	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/logger"
)

// Matchmaker selects duels from a store.
type Matchmaker struct {
	store     repository.Reader
	bandWidth float64
	intn      func(int) int
	logger    logger.Logger
}

// New creates a Matchmaker reading from store.
func New(store repository.Reader, opts ...Option) *Matchmaker {
	m := &Matchmaker{
		store:     store,
		bandWidth: DefaultBandWidth,
		intn:      rand.IntN,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("matchmaking")
	}
	return m
}

// BandWidth returns k.
func (m *Matchmaker) BandWidth() float64 {
	return m.bandWidth
}

// SelectBatch returns up to n duels, one per home, in home order. It fails
// with repository.ErrInsufficientPopulation when fewer than two players
// exist. Store errors abort the batch.
func (m *Matchmaker) SelectBatch(ctx context.Context, n int) ([]model.Duel, error) {
	if n < 1 {
		return nil, ErrInvalidBatchSize
	}

	count, err := m.store.PlayerCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("player count: %w", err)
	}
	if count < 2 {
		return nil, repository.ErrInsufficientPopulation
	}

	homes, err := m.store.ListByDeviationDesc(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("list homes: %w", err)
	}

	duels := make([]model.Duel, 0, len(homes))
	placed := make(map[int64]struct{}, len(homes))
	fallbacks := 0
	for _, home := range homes {
		guest, inBand, err := m.pickGuest(ctx, home, placed)
		if err != nil {
			return nil, err
		}
		if !inBand {
			fallbacks++
		}
		placed[guest.ID] = struct{}{}
		duels = append(duels, model.NewDuel(home, guest))
	}

	m.logger.Debug(ctx, "batch selected",
		logger.Int("requested", n),
		logger.Int("duels", len(duels)),
		logger.Int("fallbacks", fallbacks))
	return duels, nil
}

// SelectOne returns a single duel for the most uncertain player.
func (m *Matchmaker) SelectOne(ctx context.Context) (model.Duel, error) {
	duels, err := m.SelectBatch(ctx, 1)
	if err != nil {
		return model.Duel{}, err
	}
	if len(duels) == 0 {
		return model.Duel{}, repository.ErrInsufficientPopulation
	}
	return duels[0], nil
}

func (m *Matchmaker) pickGuest(ctx context.Context, home model.Player, placed map[int64]struct{}) (model.Player, bool, error) {
	spread := m.bandWidth * home.Deviation
	band, err := m.store.ListInBand(ctx, home.ID, home.Rating-spread, home.Rating+spread)
	if err != nil {
		return model.Player{}, false, fmt.Errorf("list band for %d: %w", home.ID, err)
	}

	eligible := band[:0]
	for _, p := range band {
		if _, ok := placed[p.ID]; !ok {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) > 0 {
		return eligible[m.intn(len(eligible))], true, nil
	}

	guest, err := m.store.SampleUniform(ctx, home.ID)
	if err != nil {
		return model.Player{}, false, fmt.Errorf("sample guest for %d: %w", home.ID, err)
	}
	return guest, false, nil
}
