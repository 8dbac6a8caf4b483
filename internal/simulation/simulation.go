// Package simulation drives a collection with synthetic judges whose answers
// follow a known ground truth, and measures how close the learned order gets.
//
// Players are named by their true rank ("00000" is the best). A judge prefers
// the better-ranked side, optionally after adding Gaussian noise to both
// ranks. Convergence is reported as the root of the mean squared difference
// between each player's position on the leaderboard and its true rank.
package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/logger"
)

// Arena is the part of a collection the simulation plays against.
type Arena interface {
	NewDuel(ctx context.Context) (model.Duel, error)
	Record(ctx context.Context, m model.Match) error
	Players(ctx context.Context) ([]model.Player, error)
}

// Config holds configuration for one simulation run.
type Config struct {
	Matches     int     // total matches to play
	Concurrency int     // judges playing in parallel
	Noise       float64 // standard deviation added to true ranks, 0 for none
	Seed        uint64
}

// Result summarises a run.
type Result struct {
	Matches     int
	MSRE        float64
	Duration    time.Duration
	Leaderboard []model.Player
}

const nameWidth = 5

// Names returns n player names encoding ranks 0..n-1.
func Names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%0*d", nameWidth, i)
	}
	return out
}

// TrueRank decodes the rank from a name produced by Names.
func TrueRank(name string) (int, error) {
	r, err := strconv.Atoi(name)
	if err != nil || r < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnrankedName, name)
	}
	return r, nil
}

// Run plays cfg.Matches duels against arena and scores the final order.
func Run(ctx context.Context, arena Arena, cfg Config) (Result, error) {
	if cfg.Matches < 0 {
		return Result{}, fmt.Errorf("%w: matches %d", ErrInvalidConfig, cfg.Matches)
	}
	workers := max(1, cfg.Concurrency)
	log := logger.Get().Named("simulation")
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		share := cfg.Matches / workers
		if w < cfg.Matches%workers {
			share++
		}
		judge := newJudge(cfg.Seed+uint64(w), cfg.Noise)
		g.Go(func() error {
			for range share {
				if err := play(gctx, arena, judge); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	board, err := arena.Players(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("leaderboard: %w", err)
	}
	msre, err := MSRE(board)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Matches:     cfg.Matches,
		MSRE:        msre,
		Duration:    time.Since(start),
		Leaderboard: board,
	}
	log.Info(ctx, "simulation finished",
		logger.Int("players", len(board)),
		logger.Int("matches", res.Matches),
		logger.Int("judges", workers),
		logger.Float64("noise", cfg.Noise),
		logger.Float64("msre", res.MSRE),
		logger.Duration("duration", res.Duration),
	)
	return res, nil
}

func play(ctx context.Context, arena Arena, j *judge) error {
	d, err := arena.NewDuel(ctx)
	if err != nil {
		return fmt.Errorf("new duel: %w", err)
	}
	outcome, err := j.decide(d)
	if err != nil {
		return err
	}
	m := model.Match{HomeID: d.HomeID, GuestID: d.GuestID, Outcome: outcome}
	if err := arena.Record(ctx, m); err != nil {
		return fmt.Errorf("record %d vs %d: %w", d.HomeID, d.GuestID, err)
	}
	return nil
}

// judge is owned by one goroutine.
type judge struct {
	rng   *rand.Rand
	noise float64
}

func newJudge(seed uint64, noise float64) *judge {
	return &judge{rng: rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)), noise: noise}
}

func (j *judge) perceive(rank int) float64 {
	if j.noise <= 0 {
		return float64(rank)
	}
	return float64(rank) + j.rng.NormFloat64()*j.noise
}

func (j *judge) decide(d model.Duel) (model.Outcome, error) {
	home, err := TrueRank(d.Home)
	if err != nil {
		return 0, err
	}
	guest, err := TrueRank(d.Guest)
	if err != nil {
		return 0, err
	}
	if j.perceive(home) < j.perceive(guest) {
		return model.HomeWon, nil
	}
	return model.HomeLost, nil
}

// MSRE scores a leaderboard ordered best first against the ranks encoded in
// the player names.
func MSRE(board []model.Player) (float64, error) {
	if len(board) == 0 {
		return 0, ErrEmptyLeaderboard
	}
	var sum float64
	for i, p := range board {
		r, err := TrueRank(p.Name)
		if err != nil {
			return 0, err
		}
		diff := float64(i - r)
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(board))), nil
}
