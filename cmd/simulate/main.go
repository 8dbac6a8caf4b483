package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/okian/duelrank/internal/adapters/repository"
	"github.com/okian/duelrank/internal/app"
	"github.com/okian/duelrank/internal/domain/glicko"
	"github.com/okian/duelrank/internal/simulation"
	"github.com/okian/duelrank/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers = 500
	defaultMatches = 10_000
	defaultTimeout = 10 * time.Minute
)

func main() {
	var (
		players     = flag.Int("players", defaultPlayers, "Number of synthetic players")
		matches     = flag.Int("matches", defaultMatches, "Number of matches to judge")
		concurrency = flag.Int("concurrency", 1, "Judges playing in parallel")
		noise       = flag.Float64("noise", 0, "Standard deviation of judge noise, in ranks")
		seed        = flag.Uint64("seed", 1, "Random seed")
		bufferSize  = flag.Int("buffer", app.DefaultCandidateBufferSize, "Candidate buffer size")
		legacy      = flag.Bool("legacy", false, "Use the legacy score term")
		csvPath     = flag.String("csv", "", "Write the final leaderboard to this CSV file")
		baseURL     = flag.String("url", "", "Play against a running server instead of an in-process collection")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var arena simulation.Arena
	if *baseURL != "" {
		arena = simulation.NewHTTPArena(*baseURL, 0)
	} else {
		coll, err := localCollection(ctx, *players, *seed, *bufferSize, *legacy)
		if err != nil {
			os.Stderr.WriteString("failed to start collection: " + err.Error() + "\n")
			os.Exit(1)
		}
		defer func() { _ = coll.Close(context.Background()) }()
		arena = coll
	}

	res, err := simulation.Run(ctx, arena, simulation.Config{
		Matches:     *matches,
		Concurrency: *concurrency,
		Noise:       *noise,
		Seed:        *seed,
	})
	if err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		return
	}

	fmt.Printf("players=%d matches=%d msre=%.2f duration=%s\n",
		len(res.Leaderboard), res.Matches, res.MSRE, res.Duration.Round(time.Millisecond))

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			os.Stderr.WriteString("create csv: " + err.Error() + "\n")
			return
		}
		defer func() { _ = f.Close() }()
		if err := simulation.WriteCSV(f, res.Leaderboard); err != nil {
			os.Stderr.WriteString("write csv: " + err.Error() + "\n")
		}
	}
}

// localCollection seeds an in-memory store with ranked names.
func localCollection(ctx context.Context, players int, seed uint64, bufferSize int, legacy bool) (*app.Collection, error) {
	term := glicko.StandardScore
	if legacy {
		term = glicko.LegacyScore
	}
	store := repository.NewMemoryStore(
		repository.WithSeed(seed),
		repository.WithPlayers(simulation.Names(players)...),
	)
	return app.New(ctx, store,
		app.WithSeed(seed),
		app.WithCandidateBufferSize(bufferSize),
		app.WithScoreTerm(term),
	)
}
