// Package repository defines the rating store contract, its errors, and the
// in-memory implementation. SQL-backed stores live in the sqlite and postgres
// subpackages.
package repository

import (
	"context"
	"time"

	"github.com/okian/duelrank/internal/domain/model"
)

// Reader is the read side used by matchmaking.
type Reader interface {
	// GetPlayer returns ErrNotFound for an unknown id.
	GetPlayer(ctx context.Context, id int64) (model.Player, error)
	// ListByDeviationDesc returns up to limit players, most uncertain first,
	// ties broken by id ascending.
	ListByDeviationDesc(ctx context.Context, limit int) ([]model.Player, error)
	// ListInBand returns every player other than excludeID whose rating lies
	// in [low, high].
	ListInBand(ctx context.Context, excludeID int64, low, high float64) ([]model.Player, error)
	// SampleUniform picks one player other than excludeID uniformly at random.
	// It returns ErrInsufficientPopulation when there is none.
	SampleUniform(ctx context.Context, excludeID int64) (model.Player, error)
	// PlayerCount returns the population size.
	PlayerCount(ctx context.Context) (int, error)
}

// Tx is the write side of one atomic rating update. A Tx is only valid
// inside the function passed to Store.InTx.
type Tx interface {
	GetPlayer(ctx context.Context, id int64) (model.Player, error)
	ApplyRatingUpdate(ctx context.Context, id int64, rating, deviation float64, at time.Time) error
	// AppendMatch returns ErrDuplicateMatch when a match with the same
	// non-empty id was stored before.
	AppendMatch(ctx context.Context, m model.Match) error
}

// Store is the persistence contract of a collection.
type Store interface {
	Reader

	// InTx runs fn as one atomic unit. Any error from fn rolls back every
	// write made through the Tx.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// AddPlayers inserts players at the initial rating. Names already present
	// are skipped. It returns the players that were added.
	AddPlayers(ctx context.Context, names ...string) ([]model.Player, error)
	// RemovePlayers deletes players by name and returns how many were removed.
	RemovePlayers(ctx context.Context, names ...string) (int, error)
	// ListPlayers returns every player ordered by rating desc, then id asc.
	ListPlayers(ctx context.Context) ([]model.Player, error)
	// MatchCount returns the number of stored matches.
	MatchCount(ctx context.Context) (int, error)

	Close() error
}
