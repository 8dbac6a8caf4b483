// Package postgres implements repository.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/duelrank/internal/adapters/repository"
	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/metrics"
)

//go:embed schema.sql
var schema embed.FS

const (
	playerColumns  = `id, name, rating, deviation, updated_at`
	uniqueViolated = "23505"
)

// Store is a repository.Store backed by a pgx connection pool. Transactions
// lock the rows they read with SELECT ... FOR UPDATE.
type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, unavailable("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping", err)
	}
	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, string(sqlBytes)); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, repository.ErrStoreUnavailable, err)
}

func scanPlayer(row pgx.Row) (model.Player, error) {
	var (
		p  model.Player
		at *time.Time
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Rating, &p.Deviation, &at); err != nil {
		return model.Player{}, err
	}
	if at != nil {
		p.UpdatedAt = at.UTC()
	}
	return p, nil
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]model.Player, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
	}()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Player, error) {
		return scanPlayer(row)
	})
	if err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

// GetPlayer implements repository.Reader.
func (s *Store) GetPlayer(ctx context.Context, id int64) (model.Player, error) {
	p, err := scanPlayer(s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Player{}, fmt.Errorf("player %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return model.Player{}, unavailable("get player", err)
	}
	return p, nil
}

// ListByDeviationDesc implements repository.Reader.
func (s *Store) ListByDeviationDesc(ctx context.Context, limit int) ([]model.Player, error) {
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	return s.list(ctx, "list_by_deviation",
		`SELECT `+playerColumns+` FROM players ORDER BY deviation DESC, id ASC LIMIT $1`, limit)
}

// ListInBand implements repository.Reader.
func (s *Store) ListInBand(ctx context.Context, excludeID int64, low, high float64) ([]model.Player, error) {
	return s.list(ctx, "list_in_band",
		`SELECT `+playerColumns+` FROM players
		  WHERE id <> $1 AND rating BETWEEN $2 AND $3
		  ORDER BY rating DESC, id ASC`, excludeID, low, high)
}

// SampleUniform implements repository.Reader.
func (s *Store) SampleUniform(ctx context.Context, excludeID int64) (model.Player, error) {
	p, err := scanPlayer(s.pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id <> $1 ORDER BY random() LIMIT 1`, excludeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Player{}, repository.ErrInsufficientPopulation
	}
	if err != nil {
		return model.Player{}, unavailable("sample uniform", err)
	}
	return p, nil
}

// PlayerCount implements repository.Reader.
func (s *Store) PlayerCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&n); err != nil {
		return 0, unavailable("player count", err)
	}
	return n, nil
}

// InTx implements repository.Store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreTxLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	return s.withTx(ctx, func(pgTx pgx.Tx) error {
		return fn(ctx, &tx{tx: pgTx})
	})
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin", err)
	}
	if err := fn(pgTx); err != nil {
		_ = pgTx.Rollback(ctx)
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

type tx struct {
	tx pgx.Tx
}

// GetPlayer locks the row until the transaction ends. Callers touching two
// players read them in id order.
func (t *tx) GetPlayer(ctx context.Context, id int64) (model.Player, error) {
	p, err := scanPlayer(t.tx.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Player{}, fmt.Errorf("player %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return model.Player{}, unavailable("get player", err)
	}
	return p, nil
}

func (t *tx) ApplyRatingUpdate(ctx context.Context, id int64, rating, deviation float64, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE players SET rating = $2, deviation = $3, updated_at = $4 WHERE id = $1`,
		id, rating, deviation, at)
	if err != nil {
		return unavailable("apply rating update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (t *tx) AppendMatch(ctx context.Context, m model.Match) error {
	var id *string
	if m.ID != "" {
		id = &m.ID
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO matches(id, home_id, guest_id, outcome, played_at) VALUES ($1, $2, $3, $4, $5)`,
		id, m.HomeID, m.GuestID, float64(m.Outcome), m.PlayedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolated {
		return fmt.Errorf("match %s: %w", m.ID, repository.ErrDuplicateMatch)
	}
	if err != nil {
		return unavailable("append match", err)
	}
	return nil
}

// AddPlayers implements repository.Store.
func (s *Store) AddPlayers(ctx context.Context, names ...string) ([]model.Player, error) {
	var added []model.Player
	err := s.withTx(ctx, func(pgTx pgx.Tx) error {
		for _, name := range names {
			var id int64
			err := pgTx.QueryRow(ctx,
				`INSERT INTO players(name, rating, deviation) VALUES ($1, $2, $3)
				 ON CONFLICT (name) DO NOTHING
				 RETURNING id`, name, model.InitialRating, model.InitialDeviation).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return unavailable("add player", err)
			}
			added = append(added, model.NewPlayer(id, name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.updatePlayerGauge(ctx)
	return added, nil
}

// RemovePlayers implements repository.Store.
func (s *Store) RemovePlayers(ctx context.Context, names ...string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM players WHERE name = ANY($1)`, names)
	if err != nil {
		return 0, unavailable("remove players", err)
	}
	s.updatePlayerGauge(ctx)
	return int(tag.RowsAffected()), nil
}

func (s *Store) updatePlayerGauge(ctx context.Context) {
	if n, err := s.PlayerCount(ctx); err == nil {
		metrics.UpdateTotalPlayers(n)
	}
}

// ListPlayers implements repository.Store.
func (s *Store) ListPlayers(ctx context.Context) ([]model.Player, error) {
	return s.list(ctx, "list_players",
		`SELECT `+playerColumns+` FROM players ORDER BY rating DESC, id ASC`)
}

// MatchCount implements repository.Store.
func (s *Store) MatchCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, unavailable("match count", err)
	}
	return n, nil
}

// Truncate deletes every player and match and resets the id sequences.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE players, matches RESTART IDENTITY`); err != nil {
		return unavailable("truncate", err)
	}
	return nil
}

// Close implements repository.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
