// Package sqlite implements repository.Store on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/okian/duelrank/internal/adapters/repository"
	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/metrics"
)

//go:embed schema.sql
var schema string

const playerColumns = `id, name, rating, deviation, updated_at`

// Store is a repository.Store backed by SQLite. All access goes through one
// connection and every transaction starts IMMEDIATE, so rating updates are
// serialised by the database.
type Store struct {
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

// Open opens (creating if needed) the database at location and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, location string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(location))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", location, repository.ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w: %w", repository.ErrStoreUnavailable, err)
	}
	return &Store{db: db}, nil
}

func dsn(location string) string {
	sep := "?"
	if strings.Contains(location, "?") {
		sep = "&"
	}
	return location + sep + "_txlock=immediate&_busy_timeout=5000"
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, repository.ErrStoreUnavailable, err)
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanner) (model.Player, error) {
	var (
		p  model.Player
		at int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Rating, &p.Deviation, &at); err != nil {
		return model.Player{}, err
	}
	p.UpdatedAt = fromNanos(at)
	return p, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPlayer(ctx context.Context, q querier, id int64) (model.Player, error) {
	p, err := scanPlayer(q.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Player{}, fmt.Errorf("player %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return model.Player{}, unavailable("get player", err)
	}
	return p, nil
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]model.Player, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
	}()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

// GetPlayer implements repository.Reader.
func (s *Store) GetPlayer(ctx context.Context, id int64) (model.Player, error) {
	return getPlayer(ctx, s.db, id)
}

// ListByDeviationDesc implements repository.Reader.
func (s *Store) ListByDeviationDesc(ctx context.Context, limit int) ([]model.Player, error) {
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	return s.list(ctx, "list_by_deviation",
		`SELECT `+playerColumns+` FROM players ORDER BY deviation DESC, id ASC LIMIT ?`, limit)
}

// ListInBand implements repository.Reader.
func (s *Store) ListInBand(ctx context.Context, excludeID int64, low, high float64) ([]model.Player, error) {
	return s.list(ctx, "list_in_band",
		`SELECT `+playerColumns+` FROM players
		  WHERE id <> ? AND rating BETWEEN ? AND ?
		  ORDER BY rating DESC, id ASC`, excludeID, low, high)
}

// SampleUniform implements repository.Reader.
func (s *Store) SampleUniform(ctx context.Context, excludeID int64) (model.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id <> ? ORDER BY RANDOM() LIMIT 1`, excludeID))
	if errors.Is(err, sql.ErrNoRows) {
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&n); err != nil {
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

	return s.withTx(ctx, func(sqlTx *sql.Tx) error {
		return fn(ctx, &tx{tx: sqlTx})
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	if err := fn(sqlTx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) GetPlayer(ctx context.Context, id int64) (model.Player, error) {
	return getPlayer(ctx, t.tx, id)
}

func (t *tx) ApplyRatingUpdate(ctx context.Context, id int64, rating, deviation float64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE players SET rating = ?, deviation = ?, updated_at = ? WHERE id = ?`,
		rating, deviation, toNanos(at), id)
	if err != nil {
		return unavailable("apply rating update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("player %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (t *tx) AppendMatch(ctx context.Context, m model.Match) error {
	var id any
	if m.ID != "" {
		id = m.ID
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO matches(id, home_id, guest_id, outcome, played_at) VALUES (?, ?, ?, ?, ?)`,
		id, m.HomeID, m.GuestID, float64(m.Outcome), toNanos(m.PlayedAt))

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
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
	err := s.withTx(ctx, func(sqlTx *sql.Tx) error {
		for _, name := range names {
			res, err := sqlTx.ExecContext(ctx,
				`INSERT OR IGNORE INTO players(name, rating, deviation) VALUES (?, ?, ?)`,
				name, model.InitialRating, model.InitialDeviation)
			if err != nil {
				return unavailable("add player", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			id, err := res.LastInsertId()
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
	removed := 0
	err := s.withTx(ctx, func(sqlTx *sql.Tx) error {
		for _, name := range names {
			res, err := sqlTx.ExecContext(ctx, `DELETE FROM players WHERE name = ?`, name)
			if err != nil {
				return unavailable("remove player", err)
			}
			n, _ := res.RowsAffected()
			removed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.updatePlayerGauge(ctx)
	return removed, nil
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, unavailable("match count", err)
	}
	return n, nil
}

// Close implements repository.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
