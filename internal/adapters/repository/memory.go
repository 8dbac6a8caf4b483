package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/metrics"
)

// MemoryStore is a Store held entirely in process memory. Players are indexed
// by two treaps: one ordered by rating and one by deviation. A transaction
// holds the write lock from start to commit, so rating updates are serialised.
type MemoryStore struct {
	mu         sync.RWMutex
	players    map[int64]model.Player
	byName     map[string]int64
	byRating   *node
	byDev      *node
	matchIDs   map[string]struct{}
	matchCount int
	nextID     int64
	closed     bool
	preload    []string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewMemoryStore constructs an empty store with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		players:  make(map[int64]model.Player),
		byName:   make(map[string]int64),
		matchIDs: make(map[string]struct{}),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.preload) > 0 {
		s.mu.Lock()
		s.addLocked(s.preload)
		s.mu.Unlock()
		s.preload = nil
	}
	return s
}

func (s *MemoryStore) random() uint64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Uint64()
}

func (s *MemoryStore) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.IntN(n)
}

func observe(op string, start time.Time) {
	metrics.RecordStoreQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func (s *MemoryStore) index(p model.Player) {
	s.byRating = insert(s.byRating, p.ID, p.Rating, s.random())
	s.byDev = insert(s.byDev, p.ID, p.Deviation, s.random())
}

func (s *MemoryStore) unindex(p model.Player) {
	s.byRating = deleteNode(s.byRating, p.ID, p.Rating)
	s.byDev = deleteNode(s.byDev, p.ID, p.Deviation)
}

func (s *MemoryStore) lookup(ids []int64) []model.Player {
	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.players[id])
	}
	return out
}

// GetPlayer implements Reader.GetPlayer.
func (s *MemoryStore) GetPlayer(_ context.Context, id int64) (model.Player, error) {
	defer observe("get_player", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Player{}, ErrStoreUnavailable
	}
	p, ok := s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("player %d: %w", id, ErrNotFound)
	}
	return p, nil
}

// ListByDeviationDesc implements Reader.ListByDeviationDesc in O(limit + log n).
func (s *MemoryStore) ListByDeviationDesc(_ context.Context, limit int) ([]model.Player, error) {
	defer observe("list_by_deviation", time.Now())

	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreUnavailable
	}
	ids := make([]int64, 0, min(limit, len(s.players)))
	collectTopN(s.byDev, limit, &ids)
	return s.lookup(ids), nil
}

// ListInBand implements Reader.ListInBand.
func (s *MemoryStore) ListInBand(_ context.Context, excludeID int64, low, high float64) ([]model.Player, error) {
	defer observe("list_in_band", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreUnavailable
	}
	var ids []int64
	collectRange(s.byRating, low, high, &ids)
	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		if id != excludeID {
			out = append(out, s.players[id])
		}
	}
	return out, nil
}

// SampleUniform implements Reader.SampleUniform using the order statistics of
// the rating treap.
func (s *MemoryStore) SampleUniform(_ context.Context, excludeID int64) (model.Player, error) {
	defer observe("sample_uniform", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Player{}, ErrStoreUnavailable
	}

	n := len(s.players)
	excluded, hasExcluded := s.players[excludeID]
	if hasExcluded {
		n--
	}
	if n < 1 {
		return model.Player{}, ErrInsufficientPopulation
	}

	k := s.intn(n)
	if hasExcluded && k >= position(s.byRating, excluded.Rating, excluded.ID) {
		k++
	}
	return s.players[nth(s.byRating, k).id], nil
}

// PlayerCount implements Reader.PlayerCount.
func (s *MemoryStore) PlayerCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreUnavailable
	}
	return len(s.players), nil
}

// InTx implements Store.InTx. Writes are staged on the transaction and
// applied only when fn returns nil.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreTxLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreUnavailable
	}

	tx := &memTx{s: s, staged: make(map[int64]model.Player, 2)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, p := range tx.staged {
		s.unindex(s.players[id])
		s.players[id] = p
		s.index(p)
	}
	for _, id := range tx.matchIDs {
		s.matchIDs[id] = struct{}{}
	}
	s.matchCount += tx.matches
	return nil
}

type memTx struct {
	s        *MemoryStore
	staged   map[int64]model.Player
	matchIDs []string
	matches  int
}

func (tx *memTx) GetPlayer(_ context.Context, id int64) (model.Player, error) {
	if p, ok := tx.staged[id]; ok {
		return p, nil
	}
	p, ok := tx.s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("player %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (tx *memTx) ApplyRatingUpdate(ctx context.Context, id int64, rating, deviation float64, at time.Time) error {
	p, err := tx.GetPlayer(ctx, id)
	if err != nil {
		return err
	}
	p.Rating = rating
	p.Deviation = deviation
	p.UpdatedAt = at
	tx.staged[id] = p
	return nil
}

func (tx *memTx) AppendMatch(_ context.Context, m model.Match) error {
	if m.ID != "" {
		if _, ok := tx.s.matchIDs[m.ID]; ok {
			return fmt.Errorf("match %s: %w", m.ID, ErrDuplicateMatch)
		}
		for _, id := range tx.matchIDs {
			if id == m.ID {
				return fmt.Errorf("match %s: %w", m.ID, ErrDuplicateMatch)
			}
		}
		tx.matchIDs = append(tx.matchIDs, m.ID)
	}
	tx.matches++
	return nil
}

// AddPlayers implements Store.AddPlayers.
func (s *MemoryStore) AddPlayers(_ context.Context, names ...string) ([]model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreUnavailable
	}
	return s.addLocked(names), nil
}

func (s *MemoryStore) addLocked(names []string) []model.Player {
	var added []model.Player
	for _, name := range names {
		if _, ok := s.byName[name]; ok {
			continue
		}
		s.nextID++
		p := model.NewPlayer(s.nextID, name)
		s.players[p.ID] = p
		s.byName[name] = p.ID
		s.index(p)
		added = append(added, p)
	}
	metrics.UpdateTotalPlayers(len(s.players))
	return added
}

// RemovePlayers implements Store.RemovePlayers.
func (s *MemoryStore) RemovePlayers(_ context.Context, names ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreUnavailable
	}
	removed := 0
	for _, name := range names {
		id, ok := s.byName[name]
		if !ok {
			continue
		}
		s.unindex(s.players[id])
		delete(s.players, id)
		delete(s.byName, name)
		removed++
	}
	metrics.UpdateTotalPlayers(len(s.players))
	return removed, nil
}

// ListPlayers implements Store.ListPlayers.
func (s *MemoryStore) ListPlayers(_ context.Context) ([]model.Player, error) {
	defer observe("list_players", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreUnavailable
	}
	ids := make([]int64, 0, len(s.players))
	collectTopN(s.byRating, len(s.players), &ids)
	return s.lookup(ids), nil
}

// MatchCount implements Store.MatchCount.
func (s *MemoryStore) MatchCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreUnavailable
	}
	return s.matchCount, nil
}

// Close implements Store.Close. Later calls fail with ErrStoreUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
