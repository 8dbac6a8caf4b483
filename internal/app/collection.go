// Package app composes the rating core into a Collection: the facade the
// HTTP layer, the simulation harness and the command line talk to.
//
// Reads are served from a buffer of precomputed duels. Judged matches go
// through a bounded queue to a worker pool; each worker applies one match in a
// store transaction and then tops the buffer up if it ran low. At most one
// top-up runs at a time.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/duelrank/internal/adapters/mq/queue"
	"github.com/okian/duelrank/internal/adapters/mq/worker"
	"github.com/okian/duelrank/internal/adapters/repository"
	"github.com/okian/duelrank/internal/domain/candidates"
	"github.com/okian/duelrank/internal/domain/dedupe"
	"github.com/okian/duelrank/internal/domain/glicko"
	"github.com/okian/duelrank/internal/domain/matchmaking"
	"github.com/okian/duelrank/internal/domain/model"
	"github.com/okian/duelrank/pkg/logger"
	"github.com/okian/duelrank/pkg/metrics"
)

// Defaults used when no option overrides them.
const (
	DefaultCandidateBufferSize = 20
	DefaultSyncBatchSize       = 3
	DefaultQueueSize           = 10_000
	DefaultDecayPeriod         = 24 * time.Hour
)

// Stats is a point-in-time view of the collection.
type Stats struct {
	Players        int    `json:"players"`
	Matches        int    `json:"matches"`
	Buffered       int    `json:"buffered"`
	BufferCapacity int    `json:"buffer_capacity"`
	Dropped        uint64 `json:"dropped"`
	RefillInFlight bool   `json:"refill_in_flight"`
	QueueLength    int    `json:"queue_length"`
	QueueCapacity  int    `json:"queue_capacity"`
	Workers        int    `json:"workers"`
	ActiveWorkers  int    `json:"active_workers"`
}

// Collection ranks one population of players.
type Collection struct {
	store      repository.Store
	matchmaker *matchmaking.Matchmaker
	engine     glicko.Engine
	buffer     *candidates.Buffer[model.Duel]
	flight     candidates.Flight
	deduper    dedupe.Deduper
	queue      *queue.InMemoryQueue
	pool       *worker.Pool

	bufferSize  int
	syncBatch   int
	queueSize   int
	workerCount int
	dedupeSize  int
	bandWidth   float64
	decayPeriod time.Duration
	engineOpts  []glicko.Option
	seed        *uint64
	now         func() time.Time

	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	logger logger.Logger
}

// New builds a Collection over store, starts its workers and primes the
// duel buffer. A population below two players is not an error here; NewDuel
// reports it until players are added.
func New(ctx context.Context, store repository.Store, opts ...Option) (*Collection, error) {
	c := &Collection{
		store:       store,
		bufferSize:  DefaultCandidateBufferSize,
		syncBatch:   DefaultSyncBatchSize,
		queueSize:   DefaultQueueSize,
		workerCount: runtime.NumCPU(),
		dedupeSize:  dedupe.DefaultMaxSize,
		bandWidth:   matchmaking.DefaultBandWidth,
		decayPeriod: DefaultDecayPeriod,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("collection")
	}

	count, err := store.PlayerCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count players: %w", err)
	}

	c.engine = glicko.New(c.engineOpts...)
	c.buffer = candidates.NewBuffer[model.Duel](min(c.bufferSize, max(1, count)))

	mmOpts := []matchmaking.Option{
		matchmaking.WithBandWidth(c.bandWidth),
		matchmaking.WithLogger(c.logger.Named("matchmaking")),
	}
	if c.seed != nil {
		mmOpts = append(mmOpts, matchmaking.WithSeed(*c.seed))
	}
	c.matchmaker = matchmaking.New(store, mmOpts...)

	c.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(c.dedupeSize))
	c.queue = queue.NewInMemoryQueue(queue.WithCapacity(c.queueSize))
	c.pool = worker.NewPool(c.workerCount, c.queue, c)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.pool.Start(runCtx)

	metrics.UpdateTotalPlayers(count)
	metrics.UpdateCandidateBuffer(0, c.buffer.Cap())

	if count < 2 {
		c.logger.Warn(ctx, "population too small to pair", logger.Int("players", count))
	} else {
		c.refill(ctx)
	}

	c.logger.Info(ctx, "collection ready",
		logger.Int("players", count),
		logger.Int("buffer_capacity", c.buffer.Cap()),
		logger.Int("workers", c.pool.Size()),
		logger.String("score_term", c.engine.ScoreTerm().String()),
	)
	return c, nil
}

// NewDuel returns the next pairing to present. It pops a precomputed duel
// when one is buffered. Otherwise a small batch is selected on the spot: the
// first duel is returned and the rest are offered to the buffer.
func (c *Collection) NewDuel(ctx context.Context) (model.Duel, error) {
	if c.closed.Load() {
		return model.Duel{}, ErrClosed
	}

	if d, ok := c.buffer.TryPop(); ok {
		metrics.RecordDuelServed("buffer")
		metrics.UpdateCandidateBuffer(c.buffer.Len(), c.buffer.Cap())
		return d, nil
	}

	duels, err := c.matchmaker.SelectBatch(ctx, c.syncBatch)
	if err != nil {
		if !errors.Is(err, repository.ErrInsufficientPopulation) {
			metrics.RecordErrorByComponent("collection", "select_batch")
		}
		return model.Duel{}, fmt.Errorf("select duel: %w", err)
	}
	if len(duels) == 0 {
		return model.Duel{}, repository.ErrInsufficientPopulation
	}

	// may race with a guarded refill; both only push
	c.offer(duels[1:])
	metrics.RecordDuelServed("fallback")
	return duels[0], nil
}

// RecordMatch validates m and queues it for recording. It returns once the
// match is queued; failures while applying it are logged. A match whose id
// was already submitted is accepted and ignored.
func (c *Collection) RecordMatch(ctx context.Context, m model.Match) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := m.Validate(); err != nil {
		return err
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	} else if c.deduper.SeenAndRecord(ctx, m.ID) {
		metrics.RecordMatchDuplicate()
		c.logger.Debug(ctx, "duplicate match submission", logger.String("match_id", m.ID))
		return nil
	}
	if m.PlayedAt.IsZero() {
		m.PlayedAt = c.now()
	}

	err := c.queue.Enqueue(ctx, queue.Task{Match: m})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrFull):
		c.deduper.Unrecord(ctx, m.ID)
		return fmt.Errorf("%w: %d pending", ErrBackpressure, c.queue.Len())
	case errors.Is(err, queue.ErrClosed):
		c.deduper.Unrecord(ctx, m.ID)
		return ErrClosed
	default:
		c.deduper.Unrecord(ctx, m.ID)
		return fmt.Errorf("enqueue match: %w", err)
	}
}

// Record applies one match synchronously: both players are rated from the
// same pre-match snapshot and the match is appended, all in one store
// transaction. A match id already stored is treated as success. When the
// transaction fails the id is forgotten so the caller can submit it again.
// Afterwards the buffer is refilled if it is below half capacity and no
// refill is running.
func (c *Collection) Record(ctx context.Context, m model.Match) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.PlayedAt.IsZero() {
		m.PlayedAt = c.now()
	}

	start := time.Now()
	err := c.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return c.apply(ctx, tx, m)
	})
	switch {
	case errors.Is(err, repository.ErrDuplicateMatch):
		metrics.RecordMatchDuplicate()
		c.logger.Debug(ctx, "match already recorded", logger.String("match_id", m.ID))
		return nil
	case err != nil:
		if m.ID != "" {
			c.deduper.Unrecord(ctx, m.ID)
		}
		metrics.RecordMatchFailed()
		metrics.RecordErrorByComponent("collection", "record")
		return fmt.Errorf("record match %d vs %d: %w", m.HomeID, m.GuestID, err)
	}
	metrics.RecordMatchRecorded()
	metrics.RecordRatingUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)

	c.refill(ctx)
	return nil
}

func (c *Collection) apply(ctx context.Context, tx repository.Tx, m model.Match) error {
	// lower id first so concurrent transactions lock rows in one order
	first, second := m.HomeID, m.GuestID
	if first > second {
		first, second = second, first
	}
	a, err := tx.GetPlayer(ctx, first)
	if err != nil {
		return err
	}
	b, err := tx.GetPlayer(ctx, second)
	if err != nil {
		return err
	}
	home, guest := a, b
	if home.ID != m.HomeID {
		home, guest = b, a
	}

	now := c.tick(m.PlayedAt)
	h, g := c.engine.Pair(c.snapshot(home, now), c.snapshot(guest, now), float64(m.Outcome), now)

	if err := tx.ApplyRatingUpdate(ctx, home.ID, h.Rating, h.Deviation, m.PlayedAt); err != nil {
		return err
	}
	if err := tx.ApplyRatingUpdate(ctx, guest.ID, g.Rating, g.Deviation, m.PlayedAt); err != nil {
		return err
	}
	return tx.AppendMatch(ctx, m)
}

// tick converts wall time to the decay clock.
func (c *Collection) tick(t time.Time) int64 {
	return t.UnixNano() / int64(c.decayPeriod)
}

func (c *Collection) snapshot(p model.Player, now int64) glicko.Rating {
	at := now
	if !p.UpdatedAt.IsZero() {
		at = c.tick(p.UpdatedAt)
	}
	return glicko.Rating{Rating: p.Rating, Deviation: p.Deviation, Time: at}
}

// refill tops the buffer up with one batch of capacity duels when it is
// below half full. Only one refill runs at a time; a caller that loses the
// race returns immediately.
func (c *Collection) refill(ctx context.Context) {
	if !c.buffer.BelowLowWater() {
		return
	}
	if !c.flight.TryAcquire() {
		metrics.RecordRefillSkipped()
		return
	}
	metrics.UpdateRefillInFlight(true)
	defer func() {
		c.flight.Release()
		metrics.UpdateRefillInFlight(false)
	}()

	start := time.Now()
	duels, err := c.matchmaker.SelectBatch(ctx, c.buffer.Cap())
	if err != nil {
		metrics.RecordErrorByComponent("collection", "refill")
		c.logger.Warn(ctx, "refill failed", logger.Error(err))
		return
	}
	pushed := c.offer(duels)
	metrics.RecordRefill(float64(time.Since(start).Microseconds())/1000, pushed)
}

// offer pushes duels without blocking and returns how many were taken.
func (c *Collection) offer(duels []model.Duel) int {
	pushed := 0
	for _, d := range duels {
		if c.buffer.TryPush(d) {
			pushed++
			continue
		}
		metrics.RecordCandidateDropped()
	}
	metrics.UpdateCandidateBuffer(c.buffer.Len(), c.buffer.Cap())
	return pushed
}

// Players returns the leaderboard: every player by rating, best first.
func (c *Collection) Players(ctx context.Context) ([]model.Player, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	players, err := c.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

// Stats reports buffer, queue and store counters.
func (c *Collection) Stats(ctx context.Context) (Stats, error) {
	if c.closed.Load() {
		return Stats{}, ErrClosed
	}
	players, err := c.store.PlayerCount(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count players: %w", err)
	}
	matches, err := c.store.MatchCount(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count matches: %w", err)
	}
	return Stats{
		Players:        players,
		Matches:        matches,
		Buffered:       c.buffer.Len(),
		BufferCapacity: c.buffer.Cap(),
		Dropped:        c.buffer.Dropped(),
		RefillInFlight: c.flight.InFlight(),
		QueueLength:    c.queue.Len(),
		QueueCapacity:  c.queue.Cap(),
		Workers:        c.pool.Size(),
		ActiveWorkers:  c.pool.Active(),
	}, nil
}

// Close stops accepting matches, waits for the queued ones to be recorded
// and closes the store. If ctx expires before the queue drains, the store is
// left open for the workers still recording and the drain error is returned;
// those workers stop once the queue is empty. Only the first call does any
// work.
func (c *Collection) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.logger.Info(ctx, "closing collection", logger.Int("pending", c.queue.Len()))

		if err := c.pool.Shutdown(ctx); err != nil {
			c.logger.Warn(ctx, "matches still pending, store left open",
				logger.Int("pending", c.queue.Len()),
				logger.Error(err))
			c.closeErr = fmt.Errorf("drain matches: %w", err)
			return
		}
		c.cancel()
		if err := c.store.Close(); err != nil {
			c.closeErr = fmt.Errorf("close store: %w", err)
		}
	})
	return c.closeErr
}
