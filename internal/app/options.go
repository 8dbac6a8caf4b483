package app

import (
	"time"

	"github.com/okian/duelrank/internal/domain/glicko"
	"github.com/okian/duelrank/pkg/logger"
)

// Option applies a configuration option to the Collection.
type Option func(*Collection)

// WithCandidateBufferSize caps the precomputed duels. The effective capacity
// is never larger than the population.
func WithCandidateBufferSize(n int) Option {
	return func(c *Collection) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithSyncBatchSize sets the batch selected when the buffer is empty.
func WithSyncBatchSize(n int) Option {
	return func(c *Collection) {
		if n > 0 {
			c.syncBatch = n
		}
	}
}

// WithQueueSize bounds the match queue.
func WithQueueSize(n int) Option {
	return func(c *Collection) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithWorkerCount sets the number of match recording workers.
func WithWorkerCount(n int) Option {
	return func(c *Collection) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithDedupeSize sets how many submitted match ids are remembered.
func WithDedupeSize(n int) Option {
	return func(c *Collection) {
		if n > 0 {
			c.dedupeSize = n
		}
	}
}

// WithBandWidth sets the matchmaking band half-width in deviations.
func WithBandWidth(k float64) Option {
	return func(c *Collection) {
		if k > 0 {
			c.bandWidth = k
		}
	}
}

// WithDecay enables deviation growth of factor per elapsed period.
func WithDecay(factor float64, period time.Duration) Option {
	return func(c *Collection) {
		if factor >= 0 {
			c.engineOpts = append(c.engineOpts, glicko.WithDecayFactor(factor))
		}
		if period > 0 {
			c.decayPeriod = period
		}
	}
}

// WithScoreTerm selects the rating step.
func WithScoreTerm(t glicko.ScoreTerm) Option {
	return func(c *Collection) {
		c.engineOpts = append(c.engineOpts, glicko.WithScoreTerm(t))
	}
}

// WithSeed makes matchmaking reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Collection) {
		c.seed = &seed
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger for the collection.
func WithLogger(l logger.Logger) Option {
	return func(c *Collection) {
		if l != nil {
			c.logger = l
		}
	}
}
