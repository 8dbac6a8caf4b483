package matchmaking

import (
	"math/rand/v2"
	"sync"

	"github.com/okian/duelrank/pkg/logger"
)

// DefaultBandWidth is k in the guest band [r − k·d, r + k·d].
const DefaultBandWidth = 1.96

// Option applies a configuration option to the Matchmaker.
type Option func(*Matchmaker)

// WithBandWidth sets k, the band half-width in deviations.
func WithBandWidth(k float64) Option {
	return func(m *Matchmaker) {
		if k > 0 {
			m.bandWidth = k
		}
	}
}

// WithSeed makes guest picks reproducible.
func WithSeed(seed uint64) Option {
	return func(m *Matchmaker) {
		var mu sync.Mutex
		r := rand.New(rand.NewPCG(seed, seed+1))
		m.intn = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return r.IntN(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Matchmaker) {
		if l != nil {
			m.logger = l
		}
	}
}
