package repository

import "math/rand/v2"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSeed makes treap priorities and uniform sampling reproducible.
func WithSeed(seed uint64) Option {
	return func(s *MemoryStore) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithPlayers preloads the store with players at the initial rating.
func WithPlayers(names ...string) Option {
	return func(s *MemoryStore) {
		s.preload = append(s.preload, names...)
	}
}
