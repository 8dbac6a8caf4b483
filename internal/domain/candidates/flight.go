package candidates

import "sync/atomic"

// Flight admits at most one refill at a time. The zero value is ready to use.
type Flight struct {
	busy atomic.Bool
}

// TryAcquire claims the flight. It returns false, without waiting, when a
// refill is already running.
func (f *Flight) TryAcquire() bool {
	return f.busy.CompareAndSwap(false, true)
}

// Release ends the current refill.
func (f *Flight) Release() {
	f.busy.Store(false)
}

// InFlight reports whether a refill is running.
func (f *Flight) InFlight() bool {
	return f.busy.Load()
}
