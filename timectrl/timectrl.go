package timectrl

import (
	"sync"
	"time"
)

// Mode describes how the TickController advances simulation ticks.
type Mode int

const (
	// RealTime advances one tick per TickDuration of wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run, one tick at a time.
	Accelerated
)

// TickController drives the discrete tick counter and notifies registered
// listeners on every tick. Listeners run synchronously on the controller
// goroutine, so tick N finishes before tick N+1 begins.
type TickController struct {
	mu           sync.RWMutex
	TickDuration time.Duration
	Mode         Mode

	currentTick int64

	listeners []func(int64)

	stopOnce sync.Once
	stop     chan struct{}
}

// NewTickController constructs a controller starting at tick 0.
func NewTickController(tickDuration time.Duration, mode Mode) *TickController {
	return &TickController{
		TickDuration: tickDuration,
		Mode:         mode,
		stop:         make(chan struct{}),
	}
}

// Now returns the last tick the controller completed.
func (tc *TickController) Now() int64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTick
}

// SetTick overrides the current tick counter. Intended for tests and for
// resuming a run from a snapshot.
func (tc *TickController) SetTick(tick int64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTick = tick
}

// AddListener registers a callback invoked on every tick.
func (tc *TickController) AddListener(fn func(int64)) {
	tc.listeners = append(tc.listeners, fn)
}

// Stop ends a running controller. The current tick's listeners complete
// and the Start done channel closes; no further ticks fire. Safe to call
// more than once, from listeners included.
func (tc *TickController) Stop() {
	tc.stopOnce.Do(func() { close(tc.stop) })
}

// Start runs the controller for totalTicks ticks in a separate goroutine.
// It returns a channel that is closed when the controller finishes. A
// non-positive totalTicks runs until Stop is called.
func (tc *TickController) Start(totalTicks int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var ticker *time.Ticker
		if tc.Mode == RealTime {
			ticker = time.NewTicker(tc.TickDuration)
			defer ticker.Stop()
		}

		for elapsed := int64(0); totalTicks <= 0 || elapsed < totalTicks; elapsed++ {
			select {
			case <-tc.stop:
				return
			default:
			}
			if ticker != nil {
				select {
				case <-ticker.C:
				case <-tc.stop:
					return
				}
			}

			tc.mu.Lock()
			tc.currentTick++
			tick := tc.currentTick
			tc.mu.Unlock()

			for _, fn := range tc.listeners {
				fn(tick)
			}
		}
	}()
	return done
}
