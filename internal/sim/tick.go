package sim

import (
	"context"
	"sync"
	"time"
)

// TickManager runs a periodic tick for each registered scenario runner.
// Each callback is invoked sequentially within the manager's goroutine.
//
// Invariant: all callbacks are invoked at most once per tick interval.
type TickManager struct {
	interval time.Duration
	mu       sync.Mutex
	ticks    map[string]func()
}

// NewTickManager returns a manager that fires ticks every interval.
//
// Precondition: interval must be > 0.
func NewTickManager(interval time.Duration) *TickManager {
	if interval <= 0 {
		panic("sim.NewTickManager: interval must be > 0")
	}
	return &TickManager{
		interval: interval,
		ticks:    make(map[string]func()),
	}
}

// RegisterTick registers a callback for scenarioID. Replaces any existing
// callback.
func (m *TickManager) RegisterTick(scenarioID string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[scenarioID] = fn
}

// Unregister removes the tick callback for scenarioID.
func (m *TickManager) Unregister(scenarioID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ticks, scenarioID)
}

// Start begins the tick loop. Runs until ctx is cancelled.
//
// Postcondition: all registered tick callbacks are invoked once per interval.
func (m *TickManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.Lock()
				callbacks := make(map[string]func(), len(m.ticks))
				for k, v := range m.ticks {
					callbacks[k] = v
				}
				m.mu.Unlock()
				for _, fn := range callbacks {
					fn()
				}
			}
		}
	}()
}
