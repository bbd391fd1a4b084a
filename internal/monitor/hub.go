package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Hub tracks live monitors so they can be stopped together, for example
// when the process receives a signal.
type Hub struct {
	mu       sync.Mutex
	monitors []*Monitor
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Add registers m. Adding the same monitor twice has no effect.
func (h *Hub) Add(m *Monitor) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, existing := range h.monitors {
		if existing == m {
			return
		}
	}
	h.monitors = append(h.monitors, m)
}

// Remove unregisters m and reports whether it was registered.
func (h *Hub) Remove(m *Monitor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.monitors {
		if existing == m {
			h.monitors = append(h.monitors[:i], h.monitors[i+1:]...)
			return true
		}
	}
	return false
}

// Count returns the number of registered monitors.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.monitors)
}

// Monitors returns the registered monitors in registration order.
func (h *Hub) Monitors() []*Monitor {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Monitor, len(h.monitors))
	copy(out, h.monitors)
	return out
}

// StopAll stops every registered monitor concurrently and waits for them.
// It returns the joined errors of monitors that did not stop before ctx ended.
func (h *Hub) StopAll(ctx context.Context) error {
	monitors := h.Monitors()

	errs := make([]error, len(monitors))
	var wg sync.WaitGroup
	for i, m := range monitors {
		wg.Go(func() {
			if err := m.Stop(ctx); err != nil {
				errs[i] = fmt.Errorf("monitor %s: %w", m.ID(), err)
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}
