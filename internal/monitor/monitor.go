package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/keychord/internal/event/dispatch"
	"github.com/dshills/keychord/internal/input/chord"
	"github.com/dshills/keychord/internal/input/keymap"
	"github.com/dshills/keychord/internal/input/source"
)

// State is a monitor's lifecycle state.
type State int32

const (
	// StateCreated is a monitor that has never run.
	StateCreated State = iota

	// StateRunning is a monitor inside Run.
	StateRunning

	// StateStopping is a monitor waiting for its dispatch units.
	StateStopping

	// StateStopped is a monitor whose Run has returned.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Monitor reads key events from a source, tracks held keys, and dispatches
// the callbacks bound to each new chord.
type Monitor struct {
	id         string
	src        source.Source
	registry   *keymap.Registry
	reflector  *keymap.Reflector
	tracker    *chord.Tracker
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	hub        *Hub

	mu         sync.Mutex
	state      State
	cancelRead context.CancelFunc
	runDone    chan struct{}
	stopping   atomic.Bool

	echo *echoer
}

// Option configures a Monitor.
type Option func(*config)

type config struct {
	id          string
	logger      *slog.Logger
	hub         *Hub
	display     bool
	echoOut     io.Writer
	echoFormat  EchoFormat
	dispatchOps []dispatch.Option
}

// WithID sets the monitor's identifier. The default is a random UUID.
func WithID(id string) Option {
	return func(c *config) {
		if id != "" {
			c.id = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHub registers the monitor with hub so hub.StopAll reaches it.
func WithHub(h *Hub) Option {
	return func(c *config) {
		c.hub = h
	}
}

// WithDisplayKeys enables chord echo from the start.
func WithDisplayKeys(on bool) Option {
	return func(c *config) {
		c.display = on
	}
}

// WithEcho sets where and how recognized chords are echoed.
func WithEcho(w io.Writer, format EchoFormat) Option {
	return func(c *config) {
		if w != nil {
			c.echoOut = w
		}
		c.echoFormat = format
	}
}

// WithFailureHandler receives every callback failure isolated by the
// monitor's dispatcher.
func WithFailureHandler(h dispatch.FailureHandler) Option {
	return func(c *config) {
		c.dispatchOps = append(c.dispatchOps, dispatch.WithFailureHandler(h))
	}
}

// New creates a monitor reading from src and dispatching from registry.
func New(src source.Source, registry *keymap.Registry, reflector *keymap.Reflector, opts ...Option) *Monitor {
	cfg := config{
		id:         uuid.New().String(),
		logger:     slog.Default(),
		echoOut:    os.Stdout,
		echoFormat: EchoText,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger.With("monitor", cfg.id)
	m := &Monitor{
		id:        cfg.id,
		src:       src,
		registry:  registry,
		reflector: reflector,
		tracker:   chord.NewTracker(),
		logger:    logger,
		hub:       cfg.hub,
		state:     StateCreated,
		echo:      newEchoer(cfg.id, cfg.echoOut, cfg.echoFormat),
	}
	m.echo.enabled.Store(cfg.display)
	m.dispatcher = dispatch.New(reflector, append([]dispatch.Option{dispatch.WithLogger(logger)}, cfg.dispatchOps...)...)

	if m.hub != nil {
		m.hub.Add(m)
	}
	return m
}

// ID implements keymap.Monitor.
func (m *Monitor) ID() string {
	return m.id
}

// Bindings implements keymap.Monitor.
func (m *Monitor) Bindings() *keymap.Registry {
	return m.registry
}

// Reflector implements keymap.Monitor.
func (m *Monitor) Reflector() *keymap.Reflector {
	return m.reflector
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Chord returns the chord formed by the keys held right now.
func (m *Monitor) Chord() string {
	return m.tracker.Chord()
}

// Stats returns the monitor's dispatch statistics.
func (m *Monitor) Stats() dispatch.Stats {
	return m.dispatcher.Stats()
}

// SetDisplayKeys turns chord echo on or off.
func (m *Monitor) SetDisplayKeys(on bool) {
	m.echo.enabled.Store(on)
}

// DisplayKeys reports whether chord echo is on.
func (m *Monitor) DisplayKeys() bool {
	return m.echo.enabled.Load()
}

// Run reads and dispatches events until Shutdown is called, ctx ends, or
// the source is exhausted. It waits for in-flight dispatch units before
// returning. Run returns nil after Shutdown or io.EOF, and ctx.Err() when
// ctx ends first.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateRunning:
		m.mu.Unlock()
		return ErrAlreadyRunning
	case StateStopping:
		m.mu.Unlock()
		return ErrStopping
	case StateStopped:
		m.tracker.Reset()
		m.stopping.Store(false)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancelRead = cancel
	m.runDone = done
	m.state = StateRunning
	if err := m.dispatcher.Open(); err != nil && !errors.Is(err, dispatch.ErrAlreadyRunning) {
		m.mu.Unlock()
		cancel()
		return err
	}
	m.mu.Unlock()

	m.logger.Info("monitor started")
	err := m.loop(runCtx)
	cancel()

	m.setState(StateStopping)
	// Dispatch units are never cancelled; this waits for all of them.
	_ = m.dispatcher.Drain(context.Background())

	m.mu.Lock()
	m.state = StateStopped
	m.cancelRead = nil
	m.mu.Unlock()
	close(done)

	stats := m.dispatcher.Stats()
	m.logger.Info("monitor stopped",
		"units", stats.Units,
		"failed", stats.Failed,
		"panicked", stats.Panicked)

	if err == nil && ctx.Err() != nil && !m.stopping.Load() {
		return ctx.Err()
	}
	return err
}

// loop reads events until a stop condition.
func (m *Monitor) loop(ctx context.Context) error {
	for {
		if m.stopping.Load() {
			return nil
		}

		ev, err := m.src.Next(ctx)
		if err != nil {
			switch {
			case m.stopping.Load():
				return nil
			case errors.Is(err, io.EOF):
				m.logger.Info("input exhausted")
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				m.logger.Error("reading input", "error", err)
				return err
			}
		}
		m.handle(ev)
	}
}

// handle feeds one event through the tracker and, on a new chord, the
// dispatcher.
func (m *Monitor) handle(ev source.Event) {
	switch ev.Type {
	case source.Down:
		current, ok := m.tracker.Press(ev.Name)
		if !ok {
			return
		}
		m.echo.write(current)

		if m.stopping.Load() {
			return
		}
		entries := m.registry.Snapshot(current)
		if len(entries) == 0 {
			return
		}
		if err := m.dispatcher.Dispatch(m, current, entries); err != nil {
			m.logger.Debug("chord not dispatched", "chord", current, "error", err)
			return
		}
		m.logger.Debug("chord dispatched", "chord", current, "callbacks", len(entries))

	case source.Up:
		m.tracker.Release(ev.Name)
	}
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Shutdown asks the monitor to stop. It returns immediately; chords
// recognized afterwards are not dispatched. It is safe to call from a
// callback and before Run, in which case Run returns at once. A stopped
// monitor has nothing to stop, so a later Run starts normally.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	if m.state == StateStopped || m.stopping.Swap(true) {
		m.mu.Unlock()
		return
	}
	cancel := m.cancelRead
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.logger.Debug("shutdown requested")
}

// Stop shuts the monitor down and waits until Run has drained every
// dispatch unit. ctx bounds the wait; callbacks keep running if it ends.
// Stop must not be called from a callback of the same monitor.
func (m *Monitor) Stop(ctx context.Context) error {
	m.Shutdown()

	m.mu.Lock()
	switch m.state {
	case StateCreated:
		m.state = StateStopped
		m.mu.Unlock()
		return nil
	case StateStopped:
		m.mu.Unlock()
		return nil
	}
	done := m.runDone
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the current Run returns. It is nil
// before the first Run.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runDone
}
