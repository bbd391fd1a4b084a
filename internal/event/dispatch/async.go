package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/keychord/internal/input/keymap"
)

// Dispatcher spawns one goroutine per recognized chord and tracks them so a
// monitor can wait for every unit it started before it stops.
type Dispatcher struct {
	reflector *keymap.Reflector
	executor  *Executor
	logger    *slog.Logger
	onFailure FailureHandler

	// State
	mu        sync.Mutex // guards accepting and orders wg.Add against Drain
	accepting bool
	wg        sync.WaitGroup
	inFlight  atomic.Int64

	// Stats
	units       atomic.Uint64
	rejected    atomic.Uint64
	invoked     atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	reflected   atomic.Uint64
	totalTimeNs atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used to report failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithFailureHandler sets a hook that receives every isolated failure.
func WithFailureHandler(h FailureHandler) Option {
	return func(d *Dispatcher) {
		d.onFailure = h
	}
}

// WithPanicHandler sets the panic handler passed to the executor.
func WithPanicHandler(h PanicHandler) Option {
	return func(d *Dispatcher) {
		d.executor = NewExecutor(WithExecutorPanicHandler(h))
	}
}

// New creates a dispatcher that reflects callback results through reflector.
// A nil reflector disables reflection. The dispatcher starts closed; call Open.
func New(reflector *keymap.Reflector, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reflector: reflector,
		executor:  NewExecutor(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open starts accepting dispatch units.
func (d *Dispatcher) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.accepting {
		return ErrAlreadyRunning
	}
	d.accepting = true
	return nil
}

// IsOpen reports whether the dispatcher accepts new units.
func (d *Dispatcher) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepting
}

// Dispatch starts a unit that runs entries for chord on behalf of m.
// It returns immediately. An empty snapshot starts nothing.
func (d *Dispatcher) Dispatch(m keymap.Monitor, chord string, entries []keymap.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.accepting {
		d.rejected.Add(1)
		return ErrNotRunning
	}

	d.units.Add(1)
	d.inFlight.Add(1)
	d.wg.Go(func() {
		defer d.inFlight.Add(-1)
		d.run(m, chord, entries)
	})
	return nil
}

// Drain stops accepting units and waits for those in flight.
// It returns ctx.Err() if ctx ends first; the units keep running.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	d.accepting = false
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight returns the number of units still running.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// run executes one dispatch unit.
func (d *Dispatcher) run(m keymap.Monitor, chord string, entries []keymap.Entry) {
	start := time.Now()
	defer func() {
		d.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	monitorID := ""
	if m != nil {
		monitorID = m.ID()
	}

	for _, e := range entries {
		d.invoked.Add(1)
		cb := e.Callback
		result := d.executor.Execute(cb.Name(), func() (string, error) {
			return cb.Call(m)
		})

		if !result.IsSuccess() {
			d.fail(&Failure{
				MonitorID: monitorID,
				Chord:     chord,
				Stage:     StageCallback,
				Slot:      e.ID,
				Callback:  cb.Name(),
				Err:       result.Error,
				Stack:     result.PanicStack,
			})
			continue
		}
		d.succeeded.Add(1)

		if result.Value != "" {
			d.reflect(m, monitorID, chord, e, result.Value)
		}
	}
}

// reflect runs the reflector handlers registered under value.
func (d *Dispatcher) reflect(m keymap.Monitor, monitorID, chord string, e keymap.Entry, value string) {
	if d.reflector == nil {
		return
	}
	fns, ok := d.reflector.Lookup(value)
	if !ok {
		return
	}

	for i, fn := range fns {
		d.reflected.Add(1)
		result := d.executor.Execute(value, func() (string, error) {
			return "", fn(m)
		})
		if result.IsSuccess() {
			continue
		}
		d.fail(&Failure{
			MonitorID: monitorID,
			Chord:     chord,
			Stage:     StageReflect,
			Slot:      e.ID,
			Callback:  e.Callback.Name(),
			Key:       value,
			Index:     i,
			Err:       result.Error,
			Stack:     result.PanicStack,
		})
	}
}

// fail records and reports an isolated failure.
func (d *Dispatcher) fail(f *Failure) {
	if f.Panicked() {
		d.panicked.Add(1)
		d.logger.Error("callback panicked",
			"monitor", f.MonitorID,
			"chord", f.Chord,
			"stage", f.Stage.String(),
			"callback", f.Callback,
			"slot", f.Slot,
			"error", f.Err,
			"stack", string(f.Stack))
	} else {
		d.failed.Add(1)
		d.logger.Warn("callback failed",
			"monitor", f.MonitorID,
			"chord", f.Chord,
			"stage", f.Stage.String(),
			"callback", f.Callback,
			"slot", f.Slot,
			"error", f.Err)
	}

	if d.onFailure != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("failure handler panicked", "panic", r)
				}
			}()
			d.onFailure(f)
		}()
	}
}

// Stats returns dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	units := d.units.Load()
	totalNs := d.totalTimeNs.Load()

	var avgNs int64
	if units > 0 {
		avgNs = totalNs / int64(units)
	}

	return Stats{
		Units:         units,
		Rejected:      d.rejected.Load(),
		Invoked:       d.invoked.Load(),
		Succeeded:     d.succeeded.Load(),
		Failed:        d.failed.Load(),
		Panicked:      d.panicked.Load(),
		Reflected:     d.reflected.Load(),
		InFlight:      d.InFlight(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// Stats contains statistics for a dispatcher.
type Stats struct {
	// Units is the number of dispatch units started.
	Units uint64

	// Rejected is the number of units refused because the dispatcher was closed.
	Rejected uint64

	// Invoked is the number of chord callbacks called.
	Invoked uint64

	// Succeeded is the number of chord callbacks that returned without error.
	Succeeded uint64

	// Failed is the number of callbacks and reflector handlers that returned errors.
	Failed uint64

	// Panicked is the number of callbacks and reflector handlers that panicked.
	Panicked uint64

	// Reflected is the number of reflector handlers called.
	Reflected uint64

	// InFlight is the number of units still running.
	InFlight int

	// TotalDuration is the cumulative time spent in units.
	TotalDuration time.Duration

	// AvgDuration is the average unit duration.
	AvgDuration time.Duration
}
