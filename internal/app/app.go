// Package app wires configuration, input sources, the binding registry and
// monitors into a running keychord process, and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keychord/internal/config"
	"github.com/dshills/keychord/internal/config/watcher"
	"github.com/dshills/keychord/internal/event/dispatch"
	"github.com/dshills/keychord/internal/input/keymap"
	"github.com/dshills/keychord/internal/input/source"
	"github.com/dshills/keychord/internal/monitor"
)

// Application owns the monitors of one process and the registry and
// reflector they share.
type Application struct {
	mu sync.Mutex

	opts   Options
	cfg    config.Config
	logger *slog.Logger

	registry  *keymap.Registry
	reflector *keymap.Reflector
	hub       *monitor.Hub
	monitors  []*monitor.Monitor

	sources  []source.Source
	terminal *source.Terminal
	out      *syncWriter
	actions  *actionSet
	retired  []*actionSet
	watcher  *watcher.Watcher
	logFile  *os.File

	running atomic.Bool
	closed  bool
}

// Options configures the application. Non-empty fields override the
// configuration file.
type Options struct {
	// ConfigPath is the configuration file. Empty or missing means defaults.
	ConfigPath string

	// LogLevel and LogFormat override the file's [log] section.
	LogLevel  string
	LogFormat string

	// DisplayKeys turns on chord echo for every monitor.
	DisplayKeys bool

	// Source replaces the configured monitors with a single monitor reading
	// from this source kind. Script and Device complete it.
	Source string
	Script string
	Device string

	// Watch reloads bindings when the configuration file changes.
	Watch bool

	// Output receives echoed chords, print actions and Lua print.
	// Defaults to stdout, or the terminal when a monitor reads it.
	Output io.Writer

	// Logger replaces the logger built from configuration.
	Logger *slog.Logger

	// Screen is used by the terminal source instead of the real terminal.
	Screen tcell.Screen

	// OnFailure receives every callback failure of every monitor.
	OnFailure dispatch.FailureHandler
}

// New loads configuration, opens every input source and builds the
// monitors. Nothing reads input until Run.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:      opts,
		registry:  keymap.NewRegistry(),
		reflector: keymap.NewReflector(),
		hub:       monitor.NewHub(),
	}

	if err := app.bootstrap(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Configuration
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.cfg = cfg

	monitors := app.monitorConfigs()
	check := cfg
	check.Monitors = monitors
	if err := check.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}

	// 2. Logging
	if err := app.setupLogging(); err != nil {
		return &InitError{Component: "logging", Err: err}
	}

	// 3. Input sources
	for i, mc := range monitors {
		src, err := app.openSource(mc)
		if err != nil {
			return &InitError{Component: fmt.Sprintf("monitors[%d] %s source", i, mc.Source), Err: err}
		}
		app.sources = append(app.sources, src)
	}

	// 4. Output, shared by echo, print actions and scripts
	var out io.Writer = os.Stdout
	switch {
	case app.terminal != nil:
		out = app.terminal.Writer()
	case app.opts.Output != nil:
		out = app.opts.Output
	}
	app.out = &syncWriter{w: out}

	// 5. Bindings and reflectors
	set, err := app.install(cfg)
	if err != nil {
		return &InitError{Component: "bindings", Err: err}
	}
	app.actions = set

	// 6. Monitors
	for i, mc := range monitors {
		format, err := monitor.ParseEchoFormat(mc.EchoFormat)
		if err != nil {
			return &InitError{Component: fmt.Sprintf("monitors[%d]", i), Err: err}
		}
		mopts := []monitor.Option{
			monitor.WithID(mc.ID),
			monitor.WithLogger(app.logger),
			monitor.WithHub(app.hub),
			monitor.WithDisplayKeys(mc.DisplayKeys || app.opts.DisplayKeys),
			monitor.WithEcho(app.out, format),
		}
		if app.opts.OnFailure != nil {
			mopts = append(mopts, monitor.WithFailureHandler(app.opts.OnFailure))
		}
		app.monitors = append(app.monitors, monitor.New(app.sources[i], app.registry, app.reflector, mopts...))
	}

	app.logger.Debug("application initialized",
		"config", app.opts.ConfigPath,
		"monitors", len(app.monitors),
		"chords", app.registry.Len(),
		"reflector_keys", len(app.reflector.Keys()))
	return nil
}

// monitorConfigs returns the monitors to build, honoring the Source override.
func (app *Application) monitorConfigs() []config.MonitorConfig {
	if app.opts.Source == "" {
		return app.cfg.Monitors
	}
	return []config.MonitorConfig{{
		Source:     app.opts.Source,
		Script:     app.opts.Script,
		Device:     app.opts.Device,
		EchoFormat: string(monitor.EchoText),
	}}
}

func (app *Application) setupLogging() error {
	if app.opts.Logger != nil {
		app.logger = app.opts.Logger
		return nil
	}

	level := app.cfg.Log.Level
	if app.opts.LogLevel != "" {
		level = app.opts.LogLevel
	}
	format := app.cfg.Log.Format
	if app.opts.LogFormat != "" {
		format = app.opts.LogFormat
	}

	var out io.Writer = os.Stderr
	f, err := openLogFile(app.cfg.Log.File)
	if err != nil {
		return err
	}
	if f != nil {
		app.logFile = f
		out = f
	}

	app.logger = NewLogger(LoggerConfig{
		Level:  ParseLogLevel(level),
		Format: format,
		Output: out,
	})
	return nil
}

// Run runs every monitor until all of them have stopped, then closes the
// application. A monitor stops on its own stop chord, when its source is
// exhausted, on Shutdown, or when ctx ends. Cancellation is not an error.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	app.mu.Lock()
	closed := app.closed
	app.mu.Unlock()
	if closed {
		return ErrClosed
	}
	defer app.Close()

	if app.opts.Watch && app.opts.ConfigPath != "" {
		app.startWatcher()
	}

	app.logger.Info("keychord started", "monitors", len(app.monitors))

	errs := make([]error, len(app.monitors))
	var wg sync.WaitGroup
	for i, m := range app.monitors {
		wg.Go(func() {
			if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs[i] = fmt.Errorf("monitor %s: %w", m.ID(), err)
			}
		})
	}
	wg.Wait()

	app.logger.Info("keychord stopped")
	return errors.Join(errs...)
}

// Shutdown stops every monitor and waits for their callbacks. ctx bounds
// the wait.
func (app *Application) Shutdown(ctx context.Context) error {
	return app.hub.StopAll(ctx)
}

// Close releases input sources, scripts, the config watcher and the log
// file. Run calls it on return.
func (app *Application) Close() error {
	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		return nil
	}
	app.closed = true
	w := app.watcher
	app.watcher = nil
	sets := app.retired
	if app.actions != nil {
		sets = append(sets, app.actions)
	}
	app.actions, app.retired = nil, nil
	sources := app.sources
	logFile := app.logFile
	app.mu.Unlock()

	var errs []error
	if w != nil {
		errs = append(errs, w.Close())
	}
	for _, src := range sources {
		errs = append(errs, src.Close())
	}
	for _, set := range sets {
		set.closeScripts()
	}
	if logFile != nil {
		errs = append(errs, logFile.Close())
	}
	return errors.Join(errs...)
}

// startWatcher reloads bindings whenever the configuration file settles
// after a change.
func (app *Application) startWatcher() {
	w, err := watcher.New(app.opts.ConfigPath, app.onConfigChange, watcher.WithLogger(app.logger))
	if err != nil {
		app.logger.Warn("config watch disabled", "path", app.opts.ConfigPath, "error", err)
		return
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	if app.closed {
		w.Close()
		return
	}
	app.watcher = w
}

func (app *Application) onConfigChange(ev watcher.Event) {
	// Editors that save atomically remove or rename the file first; the
	// following create carries the new content.
	if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
		return
	}
	if err := app.Reload(); err != nil {
		app.logger.Warn("config reload failed, keeping previous bindings", "path", ev.Path, "error", err)
		return
	}
	app.logger.Info("config reloaded", "path", ev.Path)
}

// Reload re-reads the configuration file and replaces the bindings and
// reflectors it installed.
func (app *Application) Reload() error {
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return err
	}
	return app.Apply(cfg)
}

// Apply replaces the bindings and reflectors installed from the previous
// configuration with those of cfg. Bindings and reflector handlers
// registered by other code stay, and a built-in binding the previous
// configuration replaced is restored. If cfg cannot be installed the
// previous configuration is restored. Dispatches already in flight finish
// with the callbacks they started with. Log and monitor settings take
// effect on restart.
func (app *Application) Apply(cfg config.Config) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.closed {
		return ErrClosed
	}

	prev := app.cfg
	app.retire(app.actions)
	app.actions = nil

	set, err := app.install(cfg)
	if err != nil {
		if restored, rerr := app.install(prev); rerr == nil {
			app.actions = restored
		} else {
			app.logger.Error("restoring previous bindings", "error", rerr)
		}
		return err
	}
	app.actions = set
	app.cfg = cfg

	if !slices.Equal(prev.Monitors, cfg.Monitors) || prev.Log != cfg.Log {
		app.logger.Warn("monitor and log settings changed; restart to apply them")
	}
	return nil
}

// Config returns the configuration currently applied.
func (app *Application) Config() config.Config {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.cfg
}

// Registry returns the binding registry shared by all monitors.
func (app *Application) Registry() *keymap.Registry {
	return app.registry
}

// Reflector returns the reflector shared by all monitors.
func (app *Application) Reflector() *keymap.Reflector {
	return app.reflector
}

// Hub returns the monitor hub.
func (app *Application) Hub() *monitor.Hub {
	return app.hub
}

// Monitors returns the application's monitors.
func (app *Application) Monitors() []*monitor.Monitor {
	return slices.Clone(app.monitors)
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// IsRunning reports whether Run is in progress.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}
