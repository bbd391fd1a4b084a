package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keychord/internal/config"
	"github.com/dshills/keychord/internal/config/loader"
	"github.com/dshills/keychord/internal/event/dispatch"
	"github.com/dshills/keychord/internal/input/keymap"
	"github.com/dshills/keychord/internal/monitor"
)

const saveKeys = `events:
  - {key: ctrl, type: down}
  - {key: s, type: tap}
  - {key: ctrl, type: up}
`

const idleKeys = `events:
  - {key: a, type: tap, after: 30s}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// scriptConfig returns a config file body with one script monitor.
func scriptConfig(script, rest string) string {
	return fmt.Sprintf("[[monitors]]\nid = \"replay\"\nsource = \"script\"\nscript = %q\n\n%s", script, rest)
}

func newApp(t *testing.T, opts Options) *Application {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func runWithTimeout(t *testing.T, a *Application) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.Run(ctx)
}

func startRun(ctx context.Context, a *Application) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()
	return errCh
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitRunning(t *testing.T, a *Application) {
	t.Helper()
	waitFor(t, "monitors to run", func() bool {
		for _, m := range a.Monitors() {
			if m.State() != monitor.StateRunning {
				return false
			}
		}
		return true
	})
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunScriptEndToEnd(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
display_keys = true

[[bindings]]
chord = "ctrl+s"
action = "print"
message = "saved"

[[bindings]]
chord = "ctrl+s"
name = "after"
action = "lua"
lua = 'return "after-save"'

[[reflectors]]
key = "after-save"
action = "print"
message = "reflected"
`))

	var out bytes.Buffer
	a := newApp(t, Options{ConfigPath: cfgPath, Output: &out})

	if err := runWithTimeout(t, a); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	slices.Sort(lines)
	want := []string{"ctrl", "ctrl+s", "reflected", "saved"}
	if !slices.Equal(lines, want) {
		t.Errorf("output lines = %q, want %q", lines, want)
	}

	stats := a.Monitors()[0].Stats()
	if stats.Units != 1 || stats.Invoked != 2 || stats.Reflected != 1 {
		t.Errorf("Stats() = %+v, want 1 unit, 2 invoked, 1 reflected", stats)
	}
}

func TestRunAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	a := newApp(t, Options{Source: "script", Script: script, Output: io.Discard})

	if err := runWithTimeout(t, a); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := runWithTimeout(t, a); !errors.Is(err, ErrClosed) {
		t.Errorf("second Run() error = %v, want ErrClosed", err)
	}
}

func TestDefaultStopChordEndsRun(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", `events:
  - {key: ctrl, type: down}
  - {key: c, type: tap}
  - {key: s, type: tap, after: 300ms}
  - {key: ctrl, type: up}
`)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+s"
action = "print"
message = "saved"
`))

	var out bytes.Buffer
	a := newApp(t, Options{ConfigPath: cfgPath, Output: &out})

	if err := runWithTimeout(t, a); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Contains(out.String(), "saved") {
		t.Errorf("chord after ctrl+c was dispatched: %q", out.String())
	}
	if got := a.Monitors()[0].State(); got != monitor.StateStopped {
		t.Errorf("State() = %v, want stopped", got)
	}
}

func TestSourceOverride(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)

	a := newApp(t, Options{Source: "script", Script: script, DisplayKeys: true, Output: io.Discard})

	if n := len(a.Monitors()); n != 1 {
		t.Fatalf("len(Monitors()) = %d, want 1", n)
	}
	if a.Hub().Count() != 1 {
		t.Errorf("Hub().Count() = %d, want 1", a.Hub().Count())
	}
	if !a.Monitors()[0].DisplayKeys() {
		t.Error("DisplayKeys() = false, want true")
	}
	if !bound(a, keymap.StopChord) {
		t.Errorf("default %s binding missing", keymap.StopChord)
	}
}

func TestNewErrors(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)

	tests := []struct {
		name      string
		config    string
		opts      Options
		component string
		target    error
	}{
		{
			name:      "bad toml",
			config:    "[[bindings]\n",
			component: "config",
		},
		{
			name:      "invalid config",
			config:    scriptConfig(script, "[[bindings]]\nchord = \"x\"\naction = \"explode\"\n"),
			component: "config",
			target:    config.ErrInvalidConfig,
		},
		{
			name:      "missing script",
			config:    scriptConfig(filepath.Join(dir, "missing.yaml"), ""),
			component: "monitors[0] script source",
		},
		{
			name:      "lua compile error",
			config:    scriptConfig(script, "[[bindings]]\nchord = \"x\"\naction = \"lua\"\nlua = \"return (\"\n"),
			component: "bindings",
		},
		{
			name:      "channel override",
			opts:      Options{Source: "channel"},
			component: "config",
			target:    config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.Logger = quietLogger()
			if tt.config != "" {
				opts.ConfigPath = writeFile(t, t.TempDir(), "keychord.toml", tt.config)
			}

			a, err := New(opts)
			if err == nil {
				a.Close()
				t.Fatal("New() error = nil, want error")
			}
			var initErr *InitError
			if !errors.As(err, &initErr) {
				t.Fatalf("New() error = %v, want *InitError", err)
			}
			if initErr.Component != tt.component {
				t.Errorf("Component = %q, want %q", initErr.Component, tt.component)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("New() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestNewLuaErrorNamesBinding(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+s"
action = "lua"
lua = "return ("
`))

	_, err := New(Options{ConfigPath: cfgPath, Logger: quietLogger()})
	var actErr *ActionError
	if !errors.As(err, &actErr) {
		t.Fatalf("New() error = %v, want *ActionError", err)
	}
	if actErr.Kind != "binding" || actErr.Index != 0 || actErr.Target != "ctrl+s" {
		t.Errorf("ActionError = %+v", actErr)
	}
}

func TestFailuresReachHandler(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+s"
name = "boom"
action = "lua"
lua = 'error("boom")'

[[bindings]]
chord = "ctrl+s"
action = "print"
message = "still ran"
`))

	var (
		mu       sync.Mutex
		failures []*dispatch.Failure
	)
	var out bytes.Buffer
	a := newApp(t, Options{
		ConfigPath: cfgPath,
		Output:     &out,
		OnFailure: func(f *dispatch.Failure) {
			mu.Lock()
			failures = append(failures, f)
			mu.Unlock()
		},
	})

	if err := runWithTimeout(t, a); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if f := failures[0]; f.Callback != "boom" || f.Chord != "ctrl+s" || f.MonitorID != "replay" {
		t.Errorf("failure = %+v", f)
	}
	if !strings.Contains(out.String(), "still ran") {
		t.Errorf("output = %q, want the second callback to run", out.String())
	}
}

// bound reports whether chord has at least one callback.
func bound(a *Application, chord string) bool {
	return len(a.Registry().Snapshot(chord)) > 0
}

func parseTOML(t *testing.T, body string) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(body), loader.FormatTOML)
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	return cfg
}

func TestApplyReplacesConfiguredBindings(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+s"
action = "print"

[[reflectors]]
key = "saved"
action = "print"
`))
	a := newApp(t, Options{ConfigPath: cfgPath, Output: io.Discard})

	manual := keymap.Func("manual", func(keymap.Monitor) {})
	if _, err := a.Registry().Register("ctrl+x").To(manual); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := a.Apply(parseTOML(t, `
[[bindings]]
chord = "ctrl+d"
action = "stop"
`))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	for chord, want := range map[string]bool{
		"ctrl+s":          false,
		"ctrl+d":          true,
		"ctrl+x":          true,
		keymap.StopChord: true,
	} {
		if got := bound(a, chord); got != want {
			t.Errorf("%s bound = %v, want %v", chord, got, want)
		}
	}
	if _, ok := a.Reflector().Lookup("saved"); ok {
		t.Error("reflector key from previous config still registered")
	}
	if got := a.Config().Bindings[0].Chord; got != "ctrl+d" {
		t.Errorf("Config().Bindings[0].Chord = %q, want ctrl+d", got)
	}
}

func TestApplyRestoresDefaultStop(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+c"
id = 0
action = "print"
`))
	a := newApp(t, Options{ConfigPath: cfgPath, Output: io.Discard})

	slots, _ := a.Registry().Lookup(keymap.StopChord)
	if slots[0].Same(keymap.StopCallback) {
		t.Fatal("configured binding did not replace the built-in stop")
	}

	if err := a.Apply(parseTOML(t, "")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	slots, _ = a.Registry().Lookup(keymap.StopChord)
	if !slots[0].Same(keymap.StopCallback) {
		t.Errorf("slot 0 = %v, want the built-in stop", slots[0])
	}
}

func TestApplyKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+s"
action = "print"
`))
	a := newApp(t, Options{ConfigPath: cfgPath, Output: io.Discard})

	err := a.Apply(parseTOML(t, `
[[bindings]]
chord = "ctrl+d"
action = "lua"
lua = "return ("
`))
	if err == nil {
		t.Fatal("Apply() error = nil, want error")
	}
	if !bound(a, "ctrl+s") {
		t.Error("previous binding was not restored")
	}
	if bound(a, "ctrl+d") {
		t.Error("binding from the failed config is registered")
	}
}

func TestApplyDuringInFlightDispatch(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+s"
id = 0
action = "lua"
lua = 'print("lua after reload")'
`))

	var (
		mu       sync.Mutex
		failures []*dispatch.Failure
	)
	var out bytes.Buffer
	a := newApp(t, Options{
		ConfigPath: cfgPath,
		Output:     &out,
		OnFailure: func(f *dispatch.Failure) {
			mu.Lock()
			failures = append(failures, f)
			mu.Unlock()
		},
	})

	// Slot -1 runs first and holds the unit while the config is replaced.
	started := make(chan struct{})
	release := make(chan struct{})
	unblock := sync.OnceFunc(func() { close(release) })
	t.Cleanup(unblock)
	blocker := keymap.Func("blocker", func(keymap.Monitor) {
		close(started)
		<-release
	})
	if _, err := a.Registry().RegisterAt("ctrl+s", -1).To(blocker); err != nil {
		t.Fatalf("RegisterAt() error = %v", err)
	}

	errCh := startRun(context.Background(), a)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("blocking callback never ran")
	}

	if err := a.Apply(parseTOML(t, "")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := len(a.Registry().Snapshot("ctrl+s")); got != 1 {
		t.Errorf("ctrl+s has %d callbacks after Apply, want 1", got)
	}
	unblock()

	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, f := range failures {
		t.Errorf("failure = %v", f)
	}
	if !strings.Contains(out.String(), "lua after reload") {
		t.Errorf("output = %q, want the snapshotted lua binding to run", out.String())
	}
}

func TestApplyKeepsForeignReflectors(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[reflectors]]
key = "saved"
action = "print"
`))
	a := newApp(t, Options{ConfigPath: cfgPath, Output: io.Discard})

	var ran bool
	if _, err := a.Reflector().Register("saved").To(func(keymap.Monitor) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Register().To() error = %v", err)
	}

	if err := a.Apply(parseTOML(t, "")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	fns, ok := a.Reflector().Lookup("saved")
	if !ok || len(fns) != 1 {
		t.Fatalf("Lookup(saved) = %d handlers, ok=%v; want 1, true", len(fns), ok)
	}
	if err := fns[0](nil); err != nil || !ran {
		t.Errorf("remaining handler = %v, ran=%v; want the one registered in code", err, ran)
	}

	if err := a.Apply(parseTOML(t, "[[reflectors]]\nkey = \"saved\"\naction = \"print\"\n")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if fns, _ := a.Reflector().Lookup("saved"); len(fns) != 2 {
		t.Errorf("Lookup(saved) = %d handlers, want 2", len(fns))
	}
}

func TestApplyLeavesRemovedDefaultAlone(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+s"
action = "print"
`))
	a := newApp(t, Options{ConfigPath: cfgPath, Output: io.Discard})

	sel := keymap.Selector{Chord: keymap.StopChord, ID: keymap.Slot(0)}
	if err := a.Registry().Unregister(sel); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	if err := a.Apply(parseTOML(t, "[[bindings]]\nchord = \"ctrl+d\"\naction = \"print\"\n")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if bound(a, keymap.StopChord) {
		t.Error("Apply brought back a default binding removed in code")
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", saveKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+s"
action = "print"
`))
	a := newApp(t, Options{ConfigPath: cfgPath, Output: io.Discard})

	writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "alt+s"
action = "print"
`))
	if err := a.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if bound(a, "ctrl+s") || !bound(a, "alt+s") {
		t.Errorf("Chords() = %v, want alt+s instead of ctrl+s", a.Registry().Chords())
	}

	writeFile(t, dir, "keychord.toml", "not = [valid")
	if err := a.Reload(); err == nil {
		t.Error("Reload() of a broken file error = nil, want error")
	}
	if !bound(a, "alt+s") {
		t.Error("broken reload dropped the current bindings")
	}
}

func TestWatchReloadsWhileRunning(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", idleKeys)
	cfgPath := writeFile(t, dir, "keychord.toml", scriptConfig(script, ""))
	a := newApp(t, Options{ConfigPath: cfgPath, Watch: true, Output: io.Discard})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startRun(ctx, a)
	waitRunning(t, a)

	writeFile(t, dir, "keychord.toml", scriptConfig(script, `
[[bindings]]
chord = "ctrl+d"
action = "stop"
`))
	waitFor(t, "reloaded binding", func() bool { return bound(a, "ctrl+d") })

	cancel()
	if err := waitErr(t, errCh); err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
}

func TestShutdown(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "keys.yaml", idleKeys)
	a := newApp(t, Options{Source: "script", Script: script, Output: io.Discard})

	errCh := startRun(context.Background(), a)
	waitRunning(t, a)
	if !a.IsRunning() {
		t.Error("IsRunning() = false during Run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := waitErr(t, errCh); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestTerminalMonitor(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	a := newApp(t, Options{Screen: sim})

	if n := len(a.Monitors()); n != 1 {
		t.Fatalf("len(Monitors()) = %d, want 1", n)
	}

	sim.InjectKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)
	if err := runWithTimeout(t, a); err != nil {
		t.Errorf("Run() = %v, want nil after ctrl+c", err)
	}
}

func TestTerminalInUse(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "keychord.toml", `
[[monitors]]
id = "one"
source = "terminal"

[[monitors]]
id = "two"
source = "terminal"
`)
	sim := tcell.NewSimulationScreen("UTF-8")

	_, err := New(Options{ConfigPath: cfgPath, Screen: sim, Logger: quietLogger()})
	if !errors.Is(err, ErrTerminalInUse) {
		t.Errorf("New() error = %v, want ErrTerminalInUse", err)
	}
}
