package source

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keychord/internal/input/key"
)

// Key names shared by the terminal and evdev sources.
const (
	NameSpace     = "space"
	NameEnter     = "enter"
	NameTab       = "tab"
	NameBackspace = "backspace"
	NameEsc       = "esc"
	NameDelete    = "delete"
	NameInsert    = "insert"
	NameHome      = "home"
	NameEnd       = "end"
	NamePageUp    = "page up"
	NamePageDown  = "page down"
	NameUp        = "up"
	NameDown      = "down"
	NameLeft      = "left"
	NameRight     = "right"
)

// tcellNames maps tcell's named keys to key names.
var tcellNames = map[tcell.Key]string{
	tcell.KeyEnter:      NameEnter,
	tcell.KeyTab:        NameTab,
	tcell.KeyBackspace:  NameBackspace,
	tcell.KeyBackspace2: NameBackspace,
	tcell.KeyEscape:     NameEsc,
	tcell.KeyDelete:     NameDelete,
	tcell.KeyInsert:     NameInsert,
	tcell.KeyHome:       NameHome,
	tcell.KeyEnd:        NameEnd,
	tcell.KeyPgUp:       NamePageUp,
	tcell.KeyPgDn:       NamePageDown,
	tcell.KeyUp:         NameUp,
	tcell.KeyDown:       NameDown,
	tcell.KeyLeft:       NameLeft,
	tcell.KeyRight:      NameRight,
	tcell.KeyF1:         "f1",
	tcell.KeyF2:         "f2",
	tcell.KeyF3:         "f3",
	tcell.KeyF4:         "f4",
	tcell.KeyF5:         "f5",
	tcell.KeyF6:         "f6",
	tcell.KeyF7:         "f7",
	tcell.KeyF8:         "f8",
	tcell.KeyF9:         "f9",
	tcell.KeyF10:        "f10",
	tcell.KeyF11:        "f11",
	tcell.KeyF12:        "f12",
}

// Translate expands a tcell key event into the down/up sequence a physical
// keyboard would produce: modifier downs, key down, key up, modifier ups.
// It returns nil for keys it cannot name.
func Translate(ev *tcell.EventKey) []Event {
	name, mods := describe(ev)
	if name == "" {
		return nil
	}

	modNames := mods.Names()
	events := make([]Event, 0, 2*len(modNames)+2)
	for _, m := range modNames {
		events = append(events, KeyDown(m))
	}
	events = append(events, KeyDown(name), KeyUp(name))
	for i := len(modNames) - 1; i >= 0; i-- {
		events = append(events, KeyUp(modNames[i]))
	}
	return events
}

// describe returns the key name and modifiers for a tcell key event.
func describe(ev *tcell.EventKey) (string, key.Modifier) {
	mods := convertMod(ev.Modifiers())
	k := ev.Key()

	if k == tcell.KeyRune {
		r := ev.Rune()
		if r == ' ' {
			return NameSpace, mods
		}
		return string(r), mods
	}

	if name, ok := tcellNames[k]; ok {
		return name, mods
	}

	switch {
	case k == tcell.KeyBacktab:
		return NameTab, mods.With(key.ModShift)
	case k == tcell.KeyCtrlSpace:
		return NameSpace, mods.With(key.ModCtrl)
	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ:
		return string(rune('a' + (k - tcell.KeyCtrlA))), mods.With(key.ModCtrl)
	}
	return "", mods
}

func convertMod(m tcell.ModMask) key.Modifier {
	var out key.Modifier
	if m&tcell.ModCtrl != 0 {
		out = out.With(key.ModCtrl)
	}
	if m&tcell.ModAlt != 0 {
		out = out.With(key.ModAlt)
	}
	if m&tcell.ModShift != 0 {
		out = out.With(key.ModShift)
	}
	if m&tcell.ModMeta != 0 {
		out = out.With(key.ModMeta)
	}
	return out
}

// Terminal reads keys typed into the terminal through a tcell screen.
type Terminal struct {
	screen tcell.Screen
	events chan Event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu    sync.Mutex
	lines []string
}

// TerminalOption configures a Terminal.
type TerminalOption func(*terminalConfig)

type terminalConfig struct {
	screen tcell.Screen
	buffer int
}

// WithScreen reads from an existing screen instead of the real terminal.
// The screen must not be initialized yet.
func WithScreen(s tcell.Screen) TerminalOption {
	return func(c *terminalConfig) {
		c.screen = s
	}
}

// WithTerminalBuffer sets the event buffer size.
func WithTerminalBuffer(n int) TerminalOption {
	return func(c *terminalConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// NewTerminal takes over the terminal and starts reading keys.
func NewTerminal(opts ...TerminalOption) (*Terminal, error) {
	cfg := terminalConfig{buffer: 64}
	for _, opt := range opts {
		opt(&cfg)
	}

	screen := cfg.screen
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, err
		}
		screen = s
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.Clear()
	screen.Show()

	t := &Terminal{
		screen: screen,
		events: make(chan Event, cfg.buffer),
		done:   make(chan struct{}),
	}
	t.wg.Go(t.pump)
	return t, nil
}

// pump converts screen events until the screen is finalized.
func (t *Terminal) pump() {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		kev, ok := ev.(*tcell.EventKey)
		if !ok {
			continue
		}
		for _, e := range Translate(kev) {
			select {
			case t.events <- e:
			case <-t.done:
				return
			}
		}
	}
}

// Next implements Source.
func (t *Terminal) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-t.events:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-t.done:
		return Event{}, ErrClosed
	}
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	t.once.Do(func() {
		t.mu.Lock()
		close(t.done)
		t.screen.Fini()
		t.mu.Unlock()
		t.wg.Wait()
	})
	return nil
}

// Writer returns an io.Writer that prints lines on the terminal screen,
// keeping the most recent screenful.
func (t *Terminal) Writer() io.Writer {
	return terminalWriter{t}
}

type terminalWriter struct {
	t *Terminal
}

func (w terminalWriter) Write(p []byte) (int, error) {
	w.t.print(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

func (t *Terminal) print(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
		return
	default:
	}

	t.lines = append(t.lines, strings.Split(text, "\n")...)
	_, height := t.screen.Size()
	if height > 0 && len(t.lines) > height {
		t.lines = t.lines[len(t.lines)-height:]
	}

	t.screen.Clear()
	for y, line := range t.lines {
		x := 0
		for _, r := range line {
			t.screen.SetContent(x, y, r, nil, tcell.StyleDefault)
			x++
		}
	}
	t.screen.Show()
}
