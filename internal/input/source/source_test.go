package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
)

func collect(t *testing.T, s Source) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out []string
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, ev.String())
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in      string
		want    EventType
		wantErr bool
	}{
		{"down", Down, false},
		{"DOWN", Down, false},
		{"press", Down, false},
		{"up", Up, false},
		{" release ", Up, false},
		{"sideways", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEventType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEventType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseEventType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"terminal", "evdev", "script", "channel", "Terminal"} {
		if _, err := ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q) error = %v", s, err)
		}
	}
	if _, err := ParseKind("keyboard"); err == nil {
		t.Error(`ParseKind("keyboard") error = nil, want error`)
	}
}

func TestChannelDrainsThenEOF(t *testing.T) {
	c := NewChannel(8)
	ctx := context.Background()

	if err := c.Press(ctx, "ctrl", "a"); err != nil {
		t.Fatal(err)
	}
	if err := c.Release(ctx, "a", "ctrl"); err != nil {
		t.Fatal(err)
	}
	c.Close()

	got := collect(t, c)
	want := []string{"down ctrl", "down a", "up a", "up ctrl"}
	if !equalStrings(got, want) {
		t.Errorf("events = %q, want %q", got, want)
	}

	if err := c.Send(ctx, KeyDown("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestChannelNextHonorsContext(t *testing.T) {
	c := NewChannel(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() = %v, want DeadlineExceeded", err)
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
interval: 5ms
events:
  - {key: ctrl, type: down}
  - {key: a, type: tap, after: 0s}
  - {key: ctrl, type: up}
  - {type: down}
  - {key: null, type: up}
`)

	steps, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	if len(steps) != 6 {
		t.Fatalf("len(steps) = %d, want 6", len(steps))
	}

	want := []struct {
		name  string
		typ   EventType
		after time.Duration
	}{
		{"ctrl", Down, 5 * time.Millisecond},
		{"a", Down, 0},
		{"a", Up, 0},
		{"ctrl", Up, 5 * time.Millisecond},
		{"", Down, 5 * time.Millisecond},
		{"", Up, 5 * time.Millisecond},
	}
	for i, w := range want {
		s := steps[i]
		if s.Event.Name != w.name || s.Event.Type != w.typ || s.After != w.after {
			t.Errorf("step %d = {%q %v %v}, want {%q %v %v}", i, s.Event.Name, s.Event.Type, s.After, w.name, w.typ, w.after)
		}
	}
}

func TestParseYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad type", "events:\n  - {key: a, type: hold}\n"},
		{"bad after", "events:\n  - {key: a, type: down, after: soon}\n"},
		{"bad interval", "interval: -1s\nevents: []\n"},
		{"not yaml", "events: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseYAML([]byte(tt.data)); err == nil {
				t.Error("ParseYAML() error = nil, want error")
			}
		})
	}
}

func TestParseJSONLines(t *testing.T) {
	input := strings.Join([]string{
		`# warm up`,
		`{"key": "shift", "type": "down"}`,
		``,
		`{"key": "1", "type": "tap", "after": "1ms"}`,
		`{"key": null, "type": "down"}`,
		`{"type": "up"}`,
		`{"key": "shift", "type": "up"}`,
	}, "\n")

	steps, err := ParseJSONLines(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseJSONLines() error = %v", err)
	}

	got := make([]string, len(steps))
	for i, s := range steps {
		got[i] = s.Event.String()
	}
	want := []string{"down shift", "down 1", "up 1", "down ", "up ", "up shift"}
	if !equalStrings(got, want) {
		t.Errorf("steps = %q, want %q", got, want)
	}
	if steps[1].After != time.Millisecond {
		t.Errorf("steps[1].After = %v, want 1ms", steps[1].After)
	}
}

func TestParseJSONLinesErrors(t *testing.T) {
	tests := []string{
		`{"key": "a", "type": "down"`,
		`{"key": "a", "type": "wiggle"}`,
		`{"key": "a", "type": "down", "after": "x"}`,
	}
	for _, line := range tests {
		if _, err := ParseJSONLines(strings.NewReader(line)); err == nil {
			t.Errorf("ParseJSONLines(%q) error = nil, want error", line)
		}
	}
}

func TestOpenScript(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "demo.yaml")
	os.WriteFile(yamlPath, []byte("events:\n  - {key: ctrl, type: down}\n  - {key: t, type: tap}\n  - {key: ctrl, type: up}\n"), 0o644)

	jsonPath := filepath.Join(dir, "demo.jsonl")
	os.WriteFile(jsonPath, []byte(`{"key":"ctrl","type":"down"}`+"\n"+`{"key":"t","type":"tap"}`+"\n"+`{"key":"ctrl","type":"up"}`+"\n"), 0o644)

	want := []string{"down ctrl", "down t", "up t", "up ctrl"}
	for _, path := range []string{yamlPath, jsonPath} {
		s, err := OpenScript(path)
		if err != nil {
			t.Fatalf("OpenScript(%s) error = %v", path, err)
		}
		if s.Len() != 4 {
			t.Errorf("%s: Len() = %d, want 4", path, s.Len())
		}
		if got := collect(t, s); !equalStrings(got, want) {
			t.Errorf("%s: events = %q, want %q", path, got, want)
		}
	}

	if _, err := OpenScript(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("OpenScript(missing) error = nil, want error")
	}
}

func TestScriptCloseInterruptsWait(t *testing.T) {
	s := NewScript([]Step{{Event: KeyDown("a"), After: time.Hour}})

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Next() = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() still waiting after Close")
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		want []string
	}{
		{
			name: "plain rune",
			ev:   tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone),
			want: []string{"down a", "up a"},
		},
		{
			name: "space",
			ev:   tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone),
			want: []string{"down space", "up space"},
		},
		{
			name: "ctrl a",
			ev:   tcell.NewEventKey(tcell.KeyCtrlA, 0, tcell.ModCtrl),
			want: []string{"down ctrl", "down a", "up a", "up ctrl"},
		},
		{
			name: "ctrl c without modifier flag",
			ev:   tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModNone),
			want: []string{"down ctrl", "down c", "up c", "up ctrl"},
		},
		{
			name: "alt rune",
			ev:   tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModAlt),
			want: []string{"down alt", "down x", "up x", "up alt"},
		},
		{
			name: "ctrl alt function key",
			ev:   tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModCtrl|tcell.ModAlt),
			want: []string{"down ctrl", "down alt", "down f5", "up f5", "up alt", "up ctrl"},
		},
		{
			name: "enter",
			ev:   tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone),
			want: []string{"down enter", "up enter"},
		},
		{
			name: "backtab",
			ev:   tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone),
			want: []string{"down shift", "down tab", "up tab", "up shift"},
		},
		{
			name: "page down",
			ev:   tcell.NewEventKey(tcell.KeyPgDn, 0, tcell.ModNone),
			want: []string{"down page down", "up page down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := Translate(tt.ev)
			got := make([]string, len(events))
			for i, e := range events {
				got[i] = e.String()
			}
			if !equalStrings(got, tt.want) {
				t.Errorf("Translate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTerminalWithSimulationScreen(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	term, err := NewTerminal(WithScreen(sim))
	if err != nil {
		t.Fatalf("NewTerminal() error = %v", err)
	}
	defer term.Close()

	sim.InjectKey(tcell.KeyCtrlT, 0, tcell.ModCtrl)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	want := []string{"down ctrl", "down t", "up t", "up ctrl"}
	for i, w := range want {
		ev, err := term.Next(ctx)
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if ev.String() != w {
			t.Errorf("event %d = %q, want %q", i, ev.String(), w)
		}
	}

	if _, err := term.Writer().Write([]byte("ctrl+t\n")); err != nil {
		t.Errorf("Writer().Write() error = %v", err)
	}

	term.Close()
	if _, err := term.Next(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Next() after Close = %v, want ErrClosed", err)
	}
}
