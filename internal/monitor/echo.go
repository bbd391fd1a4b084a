package monitor

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/sjson"
)

// EchoFormat selects how recognized chords are echoed.
type EchoFormat string

const (
	// EchoText writes the bare chord string, one per line.
	EchoText EchoFormat = "text"

	// EchoJSON writes one JSON object per line with the monitor id, chord
	// and time.
	EchoJSON EchoFormat = "json"
)

// ParseEchoFormat parses "text" or "json". An empty string means text.
func ParseEchoFormat(s string) (EchoFormat, error) {
	switch EchoFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", EchoText:
		return EchoText, nil
	case EchoJSON:
		return EchoJSON, nil
	default:
		return "", fmt.Errorf("unknown echo format %q", s)
	}
}

// echoer writes recognized chords while enabled.
type echoer struct {
	enabled atomic.Bool

	mu     sync.Mutex
	id     string
	out    io.Writer
	format EchoFormat
}

func newEchoer(id string, out io.Writer, format EchoFormat) *echoer {
	if format == "" {
		format = EchoText
	}
	return &echoer{id: id, out: out, format: format}
}

func (e *echoer) write(chord string) {
	if !e.enabled.Load() {
		return
	}

	line := chord
	if e.format == EchoJSON {
		line = encodeChord(e.id, chord, time.Now())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintln(e.out, line)
}

// encodeChord renders a chord echo as a JSON object.
func encodeChord(id, chord string, at time.Time) string {
	line, _ := sjson.Set("", "monitor", id)
	line, _ = sjson.Set(line, "chord", chord)
	line, _ = sjson.Set(line, "time", at.UTC().Format(time.RFC3339Nano))
	return line
}
