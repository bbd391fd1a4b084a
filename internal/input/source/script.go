package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Step is one scripted event and the pause that precedes it.
type Step struct {
	Event Event
	After time.Duration
}

// Script replays a fixed sequence of events, then reports io.EOF.
type Script struct {
	mu    sync.Mutex
	steps []Step
	pos   int

	done chan struct{}
	once sync.Once
}

// NewScript creates a script source from steps.
func NewScript(steps []Step) *Script {
	return &Script{
		steps: steps,
		done:  make(chan struct{}),
	}
}

// OpenScript loads a script file. Files ending in .jsonl, .ndjson or .json
// are read as JSON lines; anything else is read as YAML.
func OpenScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}

	var steps []Step
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		steps, err = ParseJSONLines(bytes.NewReader(data))
	default:
		steps, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing script %s: %w", path, err)
	}
	return NewScript(steps), nil
}

// Len returns the number of steps in the script.
func (s *Script) Len() int {
	return len(s.steps)
}

// Next implements Source.
func (s *Script) Next(ctx context.Context) (Event, error) {
	s.mu.Lock()
	if s.pos >= len(s.steps) {
		s.mu.Unlock()
		return Event{}, io.EOF
	}
	step := s.steps[s.pos]
	s.pos++
	s.mu.Unlock()

	select {
	case <-s.done:
		return Event{}, ErrClosed
	default:
	}

	if step.After > 0 {
		timer := time.NewTimer(step.After)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.done:
			return Event{}, ErrClosed
		}
	}

	ev := step.Event
	ev.Time = time.Now()
	return ev, nil
}

// Close stops the replay.
func (s *Script) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	return nil
}

// scriptFile is the YAML script layout:
//
//	interval: 10ms
//	events:
//	  - {key: ctrl, type: down}
//	  - {key: a, type: tap, after: 50ms}
//	  - {key: ctrl, type: up}
type scriptFile struct {
	Interval string      `yaml:"interval"`
	Events   []scriptRow `yaml:"events"`
}

type scriptRow struct {
	Key   *string `yaml:"key"`
	Type  string  `yaml:"type"`
	After string  `yaml:"after"`
}

// ParseYAML parses a YAML script. interval is the pause before every event
// that does not set its own after.
func ParseYAML(data []byte) ([]Step, error) {
	var f scriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	interval, err := parseDuration(f.Interval)
	if err != nil {
		return nil, fmt.Errorf("interval: %w", err)
	}

	var steps []Step
	for i, row := range f.Events {
		name := ""
		if row.Key != nil {
			name = *row.Key
		}
		after := interval
		if row.After != "" {
			if after, err = parseDuration(row.After); err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
		}
		expanded, err := expand(name, row.Type, after)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		steps = append(steps, expanded...)
	}
	return steps, nil
}

// ParseJSONLines parses one JSON object per line:
//
//	{"key": "ctrl", "type": "down"}
//	{"key": "a", "type": "tap", "after": "50ms"}
//
// Blank lines and lines starting with # are skipped. A null or missing key
// yields an event without a key name.
func ParseJSONLines(r io.Reader) ([]Step, error) {
	var steps []Step
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !gjson.Valid(line) {
			return nil, fmt.Errorf("line %d: invalid JSON", lineNo)
		}

		fields := gjson.GetMany(line, "key", "type", "after")
		name := ""
		if fields[0].Exists() && fields[0].Type != gjson.Null {
			name = fields[0].String()
		}
		after, err := parseDuration(fields[2].String())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		expanded, err := expand(name, fields[1].String(), after)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		steps = append(steps, expanded...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

// expand turns one scripted row into steps. "tap" becomes a down and an up.
func expand(name, typ string, after time.Duration) ([]Step, error) {
	if strings.EqualFold(strings.TrimSpace(typ), "tap") {
		return []Step{
			{Event: Event{Name: name, Type: Down}, After: after},
			{Event: Event{Name: name, Type: Up}},
		}, nil
	}
	t, err := ParseEventType(typ)
	if err != nil {
		return nil, err
	}
	return []Step{{Event: Event{Name: name, Type: t}, After: after}}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
