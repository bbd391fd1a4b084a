package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/keychord/internal/config/loader"
	"github.com/dshills/keychord/internal/input/key"
	"github.com/dshills/keychord/internal/input/source"
)

// Actions a binding or reflector can perform.
const (
	// ActionLua runs the entry's lua body.
	ActionLua = "lua"

	// ActionStop shuts down the monitor that recognized the chord.
	ActionStop = "stop"

	// ActionPrint writes the entry's message, or the chord, to the output.
	ActionPrint = "print"
)

// Config is the full configuration file.
type Config struct {
	Log        LogConfig         `toml:"log" yaml:"log"`
	Lua        LuaConfig         `toml:"lua" yaml:"lua"`
	Monitors   []MonitorConfig   `toml:"monitors" yaml:"monitors"`
	Bindings   []BindingConfig   `toml:"bindings" yaml:"bindings"`
	Reflectors []ReflectorConfig `toml:"reflectors" yaml:"reflectors"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" yaml:"format"`

	// File is the log destination. Empty means stderr.
	File string `toml:"file" yaml:"file"`
}

// LuaConfig configures scripted callbacks.
type LuaConfig struct {
	// Timeout bounds each script call, as a Go duration string.
	Timeout string `toml:"timeout" yaml:"timeout"`
}

// MonitorConfig describes one monitor.
type MonitorConfig struct {
	ID string `toml:"id" yaml:"id"`

	// Source is terminal, evdev or script.
	Source string `toml:"source" yaml:"source"`

	// Device is the evdev device path. Empty picks the first keyboard.
	Device string `toml:"device" yaml:"device"`

	// Script is the replay file for the script source.
	Script string `toml:"script" yaml:"script"`

	DisplayKeys bool   `toml:"display_keys" yaml:"display_keys"`
	EchoFormat  string `toml:"echo_format" yaml:"echo_format"`
}

// BindingConfig binds an action to a chord.
type BindingConfig struct {
	Chord string `toml:"chord" yaml:"chord"`

	// ID places the binding in a specific slot. Omitted means the next
	// free slot.
	ID *int `toml:"id" yaml:"id"`

	Name    string `toml:"name" yaml:"name"`
	Action  string `toml:"action" yaml:"action"`
	Lua     string `toml:"lua" yaml:"lua"`
	Message string `toml:"message" yaml:"message"`
}

// ReflectorConfig binds an action to a reflector key.
type ReflectorConfig struct {
	Key     string `toml:"key" yaml:"key"`
	Action  string `toml:"action" yaml:"action"`
	Lua     string `toml:"lua" yaml:"lua"`
	Message string `toml:"message" yaml:"message"`
}

// Default returns the configuration used when no file exists: one terminal
// monitor and no bindings beyond the registry's built-in ones.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads the file at path. A missing file, or an empty path, yields
// Default(). The result is validated.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadWith(loader.New(), path)
}

// LoadWith is Load using l to read the file.
func LoadWith(l *loader.Loader, path string) (Config, error) {
	var c Config
	found, err := l.LoadFile(path, &c)
	if err != nil {
		return Default(), err
	}
	if !found {
		return Default(), nil
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Parse decodes data in the given format, applies defaults and validates.
func Parse(data []byte, format loader.Format) (Config, error) {
	var c Config
	if err := loader.Decode("<input>", format, data, &c); err != nil {
		return Default(), err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Lua.Timeout == "" {
		c.Lua.Timeout = "5s"
	}
	if len(c.Monitors) == 0 {
		c.Monitors = []MonitorConfig{{Source: string(source.KindTerminal)}}
	}
	for i := range c.Monitors {
		if c.Monitors[i].Source == "" {
			c.Monitors[i].Source = string(source.KindTerminal)
		}
		if c.Monitors[i].EchoFormat == "" {
			c.Monitors[i].EchoFormat = "text"
		}
	}
	for i := range c.Bindings {
		c.Bindings[i].Action = strings.ToLower(strings.TrimSpace(c.Bindings[i].Action))
		if chord, ok := key.CanonicalChord(strings.TrimSpace(c.Bindings[i].Chord)); ok {
			c.Bindings[i].Chord = chord
		}
	}
	for i := range c.Reflectors {
		c.Reflectors[i].Action = strings.ToLower(strings.TrimSpace(c.Reflectors[i].Action))
	}
}

// LuaTimeout returns the parsed Lua timeout.
func (c Config) LuaTimeout() time.Duration {
	d, err := time.ParseDuration(c.Lua.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Validate reports every problem in the configuration. Each error wraps
// ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		bad("log.format %q", c.Log.Format)
	}
	if d, err := time.ParseDuration(c.Lua.Timeout); err != nil || d < 0 {
		bad("lua.timeout %q", c.Lua.Timeout)
	}

	ids := make(map[string]bool)
	for i, m := range c.Monitors {
		kind, err := source.ParseKind(m.Source)
		switch {
		case err != nil:
			bad("monitors[%d].source %q", i, m.Source)
		case kind == source.KindChannel:
			bad("monitors[%d].source %q cannot be configured", i, m.Source)
		case kind == source.KindScript && m.Script == "":
			bad("monitors[%d]: script source needs a script path", i)
		}
		switch strings.ToLower(m.EchoFormat) {
		case "text", "json":
		default:
			bad("monitors[%d].echo_format %q", i, m.EchoFormat)
		}
		if m.ID != "" {
			if ids[m.ID] {
				bad("monitors[%d]: duplicate id %q", i, m.ID)
			}
			ids[m.ID] = true
		}
	}

	slots := make(map[string]bool)
	for i, b := range c.Bindings {
		if strings.TrimSpace(b.Chord) == "" {
			bad("bindings[%d]: empty chord", i)
		} else if _, ok := key.CanonicalChord(strings.TrimSpace(b.Chord)); !ok {
			bad("bindings[%d]: chord %q has an empty key", i, b.Chord)
		}
		if err := checkAction(b.Action, b.Lua); err != nil {
			bad("bindings[%d]: %v", i, err)
		}
		if b.ID != nil {
			slot := fmt.Sprintf("%s#%d", b.Chord, *b.ID)
			if slots[slot] {
				bad("bindings[%d]: chord %q slot %d bound twice", i, b.Chord, *b.ID)
			}
			slots[slot] = true
		}
	}

	for i, r := range c.Reflectors {
		if strings.TrimSpace(r.Key) == "" {
			bad("reflectors[%d]: empty key", i)
		}
		if err := checkAction(r.Action, r.Lua); err != nil {
			bad("reflectors[%d]: %v", i, err)
		}
	}

	return errors.Join(errs...)
}

func checkAction(action, lua string) error {
	switch action {
	case ActionLua:
		if strings.TrimSpace(lua) == "" {
			return errors.New("lua action without a lua body")
		}
	case ActionStop, ActionPrint:
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}
