package app

import (
	"errors"
	"fmt"

	"github.com/dshills/keychord/internal/config"
	"github.com/dshills/keychord/internal/input/source"
)

// errNoKeyboard is returned when no evdev keyboard can be found.
var errNoKeyboard = errors.New("no keyboard device found")

// openSource opens the input source a monitor reads from.
func (app *Application) openSource(mc config.MonitorConfig) (source.Source, error) {
	kind, err := source.ParseKind(mc.Source)
	if err != nil {
		return nil, err
	}

	switch kind {
	case source.KindTerminal:
		if app.terminal != nil {
			return nil, ErrTerminalInUse
		}
		var opts []source.TerminalOption
		if app.opts.Screen != nil {
			opts = append(opts, source.WithScreen(app.opts.Screen))
		}
		t, err := source.NewTerminal(opts...)
		if err != nil {
			return nil, err
		}
		app.terminal = t
		return t, nil

	case source.KindEvdev:
		path := mc.Device
		if path == "" {
			paths, err := source.FindKeyboards()
			if err != nil {
				return nil, err
			}
			if len(paths) == 0 {
				return nil, errNoKeyboard
			}
			path = paths[0]
		}
		dev, err := source.OpenEvdev(path)
		if err != nil {
			return nil, err
		}
		app.logger.Info("reading keyboard", "device", path)
		return dev, nil

	case source.KindScript:
		s, err := source.OpenScript(mc.Script)
		if err != nil {
			return nil, err
		}
		app.logger.Debug("replaying script", "path", mc.Script, "events", s.Len())
		return s, nil
	}
	return nil, fmt.Errorf("source %q cannot be opened from configuration", mc.Source)
}
