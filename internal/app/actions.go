package app

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/keychord/internal/config"
	"github.com/dshills/keychord/internal/input/keymap"
	"github.com/dshills/keychord/internal/plugin/lua"
)

// actionSet holds what one configuration installed into the registry and
// reflector, so a reload can revoke exactly that.
type actionSet struct {
	callbacks []*keymap.Callback
	reflects  []reflectHandle
	defaults  []defaultSlot
	scripts   []*lua.Script
}

// reflectHandle addresses one reflector registration.
type reflectHandle struct {
	key string
	id  uuid.UUID
}

// defaultSlot is a built-in binding displaced by an explicit slot id.
type defaultSlot struct {
	chord string
	id    int
	cb    *keymap.Callback
}

// closeScripts releases every compiled script. No dispatch unit may still
// reach them.
func (s *actionSet) closeScripts() {
	for _, sc := range s.scripts {
		sc.Close()
	}
	s.scripts = nil
}

// install builds and registers the bindings and reflectors of cfg. On error
// nothing from cfg stays registered.
func (app *Application) install(cfg config.Config) (*actionSet, error) {
	set := &actionSet{}
	var errs []error

	// Nothing is registered until every action builds.
	callbacks := make([]*keymap.Callback, len(cfg.Bindings))
	for i, b := range cfg.Bindings {
		cb, err := app.bindingCallback(i, b, cfg, set)
		if err != nil {
			errs = append(errs, &ActionError{Kind: "binding", Index: i, Target: b.Chord, Err: err})
			continue
		}
		callbacks[i] = cb
	}
	handlers := make([]keymap.ReflectFunc, len(cfg.Reflectors))
	for i, r := range cfg.Reflectors {
		fn, err := app.reflectFunc(i, r, cfg, set)
		if err != nil {
			errs = append(errs, &ActionError{Kind: "reflector", Index: i, Target: r.Key, Err: err})
			continue
		}
		handlers[i] = fn
	}
	if err := errors.Join(errs...); err != nil {
		set.closeScripts()
		return nil, err
	}

	for i, b := range cfg.Bindings {
		if err := app.bind(set, b, callbacks[i]); err != nil {
			errs = append(errs, &ActionError{Kind: "binding", Index: i, Target: b.Chord, Err: err})
		}
	}
	for i, r := range cfg.Reflectors {
		id, err := app.reflector.Register(r.Key).To(handlers[i])
		if err != nil {
			errs = append(errs, &ActionError{Kind: "reflector", Index: i, Target: r.Key, Err: err})
			continue
		}
		set.reflects = append(set.reflects, reflectHandle{key: r.Key, id: id})
	}

	if err := errors.Join(errs...); err != nil {
		app.retire(set)
		return nil, err
	}
	return set, nil
}

// bind registers cb for b and records it in set. A built-in binding that an
// explicit slot id replaces is remembered so revoking set can put it back.
func (app *Application) bind(set *actionSet, b config.BindingConfig, cb *keymap.Callback) error {
	if b.ID == nil {
		if _, err := app.registry.Register(b.Chord).To(cb); err != nil {
			return err
		}
		set.callbacks = append(set.callbacks, cb)
		return nil
	}

	id := *b.ID
	slots, _ := app.registry.Lookup(b.Chord)
	displaced := slots[id]
	if _, err := app.registry.RegisterAt(b.Chord, id).To(cb); err != nil {
		return err
	}
	set.callbacks = append(set.callbacks, cb)
	if builtin := keymap.DefaultBindings()[b.Chord][id]; builtin != nil && builtin.Same(displaced) {
		set.defaults = append(set.defaults, defaultSlot{chord: b.Chord, id: id, cb: displaced})
	}
	return nil
}

// unregister removes everything set installed and restores the built-in
// bindings it displaced, unless something else took their slots since.
func (app *Application) unregister(set *actionSet) {
	for _, cb := range set.callbacks {
		app.registry.UnregisterCallback(cb)
	}
	for _, h := range set.reflects {
		app.reflector.Remove(h.key, h.id)
	}
	for _, d := range set.defaults {
		if slots, _ := app.registry.Lookup(d.chord); slots[d.id] != nil {
			continue
		}
		if err := app.registry.Set(d.chord, d.id, d.cb); err != nil {
			app.logger.Warn("restoring default binding", "chord", d.chord, "slot", d.id, "error", err)
		}
	}
}

// retire unregisters set. A dispatch unit may still hold a snapshot that
// reaches its scripts, so they stay open until Close.
func (app *Application) retire(set *actionSet) {
	if set == nil {
		return
	}
	app.unregister(set)
	app.retired = append(app.retired, set)
}

// bindingCallback builds the callback for binding i.
func (app *Application) bindingCallback(i int, b config.BindingConfig, cfg config.Config, set *actionSet) (*keymap.Callback, error) {
	name := b.Name
	if name == "" {
		name = fmt.Sprintf("bindings[%d]", i)
	}

	switch b.Action {
	case config.ActionStop:
		// A callback of its own, so revoking it leaves the built-in stop alone.
		return keymap.Func(name, func(m keymap.Monitor) {
			m.Shutdown()
		}), nil

	case config.ActionPrint:
		msg := b.Message
		if msg == "" {
			msg = b.Chord
		}
		return keymap.Func(name, func(keymap.Monitor) {
			app.out.println(msg)
		}), nil

	case config.ActionLua:
		s, err := lua.Compile(name, b.Lua, app.luaOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		set.scripts = append(set.scripts, s)
		return s.Callback(b.Chord), nil
	}
	return nil, fmt.Errorf("unknown action %q", b.Action)
}

// reflectFunc builds the handler for reflector i.
func (app *Application) reflectFunc(i int, r config.ReflectorConfig, cfg config.Config, set *actionSet) (keymap.ReflectFunc, error) {
	switch r.Action {
	case config.ActionStop:
		return func(m keymap.Monitor) error {
			m.Shutdown()
			return nil
		}, nil

	case config.ActionPrint:
		msg := r.Message
		if msg == "" {
			msg = r.Key
		}
		return func(keymap.Monitor) error {
			app.out.println(msg)
			return nil
		}, nil

	case config.ActionLua:
		s, err := lua.Compile(fmt.Sprintf("reflectors[%d]", i), r.Lua, app.luaOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		set.scripts = append(set.scripts, s)
		return s.ReflectFunc(r.Key), nil
	}
	return nil, fmt.Errorf("unknown action %q", r.Action)
}

func (app *Application) luaOptions(cfg config.Config) []lua.StateOption {
	return []lua.StateOption{
		lua.WithExecutionTimeout(cfg.LuaTimeout()),
		lua.WithOutput(app.out),
	}
}

// syncWriter serializes writes from concurrent dispatch units.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *syncWriter) println(msg string) {
	fmt.Fprintln(s, msg)
}
