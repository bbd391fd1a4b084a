package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keychord/internal/input/keymap"
)

// Script is a compiled Lua chunk bound to its own State. Calls on one
// script are serialized; different scripts run in parallel.
type Script struct {
	name  string
	state *State
	fn    *lua.LFunction
}

// Compile parses code into a script. The state options apply to the
// script's private State.
func Compile(name, code string, opts ...StateOption) (*Script, error) {
	state, err := NewState(opts...)
	if err != nil {
		return nil, err
	}

	fn, err := state.Load(name, code)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}
	return &Script{name: name, state: state, fn: fn}, nil
}

// Name returns the name the script was compiled with.
func (s *Script) Name() string {
	return s.name
}

// Run executes the script for monitor m. chord and key are exposed as
// globals; either may be empty. The result is the script's return value
// converted to a string.
func (s *Script) Run(m keymap.Monitor, chord, key string) (string, error) {
	var result lua.LValue = lua.LNil
	err := s.state.Do(func(L *lua.LState) error {
		mt := monitorTable(L, m)
		L.SetGlobal("monitor", mt)
		L.SetGlobal("chord", lua.LString(chord))
		L.SetGlobal("key", lua.LString(key))

		var err error
		result, err = s.state.callLocked(s.fn, mt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("lua %s: %w", s.name, err)
	}
	return toResult(result)
}

// Callback wraps the script as a chord callback for chord.
func (s *Script) Callback(chord string) *keymap.Callback {
	return keymap.NewCallback(s.name, func(m keymap.Monitor) (string, error) {
		return s.Run(m, chord, "")
	})
}

// ReflectFunc wraps the script as a reflector handler for key. Its return
// value is ignored.
func (s *Script) ReflectFunc(key string) keymap.ReflectFunc {
	return func(m keymap.Monitor) error {
		_, err := s.Run(m, "", key)
		return err
	}
}

// Close releases the script's state.
func (s *Script) Close() error {
	return s.state.Close()
}

// monitorTable exposes m to Lua.
func monitorTable(L *lua.LState, m keymap.Monitor) *lua.LTable {
	t := L.NewTable()
	if m == nil {
		return t
	}

	t.RawSetString("id", lua.LString(m.ID()))
	t.RawSetString("stop", L.NewFunction(func(L *lua.LState) int {
		m.Shutdown()
		return 0
	}))
	t.RawSetString("chords", L.NewFunction(func(L *lua.LState) int {
		list := L.NewTable()
		if reg := m.Bindings(); reg != nil {
			for _, c := range reg.Chords() {
				list.Append(lua.LString(c))
			}
		}
		L.Push(list)
		return 1
	}))
	t.RawSetString("bound", L.NewFunction(func(L *lua.LState) int {
		c := L.CheckString(1)
		reg := m.Bindings()
		L.Push(lua.LBool(reg != nil && reg.Has(c)))
		return 1
	}))
	return t
}

// toResult converts a script's return value to a reflector key.
func toResult(v lua.LValue) (string, error) {
	switch v.Type() {
	case lua.LTNil:
		return "", nil
	case lua.LTString, lua.LTNumber:
		return v.String(), nil
	case lua.LTBool:
		if v == lua.LFalse {
			return "", nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrBadResult, v.Type())
}
