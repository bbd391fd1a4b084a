// Package lua runs chord callbacks and reflector handlers written in Lua.
//
// # State
//
// State wraps a sandboxed gopher-lua runtime. gopher-lua states are not
// goroutine-safe, so every operation on a State takes its mutex:
//
//	state, err := lua.NewState(lua.WithExecutionTimeout(time.Second))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
// # Sandbox
//
// The sandbox opens only the base, table, string and math libraries, removes
// dofile, loadfile, load, loadstring and require, and routes print to the
// writer given with WithOutput.
//
// # Scripts
//
// A Script is one compiled chunk with its own State. Scripts become
// callbacks or reflector handlers:
//
//	s, err := lua.Compile("save", `monitor.stop() return "saved"`)
//	if err != nil {
//	    return err
//	}
//	registry.Register("ctrl+s").To(s.Callback("ctrl+s"))
//
// While a script runs, the globals chord, key and monitor describe the call.
// monitor is also passed as the chunk's first argument and has the fields:
//
//	monitor.id        the monitor's identifier
//	monitor.stop()    request shutdown, returns immediately
//	monitor.chords()  list of bound chords
//	monitor.bound(c)  whether chord c has bindings
//
// A callback's return value, when it is a non-empty string or a number, is
// looked up in the reflector table.
package lua
