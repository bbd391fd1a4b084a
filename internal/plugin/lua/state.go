package lua

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single call into a state.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps a sandboxed gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe. Every method takes the state's
// mutex, and Do hands the raw LState to a function while holding it.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	timeout time.Duration
	closed  bool
}

// StateOption configures a State.
type StateOption func(*stateConfig)

type stateConfig struct {
	timeout time.Duration
	out     io.Writer
}

// WithExecutionTimeout bounds each call. Zero disables the bound.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(c *stateConfig) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithOutput sets where the script's print writes. The default is stdout.
func WithOutput(w io.Writer) StateOption {
	return func(c *stateConfig) {
		c.out = w
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	cfg := stateConfig{
		timeout: DefaultExecutionTimeout,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	NewSandbox(L, cfg.out).Install()

	return &State{
		L:       L,
		timeout: cfg.timeout,
	}, nil
}

// Load compiles code into a function without running it. name appears in
// error messages.
func (s *State) Load(name, code string) (*lua.LFunction, error) {
	var fn *lua.LFunction
	err := s.Do(func(L *lua.LState) error {
		var err error
		fn, err = L.Load(strings.NewReader(code), name)
		return err
	})
	return fn, err
}

// Do runs fn with exclusive access to the underlying LState. Panics inside
// fn are returned as errors.
func (s *State) Do(fn func(L *lua.LState) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn(s.L)
}

// callLocked calls fn under the state's timeout. The caller holds s.mu.
func (s *State) callLocked(fn *lua.LFunction, args ...lua.LValue) (ret lua.LValue, err error) {
	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
		defer func() {
			if err != nil && ctx.Err() != nil {
				err = fmt.Errorf("%w after %v: %v", ErrExecutionTimeout, s.timeout, err)
			}
		}()
	}

	top := s.L.GetTop()
	if err := s.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		s.L.SetTop(top)
		return lua.LNil, err
	}
	ret = s.L.Get(-1)
	s.L.Pop(1)
	return ret, nil
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Later calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
