// Package luaadapter builds command adapters from Lua scripts.
//
// A script returns a table mapping command names to functions. Each
// function receives the block text and a table of string arguments and
// returns the new block text, or nil to leave it unchanged:
//
//	return {
//	  upper = function(text, args) return string.upper(text) end,
//	}
//
// Scripts run in a sandbox with only the base, table, string and math
// libraries. The embed module offers embed.lines(text), embed.kind and
// embed.comment. Every adapter owns its own Lua state; Close releases it.
package luaadapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/logging"
)

// DefaultTimeout bounds one command invocation.
const DefaultTimeout = 2 * time.Second

// Errors returned by the package.
var (
	ErrBadScript   = errors.New("luaadapter: script must return a table of functions")
	ErrBadResult   = errors.New("luaadapter: command must return a string or nil")
	ErrStateClosed = errors.New("luaadapter: state closed")
)

type config struct {
	timeout time.Duration
	logger  *logging.Logger
}

// Option configures adapters built by a factory.
type Option func(*config)

// WithTimeout bounds each command invocation.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the adapter logger. Lua print output goes to it.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) {
		c.logger = logging.OrNull(l).WithComponent("lua")
	}
}

// Load reads a script file and returns a factory for it.
func Load(path string, opts ...Option) (analysis.AdapterFactory, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewFactory(path, string(src), opts...)
}

// NewFactory validates source and returns a factory creating one adapter,
// with its own Lua state, per surface.
func NewFactory(name, source string, opts ...Option) (analysis.AdapterFactory, error) {
	cfg := config{timeout: DefaultTimeout, logger: logging.NullLogger}
	for _, opt := range opts {
		opt(&cfg)
	}

	probe, err := newScript(name, source, language.Profile{}, cfg)
	if err != nil {
		return nil, err
	}
	probe.close()

	return func(ctx analysis.AdapterContext) (analysis.CommandAdapter, error) {
		s, err := newScript(name, source, ctx.Profile, cfg)
		if err != nil {
			return nil, err
		}
		transforms := make(map[string]analysis.Transform, len(s.funcs))
		for cmd := range s.funcs {
			transforms[cmd] = s.transform(cmd)
		}
		return &Adapter{
			SnippetAdapter: analysis.NewSnippetAdapter(ctx, transforms),
			script:         s,
		}, nil
	}, nil
}

// Adapter is a Lua-backed command adapter.
type Adapter struct {
	*analysis.SnippetAdapter
	script *script
}

// Close releases the Lua state.
func (a *Adapter) Close() error {
	a.script.close()
	return nil
}

type script struct {
	name    string
	timeout time.Duration
	logger  *logging.Logger

	mu     sync.Mutex
	L      *lua.LState
	funcs  map[string]*lua.LFunction
	closed bool
}

func newScript(name, source string, profile language.Profile, cfg config) (*script, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	s := &script{
		name:    name,
		timeout: cfg.timeout,
		logger:  cfg.logger.WithField("script", name),
		L:       L,
		funcs:   make(map[string]*lua.LFunction),
	}
	s.installModule(profile)

	fn, err := L.LoadString(source)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("luaadapter: %s: %w", name, err)
	}
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		L.Close()
		return nil, fmt.Errorf("luaadapter: %s: %w", name, err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrBadScript, name, ret.Type())
	}
	var bad []string
	tbl.ForEach(func(k, v lua.LValue) {
		key, kok := k.(lua.LString)
		f, fok := v.(*lua.LFunction)
		if !kok || !fok {
			bad = append(bad, k.String())
			return
		}
		s.funcs[string(key)] = f
	})
	if len(bad) > 0 {
		L.Close()
		return nil, fmt.Errorf("%w: %s: bad entries %s", ErrBadScript, name, strings.Join(bad, ", "))
	}
	return s, nil
}

// openSafeLibraries opens only the side-effect free standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (s *script) installModule(profile language.Profile) {
	mod := s.L.SetFuncs(s.L.NewTable(), map[string]lua.LGFunction{
		"lines": luaLines,
	})
	mod.RawSetString("kind", lua.LString(profile.Kind))
	mod.RawSetString("comment", lua.LString(profile.LineComment))
	s.L.SetGlobal("embed", mod)

	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		s.logger.Info("%s", strings.Join(parts, "\t"))
		return 0
	}))
}

// luaLines splits text on newlines into a sequence table.
func luaLines(L *lua.LState) int {
	text := L.CheckString(1)
	tbl := L.NewTable()
	for _, line := range strings.Split(text, "\n") {
		tbl.Append(lua.LString(line))
	}
	L.Push(tbl)
	return 1
}

func (s *script) transform(name string) analysis.Transform {
	return func(snippet string, cmd analysis.Command) (string, error) {
		return s.call(name, snippet, cmd.Args)
	}
}

func (s *script) call(name, snippet string, args map[string]string) (out string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStateClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	argTbl := s.L.NewTable()
	for k, v := range args {
		argTbl.RawSetString(k, lua.LString(v))
	}

	if err := s.L.CallByParam(lua.P{Fn: s.funcs[name], NRet: 1, Protect: true}, lua.LString(snippet), argTbl); err != nil {
		return "", err
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)

	switch v := ret.(type) {
	case lua.LString:
		return string(v), nil
	case *lua.LNilType:
		return snippet, nil
	default:
		return "", fmt.Errorf("%w: got %s", ErrBadResult, ret.Type())
	}
}

func (s *script) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.L.Close()
		s.closed = true
	}
}
