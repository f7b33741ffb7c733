// Package command routes editing commands from host surfaces to the
// analysis engine's command adapters.
//
// Each surface moves through Unbound, AwaitingView, ViewResolved and
// AdapterInstalled. Attach starts a cooperative poll for the surface's
// view: every attempt runs on the host dispatcher and, when the view is
// missing, schedules the next attempt after the poll interval instead of
// sleeping. The poll gives up after the timeout and leaves the surface
// AwaitingView until the next Attach.
package command

import (
	"io"
	"sync"
	"time"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/memo"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/logging"
)

// Poll defaults.
const (
	DefaultViewTimeout  = 5 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
)

// State is the routing state of a surface.
type State uint8

const (
	// Unbound surfaces have never been attached.
	Unbound State = iota
	// AwaitingView surfaces are polling, or gave up polling, for a view.
	AwaitingView
	// ViewResolved surfaces have a view but no adapter yet.
	ViewResolved
	// AdapterInstalled surfaces route commands. Terminal.
	AdapterInstalled
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case AwaitingView:
		return "awaiting-view"
	case ViewResolved:
		return "view-resolved"
	case AdapterInstalled:
		return "adapter-installed"
	default:
		return "unknown"
	}
}

// Option configures a Router.
type Option func(*Router)

// WithViewTimeout bounds one view poll.
func WithViewTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithPollInterval sets the delay between view attempts.
func WithPollInterval(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Router) {
		r.logger = logging.OrNull(l).WithComponent("commands")
	}
}

// OnInstalled registers a callback run after an adapter is installed.
func OnInstalled(fn func(s host.Surface, a analysis.CommandAdapter)) Option {
	return func(r *Router) {
		r.onInstalled = fn
	}
}

// bindingKey identifies a command binding.
type bindingKey struct {
	surface host.Surface
	kind    language.Kind
}

type surfaceState struct {
	kind     language.Kind
	state    State
	view     host.View
	adapter  analysis.CommandAdapter
	polling  bool
	poll     int
	deadline time.Time
	timer    *time.Timer
	attempts int
	err      error
}

// Router attaches command adapters to surfaces and forwards commands.
type Router struct {
	engine      analysis.Engine
	views       host.ViewResolver
	dispatcher  host.Dispatcher
	timeout     time.Duration
	interval    time.Duration
	logger      *logging.Logger
	onInstalled func(host.Surface, analysis.CommandAdapter)

	adapters memo.Group[bindingKey, analysis.CommandAdapter]

	mu       sync.Mutex
	surfaces map[host.Surface]*surfaceState
	// polls numbers every poll the router starts, across all surfaces.
	polls int
}

// NewRouter creates a router. A nil dispatcher runs attempts inline.
func NewRouter(engine analysis.Engine, views host.ViewResolver, dispatcher host.Dispatcher, opts ...Option) *Router {
	if dispatcher == nil {
		dispatcher = host.Inline{}
	}
	r := &Router{
		engine:     engine,
		views:      views,
		dispatcher: dispatcher,
		timeout:    DefaultViewTimeout,
		interval:   DefaultPollInterval,
		logger:     logging.NullLogger,
		surfaces:   make(map[host.Surface]*surfaceState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach starts routing commands of surface to the kind's adapter. It
// returns immediately; the adapter is installed once the view exists.
// Attaching an installed or polling surface does nothing.
func (r *Router) Attach(s host.Surface, kind language.Kind) {
	r.mu.Lock()
	st, ok := r.surfaces[s]
	if !ok {
		st = &surfaceState{kind: kind}
		r.surfaces[s] = st
	}
	if st.state == AdapterInstalled || st.polling {
		r.mu.Unlock()
		return
	}

	st.kind = kind
	st.state = AwaitingView
	st.view = nil
	st.polling = true
	r.polls++
	st.poll = r.polls
	st.attempts = 0
	st.err = nil
	st.deadline = time.Now().Add(r.timeout)
	poll := st.poll
	r.mu.Unlock()

	r.dispatcher.Post(func() { r.attempt(s, poll) })
}

// attempt runs one view resolution on the dispatcher.
func (r *Router) attempt(s host.Surface, poll int) {
	r.mu.Lock()
	st, ok := r.surfaces[s]
	if !ok || st.poll != poll || !st.polling {
		r.mu.Unlock()
		return
	}
	st.attempts++
	r.mu.Unlock()

	view, ok := r.views.ResolveView(s)
	if !ok {
		r.retry(s, poll)
		return
	}

	r.mu.Lock()
	if cur, ok := r.surfaces[s]; !ok || cur != st || st.poll != poll {
		r.mu.Unlock()
		return
	}
	st.state = ViewResolved
	st.view = view
	kind := st.kind
	r.mu.Unlock()

	adapter, created, err := r.adapters.Do(bindingKey{s, kind}, func() (analysis.CommandAdapter, error) {
		return r.resolve(kind, view, s)
	})

	r.mu.Lock()
	st.polling = false
	if err != nil {
		st.err = err
		r.mu.Unlock()
		r.logger.Warn("%s: no command routing for view %s: %v", kind, view.ID(), err)
		return
	}
	if cur, ok := r.surfaces[s]; !ok || cur != st {
		// Detached while resolving.
		r.mu.Unlock()
		if created {
			r.release(bindingKey{s, kind})
		}
		return
	}
	st.adapter = adapter
	st.state = AdapterInstalled
	attempts := st.attempts
	r.mu.Unlock()

	r.logger.Debug("%s: adapter installed on view %s after %d attempts", kind, view.ID(), attempts)
	if r.onInstalled != nil {
		r.onInstalled(s, adapter)
	}
}

func (r *Router) retry(s host.Surface, poll int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.surfaces[s]
	if !ok || st.poll != poll {
		return
	}
	if time.Now().After(st.deadline) {
		st.polling = false
		st.err = ErrViewUnavailable
		r.logger.Debug("%s: view unavailable after %d attempts", st.kind, st.attempts)
		return
	}
	st.timer = time.AfterFunc(r.interval, func() {
		r.dispatcher.Post(func() { r.attempt(s, poll) })
	})
}

func (r *Router) resolve(kind language.Kind, view host.View, s host.Surface) (analysis.CommandAdapter, error) {
	if err := r.engine.EnsureLoaded(kind); err != nil {
		return nil, &AdapterError{Kind: kind, Err: err}
	}
	adapter, err := r.engine.ResolveCommandAdapter(kind, view, s)
	if err != nil {
		return nil, &AdapterError{Kind: kind, Err: err}
	}
	return adapter, nil
}

// Exec forwards cmd to the surface's adapter.
func (r *Router) Exec(s host.Surface, cmd analysis.Command) (analysis.Result, error) {
	r.mu.Lock()
	st, ok := r.surfaces[s]
	var adapter analysis.CommandAdapter
	if ok {
		adapter = st.adapter
	}
	r.mu.Unlock()

	if adapter == nil {
		return analysis.Result{}, ErrNoAdapter
	}
	return adapter.Exec(cmd), nil
}

// State returns the routing state of a surface.
func (r *Router) State(s host.Surface) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.surfaces[s]; ok {
		return st.state
	}
	return Unbound
}

// Err returns why the last poll of a surface ended without an adapter.
func (r *Router) Err(s host.Surface) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.surfaces[s]; ok {
		return st.err
	}
	return nil
}

// Adapter returns the installed adapter of a surface.
func (r *Router) Adapter(s host.Surface) (analysis.CommandAdapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.surfaces[s]; ok && st.adapter != nil {
		return st.adapter, true
	}
	return nil, false
}

// Detach stops routing for a surface and releases its adapter.
func (r *Router) Detach(s host.Surface) {
	r.mu.Lock()
	st, ok := r.surfaces[s]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.surfaces, s)
	if st.timer != nil {
		st.timer.Stop()
	}
	r.mu.Unlock()

	r.release(bindingKey{s, st.kind})
}

func (r *Router) release(key bindingKey) {
	adapter, ok := r.adapters.Forget(key)
	if !ok {
		return
	}
	if c, ok := adapter.(io.Closer); ok {
		if err := c.Close(); err != nil {
			r.logger.Warn("%s: close adapter: %v", key.kind, err)
		}
	}
}
