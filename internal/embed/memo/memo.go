// Package memo provides a memoized factory keyed by identity: the first
// caller for a key runs the constructor, every other caller (concurrent or
// later) receives the same value.
package memo

import (
	"errors"
	"sync"
)

// ErrCreatePanicked is reported to callers waiting on a constructor that
// panicked. The panic itself propagates to the goroutine that ran it.
var ErrCreatePanicked = errors.New("memo: constructor panicked")

// Group memoizes values by key. The zero value is ready to use.
//
// A failed construction is not cached; the next call for the key runs the
// constructor again. The constructor must not call Do for its own key.
type Group[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	order   []K
}

type entry[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Do returns the value for key, creating it with create on first use.
// The bool reports whether this call ran the constructor.
func (g *Group[K, V]) Do(key K, create func() (V, error)) (V, bool, error) {
	g.mu.Lock()
	if g.entries == nil {
		g.entries = make(map[K]*entry[V])
	}
	if e, ok := g.entries[key]; ok {
		g.mu.Unlock()
		<-e.done
		return e.val, false, e.err
	}

	// The entry is published before the constructor runs, so the
	// check and the creation are one step for every other caller.
	e := &entry[V]{done: make(chan struct{})}
	g.entries[key] = e
	g.order = append(g.order, key)
	g.mu.Unlock()

	g.run(key, e, create)
	return e.val, true, e.err
}

func (g *Group[K, V]) run(key K, e *entry[V], create func() (V, error)) {
	finished := false
	defer func() {
		if !finished {
			e.err = ErrCreatePanicked
		}
		if e.err != nil {
			g.forget(key, e)
		}
		close(e.done)
	}()

	e.val, e.err = create()
	finished = true
}

func (g *Group[K, V]) forget(key K, e *entry[V]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.entries[key] == e {
		g.removeKey(key)
	}
}

// removeKey drops key from the map and order. Caller holds g.mu.
func (g *Group[K, V]) removeKey(key K) {
	delete(g.entries, key)
	for i, k := range g.order {
		if k == key {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// Get returns the value for key if it has been created successfully.
func (g *Group[K, V]) Get(key K) (V, bool) {
	g.mu.Lock()
	e, ok := g.entries[key]
	g.mu.Unlock()

	var zero V
	if !ok {
		return zero, false
	}
	select {
	case <-e.done:
		if e.err != nil {
			return zero, false
		}
		return e.val, true
	default:
		return zero, false
	}
}

// Forget removes key so the next Do creates a fresh value.
func (g *Group[K, V]) Forget(key K) (V, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var zero V
	e, ok := g.entries[key]
	if !ok {
		return zero, false
	}
	g.removeKey(key)

	select {
	case <-e.done:
		return e.val, e.err == nil
	default:
		return zero, false
	}
}

// Values returns the successfully created values in creation order.
func (g *Group[K, V]) Values() []V {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]V, 0, len(g.order))
	for _, k := range g.order {
		e := g.entries[k]
		select {
		case <-e.done:
			if e.err == nil {
				out = append(out, e.val)
			}
		default:
		}
	}
	return out
}

// Len returns the number of keys, including ones still being created.
func (g *Group[K, V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
