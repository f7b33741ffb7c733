// Package embed is the entry point of the embedding core. The host calls
// OnBlockCreated for every embedded code block it discovers; the Embedder
// fetches the workspace of the block's host document, binds the block to
// an engine document and attaches command routing to its surface.
package embed

import (
	"sync"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/embed/command"
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/memo"
	"github.com/dshills/embedsync/internal/embed/reference"
	"github.com/dshills/embedsync/internal/embed/workspace"
	"github.com/dshills/embedsync/internal/engine/buffer"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/logging"
	"github.com/dshills/embedsync/internal/textsync"
)

// Option configures an Embedder.
type Option func(*Embedder)

// WithTable sets the language table. It is not modified afterwards.
func WithTable(t *language.Table) Option {
	return func(e *Embedder) {
		if t != nil {
			e.table = t
		}
	}
}

// WithCatalog sets the reference catalog.
func WithCatalog(c *reference.Catalog) Option {
	return func(e *Embedder) { e.catalog = c }
}

// WithSync sets the text sync engine used by every binding.
func WithSync(s *textsync.Engine) Option {
	return func(e *Embedder) { e.sync = s }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Embedder) { e.logger = logging.OrNull(l) }
}

// WithDispatcher sets the host UI dispatcher used for view polling.
func WithDispatcher(d host.Dispatcher) Option {
	return func(e *Embedder) { e.dispatcher = d }
}

// WithRouterOptions passes options to the command router.
func WithRouterOptions(opts ...command.Option) Option {
	return func(e *Embedder) { e.routerOpts = append(e.routerOpts, opts...) }
}

// Embedder connects host blocks to the analysis engine.
type Embedder struct {
	engine     analysis.Engine
	table      *language.Table
	catalog    *reference.Catalog
	sync       *textsync.Engine
	dispatcher host.Dispatcher
	routerOpts []command.Option
	logger     *logging.Logger
	router     *command.Router

	workspaces memo.Group[host.Document, *workspace.Workspace]

	mu       sync.Mutex
	reattach map[host.Surface]func()
}

// New creates an embedder.
func New(engine analysis.Engine, views host.ViewResolver, opts ...Option) *Embedder {
	e := &Embedder{
		engine:   engine,
		table:    language.DefaultTable(),
		logger:   logging.NullLogger,
		reattach: make(map[host.Surface]func()),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = reference.NewCatalog(nil, e.logger)
	}
	if e.sync == nil {
		e.sync = textsync.New(textsync.WithLogger(e.logger))
	}

	routerOpts := append([]command.Option{command.WithLogger(e.logger)}, e.routerOpts...)
	e.router = command.NewRouter(engine, views, e.dispatcher, routerOpts...)
	return e
}

// OnBlockCreated embeds block. Blocks whose content type is not in the
// language table are ignored. Failures degrade the block and are logged;
// the returned binding is nil when the block was not embedded.
func (e *Embedder) OnBlockCreated(doc host.Document, block host.Block) *workspace.Binding {
	kind, ok := e.table.Lookup(block.ContentType())
	if !ok {
		e.logger.Debug("%s: no embedded language for content type %q", doc.ID(), block.ContentType())
		return nil
	}

	ws, _, err := e.workspaces.Do(doc, func() (*workspace.Workspace, error) {
		return workspace.New(doc, e.engine,
			workspace.WithTable(e.table),
			workspace.WithCatalog(e.catalog),
			workspace.WithSync(e.sync),
			workspace.WithLogger(e.logger),
		), nil
	})
	if err != nil {
		e.logger.Warn("%s: workspace: %v", doc.ID(), err)
		return nil
	}

	bn, err := ws.AddBlock(block, kind)
	if err != nil {
		e.logger.Warn("%s: embed %s block: %v", doc.ID(), kind, err)
		return nil
	}

	surface := block.Surface()
	e.router.Attach(surface, kind)
	e.watchForReattach(surface, kind)
	return bn
}

// watchForReattach restarts the view poll on the next edit of a surface
// whose poll gave up.
func (e *Embedder) watchForReattach(s host.Surface, kind language.Kind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.reattach[s]; ok {
		return
	}
	e.reattach[s] = s.Subscribe(func(buffer.ChangeEvent) {
		if e.router.State(s) != command.AdapterInstalled {
			e.router.Attach(s, kind)
		}
	})
}

// Workspace returns the workspace of doc if one exists.
func (e *Embedder) Workspace(doc host.Document) (*workspace.Workspace, bool) {
	return e.workspaces.Get(doc)
}

// Workspaces returns all workspaces in creation order.
func (e *Embedder) Workspaces() []*workspace.Workspace {
	return e.workspaces.Values()
}

// Router returns the command router.
func (e *Embedder) Router() *command.Router {
	return e.router
}

// Table returns the language table.
func (e *Embedder) Table() *language.Table {
	return e.table
}

// GlobalPrefix returns the implicit text prepended to snippets of kind.
func (e *Embedder) GlobalPrefix(kind language.Kind) string {
	return e.table.GlobalPrefix(kind)
}

// GlobalSuffix returns the implicit text appended to snippets of kind.
func (e *Embedder) GlobalSuffix(kind language.Kind) string {
	return e.table.GlobalSuffix(kind)
}

// Exec forwards a command to the adapter attached to surface.
func (e *Embedder) Exec(s host.Surface, cmd analysis.Command) (analysis.Result, error) {
	return e.router.Exec(s, cmd)
}

// Close tears down the workspace of doc: command routing is detached,
// bindings are dropped and the engine projects removed.
func (e *Embedder) Close(doc host.Document) error {
	ws, ok := e.workspaces.Forget(doc)
	if !ok {
		return nil
	}

	for _, bn := range ws.Bindings() {
		s := bn.Block().Surface()
		e.mu.Lock()
		unsub := e.reattach[s]
		delete(e.reattach, s)
		e.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		e.router.Detach(s)
	}
	return ws.Close()
}

// CloseAll tears down every workspace.
func (e *Embedder) CloseAll() error {
	var first error
	for _, ws := range e.workspaces.Values() {
		if err := e.Close(ws.Document()); err != nil && first == nil {
			first = err
		}
	}
	return first
}
