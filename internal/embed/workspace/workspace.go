package workspace

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/memo"
	"github.com/dshills/embedsync/internal/embed/reference"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/logging"
	"github.com/dshills/embedsync/internal/textsync"
)

// Option configures a Workspace.
type Option func(*options)

type options struct {
	table   *language.Table
	catalog *reference.Catalog
	sync    *textsync.Engine
	logger  *logging.Logger
}

// WithTable sets the language table. Defaults to language.DefaultTable.
func WithTable(t *language.Table) Option {
	return func(o *options) { o.table = t }
}

// WithCatalog sets the reference catalog shared across workspaces.
func WithCatalog(c *reference.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithSync sets the text sync engine.
func WithSync(s *textsync.Engine) Option {
	return func(o *options) { o.sync = s }
}

// WithLogger sets the workspace logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Workspace is the embedded-document workspace of one host document. It is
// the only component that mutates engine projects and documents.
type Workspace struct {
	id       string
	doc      host.Document
	registry *Registry
	binder   *Binder
	logger   *logging.Logger

	bindings memo.Group[host.Surface, *Binding]

	mu     sync.Mutex
	next   int
	closed bool
}

// New creates the workspace of doc.
func New(doc host.Document, engine analysis.Engine, opts ...Option) *Workspace {
	o := options{logger: logging.NullLogger}
	for _, opt := range opts {
		opt(&o)
	}
	if o.table == nil {
		o.table = language.DefaultTable()
	}
	if o.catalog == nil {
		o.catalog = reference.NewCatalog(nil, o.logger)
	}

	logger := logging.OrNull(o.logger).WithField("host", doc.ID())
	return &Workspace{
		id:       uuid.NewString(),
		doc:      doc,
		registry: NewRegistry(engine, o.table, o.catalog, logger),
		binder:   NewBinder(engine, o.table, o.sync, logger),
		logger:   logger.WithComponent("workspace"),
	}
}

// ID returns the workspace id.
func (w *Workspace) ID() string {
	return w.id
}

// Document returns the host document.
func (w *Workspace) Document() host.Document {
	return w.doc
}

// GetOrCreateProject returns the project of kind.
func (w *Workspace) GetOrCreateProject(kind language.Kind) (*Project, error) {
	if w.isClosed() {
		return nil, ErrClosed
	}
	return w.registry.GetOrCreateProject(w.doc, kind)
}

// AddBlock binds block to a new document in the kind's project. A block
// is bound once; concurrent and later calls share that binding.
func (w *Workspace) AddBlock(block host.Block, kind language.Kind) (*Binding, error) {
	if block.Document() != w.doc {
		return nil, ErrForeignBlock
	}
	if w.isClosed() {
		return nil, ErrClosed
	}

	bn, _, err := w.bindings.Do(block.Surface(), func() (*Binding, error) {
		return w.bind(block, kind)
	})
	return bn, err
}

func (w *Workspace) bind(block host.Block, kind language.Kind) (*Binding, error) {
	project, err := w.GetOrCreateProject(kind)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	n := w.next
	w.next++
	w.mu.Unlock()

	bn, err := w.binder.Bind(project, block, fmt.Sprintf("%s#%d", w.doc.ID(), n))
	if err != nil {
		return nil, err
	}
	if w.isClosed() {
		bn.Unbind()
		w.registry.Remove(w.doc)
		return nil, ErrClosed
	}
	return bn, nil
}

// Binding returns the binding of a surface.
func (w *Workspace) Binding(s host.Surface) (*Binding, bool) {
	return w.bindings.Get(s)
}

// Bindings returns all bindings in creation order.
func (w *Workspace) Bindings() []*Binding {
	return w.bindings.Values()
}

// Projects returns the workspace projects ordered by kind.
func (w *Workspace) Projects() []*Project {
	return w.registry.Projects(w.doc)
}

// Close unbinds every block and removes the projects from the engine.
func (w *Workspace) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	bindings := w.bindings.Values()
	for _, bn := range bindings {
		w.bindings.Forget(bn.Block().Surface())
		bn.Unbind()
	}
	w.registry.Remove(w.doc)

	w.logger.Debug("closed with %d bindings", len(bindings))
	return nil
}

func (w *Workspace) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
