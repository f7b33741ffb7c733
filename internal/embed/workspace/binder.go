package workspace

import (
	"fmt"
	"sync"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/engine/buffer"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/logging"
	"github.com/dshills/embedsync/internal/textsync"
)

// Stats counts the propagation steps of a binding.
type Stats struct {
	// HostPushes is the number of host edits pushed to the engine.
	HostPushes int
	// EnginePushes is the number of engine edits pushed to the host.
	EnginePushes int
	// EchoesSuppressed is the number of notifications dropped as echoes.
	EchoesSuppressed int
}

// Binder creates engine documents for blocks and binds them.
type Binder struct {
	engine analysis.Engine
	table  *language.Table
	sync   *textsync.Engine
	logger *logging.Logger
}

// NewBinder creates a binder.
func NewBinder(engine analysis.Engine, table *language.Table, sync *textsync.Engine, logger *logging.Logger) *Binder {
	if sync == nil {
		sync = textsync.New()
	}
	return &Binder{
		engine: engine,
		table:  table,
		sync:   sync,
		logger: logging.OrNull(logger).WithComponent("binder"),
	}
}

// echo is the text a binding last wrote to one side.
type echo struct {
	text    string
	pending bool
}

// matches reports whether text is the notification of our own write and
// consumes the marker if so.
func (e *echo) matches(text string) bool {
	if e.pending && e.text == text {
		e.pending = false
		return true
	}
	return false
}

func (e *echo) set(text string) {
	e.text = text
	e.pending = true
}

// Binding ties one block to one engine document for the document's
// lifetime.
type Binding struct {
	binder  *Binder
	block   host.Block
	project *Project
	profile language.Profile
	doc     analysis.DocumentID
	logger  *logging.Logger

	mu          sync.Mutex
	toHost      echo
	toEngine    echo
	stats       Stats
	unsubHost   func()
	unsubEngine func()
	unbound     bool
}

// Bind creates the engine document for block inside project, loads it with
// the wrapped block text and subscribes both sides.
func (b *Binder) Bind(project *Project, block host.Block, name string) (*Binding, error) {
	profile, ok := b.table.Profile(project.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, project.Kind)
	}

	surface := block.Surface()
	initial := surface.Text()

	docID, err := b.engine.CreateDocument(project.ID, name, profile.Wrap(initial))
	if err != nil {
		return nil, fmt.Errorf("create document %q: %w", name, err)
	}
	if err := b.engine.OpenDocument(docID, surface); err != nil {
		b.logger.Warn("%s: open document: %v", name, err)
	}

	bn := &Binding{
		binder:  b,
		block:   block,
		project: project,
		profile: profile,
		doc:     docID,
		logger:  b.logger.WithField("doc", name),
	}

	unsubEngine, err := b.engine.SubscribeDocument(docID, func(c analysis.DocumentChange) {
		bn.PushEngineEdit(c.Text)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe document %q: %w", name, err)
	}
	bn.unsubEngine = unsubEngine
	bn.unsubHost = surface.Subscribe(bn.PushHostEdit)

	// The block may have changed while the document was being created.
	if text := surface.Text(); text != initial {
		bn.pushHostText(text)
	}

	b.logger.Debug("bound %s to document %s in %s", name, docID, project.Name)
	return bn, nil
}

// Document returns the engine document id.
func (bn *Binding) Document() analysis.DocumentID {
	return bn.doc
}

// Block returns the bound block.
func (bn *Binding) Block() host.Block {
	return bn.block
}

// Project returns the project containing the document.
func (bn *Binding) Project() *Project {
	return bn.project
}

// Stats returns the propagation counters.
func (bn *Binding) Stats() Stats {
	bn.mu.Lock()
	defer bn.mu.Unlock()
	return bn.stats
}

// PushHostEdit mirrors a block change into the engine document.
func (bn *Binding) PushHostEdit(ev buffer.ChangeEvent) {
	bn.pushHostText(ev.Text)
}

func (bn *Binding) pushHostText(text string) {
	bn.mu.Lock()
	if bn.unbound {
		bn.mu.Unlock()
		return
	}
	if bn.toHost.matches(text) {
		bn.stats.EchoesSuppressed++
		bn.mu.Unlock()
		return
	}
	bn.mu.Unlock()

	bn.writeEngine(text)
}

// writeEngine brings the engine document to the wrapped snippet.
func (bn *Binding) writeEngine(snippet string) {
	current, err := bn.binder.engine.DocumentText(bn.doc)
	if err != nil {
		bn.logger.Warn("read document: %v", err)
		return
	}
	target := bn.profile.Wrap(snippet)
	changes := bn.binder.sync.Diff(current, target)
	if len(changes) == 0 {
		return
	}

	bn.mu.Lock()
	bn.toEngine.set(target)
	bn.stats.HostPushes++
	bn.mu.Unlock()

	if err := bn.binder.engine.EditDocument(bn.doc, changes); err != nil {
		bn.mu.Lock()
		bn.toEngine.pending = false
		bn.mu.Unlock()
		bn.logger.Warn("push host edit: %v", err)
		return
	}
	bn.logger.Debug("host -> engine: %d changes, %d bytes", len(changes), textsync.ReplacedBytes(changes))
}

// PushEngineEdit mirrors an engine document change into the block.
// Changes to the wrapper text are never mirrored: when the engine alters
// the wrapper, only the parts of its edit inside the snippet reach the
// block and the wrapper is written back.
func (bn *Binding) PushEngineEdit(text string) {
	bn.mu.Lock()
	if bn.unbound {
		bn.mu.Unlock()
		return
	}
	if bn.toEngine.matches(text) {
		bn.stats.EchoesSuppressed++
		bn.mu.Unlock()
		return
	}
	bn.mu.Unlock()

	surface := bn.block.Surface()
	snippet, ok := bn.profile.Unwrap(text)
	if !ok {
		var err error
		snippet, err = bn.snippetEdit(surface.Text(), text)
		if err != nil {
			bn.logger.Warn("engine edit around the wrapper: %v", err)
			snippet = surface.Text()
		}
		bn.logger.Warn("engine edited the implicit wrapper; restoring it")
	}

	bn.writeHost(surface, snippet)
	if !ok {
		bn.writeEngine(snippet)
	}
}

// snippetEdit returns the block text after the part of an engine edit that
// falls inside the snippet. The edit is taken against the wrapped block
// text; changes in the wrapper are dropped and changes that straddle a
// wrapper boundary are clipped to the snippet.
func (bn *Binding) snippetEdit(block, engineText string) (string, error) {
	start := buffer.ByteOffset(len(bn.profile.GlobalPrefix))
	end := start + buffer.ByteOffset(len(block))

	var kept []textsync.Change
	for _, c := range bn.binder.sync.Diff(bn.profile.Wrap(block), engineText) {
		inPrefix := c.Span.End < start || (c.Span.End == start && c.Span.Start < start)
		inSuffix := c.Span.Start > end || (c.Span.Start == end && c.Span.End > end)
		if inPrefix || inSuffix {
			continue
		}
		if c.Span.Start < start {
			// The insertion point is in the prefix.
			c.NewText = ""
		}
		c.Span.Start = max(c.Span.Start, start)
		c.Span.End = min(c.Span.End, end)
		if c.Span.Len() == 0 && c.NewText == "" {
			continue
		}
		kept = append(kept, c.Shift(-start))
	}
	return textsync.Apply(block, kept)
}

// writeHost brings the block to snippet.
func (bn *Binding) writeHost(surface host.Surface, snippet string) {
	changes := bn.binder.sync.Diff(surface.Text(), snippet)
	if len(changes) == 0 {
		return
	}

	bn.mu.Lock()
	bn.toHost.set(snippet)
	bn.stats.EnginePushes++
	bn.mu.Unlock()

	if err := bn.binder.sync.ApplyChanges(surface, changes); err != nil {
		bn.mu.Lock()
		bn.toHost.pending = false
		bn.mu.Unlock()
		bn.logger.Warn("push engine edit: %v", err)
		return
	}
	bn.logger.Debug("engine -> host: %d changes, %d bytes", len(changes), textsync.ReplacedBytes(changes))
}

// Converged reports whether the block text equals the engine text minus
// the wrapper.
func (bn *Binding) Converged() bool {
	text, err := bn.binder.engine.DocumentText(bn.doc)
	if err != nil {
		return false
	}
	snippet, ok := bn.profile.Unwrap(text)
	return ok && snippet == bn.block.Surface().Text()
}

// Unbind drops both subscriptions. The engine document is left to its
// project.
func (bn *Binding) Unbind() {
	bn.mu.Lock()
	if bn.unbound {
		bn.mu.Unlock()
		return
	}
	bn.unbound = true
	unsubHost, unsubEngine := bn.unsubHost, bn.unsubEngine
	bn.mu.Unlock()

	if unsubHost != nil {
		unsubHost()
	}
	if unsubEngine != nil {
		unsubEngine()
	}
}
