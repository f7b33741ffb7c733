package host

import (
	"fmt"
	"sync"

	"github.com/dshills/embedsync/internal/engine/buffer"
)

// Editor is an in-memory host editor. It owns documents, their blocks and
// the views opened on them, and resolves views for block surfaces.
// All methods are thread-safe.
type Editor struct {
	mu        sync.RWMutex
	documents map[string]*MemoryDocument
	blocks    map[Surface]*MemoryBlock
	views     map[*MemoryDocument]*MemoryView
	nextView  int
}

// NewEditor creates an empty editor.
func NewEditor() *Editor {
	return &Editor{
		documents: make(map[string]*MemoryDocument),
		blocks:    make(map[Surface]*MemoryBlock),
		views:     make(map[*MemoryDocument]*MemoryView),
	}
}

// OpenDocument returns the document with id, creating it if needed.
func (e *Editor) OpenDocument(id string) *MemoryDocument {
	e.mu.Lock()
	defer e.mu.Unlock()

	if doc, ok := e.documents[id]; ok {
		return doc
	}
	doc := &MemoryDocument{id: id, editor: e}
	e.documents[id] = doc
	return doc
}

// Document returns an open document.
func (e *Editor) Document(id string) (*MemoryDocument, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	doc, ok := e.documents[id]
	return doc, ok
}

// OpenView realizes a view on doc. Opening twice returns the same view.
func (e *Editor) OpenView(doc *MemoryDocument) *MemoryView {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v, ok := e.views[doc]; ok {
		return v
	}
	e.nextView++
	v := &MemoryView{id: fmt.Sprintf("%s#view%d", doc.id, e.nextView), doc: doc}
	e.views[doc] = v
	return v
}

// CloseView removes the view on doc.
func (e *Editor) CloseView(doc *MemoryDocument) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.views, doc)
}

// CloseDocument forgets doc, its view and its blocks. Opening the same id
// afterwards creates a new, empty document.
func (e *Editor) CloseDocument(doc *MemoryDocument) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cur, ok := e.documents[doc.id]; ok && cur == doc {
		delete(e.documents, doc.id)
	}
	delete(e.views, doc)
	for s, b := range e.blocks {
		if b.doc == doc {
			delete(e.blocks, s)
		}
	}
}

// ResolveView implements ViewResolver.
func (e *Editor) ResolveView(s Surface) (View, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	block, ok := e.blocks[s]
	if !ok {
		return nil, false
	}
	v, ok := e.views[block.doc]
	if !ok {
		return nil, false
	}
	return v, true
}

// MemoryDocument implements Document.
type MemoryDocument struct {
	id     string
	editor *Editor

	mu     sync.RWMutex
	blocks []*MemoryBlock
}

// ID implements Document.
func (d *MemoryDocument) ID() string {
	return d.id
}

// AddBlock appends a block with the given content type and text.
func (d *MemoryDocument) AddBlock(contentType, text string) *MemoryBlock {
	d.mu.Lock()
	index := len(d.blocks)
	b := &MemoryBlock{
		doc:         d,
		index:       index,
		contentType: contentType,
		buf:         buffer.NewBufferFromString(text, buffer.WithName(fmt.Sprintf("%s[%d]", d.id, index))),
	}
	d.blocks = append(d.blocks, b)
	d.mu.Unlock()

	d.editor.mu.Lock()
	d.editor.blocks[b.buf] = b
	d.editor.mu.Unlock()

	return b
}

// Blocks returns the document's blocks in order.
func (d *MemoryDocument) Blocks() []*MemoryBlock {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*MemoryBlock(nil), d.blocks...)
}

// Block returns the block at index.
func (d *MemoryDocument) Block(index int) (*MemoryBlock, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if index < 0 || index >= len(d.blocks) {
		return nil, false
	}
	return d.blocks[index], true
}

// MemoryBlock implements Block over a buffer.Buffer.
type MemoryBlock struct {
	doc         *MemoryDocument
	index       int
	contentType string
	buf         *buffer.Buffer
}

// Surface implements Block.
func (b *MemoryBlock) Surface() Surface {
	return b.buf
}

// Document implements Block.
func (b *MemoryBlock) Document() Document {
	return b.doc
}

// ContentType implements Block.
func (b *MemoryBlock) ContentType() string {
	return b.contentType
}

// Index returns the block's position within its document.
func (b *MemoryBlock) Index() int {
	return b.index
}

// Buffer exposes the block text buffer for direct edits.
func (b *MemoryBlock) Buffer() *buffer.Buffer {
	return b.buf
}

// MemoryView implements View.
type MemoryView struct {
	id  string
	doc *MemoryDocument
}

// ID implements View.
func (v *MemoryView) ID() string {
	return v.id
}

// Document returns the document shown by the view.
func (v *MemoryView) Document() *MemoryDocument {
	return v.doc
}
