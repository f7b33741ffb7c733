package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/host/markdown"
)

// Document is an open markdown file. Each fence is one host block; blocks
// are never removed while the document is open.
type Document struct {
	path   string
	host   *host.MemoryDocument
	view   *host.MemoryView
	src    []byte
	fences []markdown.Fence
}

// Path returns the file path.
func (d *Document) Path() string {
	return d.path
}

// Host returns the host document.
func (d *Document) Host() *host.MemoryDocument {
	return d.host
}

// Fences returns the fences found at the last load.
func (d *Document) Fences() []markdown.Fence {
	return append([]markdown.Fence(nil), d.fences...)
}

// OpenFile reads path and embeds its fenced blocks. When openView is false
// the document has no view until OpenView is called, so command adapters
// stay pending.
func (a *Application) OpenFile(ctx context.Context, path string, openView bool) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &OperationError{Op: "open", Target: path, Err: err}
	}
	return a.Open(ctx, path, src, openView)
}

// Open embeds the fenced blocks of src under the name path. Opening the
// same path again returns the existing document.
func (a *Application) Open(ctx context.Context, path string, src []byte, openView bool) (*Document, error) {
	key := documentKey(path)

	a.mu.Lock()
	if d, ok := a.docs[key]; ok {
		a.mu.Unlock()
		return d, nil
	}
	a.mu.Unlock()

	fences, err := a.detector.Detect(ctx, src)
	if err != nil {
		return nil, &OperationError{Op: "open", Target: path, Err: err}
	}

	d := &Document{
		path:   key,
		host:   a.editor.OpenDocument(key),
		src:    src,
		fences: fences,
	}
	err = a.call(ctx, func() {
		if openView {
			d.view = a.editor.OpenView(d.host)
		}
		for _, f := range fences {
			a.addBlock(d, f)
		}
	})
	if err != nil {
		return nil, &OperationError{Op: "open", Target: path, Err: err}
	}

	a.mu.Lock()
	a.docs[key] = d
	a.mu.Unlock()

	a.logger.Info("opened %s: %d blocks", key, len(fences))
	return d, nil
}

// addBlock runs on the loop.
func (a *Application) addBlock(d *Document, f markdown.Fence) {
	block := d.host.AddBlock(f.ContentType, f.Text)
	a.embedder.OnBlockCreated(d.host, block)
}

// OpenView gives the document a view. Pending command adapters resolve on
// their next poll.
func (a *Application) OpenView(ctx context.Context, path string) error {
	d, err := a.document("view", path)
	if err != nil {
		return err
	}
	return a.call(ctx, func() {
		d.view = a.editor.OpenView(d.host)
	})
}

// Reload brings the blocks of path in line with src. Changed fences are
// applied to their block as minimal edits; new fences become new blocks.
// Blocks whose fence disappeared stay bound with their last text.
func (a *Application) Reload(ctx context.Context, path string, src []byte) error {
	d, err := a.document("reload", path)
	if err != nil {
		return err
	}

	fences, err := a.detector.Detect(ctx, src)
	if err != nil {
		return &OperationError{Op: "reload", Target: path, Err: err}
	}

	var syncErr error
	err = a.call(ctx, func() {
		blocks := d.host.Blocks()
		for _, f := range fences {
			if f.Index >= len(blocks) {
				a.addBlock(d, f)
				continue
			}
			b := blocks[f.Index]
			if b.ContentType() != f.ContentType {
				a.logger.Warn("%s: block %d changed language from %q to %q; keeping %q",
					d.path, f.Index, b.ContentType(), f.ContentType, b.ContentType())
			}
			if b.Buffer().Text() == f.Text {
				continue
			}
			if _, err := a.sync.Sync(b.Buffer(), f.Text); err != nil && syncErr == nil {
				syncErr = fmt.Errorf("block %d: %w", f.Index, err)
			}
		}
		if len(fences) < len(blocks) {
			a.logger.Debug("%s: %d blocks no longer in file", d.path, len(blocks)-len(fences))
		}
	})
	if err == nil {
		err = syncErr
	}
	if err != nil {
		return &OperationError{Op: "reload", Target: path, Err: err}
	}

	a.mu.Lock()
	d.src = src
	d.fences = fences
	a.mu.Unlock()
	return nil
}

// Exec runs cmd against block index of path.
func (a *Application) Exec(ctx context.Context, path string, index int, cmd analysis.Command) (analysis.Result, error) {
	d, err := a.document("exec", path)
	if err != nil {
		return analysis.Result{}, err
	}
	block, ok := d.host.Block(index)
	if !ok {
		return analysis.Result{}, &OperationError{Op: "exec", Target: path, Err: fmt.Errorf("%w: %d", ErrBlockNotFound, index)}
	}
	if _, ok := a.embedder.Table().Lookup(block.ContentType()); !ok {
		return analysis.Result{}, &OperationError{Op: "exec", Target: path, Err: fmt.Errorf("%w: %d (%q)", ErrNotEmbedded, index, block.ContentType())}
	}

	var (
		res     analysis.Result
		execErr error
	)
	err = a.call(ctx, func() {
		res, execErr = a.embedder.Exec(block.Surface(), cmd)
	})
	if err == nil {
		err = execErr
	}
	if err != nil {
		return analysis.Result{}, &OperationError{Op: "exec", Target: path, Err: err}
	}
	return res, nil
}

// Render returns the file content with every fence body replaced by the
// current text of its block.
func (a *Application) Render(ctx context.Context, path string) ([]byte, error) {
	d, err := a.document("render", path)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	src, fences := d.src, d.fences
	a.mu.Unlock()

	texts := make([]string, len(fences))
	err = a.call(ctx, func() {
		for i, f := range fences {
			if b, ok := d.host.Block(f.Index); ok {
				texts[i] = b.Buffer().Text()
			}
		}
	})
	if err != nil {
		return nil, &OperationError{Op: "render", Target: path, Err: err}
	}

	var sb strings.Builder
	sb.Grow(len(src))
	prev := 0
	for i, f := range fences {
		sb.Write(src[prev:f.Start])
		if texts[i] != "" {
			sb.WriteString(texts[i])
			sb.WriteByte('\n')
		}
		prev = f.End
	}
	sb.Write(src[prev:])
	return []byte(sb.String()), nil
}

// Close closes the workspace of path and forgets the document.
func (a *Application) Close(path string) error {
	d, err := a.document("close", path)
	if err != nil {
		return err
	}
	a.mu.Lock()
	delete(a.docs, d.path)
	a.mu.Unlock()

	err = a.embedder.Close(d.host)
	a.editor.CloseDocument(d.host)
	if err != nil {
		return &OperationError{Op: "close", Target: path, Err: err}
	}
	return nil
}

// Document returns an open document.
func (a *Application) Document(path string) (*Document, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.docs[documentKey(path)]
	return d, ok
}

func (a *Application) document(op, path string) (*Document, error) {
	d, ok := a.Document(path)
	if !ok {
		return nil, &OperationError{Op: op, Target: path, Err: ErrDocumentNotFound}
	}
	return d, nil
}

func documentKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
