package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/embedsync/internal/embed/command"
	"github.com/dshills/embedsync/internal/embed/language"
)

// BlockReport describes one block of a document.
type BlockReport struct {
	Index        int
	ContentType  string
	Kind         language.Kind
	Embedded     bool
	Document     string
	Converged    bool
	Length       int
	EngineLength int
	State        command.State
	Err          error
}

// ProjectReport describes one embedded project.
type ProjectReport struct {
	ID         string
	Name       string
	Kind       language.Kind
	References []string
	Documents  int
	Degraded   bool
}

// Report is a snapshot of an open document.
type Report struct {
	Path      string
	Workspace string
	Projects  []ProjectReport
	Blocks    []BlockReport
}

// Inspect reports the projects and blocks of path.
func (a *Application) Inspect(ctx context.Context, path string) (Report, error) {
	d, err := a.document("inspect", path)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Path: d.path}
	err = a.call(ctx, func() {
		ws, ok := a.embedder.Workspace(d.host)
		if ok {
			rep.Workspace = ws.ID()
			for _, p := range ws.Projects() {
				pr := ProjectReport{
					ID:         string(p.ID),
					Name:       p.Name,
					Kind:       p.Kind,
					References: p.References.Names(),
					Degraded:   p.Degraded,
				}
				if info, err := a.engine.Project(p.ID); err == nil {
					pr.Documents = len(info.Documents)
				}
				rep.Projects = append(rep.Projects, pr)
			}
		}

		router := a.embedder.Router()
		for _, b := range d.host.Blocks() {
			br := BlockReport{
				Index:       b.Index(),
				ContentType: b.ContentType(),
				Length:      int(b.Buffer().Len()),
			}
			br.Kind, br.Embedded = a.table.Lookup(b.ContentType())
			if ws != nil {
				if bn, ok := ws.Binding(b.Surface()); ok {
					br.Document = string(bn.Document())
					br.Converged = bn.Converged()
					if info, err := a.engine.Document(bn.Document()); err == nil {
						br.EngineLength = info.Length
					}
				}
			}
			if br.Embedded {
				br.State = router.State(b.Surface())
				br.Err = router.Err(b.Surface())
			}
			rep.Blocks = append(rep.Blocks, br)
		}
	})
	if err != nil {
		return Report{}, &OperationError{Op: "inspect", Target: path, Err: err}
	}
	return rep, nil
}

// WaitReady blocks until block index of path has a command adapter, the
// view poll gives up, or ctx ends.
func (a *Application) WaitReady(ctx context.Context, path string, index int) error {
	d, err := a.document("wait", path)
	if err != nil {
		return err
	}
	block, ok := d.host.Block(index)
	if !ok {
		return &OperationError{Op: "wait", Target: path, Err: fmt.Errorf("%w: %d", ErrBlockNotFound, index)}
	}
	if _, ok := a.table.Lookup(block.ContentType()); !ok {
		return &OperationError{Op: "wait", Target: path, Err: fmt.Errorf("%w: %d (%q)", ErrNotEmbedded, index, block.ContentType())}
	}

	router := a.embedder.Router()
	ticker := time.NewTicker(a.cfg.Commands.PollInterval.Std())
	defer ticker.Stop()
	for {
		switch router.State(block.Surface()) {
		case command.AdapterInstalled:
			return nil
		case command.AwaitingView, command.ViewResolved:
			if err := router.Err(block.Surface()); err != nil {
				if errors.Is(err, command.ErrViewUnavailable) {
					err = fmt.Errorf("%w: %w", ErrAdapterTimeout, err)
				}
				return &OperationError{Op: "wait", Target: path, Err: err}
			}
		}
		select {
		case <-ctx.Done():
			return &OperationError{Op: "wait", Target: path, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}
