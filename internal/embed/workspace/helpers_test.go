package workspace

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/reference"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/textsync"
)

const testPrefix = "using System;\n"

// testTable has a one-line prefix for the primary kind so offsets are easy
// to reason about.
func testTable(t *testing.T) *language.Table {
	t.Helper()
	table, err := language.NewTable(
		language.Profile{
			Kind:           language.Primary,
			ID:             "csharp",
			Discriminators: []string{"CSharp"},
			GlobalPrefix:   testPrefix,
			LineComment:    "//",
		},
		language.Profile{
			Kind:           language.Secondary,
			ID:             "vb",
			Discriminators: []string{"Basic"},
			GlobalPrefix:   "Imports System\n",
			GlobalSuffix:   "\n' end",
			References:     []string{"System"},
			LineComment:    "'",
		},
	)
	require.NoError(t, err)
	return table
}

var errRefsRejected = errors.New("references rejected")

// recordingEngine counts project creations and records document edits.
type recordingEngine struct {
	*analysis.Memory

	mu         sync.Mutex
	creates    int
	edits      [][]textsync.Change
	rejectRefs bool

	// createDelay slows CreateDocument to widen races.
	createDelay time.Duration
}

func newRecordingEngine(table *language.Table) *recordingEngine {
	return &recordingEngine{Memory: analysis.NewMemory(table)}
}

func (e *recordingEngine) CreateProject(name string, kind language.Kind) (analysis.ProjectID, error) {
	e.mu.Lock()
	e.creates++
	e.mu.Unlock()
	return e.Memory.CreateProject(name, kind)
}

func (e *recordingEngine) AddReferences(p analysis.ProjectID, refs []reference.Descriptor) error {
	if e.rejectRefs {
		return errRefsRejected
	}
	return e.Memory.AddReferences(p, refs)
}

func (e *recordingEngine) CreateDocument(p analysis.ProjectID, name, text string) (analysis.DocumentID, error) {
	if e.createDelay > 0 {
		time.Sleep(e.createDelay)
	}
	return e.Memory.CreateDocument(p, name, text)
}

func (e *recordingEngine) EditDocument(d analysis.DocumentID, changes []textsync.Change) error {
	e.mu.Lock()
	e.edits = append(e.edits, append([]textsync.Change(nil), changes...))
	e.mu.Unlock()
	return e.Memory.EditDocument(d, changes)
}

func (e *recordingEngine) Creates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.creates
}

func (e *recordingEngine) Edits() [][]textsync.Change {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]textsync.Change(nil), e.edits...)
}

type fixture struct {
	table  *language.Table
	engine *recordingEngine
	editor *host.Editor
	doc    *host.MemoryDocument
	ws     *Workspace
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	table := testTable(t)
	f := &fixture{
		table:  table,
		engine: newRecordingEngine(table),
		editor: host.NewEditor(),
	}
	f.doc = f.editor.OpenDocument("notes.md")
	f.ws = New(f.doc, f.engine, append([]Option{WithTable(table)}, opts...)...)
	t.Cleanup(func() { _ = f.ws.Close() })
	return f
}

func (f *fixture) bind(t *testing.T, kind language.Kind, text string) (*host.MemoryBlock, *Binding) {
	t.Helper()
	disc := "CSharp"
	if kind == language.Secondary {
		disc = "Basic"
	}
	block := f.doc.AddBlock(disc, text)
	bn, err := f.ws.AddBlock(block, kind)
	require.NoError(t, err)
	return block, bn
}

func (f *fixture) engineText(t *testing.T, bn *Binding) string {
	t.Helper()
	text, err := f.engine.DocumentText(bn.Document())
	require.NoError(t, err)
	return text
}
