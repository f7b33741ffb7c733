package embed

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/embed/command"
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/engine/buffer"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/textsync"
)

type editRecorder struct {
	*analysis.Memory
	mu    sync.Mutex
	edits [][]textsync.Change
}

func (r *editRecorder) EditDocument(d analysis.DocumentID, changes []textsync.Change) error {
	r.mu.Lock()
	r.edits = append(r.edits, changes)
	r.mu.Unlock()
	return r.Memory.EditDocument(d, changes)
}

func scenarioTable(t *testing.T) *language.Table {
	t.Helper()
	p := language.CSharp()
	p.GlobalPrefix = "using System;\n"
	p.GlobalSuffix = ""
	table, err := language.NewTable(p, language.VisualBasic())
	require.NoError(t, err)
	return table
}

func newEmbedder(t *testing.T, opts ...Option) (*Embedder, *editRecorder, *host.Editor) {
	t.Helper()
	table := scenarioTable(t)
	engine := &editRecorder{Memory: analysis.NewMemory(table)}
	editor := host.NewEditor()
	opts = append([]Option{
		WithTable(table),
		WithRouterOptions(command.WithPollInterval(5*time.Millisecond), command.WithViewTimeout(30*time.Millisecond)),
	}, opts...)
	e := New(engine, editor, opts...)
	t.Cleanup(func() { _ = e.CloseAll() })
	return e, engine, editor
}

func TestScenarioSingleMinimalChange(t *testing.T) {
	e, engine, editor := newEmbedder(t)
	doc := editor.OpenDocument("notes.md")
	block := doc.AddBlock("CSharp", "x = 1")

	bn := e.OnBlockCreated(doc, block)
	require.NotNil(t, bn)

	text, err := engine.DocumentText(bn.Document())
	require.NoError(t, err)
	assert.Equal(t, "using System;\nx = 1", text)

	require.NoError(t, block.Buffer().SetText("x = 2"))

	text, err = engine.DocumentText(bn.Document())
	require.NoError(t, err)
	assert.Equal(t, "using System;\nx = 2", text)

	require.Len(t, engine.edits, 1)
	require.Len(t, engine.edits[0], 1)
	off := buffer.ByteOffset(len("using System;\n") + 4)
	assert.Equal(t, textsync.Change{Span: buffer.NewRange(off, off+1), NewText: "2"}, engine.edits[0][0])
}

func TestSameKindBlocksShareProject(t *testing.T) {
	e, engine, editor := newEmbedder(t)
	doc := editor.OpenDocument("notes.md")

	a := e.OnBlockCreated(doc, doc.AddBlock("CSharp", "a"))
	b := e.OnBlockCreated(doc, doc.AddBlock("csharp", "b"))
	require.NotNil(t, a)
	require.NotNil(t, b)

	assert.Same(t, a.Project(), b.Project())
	assert.NotEqual(t, a.Document(), b.Document())
	assert.Len(t, engine.Projects(), 1)

	ws, ok := e.Workspace(doc)
	require.True(t, ok)
	assert.Len(t, ws.Bindings(), 2)
	assert.Len(t, e.Workspaces(), 1)
}

func TestUnknownDiscriminatorIsNoOp(t *testing.T) {
	e, engine, editor := newEmbedder(t)
	doc := editor.OpenDocument("notes.md")

	bn := e.OnBlockCreated(doc, doc.AddBlock("python", "print(1)"))
	assert.Nil(t, bn)
	assert.Empty(t, engine.Projects())
	_, ok := e.Workspace(doc)
	assert.False(t, ok)
}

func TestBlocksOfDifferentDocumentsGetOwnProjects(t *testing.T) {
	e, engine, editor := newEmbedder(t)
	d1 := editor.OpenDocument("a.md")
	d2 := editor.OpenDocument("b.md")

	a := e.OnBlockCreated(d1, d1.AddBlock("CSharp", "a"))
	b := e.OnBlockCreated(d2, d2.AddBlock("CSharp", "b"))
	assert.NotEqual(t, a.Project().ID, b.Project().ID)
	assert.Len(t, engine.Projects(), 2)
}

func TestCommandRoundTrip(t *testing.T) {
	e, engine, editor := newEmbedder(t)
	doc := editor.OpenDocument("notes.md")
	editor.OpenView(doc)
	block := doc.AddBlock("CSharp", "x = 1;")

	bn := e.OnBlockCreated(doc, block)
	require.NotNil(t, bn)
	require.Equal(t, command.AdapterInstalled, e.Router().State(block.Surface()))

	res, err := e.Exec(block.Surface(), analysis.Command{Name: "toggleComment"})
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Error)

	assert.Equal(t, "// x = 1;", block.Buffer().Text())
	text, err := engine.DocumentText(bn.Document())
	require.NoError(t, err)
	assert.Equal(t, "using System;\n// x = 1;", text)
	assert.Equal(t, 1, bn.Stats().EnginePushes)
	assert.Equal(t, 0, bn.Stats().HostPushes)
}

func TestEditReattachesAfterViewTimeout(t *testing.T) {
	e, _, editor := newEmbedder(t)
	doc := editor.OpenDocument("notes.md")
	block := doc.AddBlock("CSharp", "x")

	require.NotNil(t, e.OnBlockCreated(doc, block))
	require.Eventually(t, func() bool {
		return errors.Is(e.Router().Err(block.Surface()), command.ErrViewUnavailable)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, command.AwaitingView, e.Router().State(block.Surface()))

	editor.OpenView(doc)
	_, err := block.Buffer().Insert(1, "y")
	require.NoError(t, err)
	assert.Equal(t, command.AdapterInstalled, e.Router().State(block.Surface()))
}

func TestOnBlockCreatedTwice(t *testing.T) {
	e, engine, editor := newEmbedder(t)
	doc := editor.OpenDocument("notes.md")
	block := doc.AddBlock("CSharp", "x")

	first := e.OnBlockCreated(doc, block)
	second := e.OnBlockCreated(doc, block)
	assert.Same(t, first, second)

	info, err := engine.Project(first.Project().ID)
	require.NoError(t, err)
	assert.Len(t, info.Documents, 1)
}

func TestCloseTearsDownWorkspace(t *testing.T) {
	e, engine, editor := newEmbedder(t)
	doc := editor.OpenDocument("notes.md")
	editor.OpenView(doc)
	block := doc.AddBlock("CSharp", "x")
	bn := e.OnBlockCreated(doc, block)
	require.NotNil(t, bn)

	require.NoError(t, e.Close(doc))
	require.NoError(t, e.Close(doc))

	assert.Empty(t, engine.Projects())
	assert.Equal(t, command.Unbound, e.Router().State(block.Surface()))
	_, ok := e.Workspace(doc)
	assert.False(t, ok)

	require.NoError(t, block.Buffer().SetText("y"))
	assert.Zero(t, bn.Stats().HostPushes)
	assert.Equal(t, command.Unbound, e.Router().State(block.Surface()))
}

func TestGlobalWrapper(t *testing.T) {
	e := New(analysis.NewMemory(nil), host.NewEditor())
	assert.Contains(t, e.GlobalPrefix(language.Primary), "using System.Linq;\n")
	assert.Contains(t, e.GlobalPrefix(language.Secondary), "Imports System.Linq\n")
	assert.Empty(t, e.GlobalSuffix(language.Primary))
	assert.Empty(t, e.GlobalPrefix("cobol"))
	assert.Same(t, e.Table(), e.Table())
}
