package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/reference"
	"github.com/dshills/embedsync/internal/engine/buffer"
	"github.com/dshills/embedsync/internal/textsync"
)

type testView string

func (v testView) ID() string { return string(v) }

func newDoc(t *testing.T, m *Memory, text string) (ProjectID, DocumentID) {
	t.Helper()
	p, err := m.CreateProject("Embedded csharp Project", language.Primary)
	require.NoError(t, err)
	d, err := m.CreateDocument(p, "block0", text)
	require.NoError(t, err)
	return p, d
}

func TestMemoryProjects(t *testing.T) {
	m := NewMemory(nil)

	_, err := m.CreateProject("x", language.Kind("cobol"))
	assert.ErrorIs(t, err, ErrUnknownKind)

	p, d := newDoc(t, m, "hello")
	require.NoError(t, m.AddReferences(p, []reference.Descriptor{{Name: "System", Path: "/lib/System.dll"}}))

	info, err := m.Project(p)
	require.NoError(t, err)
	assert.Equal(t, "Embedded csharp Project", info.Name)
	assert.Equal(t, language.Primary, info.Kind)
	assert.Equal(t, []DocumentID{d}, info.Documents)
	require.Len(t, info.References, 1)
	assert.Equal(t, "System", info.References[0].Name)

	doc, err := m.Document(d)
	require.NoError(t, err)
	assert.Equal(t, p, doc.Project)
	assert.Equal(t, 5, doc.Length)

	assert.Len(t, m.Projects(), 1)
	require.NoError(t, m.RemoveProject(p))
	assert.Empty(t, m.Projects())
	_, err = m.DocumentText(d)
	assert.ErrorIs(t, err, ErrUnknownDocument)
	assert.ErrorIs(t, m.RemoveProject(p), ErrUnknownProject)
	assert.ErrorIs(t, m.AddReferences(p, nil), ErrUnknownProject)
}

func TestMemoryDocumentIDsAreDistinct(t *testing.T) {
	m := NewMemory(nil)
	p, d1 := newDoc(t, m, "a")
	d2, err := m.CreateDocument(p, "block1", "b")
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestMemoryEditsNotifySubscribers(t *testing.T) {
	m := NewMemory(nil)
	_, d := newDoc(t, m, "x = 1")

	var changes []DocumentChange
	unsub, err := m.SubscribeDocument(d, func(c DocumentChange) {
		changes = append(changes, c)
	})
	require.NoError(t, err)

	require.NoError(t, m.EditDocument(d, []textsync.Change{{Span: buffer.NewRange(4, 5), NewText: "2"}}))
	require.NoError(t, m.UpdateDocumentText(d, "x = 3"))
	require.NoError(t, m.UpdateDocumentText(d, "x = 3"))

	require.Len(t, changes, 2, "identical update is not an edit")
	assert.Equal(t, "x = 2", changes[0].Text)
	assert.Equal(t, "x = 3", changes[1].Text)
	assert.Equal(t, d, changes[1].Document)

	unsub()
	require.NoError(t, m.UpdateDocumentText(d, "x = 4"))
	assert.Len(t, changes, 2)

	_, err = m.SubscribeDocument("missing", func(DocumentChange) {})
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestMemoryEnsureLoaded(t *testing.T) {
	m := NewMemory(nil)
	assert.False(t, m.Loaded(language.Primary))
	require.NoError(t, m.EnsureLoaded(language.Primary))
	require.NoError(t, m.EnsureLoaded(language.Primary))
	assert.True(t, m.Loaded(language.Primary))
	assert.ErrorIs(t, m.EnsureLoaded("cobol"), ErrUnknownKind)
}

func TestMemoryResolveCommandAdapter(t *testing.T) {
	m := NewMemory(nil)
	_, d := newDoc(t, m, "x")
	surface := buffer.NewBufferFromString("x")

	_, err := m.ResolveCommandAdapter(language.Primary, testView("v"), surface)
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, m.EnsureLoaded(language.Primary))
	_, err = m.ResolveCommandAdapter(language.Primary, testView("v"), surface)
	assert.ErrorIs(t, err, ErrUnknownSurface)

	require.NoError(t, m.OpenDocument(d, surface))
	a, err := m.ResolveCommandAdapter(language.Primary, testView("v"), surface)
	require.NoError(t, err)
	assert.Equal(t, []string{"format", "toggleComment"}, a.Commands())
}

func TestMemoryWithAdapterOverride(t *testing.T) {
	called := 0
	m := NewMemory(nil, WithAdapter(language.Secondary, func(ctx AdapterContext) (CommandAdapter, error) {
		called++
		return NewSnippetAdapter(ctx, nil), nil
	}))
	p, err := m.CreateProject("vb", language.Secondary)
	require.NoError(t, err)
	d, err := m.CreateDocument(p, "b", "")
	require.NoError(t, err)
	surface := buffer.NewBuffer()
	require.NoError(t, m.OpenDocument(d, surface))
	require.NoError(t, m.EnsureLoaded(language.Secondary))

	a, err := m.ResolveCommandAdapter(language.Secondary, testView("v"), surface)
	require.NoError(t, err)
	assert.Empty(t, a.Commands())
	assert.Equal(t, 1, called)
}
