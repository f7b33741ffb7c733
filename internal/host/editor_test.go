package host

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorOpenDocumentIsIdempotent(t *testing.T) {
	e := NewEditor()
	a := e.OpenDocument("notes.md")
	b := e.OpenDocument("notes.md")
	assert.Same(t, a, b)

	got, ok := e.Document("notes.md")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = e.Document("other.md")
	assert.False(t, ok)
}

func TestEditorBlocks(t *testing.T) {
	e := NewEditor()
	doc := e.OpenDocument("notes.md")
	first := doc.AddBlock("CSharp", "x = 1")
	second := doc.AddBlock("Basic", "Dim x")

	assert.Equal(t, 0, first.Index())
	assert.Equal(t, 1, second.Index())
	assert.Equal(t, "CSharp", first.ContentType())
	assert.Equal(t, "x = 1", first.Surface().Text())
	assert.Same(t, doc, first.Document())
	assert.Len(t, doc.Blocks(), 2)

	b, ok := doc.Block(1)
	require.True(t, ok)
	assert.Same(t, second, b)
	_, ok = doc.Block(2)
	assert.False(t, ok)
}

func TestEditorResolveView(t *testing.T) {
	e := NewEditor()
	doc := e.OpenDocument("notes.md")
	block := doc.AddBlock("CSharp", "x = 1")

	_, ok := e.ResolveView(block.Surface())
	assert.False(t, ok, "no view before OpenView")

	v := e.OpenView(doc)
	assert.Same(t, v, e.OpenView(doc))

	got, ok := e.ResolveView(block.Surface())
	require.True(t, ok)
	assert.Equal(t, v.ID(), got.ID())
	assert.Same(t, doc, v.Document())

	e.CloseView(doc)
	_, ok = e.ResolveView(block.Surface())
	assert.False(t, ok)
}

func TestEditorCloseDocument(t *testing.T) {
	e := NewEditor()
	doc := e.OpenDocument("notes.md")
	block := doc.AddBlock("CSharp", "x = 1")
	e.OpenView(doc)

	e.CloseDocument(doc)
	_, ok := e.Document("notes.md")
	assert.False(t, ok)
	_, ok = e.ResolveView(block.Surface())
	assert.False(t, ok)

	fresh := e.OpenDocument("notes.md")
	assert.NotSame(t, doc, fresh)
	assert.Empty(t, fresh.Blocks())
}

func TestEditorResolveViewUnknownSurface(t *testing.T) {
	e := NewEditor()
	other := NewEditor().OpenDocument("x.md").AddBlock("CSharp", "")
	_, ok := e.ResolveView(other.Surface())
	assert.False(t, ok)
}

func TestInlineDispatcher(t *testing.T) {
	ran := false
	Inline{}.Post(func() { ran = true })
	assert.True(t, ran)
}

func TestLoopSerializes(t *testing.T) {
	loop := NewLoop(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var n atomic.Int32
	for range 10 {
		loop.Post(func() { n.Add(1) })
	}
	require.NoError(t, loop.Call(ctx, func() {}))
	assert.Equal(t, int32(10), n.Load())
}

func TestLoopDropsAfterStop(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		for range 5 {
			loop.Post(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post blocked on a stopped loop")
	}
	assert.Error(t, loop.Call(context.Background(), func() {}))
}

func TestLoopPostFromLoop(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var n atomic.Int32
	require.NoError(t, loop.Call(ctx, func() {
		for range 100 {
			loop.Post(func() { n.Add(1) })
		}
	}))
	require.NoError(t, loop.Call(ctx, func() {}))
	assert.Equal(t, int32(100), n.Load())
}
