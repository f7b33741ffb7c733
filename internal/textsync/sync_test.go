package textsync

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/embedsync/internal/engine/buffer"
)

func TestDiffRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
	}{
		{"empty to text", "", "hello"},
		{"text to empty", "hello", ""},
		{"single char", "x = 1", "x = 2"},
		{"insert middle", "func main() {}", "func main() { run() }"},
		{"delete middle", "a, b, c", "a, c"},
		{"multi line", "line1\nline2\nline3\n", "line1\nLINE2\nline3\nline4\n"},
		{"repeated", "aaaa", "aa"},
		{"unicode", "héllo wörld", "hallo wörld!"},
		{"emoji split", "a😀b", "a😁b"},
		{"cjk", "日本語", "日本人"},
		{"invalid utf8", "a\xffb", "a\xfeb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Diff(tt.old, tt.new)
			got, err := Apply(tt.old, changes)
			require.NoError(t, err)
			assert.Equal(t, tt.new, got)
			assertOrdered(t, changes)
		})
	}
}

func TestDiffRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("ab \nxyzé😀")

	randText := func() string {
		n := rng.Intn(40)
		var sb strings.Builder
		for i := 0; i < n; i++ {
			sb.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		return sb.String()
	}

	for i := 0; i < 500; i++ {
		a, b := randText(), randText()
		got, err := Apply(a, Diff(a, b))
		require.NoError(t, err, "a=%q b=%q", a, b)
		require.Equal(t, b, got, "a=%q b=%q", a, b)
	}
}

func TestDiffIdentical(t *testing.T) {
	assert.Empty(t, Diff("", ""))
	assert.Empty(t, Diff("same text", "same text"))
}

func TestDiffSingleCharacterScenario(t *testing.T) {
	prefix := "using System;\n"
	changes := Diff(prefix+"x = 1", prefix+"x = 2")

	require.Len(t, changes, 1)
	start := buffer.ByteOffset(len(prefix) + 4)
	assert.Equal(t, buffer.NewRange(start, start+1), changes[0].Span)
	assert.Equal(t, "2", changes[0].NewText)
}

func TestDiffIsMinimal(t *testing.T) {
	old := strings.Repeat("abcdefghij", 100)
	new := old[:500] + "X" + old[500:]

	changes := Diff(old, new)
	require.Len(t, changes, 1)
	assert.Equal(t, 1, ReplacedBytes(changes))
	assert.True(t, changes[0].Span.IsEmpty())
}

func TestDiffSeparatedEdits(t *testing.T) {
	old := "alpha beta gamma delta"
	new := "ALPHA beta gamma DELTA"

	changes := Diff(old, new)
	assert.Greater(t, len(changes), 1)
	assert.Less(t, ReplacedBytes(changes), len(old)+len(new))

	got, err := Apply(old, changes)
	require.NoError(t, err)
	assert.Equal(t, new, got)
}

func TestDiffLargeRegionFallsBackToReplacement(t *testing.T) {
	e := New(WithMaxDiffBytes(8))
	changes := e.Diff("keep[abcdefgh]keep", "keep[hgfedcba]keep")

	require.Len(t, changes, 1)
	assert.Equal(t, buffer.NewRange(5, 13), changes[0].Span)
	assert.Equal(t, "hgfedcba", changes[0].NewText)
}

func TestApplyRejectsInvalidChanges(t *testing.T) {
	_, err := Apply("abc", []Change{{Span: buffer.NewRange(2, 5)}})
	assert.ErrorIs(t, err, ErrInvalidChanges)

	_, err = Apply("abcdef", []Change{
		{Span: buffer.NewRange(3, 4), NewText: "x"},
		{Span: buffer.NewRange(1, 2), NewText: "y"},
	})
	assert.ErrorIs(t, err, ErrInvalidChanges)
}

func TestShiftAll(t *testing.T) {
	changes := []Change{{Span: buffer.NewRange(1, 2), NewText: "x"}}
	shifted := ShiftAll(changes, 10)
	assert.Equal(t, buffer.NewRange(11, 12), shifted[0].Span)
	assert.Equal(t, buffer.NewRange(1, 2), changes[0].Span)
	assert.Nil(t, ShiftAll(nil, 3))
}

func TestApplyChangesSingleEvent(t *testing.T) {
	buf := buffer.NewBufferFromString("one two three")

	var events []buffer.ChangeEvent
	buf.Subscribe(func(ev buffer.ChangeEvent) { events = append(events, ev) })

	e := New()
	changes, err := e.Sync(buf, "one 2 three!")
	require.NoError(t, err)

	assert.Equal(t, "one 2 three!", buf.Text())
	require.Len(t, events, 1)
	assert.Len(t, events[0].Changes, len(changes))
}

func TestApplyChangesNoop(t *testing.T) {
	buf := buffer.NewBufferFromString("same")
	rev := buf.RevisionID()

	_, err := New().Sync(buf, "same")
	require.NoError(t, err)
	assert.Equal(t, rev, buf.RevisionID())
}

func TestApplyChangesReleasesOnFailure(t *testing.T) {
	buf := buffer.NewBufferFromString("abc")
	e := New()

	err := e.ApplyChanges(buf, []Change{
		{Span: buffer.NewRange(0, 1), NewText: "x"},
		{Span: buffer.NewRange(1, 9), NewText: "y"},
	})
	require.ErrorIs(t, err, ErrInvalidChanges)
	assert.Equal(t, "abc", buf.Text())

	// The transaction was released; the surface accepts new edits.
	_, err = e.Sync(buf, "abd")
	require.NoError(t, err)
	assert.Equal(t, "abd", buf.Text())
}

type busySurface struct{ text string }

func (s busySurface) Text() string { return s.text }

func (s busySurface) BeginEdit() (buffer.TextEdit, error) {
	return nil, buffer.ErrEditInProgress
}

func TestApplyChangesBeginFailure(t *testing.T) {
	err := New().ApplyChanges(busySurface{"a"}, []Change{{Span: buffer.NewRange(0, 1), NewText: "b"}})
	assert.ErrorIs(t, err, ErrBeginEdit)
	assert.True(t, errors.Is(err, buffer.ErrEditInProgress))
}

func assertOrdered(t *testing.T, changes []Change) {
	t.Helper()
	for i := 1; i < len(changes); i++ {
		assert.LessOrEqual(t, changes[i-1].Span.End, changes[i].Span.Start)
	}
}
