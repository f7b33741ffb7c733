package textsync

import (
	"fmt"
	"strings"

	"github.com/dshills/embedsync/internal/engine/buffer"
)

// Change replaces Span (in old-text byte coordinates) with NewText.
type Change struct {
	Span    buffer.Range
	NewText string
}

// String returns a human-readable representation of the change.
func (c Change) String() string {
	return fmt.Sprintf("%s -> %q", c.Span, c.NewText)
}

// Shift returns the change with its span moved by delta bytes.
func (c Change) Shift(delta buffer.ByteOffset) Change {
	return Change{Span: c.Span.Shift(delta), NewText: c.NewText}
}

// ShiftAll shifts every change by delta.
func ShiftAll(changes []Change, delta buffer.ByteOffset) []Change {
	if len(changes) == 0 {
		return nil
	}
	out := make([]Change, len(changes))
	for i, c := range changes {
		out[i] = c.Shift(delta)
	}
	return out
}

// ReplacedBytes returns the total number of old bytes removed plus new
// bytes inserted by changes.
func ReplacedBytes(changes []Change) int {
	n := 0
	for _, c := range changes {
		n += int(c.Span.Len()) + len(c.NewText)
	}
	return n
}

// Apply applies changes to text. Changes must be sorted ascending by start,
// non-overlapping and within text.
func Apply(text string, changes []Change) (string, error) {
	if len(changes) == 0 {
		return text, nil
	}

	length := buffer.ByteOffset(len(text))
	var sb strings.Builder
	sb.Grow(len(text))

	var cursor buffer.ByteOffset
	for _, c := range changes {
		if !c.Span.Within(length) || c.Span.Start < cursor {
			return "", fmt.Errorf("%w: %s against length %d", ErrInvalidChanges, c, length)
		}
		sb.WriteString(text[cursor:c.Span.Start])
		sb.WriteString(c.NewText)
		cursor = c.Span.End
	}
	sb.WriteString(text[cursor:])

	return sb.String(), nil
}
