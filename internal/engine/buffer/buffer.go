package buffer

import (
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Errors returned by buffer operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrRangeInvalid     = errors.New("invalid range")
	ErrEditsOverlap     = errors.New("edits overlap")
	ErrEditInProgress   = errors.New("edit transaction in progress")
	ErrEditClosed       = errors.New("edit transaction already closed")
)

// Buffer holds a mutable text and notifies subscribers of every change.
// All methods are thread-safe.
type Buffer struct {
	mu         sync.Mutex
	name       string
	text       string
	revisionID RevisionID

	// editOpen is set while a Transaction is outstanding. Direct writes are
	// rejected until it is applied or cancelled.
	editOpen bool

	subscribers []subscriber
	nextSubID   int

	// Delivery queue. Events raised while subscribers are running are
	// appended here and delivered by the outermost publish call, so that
	// every subscriber observes changes in application order.
	pending    []ChangeEvent
	delivering bool
}

type subscriber struct {
	id int
	fn func(ChangeEvent)
}

// Option is a functional option for configuring a Buffer.
type Option func(*Buffer)

// WithName sets a display name used in logs and errors.
func WithName(name string) Option {
	return func(b *Buffer) {
		b.name = name
	}
}

// NewBuffer creates a new empty buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		revisionID: NewRevisionID(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewBufferFromString creates a buffer with initial content.
func NewBufferFromString(s string, opts ...Option) *Buffer {
	b := NewBuffer(opts...)
	b.text = s
	return b
}

// Read Operations

// Name returns the buffer's display name.
func (b *Buffer) Name() string {
	return b.name
}

// Text returns the full buffer content as a string.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// TextRange returns text in the given byte range.
func (b *Buffer) TextRange(start, end ByteOffset) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := Range{Start: start, End: end}
	if !r.Within(ByteOffset(len(b.text))) {
		return "", ErrRangeInvalid
	}
	return b.text[start:end], nil
}

// Len returns the total byte length of the buffer.
func (b *Buffer) Len() ByteOffset {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ByteOffset(len(b.text))
}

// IsEmpty returns true if the buffer is empty.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// RevisionID returns the current revision ID.
func (b *Buffer) RevisionID() RevisionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revisionID
}

// Write Operations

// Insert inserts text at the given offset.
// Returns the end position of the inserted text.
func (b *Buffer) Insert(offset ByteOffset, text string) (ByteOffset, error) {
	if offset < 0 || offset > b.Len() {
		return 0, ErrOffsetOutOfRange
	}
	if err := b.ApplyEdits([]Edit{NewInsert(offset, text)}); err != nil {
		return 0, err
	}
	return offset + ByteOffset(len(text)), nil
}

// Delete removes text in the given range.
func (b *Buffer) Delete(start, end ByteOffset) error {
	return b.ApplyEdits([]Edit{NewDelete(start, end)})
}

// Replace replaces text in the given range with new text.
// Returns the end position of the replacement text.
func (b *Buffer) Replace(start, end ByteOffset, text string) (ByteOffset, error) {
	if err := b.ApplyEdits([]Edit{NewEdit(NewRange(start, end), text)}); err != nil {
		return 0, err
	}
	return start + ByteOffset(len(text)), nil
}

// SetText replaces the entire content.
func (b *Buffer) SetText(text string) error {
	return b.ApplyEdits([]Edit{NewEdit(NewRange(0, b.Len()), text)})
}

// ApplyEdits applies multiple edits atomically.
// Edits must be in reverse order (highest offset first) and must not overlap.
func (b *Buffer) ApplyEdits(edits []Edit) error {
	if len(edits) == 0 {
		return nil
	}

	for i := 1; i < len(edits); i++ {
		if edits[i].Range.End > edits[i-1].Range.Start {
			return ErrEditsOverlap
		}
	}

	ascending := slices.Clone(edits)
	slices.Reverse(ascending)

	b.mu.Lock()
	if b.editOpen {
		b.mu.Unlock()
		return ErrEditInProgress
	}
	ev, err := b.commitLocked(ascending)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	b.publish(ev)
	return nil
}

// BeginEdit opens an edit transaction. Only one transaction may be open on
// a buffer at a time; direct writes fail with ErrEditInProgress until the
// transaction is applied or cancelled.
func (b *Buffer) BeginEdit() (TextEdit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.editOpen {
		return nil, ErrEditInProgress
	}
	b.editOpen = true

	return &Transaction{
		buf:  b,
		base: ByteOffset(len(b.text)),
	}, nil
}

// commitLocked applies edits given in ascending order. Caller holds b.mu.
func (b *Buffer) commitLocked(edits []Edit) (ChangeEvent, error) {
	length := ByteOffset(len(b.text))
	for i, e := range edits {
		if !e.Range.Within(length) {
			return ChangeEvent{}, ErrRangeInvalid
		}
		if i > 0 && edits[i-1].Range.End > e.Range.Start {
			return ChangeEvent{}, ErrEditsOverlap
		}
	}

	var sb strings.Builder
	sb.Grow(len(b.text))

	changes := make([]Change, 0, len(edits))
	var cursor, delta ByteOffset
	for _, e := range edits {
		sb.WriteString(b.text[cursor:e.Range.Start])
		sb.WriteString(e.NewText)

		newStart := e.Range.Start + delta
		changes = append(changes, Change{
			Range:    e.Range,
			NewRange: Range{Start: newStart, End: newStart + ByteOffset(len(e.NewText))},
			OldText:  b.text[e.Range.Start:e.Range.End],
			NewText:  e.NewText,
		})

		cursor = e.Range.End
		delta += e.Delta()
	}
	sb.WriteString(b.text[cursor:])

	b.text = sb.String()
	b.revisionID = NewRevisionID()

	return ChangeEvent{
		Revision: b.revisionID,
		Text:     b.text,
		Changes:  changes,
	}, nil
}

// Subscriptions

// Subscribe registers fn to be called after every change to the buffer.
// The returned function removes the subscription; it is safe to call more
// than once.
func (b *Buffer) Subscribe(fn func(ChangeEvent)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	id := b.nextSubID
	b.subscribers = append(b.subscribers, subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subscribers = slices.DeleteFunc(b.subscribers, func(s subscriber) bool {
			return s.id == id
		})
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Buffer) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// publish delivers ev to subscribers outside the lock. Events raised during
// delivery are queued and delivered afterwards, in order.
func (b *Buffer) publish(ev ChangeEvent) {
	b.mu.Lock()
	b.pending = append(b.pending, ev)
	if b.delivering {
		b.mu.Unlock()
		return
	}
	b.delivering = true

	defer func() {
		b.mu.Lock()
		b.delivering = false
		b.mu.Unlock()
	}()

	for len(b.pending) > 0 {
		next := b.pending[0]
		b.pending = b.pending[1:]
		subs := slices.Clone(b.subscribers)
		b.mu.Unlock()

		for _, s := range subs {
			s.fn(next)
		}

		b.mu.Lock()
	}
	b.mu.Unlock()
}

// sortEdits orders edits ascending by start offset, keeping inserts at the
// same offset in submission order.
func sortEdits(edits []Edit) {
	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].Range.Start < edits[j].Range.Start
	})
}
