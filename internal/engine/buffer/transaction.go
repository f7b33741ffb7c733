package buffer

// TextEdit is a scoped edit on a text surface. Replacements are recorded
// against the text as it was when the edit began and become visible to
// readers all at once when Apply is called.
//
// Callers should always defer Cancel; it is a no-op after Apply.
type TextEdit interface {
	Replace(start, end ByteOffset, text string) error
	Insert(offset ByteOffset, text string) error
	Delete(start, end ByteOffset) error
	Apply() error
	Cancel()
}

// Transaction is the Buffer implementation of TextEdit.
type Transaction struct {
	buf    *Buffer
	edits  []Edit
	base   ByteOffset
	closed bool
}

// Replace records a replacement of [start, end) in pre-edit coordinates.
func (t *Transaction) Replace(start, end ByteOffset, text string) error {
	if t.closed {
		return ErrEditClosed
	}
	r := NewRange(start, end)
	if !r.Within(t.base) {
		return ErrRangeInvalid
	}
	for _, e := range t.edits {
		if e.Range.Overlaps(r) {
			return ErrEditsOverlap
		}
	}
	t.edits = append(t.edits, NewEdit(r, text))
	return nil
}

// Insert records an insertion at offset.
func (t *Transaction) Insert(offset ByteOffset, text string) error {
	return t.Replace(offset, offset, text)
}

// Delete records a deletion of [start, end).
func (t *Transaction) Delete(start, end ByteOffset) error {
	return t.Replace(start, end, "")
}

// Apply commits all recorded edits as a single change and closes the
// transaction. An empty transaction closes without producing a revision.
func (t *Transaction) Apply() error {
	if t.closed {
		return ErrEditClosed
	}
	t.closed = true

	b := t.buf
	b.mu.Lock()
	b.editOpen = false

	if len(t.edits) == 0 {
		b.mu.Unlock()
		return nil
	}

	edits := make([]Edit, 0, len(t.edits))
	for _, e := range t.edits {
		if !e.IsNoOp() {
			edits = append(edits, e)
		}
	}
	if len(edits) == 0 {
		b.mu.Unlock()
		return nil
	}
	sortEdits(edits)

	ev, err := b.commitLocked(edits)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	b.publish(ev)
	return nil
}

// Cancel discards recorded edits and releases the buffer. Safe to call
// after Apply.
func (t *Transaction) Cancel() {
	if t.closed {
		return
	}
	t.closed = true
	t.edits = nil

	t.buf.mu.Lock()
	t.buf.editOpen = false
	t.buf.mu.Unlock()
}
