package textsync

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/embedsync/internal/engine/buffer"
	"github.com/dshills/embedsync/internal/logging"
)

// Default limits for diff computation.
const (
	// DefaultDiffTimeout bounds the character diff of the changed region.
	// On expiry the diff library returns a valid but coarser result.
	DefaultDiffTimeout = 250 * time.Millisecond

	// DefaultMaxDiffBytes is the largest changed region that is diffed
	// character by character. Larger regions become a single replacement.
	DefaultMaxDiffBytes = 1 << 20
)

// Editable is a text surface that supports scoped edit transactions.
type Editable interface {
	Text() string
	BeginEdit() (buffer.TextEdit, error)
}

// Engine computes and applies minimal deltas.
type Engine struct {
	dmp          *diffmatchpatch.DiffMatchPatch
	maxDiffBytes int
	logger       *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDiffTimeout sets the time budget of a single character diff.
func WithDiffTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.dmp.DiffTimeout = d
		}
	}
}

// WithMaxDiffBytes sets the largest region diffed character by character.
func WithMaxDiffBytes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDiffBytes = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrNull(l).WithComponent("textsync")
	}
}

// New creates a sync engine.
func New(opts ...Option) *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = DefaultDiffTimeout

	e := &Engine{
		dmp:          dmp,
		maxDiffBytes: DefaultMaxDiffBytes,
		logger:       logging.NullLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Diff computes changes using the default engine.
func Diff(oldText, newText string) []Change {
	return defaultEngine.Diff(oldText, newText)
}

// Diff returns the ordered changes that turn oldText into newText.
// Equal texts produce no changes.
func (e *Engine) Diff(oldText, newText string) []Change {
	if oldText == newText {
		return nil
	}

	prefix := commonPrefix(oldText, newText)
	suffix := commonSuffix(oldText[prefix:], newText[prefix:])

	oldMid := oldText[prefix : len(oldText)-suffix]
	newMid := newText[prefix : len(newText)-suffix]
	start := buffer.ByteOffset(prefix)

	whole := []Change{{
		Span:    buffer.NewRange(start, start+buffer.ByteOffset(len(oldMid))),
		NewText: newMid,
	}}

	switch {
	case oldMid == "" || newMid == "":
		return whole
	case len(oldMid)+len(newMid) > e.maxDiffBytes:
		e.logger.Debug("changed region of %d bytes exceeds diff limit, replacing whole", len(oldMid)+len(newMid))
		return whole
	case !utf8.ValidString(oldMid) || !utf8.ValidString(newMid):
		// The diff library works on runes and would rewrite invalid bytes.
		return whole
	}

	diffs := e.dmp.DiffMain(oldMid, newMid, false)
	return coalesce(diffs, start)
}

// coalesce converts a diff script into replacements in old coordinates.
// Runs of deletions and insertions between two equalities become one change.
func coalesce(diffs []diffmatchpatch.Diff, pos buffer.ByteOffset) []Change {
	var (
		changes []Change
		pending *Change
	)

	flush := func() {
		if pending != nil {
			changes = append(changes, *pending)
			pending = nil
		}
	}

	for _, d := range diffs {
		n := buffer.ByteOffset(len(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			pos += n
		case diffmatchpatch.DiffDelete:
			if pending == nil {
				pending = &Change{Span: buffer.NewRange(pos, pos)}
			}
			pending.Span.End += n
			pos += n
		case diffmatchpatch.DiffInsert:
			if pending == nil {
				pending = &Change{Span: buffer.NewRange(pos, pos)}
			}
			pending.NewText += d.Text
		}
	}
	flush()

	return changes
}

// commonPrefix returns the byte length of the common prefix of a and b,
// backed off to a rune boundary.
func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	for i > 0 && i < len(a) && !utf8.RuneStart(a[i]) {
		i--
	}
	for i > 0 && i < len(b) && !utf8.RuneStart(b[i]) {
		i--
	}
	return i
}

// commonSuffix returns the byte length of the common suffix of a and b,
// backed off to a rune boundary.
func commonSuffix(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	for i > 0 && !utf8.RuneStart(a[len(a)-i]) {
		i--
	}
	return i
}

// ApplyChanges applies changes to surface as one atomic edit.
func (e *Engine) ApplyChanges(surface Editable, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := surface.BeginEdit()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginEdit, err)
	}
	defer tx.Cancel()

	for _, c := range changes {
		if err := tx.Replace(c.Span.Start, c.Span.End, c.NewText); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidChanges, c, err)
		}
	}

	return tx.Apply()
}

// Sync makes surface's text equal to newText with a minimal edit and
// returns the changes that were applied.
func (e *Engine) Sync(surface Editable, newText string) ([]Change, error) {
	changes := e.Diff(surface.Text(), newText)
	if err := e.ApplyChanges(surface, changes); err != nil {
		return nil, err
	}
	return changes, nil
}
