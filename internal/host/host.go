// Package host defines what the embedding core needs from the host editor
// and provides an in-memory editor implementing it.
//
// The core only observes and mutates block text through Surface, asks for
// the view of a block through ViewResolver, and schedules UI-thread work
// through Dispatcher.
package host

import (
	"github.com/dshills/embedsync/internal/engine/buffer"
)

// Document is a host document (the file being edited). Identity is the
// interface value itself; ID is used for naming and logs.
type Document interface {
	ID() string
}

// Surface is the live text of one embedded block.
type Surface interface {
	Text() string
	Subscribe(fn func(buffer.ChangeEvent)) (unsubscribe func())
	BeginEdit() (buffer.TextEdit, error)
}

// Block is one fenced code region inside a host document.
type Block interface {
	Surface() Surface
	Document() Document
	// ContentType is the host's discriminator for the block language.
	ContentType() string
}

// View is a realized editing view.
type View interface {
	ID() string
}

// ViewResolver finds the editing view currently showing a block surface.
type ViewResolver interface {
	ResolveView(s Surface) (View, bool)
}

// Dispatcher runs functions on the host's UI-affine goroutine.
type Dispatcher interface {
	Post(fn func())
}
