package analysis

import (
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/reference"
	"github.com/dshills/embedsync/internal/engine/buffer"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/textsync"
)

// ProjectID identifies a project.
type ProjectID string

// DocumentID identifies a document.
type DocumentID string

// DocumentChange is delivered to document subscribers after every edit.
type DocumentChange struct {
	Document DocumentID
	Revision buffer.RevisionID
	// Text is the full document text after the edit.
	Text string
}

// Engine is the analysis engine.
type Engine interface {
	// CreateProject creates an empty project.
	CreateProject(name string, kind language.Kind) (ProjectID, error)

	// AddReferences attaches library references to a project.
	AddReferences(p ProjectID, refs []reference.Descriptor) error

	// RemoveProject drops a project and all its documents.
	RemoveProject(p ProjectID) error

	// CreateDocument adds a document with initial text to a project.
	CreateDocument(p ProjectID, name, text string) (DocumentID, error)

	// OpenDocument records that surface is the live editor text of d.
	OpenDocument(d DocumentID, surface host.Surface) error

	// DocumentText returns the current text of d.
	DocumentText(d DocumentID) (string, error)

	// EditDocument applies changes, in current-text coordinates, atomically.
	EditDocument(d DocumentID, changes []textsync.Change) error

	// UpdateDocumentText replaces the text of d with a minimal edit.
	UpdateDocumentText(d DocumentID, text string) error

	// SubscribeDocument registers fn for changes of d.
	SubscribeDocument(d DocumentID, fn func(DocumentChange)) (unsubscribe func(), err error)

	// EnsureLoaded activates the engine subsystem of a kind. Idempotent.
	EnsureLoaded(kind language.Kind) error

	// ResolveCommandAdapter returns the command handler for surface.
	// The kind must have been loaded.
	ResolveCommandAdapter(kind language.Kind, view host.View, surface host.Surface) (CommandAdapter, error)
}

// Command is an editing command directed at a block.
type Command struct {
	Name string
	Args map[string]string
}

// Arg returns an argument or def when absent.
func (c Command) Arg(name, def string) string {
	if v, ok := c.Args[name]; ok {
		return v
	}
	return def
}

// CommandAdapter interprets editing commands for one surface.
type CommandAdapter interface {
	// Exec runs a command.
	Exec(cmd Command) Result

	// Commands lists the supported command names, sorted.
	Commands() []string
}
