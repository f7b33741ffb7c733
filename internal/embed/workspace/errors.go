package workspace

import "errors"

// Workspace errors.
var (
	ErrClosed       = errors.New("workspace: closed")
	ErrUnknownKind  = errors.New("workspace: unknown language kind")
	ErrForeignBlock = errors.New("workspace: block belongs to another document")
)
