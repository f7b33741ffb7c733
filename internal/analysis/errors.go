package analysis

import "errors"

// Engine errors.
var (
	ErrUnknownProject   = errors.New("analysis: unknown project")
	ErrUnknownDocument  = errors.New("analysis: unknown document")
	ErrUnknownKind      = errors.New("analysis: unknown language kind")
	ErrNotLoaded        = errors.New("analysis: language not loaded")
	ErrNoCommandHandler = errors.New("analysis: no command handler for language")
	ErrUnknownSurface   = errors.New("analysis: surface not open in any document")
	ErrUnknownCommand   = errors.New("analysis: unknown command")
	ErrWrapperAltered   = errors.New("analysis: document wrapper text was altered")
)
