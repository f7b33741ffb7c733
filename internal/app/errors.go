package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrNotStarted indicates Start has not been called.
	ErrNotStarted = errors.New("application not started")

	// ErrDocumentNotFound indicates the file has not been opened.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrBlockNotFound indicates a block index outside the document.
	ErrBlockNotFound = errors.New("block not found")

	// ErrNotEmbedded indicates a block whose language is not embedded.
	ErrNotEmbedded = errors.New("block is not embedded")

	// ErrAdapterTimeout indicates no command adapter was installed in time.
	ErrAdapterTimeout = errors.New("command adapter not installed")
)

// InitError represents a failure to initialize a component.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// OperationError represents an error that occurred during a specific operation.
type OperationError struct {
	Op     string // Operation name (e.g., "open", "reload", "exec")
	Target string // Target of the operation (e.g., file path)
	Err    error  // Underlying error
}

func (e *OperationError) Error() string {
	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
