package command

import (
	"errors"
	"fmt"

	"github.com/dshills/embedsync/internal/embed/language"
)

// Router errors.
var (
	// ErrNoAdapter is returned by Exec when the surface has no adapter.
	ErrNoAdapter = errors.New("command: no adapter installed")

	// ErrViewUnavailable is recorded when the view poll gives up.
	ErrViewUnavailable = errors.New("command: view unavailable")
)

// AdapterError records a failed adapter resolution.
type AdapterError struct {
	Kind language.Kind
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("command: resolve %s adapter: %v", e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
