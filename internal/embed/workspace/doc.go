// Package workspace is the embedded-document workspace of one host
// document.
//
// A Workspace owns a Registry, which creates exactly one analysis project
// per language kind, and the Bindings between embedded blocks and the
// engine documents mirroring them. A Binding keeps its two texts
// converged: host edits are re-wrapped and pushed to the engine, engine
// edits are unwrapped and pushed to the host, both as minimal deltas.
// Each side remembers the text it last wrote so the notification caused
// by its own write is dropped as an echo.
//
// Callbacks run with no workspace lock held, so an edit that notifies
// synchronously back into the binding is tolerated.
package workspace
