// Package analysis defines the analysis engine the embedding core mirrors
// blocks into, and provides an in-memory engine.
//
// An engine owns projects (one per language kind and host document) and
// documents (one per embedded block). Document text is the block text
// wrapped in the kind's implicit prefix and suffix. Command adapters are
// obtained through ResolveCommandAdapter once a kind has been loaded with
// EnsureLoaded.
//
// The in-memory engine keeps each document in a buffer.Buffer so that
// minimal edits arrive as real incremental changes and subscribers see
// them in mutation order.
package analysis
