// Package textsync computes minimal text deltas between two snapshots and
// applies them to a text surface as a single atomic edit.
//
// Diff trims the common prefix and suffix of the two texts and runs a
// character-level diff (github.com/sergi/go-diff) on what remains. Adjacent
// deletions and insertions are coalesced into replacements. The resulting
// changes are expressed in byte offsets of the old text, sorted ascending
// and non-overlapping, and always satisfy
//
//	Apply(old, Diff(old, new)) == new
//
// ApplyChanges opens an edit transaction on the target surface, records
// every change and applies them together. The transaction is cancelled on
// every error path, so a failed sync leaves the surface untouched.
package textsync
