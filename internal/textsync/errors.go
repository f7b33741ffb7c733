package textsync

import "errors"

// Errors returned by textsync operations.
var (
	// ErrInvalidChanges indicates changes that are out of range, unsorted
	// or overlapping for the text they are applied to.
	ErrInvalidChanges = errors.New("textsync: invalid change sequence")

	// ErrBeginEdit indicates the target surface refused an edit transaction.
	ErrBeginEdit = errors.New("textsync: cannot begin edit")
)
