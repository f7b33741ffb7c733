// Package buffer provides the live text surface used on both sides of an
// embedding: host block buffers and analysis-engine documents.
//
// The buffer package provides:
//
//   - Thread-safe read/write access via sync.Mutex
//   - Atomic multi-edit transactions (BeginEdit / Apply / Cancel)
//   - Ordered change notifications delivered after the lock is released
//   - Revision tracking for change management
//
// Basic usage:
//
//	buf := buffer.NewBufferFromString("x = 1")
//
//	unsubscribe := buf.Subscribe(func(ev buffer.ChangeEvent) {
//	    fmt.Println(ev.Text)
//	})
//	defer unsubscribe()
//
//	tx, err := buf.BeginEdit()
//	if err != nil {
//	    return err
//	}
//	defer tx.Cancel()
//	_ = tx.Replace(4, 5, "2")
//	return tx.Apply()
//
// Reentrancy:
//
// Subscribers run synchronously on the goroutine that applied the edit, after
// the buffer lock has been released. A subscriber may therefore read the
// buffer or open a new transaction on it (or on any other buffer) without
// deadlocking. Notifications for successive edits are delivered in the order
// the edits were applied.
package buffer
