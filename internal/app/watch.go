package app

import (
	"context"

	"github.com/dshills/embedsync/internal/host/watcher"
)

// Watch reloads path whenever the file is saved until ctx ends. onReload,
// when non-nil, is called after each reload with its result.
func (a *Application) Watch(ctx context.Context, path string, onReload func(error)) error {
	d, err := a.document("watch", path)
	if err != nil {
		return err
	}

	w, err := watcher.New(d.path,
		watcher.WithDebounce(a.cfg.Sync.Debounce.Std()),
		watcher.WithLogger(a.logger),
	)
	if err != nil {
		return &OperationError{Op: "watch", Target: path, Err: err}
	}
	defer w.Close()

	a.logger.Info("watching %s", d.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes():
			if !ok {
				return nil
			}
			err := a.Reload(ctx, d.path, change.Content)
			if err != nil {
				a.logger.Warn("%v", err)
			} else {
				a.logger.Debug("reloaded %s", d.path)
			}
			if onReload != nil {
				onReload(err)
			}
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			a.logger.Warn("watch %s: %v", d.path, err)
		}
	}
}
