// Package watcher reports saves of a single host document on disk.
//
// The containing directory is watched rather than the file itself so that
// editors which save by rename keep being observed. Bursts of events are
// debounced into one Change carrying the file's new content.
package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/embedsync/internal/logging"
)

// ErrPathNotExist is returned when the watched file does not exist.
var ErrPathNotExist = errors.New("watcher: path does not exist")

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 100 * time.Millisecond

// Change is a debounced save of the watched file.
type Change struct {
	Path      string
	Content   []byte
	Timestamp time.Time
}

// Stats reports watcher counters.
type Stats struct {
	RawEvents int64
	Changes   int64
	Errors    int64
	LastError error
}

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *FileWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *FileWatcher) {
		w.logger = logging.OrNull(l).WithComponent("watcher")
	}
}

// FileWatcher watches one file.
type FileWatcher struct {
	path     string
	debounce time.Duration
	logger   *logging.Logger

	fsw     *fsnotify.Watcher
	changes chan Change
	errs    chan error

	mu        sync.Mutex
	timer     *time.Timer
	lastError error

	rawEvents   int64
	changeCount int64
	errorCount  int64

	closed   atomic.Bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// New starts watching path.
func New(path string, opts ...Option) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotExist, abs)
		}
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &FileWatcher{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   logging.NullLogger,
		fsw:      fsw,
		changes:  make(chan Change, 16),
		errs:     make(chan error, 16),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string {
	return w.path
}

// Changes returns the debounced change channel. It is closed by Close.
func (w *FileWatcher) Changes() <-chan Change {
	return w.changes
}

// Errors returns the error channel. It is closed by Close.
func (w *FileWatcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher.
func (w *FileWatcher) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(w.closeCh)

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.closedWg.Wait()
	close(w.changes)
	close(w.errs)
	return w.fsw.Close()
}

// Stats returns watcher counters.
func (w *FileWatcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		RawEvents: atomic.LoadInt64(&w.rawEvents),
		Changes:   atomic.LoadInt64(&w.changeCount),
		Errors:    atomic.LoadInt64(&w.errorCount),
		LastError: w.lastError,
	}
}

func (w *FileWatcher) processLoop() {
	defer w.closedWg.Done()

	fire := make(chan struct{}, 1)
	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			atomic.AddInt64(&w.rawEvents, 1)
			w.schedule(fire)

		case <-fire:
			w.emit()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.recordError(err)
		}
	}
}

func (w *FileWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename)
}

// schedule restarts the debounce timer. Firing is signalled back to the
// process loop so emit never races Close.
func (w *FileWatcher) schedule(fire chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}

func (w *FileWatcher) emit() {
	content, err := os.ReadFile(w.path)
	if err != nil {
		// A rename-save may leave the path briefly missing.
		if !os.IsNotExist(err) {
			w.recordError(err)
		}
		return
	}

	change := Change{Path: w.path, Content: content, Timestamp: time.Now()}
	select {
	case w.changes <- change:
		atomic.AddInt64(&w.changeCount, 1)
	case <-w.closeCh:
	}
}

func (w *FileWatcher) recordError(err error) {
	atomic.AddInt64(&w.errorCount, 1)
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
	w.logger.Warn("%s: %v", w.path, err)

	select {
	case w.errs <- err:
	default:
	}
}
