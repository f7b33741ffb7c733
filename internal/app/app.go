// Package app wires the embedding core to the in-memory host editor, the
// in-memory analysis engine, the markdown block detector and the file
// watcher. All host-side work runs on a single dispatcher loop.
package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/analysis/luaadapter"
	"github.com/dshills/embedsync/internal/config"
	"github.com/dshills/embedsync/internal/embed"
	"github.com/dshills/embedsync/internal/embed/command"
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/reference"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/host/markdown"
	"github.com/dshills/embedsync/internal/logging"
	"github.com/dshills/embedsync/internal/textsync"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// LogOutput receives log output when no log file is configured.
	LogOutput io.Writer
}

// Application owns every component of one embedsync session.
type Application struct {
	cfg       *config.Config
	configDir string
	logger    *logging.Logger
	table     *language.Table
	sync      *textsync.Engine
	engine    *analysis.Memory
	editor    *host.Editor
	detector  *markdown.Detector
	loop      *host.Loop
	embedder  *embed.Embedder

	mu      sync.Mutex
	docs    map[string]*Document
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates an application.
func New(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	cfg.ApplyEnv()
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	a := &Application{
		cfg:  cfg,
		docs: make(map[string]*Document),
	}
	if opts.ConfigPath != "" {
		a.configDir = filepath.Dir(opts.ConfigPath)
	}
	if err := a.bootstrap(opts); err != nil {
		return nil, err
	}
	return a, nil
}

// bootstrap initializes all components in dependency order.
func (a *Application) bootstrap(opts Options) error {
	// 1. Logging
	lc := a.cfg.Logging()
	if opts.LogOutput != nil {
		lc.Output = opts.LogOutput
	}
	a.logger = logging.New(lc)

	// 2. Language table
	table, err := a.cfg.LanguageTable()
	if err != nil {
		return &InitError{Component: "languages", Err: err}
	}
	a.table = table

	// 3. Text sync
	a.sync = textsync.New(
		textsync.WithDiffTimeout(a.cfg.Sync.DiffTimeout.Std()),
		textsync.WithMaxDiffBytes(a.cfg.Sync.MaxDiffBytes),
		textsync.WithLogger(a.logger),
	)

	// 4. Analysis engine with scripted adapters
	engineOpts := []analysis.MemoryOption{
		analysis.WithSync(a.sync),
		analysis.WithEngineLogger(a.logger),
	}
	for _, kind := range table.Kinds() {
		p, _ := table.Profile(kind)
		if p.Adapter == "" {
			continue
		}
		factory, err := luaadapter.Load(a.resolvePath(p.Adapter),
			luaadapter.WithTimeout(a.cfg.Commands.ScriptTimeout.Std()),
			luaadapter.WithLogger(a.logger),
		)
		if err != nil {
			return &InitError{Component: fmt.Sprintf("%s adapter", kind), Err: err}
		}
		engineOpts = append(engineOpts, analysis.WithAdapter(kind, factory))
	}
	a.engine = analysis.NewMemory(table, engineOpts...)

	// 5. Host
	a.editor = host.NewEditor()
	a.detector = markdown.NewDetector(a.cfg.Fences)
	a.loop = host.NewLoop(256)

	// 6. Embedder
	a.embedder = embed.New(a.engine, a.editor,
		embed.WithTable(table),
		embed.WithCatalog(reference.NewCatalog(a.cfg.Resolver(), a.logger)),
		embed.WithSync(a.sync),
		embed.WithLogger(a.logger),
		embed.WithDispatcher(a.loop),
		embed.WithRouterOptions(
			command.WithViewTimeout(a.cfg.Commands.ViewTimeout.Std()),
			command.WithPollInterval(a.cfg.Commands.PollInterval.Std()),
		),
	)
	return nil
}

// resolvePath makes p relative to the configuration file directory.
func (a *Application) resolvePath(p string) string {
	if filepath.IsAbs(p) || a.configDir == "" {
		return p
	}
	return filepath.Join(a.configDir, p)
}

// Config returns the active configuration.
func (a *Application) Config() *config.Config {
	return a.cfg
}

// Logger returns the application logger.
func (a *Application) Logger() *logging.Logger {
	return a.logger
}

// Engine returns the analysis engine.
func (a *Application) Engine() *analysis.Memory {
	return a.engine
}

// Embedder returns the embedder.
func (a *Application) Embedder() *embed.Embedder {
	return a.embedder
}

// Start runs the dispatcher loop until ctx is done or Shutdown is called.
func (a *Application) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.stopped = make(chan struct{})
	go func() {
		defer close(a.stopped)
		a.loop.Run(ctx)
	}()
}

// call runs fn on the dispatcher loop.
func (a *Application) call(ctx context.Context, fn func()) error {
	a.mu.Lock()
	started := a.cancel != nil
	a.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	return a.loop.Call(ctx, fn)
}

// Shutdown closes every workspace, stops the loop and closes the logger.
func (a *Application) Shutdown() {
	_ = a.embedder.CloseAll()

	a.mu.Lock()
	cancel, stopped := a.cancel, a.stopped
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		<-stopped
	}
	_ = a.logger.Close()
}
