// Package config loads embedsync configuration from TOML or YAML files.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default. Environment variables prefixed EMBEDSYNC_ override the
// logging settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/reference"
	"github.com/dshills/embedsync/internal/logging"
)

// Config is the complete configuration.
type Config struct {
	Log        LogConfig         `toml:"log" yaml:"log"`
	Sync       SyncConfig        `toml:"sync" yaml:"sync"`
	Commands   CommandsConfig    `toml:"commands" yaml:"commands"`
	References ReferencesConfig  `toml:"references" yaml:"references"`
	Languages  []LanguageConfig  `toml:"languages" yaml:"languages"`
	Fences     map[string]string `toml:"fences" yaml:"fences"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
}

// SyncConfig configures delta computation.
type SyncConfig struct {
	DiffTimeout  Duration `toml:"diff_timeout" yaml:"diff_timeout"`
	MaxDiffBytes int      `toml:"max_diff_bytes" yaml:"max_diff_bytes"`
	Debounce     Duration `toml:"debounce" yaml:"debounce"`
}

// CommandsConfig configures command routing.
type CommandsConfig struct {
	ViewTimeout   Duration `toml:"view_timeout" yaml:"view_timeout"`
	PollInterval  Duration `toml:"poll_interval" yaml:"poll_interval"`
	ScriptTimeout Duration `toml:"script_timeout" yaml:"script_timeout"`
}

// ReferencesConfig configures reference resolution.
type ReferencesConfig struct {
	SearchPaths []string `toml:"search_paths" yaml:"search_paths"`
	Extensions  []string `toml:"extensions" yaml:"extensions"`
}

// LanguageConfig describes one embedded language. An entry whose kind is a
// built-in kind only overrides the fields it sets.
type LanguageConfig struct {
	Kind           string   `toml:"kind" yaml:"kind"`
	ID             string   `toml:"id" yaml:"id"`
	Name           string   `toml:"name" yaml:"name"`
	Discriminators []string `toml:"discriminators" yaml:"discriminators"`
	Prefix         *string  `toml:"prefix" yaml:"prefix"`
	Suffix         *string  `toml:"suffix" yaml:"suffix"`
	References     []string `toml:"references" yaml:"references"`
	Comment        string   `toml:"comment" yaml:"comment"`
	Adapter        string   `toml:"adapter" yaml:"adapter"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Sync: SyncConfig{
			DiffTimeout:  Duration(250 * time.Millisecond),
			MaxDiffBytes: 1 << 20,
			Debounce:     Duration(100 * time.Millisecond),
		},
		Commands: CommandsConfig{
			ViewTimeout:   Duration(5 * time.Second),
			PollInterval:  Duration(50 * time.Millisecond),
			ScriptTimeout: Duration(2 * time.Second),
		},
		References: ReferencesConfig{
			Extensions: []string{".dll"},
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .toml, .yaml or .yml. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from EMBEDSYNC_* environment variables.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("EMBEDSYNC_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("EMBEDSYNC_LOG_FILE"); ok {
		c.Log.File = v
	}
	if v, ok := os.LookupEnv("EMBEDSYNC_VIEW_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Commands.ViewTimeout = Duration(d)
		}
	}
	if v, ok := os.LookupEnv("EMBEDSYNC_MAX_DIFF_BYTES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.MaxDiffBytes = n
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}

	positive := []struct {
		field string
		d     Duration
	}{
		{"sync.diff_timeout", c.Sync.DiffTimeout},
		{"sync.debounce", c.Sync.Debounce},
		{"commands.view_timeout", c.Commands.ViewTimeout},
		{"commands.poll_interval", c.Commands.PollInterval},
		{"commands.script_timeout", c.Commands.ScriptTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return &ValidationError{Field: p.field, Message: "must be positive"}
		}
	}
	if c.Commands.PollInterval > c.Commands.ViewTimeout {
		return &ValidationError{Field: "commands.poll_interval", Message: "exceeds view_timeout"}
	}
	if c.Sync.MaxDiffBytes <= 0 {
		return &ValidationError{Field: "sync.max_diff_bytes", Message: "must be positive"}
	}

	if _, err := c.LanguageTable(); err != nil {
		return &ValidationError{Field: "languages", Message: err.Error()}
	}
	return nil
}

// LanguageTable builds the immutable language table. With no languages
// configured the built-in table is returned.
func (c *Config) LanguageTable() (*language.Table, error) {
	profiles := map[language.Kind]language.Profile{
		language.Primary:   language.CSharp(),
		language.Secondary: language.VisualBasic(),
	}
	order := []language.Kind{language.Primary, language.Secondary}

	for i, lc := range c.Languages {
		if lc.Kind == "" {
			return nil, fmt.Errorf("languages[%d]: kind is required", i)
		}
		kind := language.Kind(lc.Kind)
		p, builtin := profiles[kind]
		if !builtin {
			p = language.Profile{Kind: kind}
			order = append(order, kind)
		}
		profiles[kind] = lc.apply(p)
	}

	list := make([]language.Profile, 0, len(order))
	for _, k := range order {
		list = append(list, profiles[k])
	}
	return language.NewTable(list...)
}

func (lc LanguageConfig) apply(p language.Profile) language.Profile {
	if lc.ID != "" {
		p.ID = lc.ID
	}
	if lc.Name != "" {
		p.Name = lc.Name
	}
	if len(lc.Discriminators) > 0 {
		p.Discriminators = lc.Discriminators
	}
	if lc.Prefix != nil {
		p.GlobalPrefix = *lc.Prefix
	}
	if lc.Suffix != nil {
		p.GlobalSuffix = *lc.Suffix
	}
	if lc.References != nil {
		p.References = lc.References
	}
	if lc.Comment != "" {
		p.LineComment = lc.Comment
	}
	if lc.Adapter != "" {
		p.Adapter = lc.Adapter
	}
	return p
}

// Resolver returns the reference resolver.
func (c *Config) Resolver() *reference.Resolver {
	opts := []reference.ResolverOption{reference.WithSearchPaths(c.References.SearchPaths...)}
	if len(c.References.Extensions) > 0 {
		opts = append(opts, reference.WithExtensions(c.References.Extensions...))
	}
	return reference.NewResolver(opts...)
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(c.Log.Level)
	lc.File = c.Log.File
	lc.MaxSizeMB = c.Log.MaxSizeMB
	lc.MaxBackups = c.Log.MaxBackups
	return lc
}
