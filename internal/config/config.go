package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/dshills/assetplug/internal/config/loader"
	"github.com/dshills/assetplug/internal/logging"
	"github.com/dshills/assetplug/internal/storage"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are tried in order when Load is given an empty path.
var DefaultFiles = []string{"assetplug.toml", "assetplug.yaml", "assetplug.yml"}

// Config is the application configuration.
type Config struct {
	Plugins  PluginsConfig  `yaml:"plugins" toml:"plugins"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Log      LogConfig      `yaml:"log" toml:"log"`

	// Debug forces debug-level logging regardless of Log.Level.
	Debug bool `yaml:"debug" toml:"debug"`

	// Source is the file the configuration was read from, if any.
	Source string `yaml:"-" toml:"-"`
}

// PluginsConfig configures plugin discovery.
type PluginsConfig struct {
	// Dir is the plugin root; each subdirectory is one plugin.
	Dir string `yaml:"dir" toml:"dir"`
	// Watch reloads plugins when files under Dir change.
	Watch bool `yaml:"watch" toml:"watch"`
	// Debounce is the quiet period before a changed plugin is reloaded.
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
}

// DatabaseConfig configures the asset store.
type DatabaseConfig struct {
	Type string `yaml:"type" toml:"type"`
	DSN  string `yaml:"dsn" toml:"dsn"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Plugins: PluginsConfig{
			Dir:      "plugins",
			Debounce: 250 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Type: storage.TypeSQLite,
			DSN:  filepath.Join("data", "assets.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	fs  loader.FileSystem
	env loader.Loader
}

// WithFileSystem reads config files through fsys.
func WithFileSystem(fsys loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithEnv replaces the environment source. Pass nil to ignore the environment.
func WithEnv(env loader.Loader) Option {
	return func(o *options) {
		o.env = env
	}
}

// Load builds the configuration from defaults, then the file at path, then
// environment variables. A missing file is not an error. An empty path tries
// DefaultFiles in the working directory.
func Load(path string, opts ...Option) (*Config, error) {
	o := &options{
		fs:  loader.DefaultFS(),
		env: loader.NewEnvLoader(loader.DefaultEnvPrefix),
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := Default()

	if path == "" {
		path = firstExisting(o.fs, DefaultFiles)
	}

	var merged map[string]any
	if path != "" {
		fl, err := loader.ForPath(o.fs, path)
		if err != nil {
			return nil, err
		}
		fileData, err := fl.Load()
		if err != nil {
			return nil, err
		}
		if fileData != nil {
			cfg.Source = path
		}
		merged = loader.DeepMerge(merged, fileData)
	}

	if o.env != nil {
		envData, err := o.env.Load()
		if err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
		merged = loader.DeepMerge(merged, envData)
	}

	if err := cfg.apply(merged); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply decodes data over the fields of c. Keys absent from data keep
// their current values.
func (c *Config) apply(data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding merged config: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	}
	return nil
}

func firstExisting(fsys loader.FileSystem, names []string) string {
	for _, name := range names {
		if _, err := fsys.Stat(name); err == nil {
			return name
		} else if !errors.Is(err, fs.ErrNotExist) {
			return name
		}
	}
	return ""
}

// Validate checks the configuration and returns every problem found,
// joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Plugins.Dir == "" {
		errs = append(errs, &ValidationError{
			Path:    "plugins.dir",
			Message: "must not be empty",
			Value:   c.Plugins.Dir,
			Code:    ErrCodeRequiredMissing,
		})
	}
	if c.Plugins.Debounce < 0 {
		errs = append(errs, &ValidationError{
			Path:    "plugins.debounce",
			Message: "must not be negative",
			Value:   c.Plugins.Debounce,
			Code:    ErrCodeOutOfRange,
		})
	}

	switch c.Database.Type {
	case storage.TypeSQLite, storage.TypePostgres, storage.TypeMySQL:
	default:
		errs = append(errs, &ValidationError{
			Path:    "database.type",
			Message: "must be one of sqlite, postgres, mysql",
			Value:   c.Database.Type,
			Code:    ErrCodeInvalidEnum,
		})
	}
	if c.Database.DSN == "" {
		errs = append(errs, &ValidationError{
			Path:    "database.dsn",
			Message: "must not be empty",
			Value:   c.Database.DSN,
			Code:    ErrCodeRequiredMissing,
		})
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, &ValidationError{
			Path:    "log.level",
			Message: "must be one of debug, info, warn, error",
			Value:   c.Log.Level,
			Code:    ErrCodeInvalidEnum,
		})
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, &ValidationError{
			Path:    "log.format",
			Message: "must be text or json",
			Value:   c.Log.Format,
			Code:    ErrCodeInvalidEnum,
		})
	}

	return errors.Join(errs...)
}

// LoggingConfig converts the log settings into a logger configuration.
// Call Validate first; unparsable values fall back to the defaults.
func (c *Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = lvl
	}
	if f, err := logging.ParseFormat(c.Log.Format); err == nil {
		lc.Format = f
	}
	if c.Debug {
		lc.Level = logging.LevelDebug
	}
	return lc
}
