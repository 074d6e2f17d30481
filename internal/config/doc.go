// Package config provides the configuration for assetplug.
//
// Configuration is built in layers, each overriding the one below:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← applied by the CLI
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← ASSETPLUG_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← assetplug.toml / assetplug.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - loader: TOML and YAML file loading, environment variables
//
// # Basic Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// # Environment Variables
//
// Any ASSETPLUG_<SECTION>_<KEY> variable sets <section>.<key>, so
// ASSETPLUG_PLUGINS_WATCH=true sets plugins.watch. A few short forms are
// mapped explicitly:
//
//	ASSETPLUG_PLUGINS_DIR     plugins.dir
//	ASSETPLUG_DB_TYPE         database.type
//	ASSETPLUG_DB_DSN          database.dsn
//	ASSETPLUG_DATABASE_URL    database.dsn
//	ASSETPLUG_LOG_LEVEL       log.level
//	ASSETPLUG_LOG_FORMAT      log.format
//	ASSETPLUG_WATCH_DEBOUNCE  plugins.debounce
package config
