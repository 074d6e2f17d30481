package main

import (
	"fmt"

	"github.com/dshills/assetplug/internal/app"
	"github.com/dshills/assetplug/internal/config"
	"github.com/dshills/assetplug/internal/logging"
	"github.com/spf13/cobra"
)

// cli holds the persistent flags and the application built from them.
type cli struct {
	configPath string
	pluginsDir string
	dbType     string
	dbDSN      string
	logLevel   string
	logFormat  string
	debug      bool

	app *app.App
}

// close shuts the application down if a command started it.
func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Shutdown()
	c.app = nil
	return err
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "assetplug",
		Short: "Track personal assets and extend them with Lua plugins",
		Long: `assetplug keeps a ledger of personal assets and forwards every change
to sandboxed Lua plugins loaded from the plugin directory.`,
		Version:           fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (default assetplug.toml or assetplug.yaml)")
	flags.StringVar(&c.pluginsDir, "plugins-dir", "", "plugin root directory")
	flags.StringVar(&c.dbType, "db-type", "", "database type (sqlite, postgres, mysql)")
	flags.StringVar(&c.dbDSN, "db-dsn", "", "database connection string")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&c.logFormat, "log-format", "", "log format (text, json)")
	flags.BoolVar(&c.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newPluginsCommand(c),
		newAssetCommand(c),
		newEmitCommand(c),
		newWatchCommand(c),
	)
	return root
}

// setup loads the configuration, applies flag overrides and starts the
// application.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" {
		return nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	lc := cfg.LoggingConfig()
	lc.Output = cmd.ErrOrStderr()
	logger := logging.New(lc)
	logging.SetDefault(logger)

	a, err := app.New(cmd.Context(), cfg, app.WithLogger(logger))
	if err != nil {
		return err
	}
	c.app = a
	return a.Start()
}

func (c *cli) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("plugins-dir") {
		cfg.Plugins.Dir = c.pluginsDir
	}
	if flags.Changed("db-type") {
		cfg.Database.Type = c.dbType
	}
	if flags.Changed("db-dsn") {
		cfg.Database.DSN = c.dbDSN
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = c.logFormat
	}
	if flags.Changed("debug") {
		cfg.Debug = c.debug
	}
}
