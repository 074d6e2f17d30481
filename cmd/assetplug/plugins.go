package main

import (
	"fmt"

	plua "github.com/dshills/assetplug/internal/plugin/lua"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newPluginsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage Lua plugins",
		Example: `  # List loaded plugins
  assetplug plugins list

  # Stop sending events to a plugin
  assetplug plugins disable tracker

  # Call a plugin function with JSON arguments
  assetplug plugins call tracker total '"CNY"' 2`,
	}

	cmd.AddCommand(
		newPluginsListCommand(c),
		newPluginsReloadCommand(c),
		newPluginsEnableCommand(c, true),
		newPluginsEnableCommand(c, false),
		newPluginsCallCommand(c),
	)
	return cmd
}

func newPluginsListCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderPlugins(cmd.OutOrStdout(), c.app.Plugins())
			return nil
		},
	}
}

func newPluginsReloadCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Scan the plugin directory again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			descs, err := c.app.ReloadPlugins()
			if err != nil {
				return err
			}
			renderPlugins(cmd.OutOrStdout(), descs)
			return nil
		},
	}
}

func newPluginsEnableCommand(c *cli, enabled bool) *cobra.Command {
	use, short, done := "enable <name>", "Enable a plugin", "enabled"
	if !enabled {
		use, short, done = "disable <name>", "Disable a plugin", "disabled"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.SetPluginEnabled(cmd.Context(), args[0], enabled); err != nil {
				return err
			}
			renderOK(cmd.OutOrStdout(), "plugin %s %s", args[0], done)
			return nil
		},
	}
}

func newPluginsCallCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "call <plugin> <function> [args...]",
		Short: "Call a plugin function",
		Long: `Call a global function of a plugin and print its first result as JSON.
Arguments that parse as JSON are passed as Lua values, anything else as a string.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.app.CallPlugin(args[0], args[1], parseCallArgs(args[2:])...)
			if err != nil {
				return err
			}
			out, err := v.MarshalJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func parseCallArgs(args []string) []plua.Value {
	values := make([]plua.Value, len(args))
	for i, arg := range args {
		if gjson.Valid(arg) {
			values[i] = plua.FromGo(gjson.Parse(arg).Value())
		} else {
			values[i] = plua.String(arg)
		}
	}
	return values
}
