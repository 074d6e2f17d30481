package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newEmitCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "emit <event> [json]",
		Short: "Send a custom event to every enabled plugin",
		Long: `Send a custom event. Plugins receive it in on_<event> with the payload
as a JSON string, or "null" when no payload is given.`,
		Example: `  assetplug emit price_alert '{"symbol":"AAPL","price":190.5}'`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data json.RawMessage
			if len(args) == 2 {
				if !gjson.Valid(args[1]) {
					return fmt.Errorf("payload for %s is not valid JSON", args[0])
				}
				data = json.RawMessage(args[1])
			}
			if err := c.app.Emit(args[0], data); err != nil {
				return err
			}
			renderOK(cmd.OutOrStdout(), "event %s sent to %d plugins", args[0], enabledCount(c))
			return nil
		},
	}
}

func enabledCount(c *cli) int {
	n := 0
	for _, d := range c.app.Plugins() {
		if d.Enabled {
			n++
		}
	}
	return n
}
