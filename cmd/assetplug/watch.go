package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dshills/assetplug/internal/app"
	"github.com/dshills/assetplug/internal/plugin"
	"github.com/spf13/cobra"
)

func newWatchCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload plugins when their files change",
		Long: `Watch the plugin directory and reload a plugin whenever a file in its
directory changes. Removing a plugin directory unloads the plugin.
Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.StartWatching(); err != nil {
				return err
			}

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			unsubscribe := c.app.Registry().Subscribe(func(n plugin.Notice) {
				mu.Lock()
				defer mu.Unlock()
				renderNotice(out, n)
			})
			defer unsubscribe()

			mu.Lock()
			fmt.Fprintf(out, "%s %s %s\n", headerStyle.Render("Watching"), c.app.Config().Plugins.Dir,
				mutedStyle.Render("(ctrl-c to stop)"))
			renderPlugins(out, c.app.Plugins())
			mu.Unlock()

			<-cmd.Context().Done()

			mu.Lock()
			defer mu.Unlock()
			renderMetrics(out, c.app.Metrics().Snapshot())
			return nil
		},
	}
}

func renderNotice(w io.Writer, n plugin.Notice) {
	stamp := mutedStyle.Render(time.Now().Format("15:04:05"))
	switch n.Type {
	case plugin.NoticeFailed:
		fmt.Fprintf(w, "%s %s %s: %v\n", stamp, errorStyle.Render(n.Type.String()), n.Path, n.Err)
	case plugin.NoticeLoaded, plugin.NoticeEnabled:
		fmt.Fprintf(w, "%s %s %s\n", stamp, enabledStyle.Render(n.Type.String()), n.Plugin)
	default:
		fmt.Fprintf(w, "%s %s %s\n", stamp, mutedStyle.Render(n.Type.String()), n.Plugin)
	}
}

func renderMetrics(w io.Writer, s app.MetricsSnapshot) {
	fmt.Fprintf(w, "%s %s, %d events\n", labelStyle.Render("Uptime:"), s.Uptime.Round(time.Second), s.EventCount)
	if len(s.Events) == 0 {
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-20s │ %8s │ %12s │ %12s", "EVENT", "COUNT", "AVG", "MAX")))
	for _, e := range s.Events {
		fmt.Fprintf(w, "%-20s │ %8d │ %12s │ %12s\n", e.Event, e.Count,
			time.Duration(e.AvgNs), time.Duration(e.MaxNs))
	}
}
