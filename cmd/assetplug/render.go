package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dshills/assetplug/internal/asset"
	"github.com/dshills/assetplug/internal/plugin"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	enabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
)

const timeLayout = "2006-01-02 15:04"

func renderPlugins(w io.Writer, descs []plugin.Descriptor) {
	if len(descs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No plugins loaded"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-20s │ %-10s │ %-8s │ %s", "NAME", "VERSION", "STATUS", "PATH")))
	for _, d := range descs {
		status := enabledStyle.Render(fmt.Sprintf("%-8s", "enabled"))
		if !d.Enabled {
			status = mutedStyle.Render(fmt.Sprintf("%-8s", "disabled"))
		}
		fmt.Fprintf(w, "%-20s │ %-10s │ %s │ %s\n", d.Name, d.Version, status, d.Path)
	}
}

func renderAssets(w io.Writer, assets []*asset.Asset) {
	if len(assets) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No assets"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-36s │ %-20s │ %-14s │ %14s │ %s", "ID", "NAME", "TYPE", "VALUE", "CUR")))
	for _, a := range assets {
		fmt.Fprintf(w, "%-36s │ %-20s │ %-14s │ %14.2f │ %s\n", a.ID, truncate(a.Name, 20), truncate(a.TypeLabel(), 14), a.Value, a.Currency)
	}
}

func renderAsset(w io.Writer, a *asset.Asset) {
	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
	}
	row("ID", a.ID.String())
	row("Name", a.Name)
	typ := string(a.Type)
	if label := a.TypeLabel(); label != typ {
		typ += " (" + label + ")"
	}
	row("Type", typ)
	row("Value", fmt.Sprintf("%.2f %s", a.Value, a.Currency))
	if a.Description != nil {
		row("Description", *a.Description)
	}
	if len(a.Tags) > 0 {
		row("Tags", strings.Join(a.Tags, ", "))
	}
	row("Metadata", string(a.Metadata))
	row("Created", a.CreatedAt.Local().Format(timeLayout))
	row("Updated", a.UpdatedAt.Local().Format(timeLayout))
}

func renderTransactions(w io.Writer, txs []*asset.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No transactions"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-16s │ %-12s │ %14s │ %14s │ %s", "TIME", "TYPE", "BEFORE", "AFTER", "NOTE")))
	for _, t := range txs {
		note := ""
		if t.Note != nil {
			note = *t.Note
		}
		fmt.Fprintf(w, "%-16s │ %-12s │ %14.2f │ %14.2f │ %s\n",
			t.Timestamp.Local().Format(timeLayout), t.Type, t.AmountBefore, t.AmountAfter, note)
	}
}

func renderSummary(w io.Writer, s asset.Summary) {
	fmt.Fprintf(w, "%s %.2f (%d assets)\n", labelStyle.Render("Total:"), s.TotalValue, s.Count)
	renderBreakdown(w, "By type", s.ByType)
	renderBreakdown(w, "By currency", s.ByCurrency)
}

func renderBreakdown(w io.Writer, title string, m map[string]float64) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, headerStyle.Render(title))
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %14.2f\n", k, m[k])
	}
}

func renderOK(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, enabledStyle.Render("✓")+" "+fmt.Sprintf(format, args...))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
