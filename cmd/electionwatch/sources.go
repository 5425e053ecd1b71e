package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/engine"
	"github.com/blackdavinci/guinea-election-monitor/internal/pipeline"
)

// sourcesCmd creates the "sources" subcommand.
func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printSources(cfg)
		},
	}
}

func printSources(cfg *config.Config) error {
	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Strategy", "Mode", "Active", "Categories", "Tiers", "Base URL"})
	active := 0
	for _, s := range sources {
		mark := ""
		if s.Active {
			mark = "yes"
			active++
		}
		tiers := strings.Join(s.FetchTiers, ",")
		if tiers == "" {
			tiers = "auto"
		}
		t.AppendRow(table.Row{s.Name, s.Strategy, pipeline.ModeFor(s.Strategy), mark, len(s.Categories), tiers, s.BaseURL})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d/%d", active, len(sources)), "", "", ""})
	t.Render()
	return nil
}

// testSourceCmd creates the "test-source" subcommand.
func testSourceCmd() *cobra.Command {
	var (
		maxPages int
		sample   int
		daysBack int
	)

	cmd := &cobra.Command{
		Use:   "test-source <name>",
		Short: "Crawl one source without storing and print diagnostics",
		Long: `Crawl one source, active or not, score what it finds and print
per-category counts and sample articles. Nothing is written to storage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var w engine.Window
			if daysBack > 0 {
				w = engine.DaysBack(a.monitor.Now(), daysBack, a.monitor.Location())
			}
			d, err := a.monitor.Diagnose(ctx, args[0], w, maxPages, sample)
			if err != nil {
				return err
			}
			d.WriteTable(os.Stdout)
			if d.Articles == 0 {
				fmt.Println("\nNo article extracted. Check the selectors and the fetch tiers of this source.")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 1, "listing pages per category")
	cmd.Flags().IntVar(&sample, "sample", 5, "articles listed in the output")
	cmd.Flags().IntVar(&daysBack, "days-back", 7, "include the N days before today")
	return cmd
}
