package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/storage"
)

// runsCmd creates the "runs" subcommand listing recent scraping logs.
func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent scraping logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			h, ok := a.store.(storage.RunHistory)
			if !ok {
				return fmt.Errorf("%s storage keeps no run history", a.store.Name())
			}
			runs, err := h.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Started", "Source", "Status", "Found", "Saved", "Skipped", "Took", "Error"})
			loc := a.monitor.Location()
			for _, r := range runs {
				t.AppendRow(table.Row{
					r.StartedAt.In(loc).Format(time.DateTime),
					r.Source,
					r.Status,
					r.ArticlesFound,
					r.ArticlesSaved,
					r.ArticlesSkipped,
					r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
					r.ErrorMessage,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records")
	return cmd
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("electionwatch %s\n", config.Version)
		},
	}
}
