package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackdavinci/guinea-election-monitor/internal/engine"
	"github.com/blackdavinci/guinea-election-monitor/internal/monitor"
)

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	var (
		list      bool
		daysBack  int
		yesterday bool
		maxPages  int
		parallel  int
	)

	cmd := &cobra.Command{
		Use:   "run [source...]",
		Short: "Scrape today's articles",
		Long: `Scrape every active source, or only the named ones, for the current
window. The window is today unless --days-back or --yesterday is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				return printSources(cfg)
			}
			if daysBack > 0 && yesterday {
				return fmt.Errorf("--days-back and --yesterday are exclusive")
			}

			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if daysBack == 0 {
				daysBack = a.cfg.Scraping.DaysBack
			}
			now, loc := a.monitor.Now(), a.monitor.Location()
			var w engine.Window
			switch {
			case yesterday:
				w = engine.Yesterday(now, loc)
			case daysBack > 0:
				w = engine.DaysBack(now, daysBack, loc)
			default:
				w = engine.Today(now, loc)
			}
			if parallel == 0 {
				parallel = a.cfg.Scraping.Parallel
			}

			report, err := a.monitor.Run(ctx, monitor.RunOptions{
				Sources:  args,
				Window:   w,
				MaxPages: maxPages,
				Parallel: parallel,
			})
			if err != nil {
				return err
			}
			return finishReport(report)
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list configured sources and exit")
	cmd.Flags().IntVar(&daysBack, "days-back", 0, "include the N days before today")
	cmd.Flags().BoolVar(&yesterday, "yesterday", false, "scrape yesterday only")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "listing pages per category (0 = scraping.max_pages)")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "sources crawled at once (0 = scraping.parallel)")
	return cmd
}

// backfillCmd creates the "backfill" subcommand.
func backfillCmd() *cobra.Command {
	var (
		from, to string
		maxPages int
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "backfill [source...]",
		Short: "Scrape an explicit date range",
		Long: `Scrape every active source, or only the named ones, for the inclusive
date range --from..--to (YYYY-MM-DD). --to defaults to today.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				return fmt.Errorf("--from is required")
			}

			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			loc := a.monitor.Location()
			start, err := time.ParseInLocation(time.DateOnly, from, loc)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			end := a.monitor.Now().In(loc)
			if to != "" {
				if end, err = time.ParseInLocation(time.DateOnly, to, loc); err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
			}
			if parallel == 0 {
				parallel = a.cfg.Scraping.Parallel
			}

			report, err := a.monitor.Backfill(ctx, args, start, end, maxPages, parallel)
			if err != nil {
				return err
			}
			return finishReport(report)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD), default today")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "listing pages per category (0 = scraping.backfill_max_pages)")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "sources crawled at once (0 = scraping.parallel)")
	return cmd
}

// finishReport prints the run summary. A run where every source failed
// exits non-zero.
func finishReport(r *monitor.Report) error {
	r.WriteTable(os.Stdout)
	if r.Failed() {
		return errRunFailed
	}
	return nil
}
