package main

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/blackdavinci/guinea-election-monitor/internal/engine"
	"github.com/blackdavinci/guinea-election-monitor/internal/monitor"
	"github.com/blackdavinci/guinea-election-monitor/internal/observability"
)

// scheduleCmd creates the "schedule" subcommand.
func scheduleCmd() *cobra.Command {
	var (
		cronExpr string
		daysBack int
		now      bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the scraper on a cron schedule",
		Long: `Run every active source on a cron schedule (schedule.cron, evaluated in
scraping.timezone) until interrupted. Each run covers today plus
schedule.days_back previous days. Metrics are served when metrics.enabled
is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging)

			var opts []monitor.Option
			if cfg.Metrics.Enabled {
				metrics := observability.NewMetrics(prometheus.NewRegistry(), logger)
				if err := metrics.StartServer(ctx, cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
					logger.Warn("failed to start metrics server", "error", err)
				}
				opts = append(opts, monitor.WithObserver(metrics))
			}

			a, err := newApp(ctx, opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			if cronExpr == "" {
				cronExpr = a.cfg.Schedule.Cron
			}
			if daysBack < 0 {
				daysBack = a.cfg.Schedule.DaysBack
			}
			log := a.logger.With("component", "schedule")

			// Runs never overlap; a tick that finds one in progress is skipped.
			var running sync.Mutex
			job := func() {
				if !running.TryLock() {
					log.Warn("previous run still in progress, tick skipped")
					return
				}
				defer running.Unlock()

				w := engine.DaysBack(a.monitor.Now(), daysBack, a.monitor.Location())
				report, err := a.monitor.Run(ctx, monitor.RunOptions{Window: w, Parallel: a.cfg.Scraping.Parallel})
				if err != nil {
					log.Error("scheduled run failed", "error", err)
					return
				}
				log.Info("scheduled run done", "run_id", report.RunID, "saved", report.ArticlesSaved)
			}

			c := cron.New(cron.WithLocation(a.monitor.Location()))
			if _, err := c.AddFunc(cronExpr, job); err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
			}
			c.Start()
			log.Info("scheduler started", "cron", cronExpr, "days_back", daysBack, "timezone", a.monitor.Location().String())

			if now {
				go job()
			}

			<-ctx.Done()
			log.Info("received signal, waiting for the current run")
			<-c.Stop().Done()
			running.Lock()
			running.Unlock()
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "cron expression (default schedule.cron)")
	cmd.Flags().IntVar(&daysBack, "days-back", -1, "previous days included in each run (default schedule.days_back)")
	cmd.Flags().BoolVar(&now, "now", false, "also run once immediately")
	return cmd
}
