// Package monitor orchestrates runs: one crawl per source, post-processing,
// persistence, run bookkeeping and notification.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/dedup"
	"github.com/blackdavinci/guinea-election-monitor/internal/engine"
	"github.com/blackdavinci/guinea-election-monitor/internal/fetcher"
	"github.com/blackdavinci/guinea-election-monitor/internal/parser"
	"github.com/blackdavinci/guinea-election-monitor/internal/pipeline"
	"github.com/blackdavinci/guinea-election-monitor/internal/scoring"
	"github.com/blackdavinci/guinea-election-monitor/internal/storage"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// SourceFetcher is the fetch stack of one source.
type SourceFetcher interface {
	engine.Fetcher
	Close() error
}

// FetcherFactory builds a fresh fetch stack for a source run.
type FetcherFactory func(src config.Source) (SourceFetcher, error)

// persistTimeout bounds post-processing and storage once a crawl is over,
// including after the source timeout expired.
const persistTimeout = 2 * time.Minute

// Observer receives run outcomes, typically to export metrics.
type Observer interface {
	ObserveSource(r *SourceResult)
	ObserveRun(r *Report)
}

// Monitor runs sources against the configured store.
type Monitor struct {
	cfg      *config.Config
	catalog  *config.Catalog
	store    storage.ArticleStore
	scorer   *scoring.Scorer
	fetchers FetcherFactory
	notifier Notifier
	observer Observer
	clock    fetcher.Clock
	loc      *time.Location
	logger   *slog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithFetcherFactory replaces the tiered fetch stack.
func WithFetcherFactory(f FetcherFactory) Option {
	return func(m *Monitor) { m.fetchers = f }
}

// WithNotifier sets the notifier called after every run.
func WithNotifier(n Notifier) Option {
	return func(m *Monitor) { m.notifier = n }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

// WithClock sets the clock used for windows, timestamps and delays.
func WithClock(c fetcher.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// New creates a Monitor. The catalog is read-only for the monitor's life.
func New(cfg *config.Config, catalog *config.Catalog, store storage.ArticleStore, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		catalog: catalog,
		store:   store,
		scorer:  scoring.NewScorer(catalog.Taxonomy),
		clock:   fetcher.SystemClock{},
		loc:     cfg.Scraping.Location(),
		logger:  logger.With("component", "monitor"),
	}
	for _, o := range opts {
		o(m)
	}
	if m.notifier == nil {
		m.notifier = NewLogNotifier(logger)
	}
	if m.fetchers == nil {
		m.fetchers = m.tieredFetchers(logger)
	}
	return m
}

func (m *Monitor) tieredFetchers(logger *slog.Logger) FetcherFactory {
	settings := fetcher.NewSettings(m.cfg.Fetcher, m.clock)
	return func(src config.Source) (SourceFetcher, error) {
		agents := fetcher.NewUserAgentPool(m.cfg.Fetcher.UserAgents, m.cfg.Fetcher.UserAgentRotation, nil)
		return fetcher.Build(src, settings, agents, logger, fetcher.Options{})
	}
}

// Location returns the timezone windows are computed in.
func (m *Monitor) Location() *time.Location { return m.loc }

// Now returns the monitor clock's current time.
func (m *Monitor) Now() time.Time { return m.clock.Now() }

// RunOptions selects what a run covers.
type RunOptions struct {
	// Sources restricts the run to these names. Empty means every active
	// source.
	Sources []string
	Window  engine.Window
	// MaxPages overrides scraping.max_pages when positive.
	MaxPages int
	// Parallel is the number of sources crawled at once. Values below 2
	// run sources sequentially.
	Parallel int
}

// Run crawls the selected sources and returns the run report. The error is
// non-nil only when the run could not start; per-source failures are
// reported in the Report.
func (m *Monitor) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	sources, unknown := m.catalog.Active(opts.Sources)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSource, strings.Join(unknown, ", "))
	}
	if len(sources) == 0 {
		return nil, errors.New("no active sources selected")
	}
	if opts.Window.Kind == "" {
		opts.Window = engine.Today(m.clock.Now(), m.loc)
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = m.cfg.Scraping.MaxPages
	}

	report := newReport(uuid.NewString(), opts.Window, m.clock.Now())
	log := m.logger.With("run_id", report.RunID)
	log.Info("run started", "sources", len(sources), "window", opts.Window.String(), "max_pages", opts.MaxPages)

	results := make([]SourceResult, len(sources))
	var g errgroup.Group
	if opts.Parallel > 1 {
		g.SetLimit(opts.Parallel)
	} else {
		g.SetLimit(1)
	}
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = m.runSource(ctx, report.RunID, src, opts)
			return nil
		})
	}
	g.Wait()

	report.finish(results, m.clock.Now())
	log.Info("run finished",
		"processed", report.SourcesProcessed,
		"succeeded", report.SourcesSucceeded,
		"failed", report.SourcesFailed,
		"found", report.ArticlesFound,
		"saved", report.ArticlesSaved,
		"duration", report.Duration,
	)

	if m.observer != nil {
		m.observer.ObserveRun(report)
	}
	if err := m.notifier.Notify(ctx, report); err != nil {
		log.Warn("notifier failed", "error", err)
	}
	return report, nil
}

// Backfill runs the selected sources over an explicit date range with a
// larger page bound.
func (m *Monitor) Backfill(ctx context.Context, sources []string, start, end time.Time, maxPages, parallel int) (*Report, error) {
	w, err := engine.Range(start, end, m.loc)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = m.cfg.Scraping.BackfillMaxPages
	}
	return m.Run(ctx, RunOptions{Sources: sources, Window: w, MaxPages: maxPages, Parallel: parallel})
}

// runSource never returns an error: every failure, panics included, is
// captured in the result so other sources keep running.
func (m *Monitor) runSource(ctx context.Context, runID string, src config.Source, opts RunOptions) (res SourceResult) {
	src = *src.Normalize()
	started := m.clock.Now()
	res = SourceResult{
		Source:   src.Name,
		Strategy: src.Strategy,
		Mode:     pipeline.ModeFor(src.Strategy),
		Status:   storage.StatusFailed,
	}
	log := m.logger.With("source", src.Name, "run_id", runID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("source panicked", "panic", r, "stack", string(debug.Stack()))
			res.Status = storage.StatusFailed
			res.Err = fmt.Sprintf("panic: %v", r)
		}
		res.duration = m.clock.Now().Sub(started)
		res.Duration = res.duration.String()
		m.logRun(ctx, runID, &res, started, log)
		if m.observer != nil {
			m.observer.ObserveSource(&res)
		}
	}()

	if d := m.cfg.Scraping.SourceTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	crawler, closeFetcher, err := m.newCrawler(src, opts.MaxPages, log)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	defer closeFetcher()

	cands, stats := crawler.CrawlAll(ctx, opts.Window)
	res.Stats = stats
	res.Found = len(cands)
	if stats.AllFailed() {
		res.Err = (&types.SourceError{Source: src.Name, Stage: "crawl", Err: types.ErrAllTiersFailed}).Error()
		return res
	}
	var abandoned error
	if err := ctx.Err(); err != nil {
		abandoned = err
	} else if stats.StopReasons()[engine.StopCanceled] > 0 {
		abandoned = context.Canceled
	}
	if abandoned != nil {
		res.Err = (&types.SourceError{Source: src.Name, Stage: "crawl", Err: abandoned}).Error()
		log.Warn("source abandoned, keeping partial results", "error", abandoned, "found", res.Found)
	}

	// What was collected before a timeout is still processed and stored.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()

	pipe := pipeline.ForMode(res.Mode, pipeline.Deps{
		Scorer:             m.scorer,
		RelevanceThreshold: m.cfg.Scraping.RelevanceThreshold,
		Deduper:            dedup.New(log),
		Store:              m.store,
		Now:                m.clock.Now,
	}, log)
	out := pipe.Run(persistCtx, cands)
	res.Kept = len(out.Kept)
	res.Dropped = out.Dropped

	created, _, err := m.store.BulkCreate(persistCtx, out.Kept)
	if err != nil {
		res.Skipped = res.Found
		res.Err = (&types.SourceError{Source: src.Name, Stage: "store", Err: err}).Error()
		return res
	}
	res.Saved = created
	res.Skipped = res.Found - created

	for _, c := range out.Kept {
		if c.HighRelevance() {
			res.Highlights = append(res.Highlights, highlightOf(c))
		}
	}

	switch {
	case abandoned != nil && created == 0:
		res.Status = storage.StatusFailed
	case abandoned != nil, created == 0:
		res.Status = storage.StatusPartial
	default:
		res.Status = storage.StatusSuccess
	}
	log.Info("source done",
		"status", res.Status,
		"found", res.Found,
		"saved", res.Saved,
		"skipped", res.Skipped,
		"stops", stats.StopReasons(),
	)
	return res
}

// newCrawler wires the fetch stack, strategy and throttles of one source.
// The returned func closes the fetch stack.
func (m *Monitor) newCrawler(src config.Source, maxPages int, log *slog.Logger) (*engine.Crawler, func() error, error) {
	f, err := m.fetchers(src)
	if err != nil {
		return nil, nil, &types.SourceError{Source: src.Name, Stage: "fetcher", Err: err}
	}
	strategy, err := parser.New(src, m.loc, log)
	if err != nil {
		f.Close()
		return nil, nil, &types.SourceError{Source: src.Name, Stage: "strategy", Err: err}
	}

	crawler := engine.NewCrawler(src, f, strategy, engine.NewSeenSet(256), engine.Options{
		MaxPages:           maxPages,
		MaxArticlesPerPage: m.cfg.Scraping.MaxArticlesPerPage,
		MinPageSize:        m.cfg.Scraping.MinPageSize,
		PinnedPosts:        m.cfg.Scraping.PinnedPosts,
	}, log,
		engine.WithArticleDelay(fetcher.NewThrottle(m.cfg.Scraping.RequestDelay, m.clock, nil)),
		engine.WithListDelay(m.listThrottle()),
		engine.WithLocation(m.loc),
	)
	return crawler, f.Close, nil
}

// listThrottle paces listing pages. A zero list_page_delay disables it.
func (m *Monitor) listThrottle() *fetcher.Throttle {
	d := m.cfg.Scraping.ListPageDelay
	t := fetcher.NewThrottle(d, m.clock, nil)
	if d <= 0 {
		t.WithJitter(0)
	}
	return t
}

func (m *Monitor) logRun(ctx context.Context, runID string, res *SourceResult, started time.Time, log *slog.Logger) {
	entry := storage.RunLog{
		RunID:           runID,
		Source:          res.Source,
		Status:          res.Status,
		ArticlesFound:   res.Found,
		ArticlesSaved:   res.Saved,
		ArticlesSkipped: res.Skipped,
		ErrorMessage:    res.Err,
		StartedAt:       started.UTC(),
		FinishedAt:      m.clock.Now().UTC(),
	}
	// The source context may have expired; the log write gets its own.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := m.store.LogRun(logCtx, entry); err != nil {
		log.Warn("scraping log write failed", "error", err)
	}
}
