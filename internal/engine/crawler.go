// Package engine implements the date-windowed pagination crawler that walks
// a source's category listings and extracts in-window articles.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/parser"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// Fetcher is the part of the fetch layer the crawler depends on.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
}

// Waiter blocks before a fetch to rate-limit a source.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Options bounds a category crawl.
type Options struct {
	// MaxPages stops pagination after this many pages. Zero means no bound.
	MaxPages int
	// MaxArticlesPerPage truncates long listings. Zero means no bound.
	MaxArticlesPerPage int
	// MinPageSize marks a listing with fewer entries as the last page.
	// Zero disables the check.
	MinPageSize int
	// PinnedPosts leading entries per page never count toward the too-old
	// tally, so sticky posts cannot end pagination early.
	PinnedPosts int
}

// Crawler walks the categories of one source. It is not safe for
// concurrent use: the stop-on-staleness decision depends on pages being
// processed in order.
type Crawler struct {
	source   config.Source
	fetcher  Fetcher
	strategy parser.Strategy
	seen     *SeenSet
	opts     Options

	articleDelay Waiter
	listDelay    Waiter
	loc          *time.Location
	logger       *slog.Logger
}

// CrawlerOption configures a Crawler.
type CrawlerOption func(*Crawler)

// WithArticleDelay throttles every article fetch.
func WithArticleDelay(w Waiter) CrawlerOption {
	return func(c *Crawler) { c.articleDelay = w }
}

// WithListDelay throttles listing pages after the first.
func WithListDelay(w Waiter) CrawlerOption {
	return func(c *Crawler) { c.listDelay = w }
}

// WithLocation sets the zone used for URL-embedded dates.
func WithLocation(loc *time.Location) CrawlerOption {
	return func(c *Crawler) { c.loc = loc }
}

// NewCrawler creates a crawler for src. The seen set is shared by every
// category of the same source run.
func NewCrawler(src config.Source, f Fetcher, strategy parser.Strategy, seen *SeenSet, opts Options, logger *slog.Logger, mods ...CrawlerOption) *Crawler {
	if seen == nil {
		seen = NewSeenSet(256)
	}
	c := &Crawler{
		source:   src,
		fetcher:  f,
		strategy: strategy,
		seen:     seen,
		opts:     opts,
		loc:      time.UTC,
		logger:   logger.With("component", "crawler", "source", src.Name),
	}
	for _, m := range mods {
		m(c)
	}
	return c
}

// fetchCandidate is a listing entry selected for a content fetch.
type fetchCandidate struct {
	entry types.ListEntry
	date  *time.Time
}

// Crawl paginates one category, returning accepted candidates and the
// crawl statistics. Fetch failures of single articles are counted and
// skipped; a failed listing fetch ends the category.
func (c *Crawler) Crawl(ctx context.Context, cat config.Category, w Window) ([]*types.Candidate, CategoryStats) {
	start := time.Now()
	stats := CategoryStats{Category: cat.Label, URL: cat.URL}
	log := c.logger.With("category", cat.Label)

	var accepted []*types.Candidate
	stop := func(page int, reason StopReason) ([]*types.Candidate, CategoryStats) {
		stats.StopReason = reason
		stats.StopPage = page
		stats.duration = time.Since(start)
		stats.Duration = stats.duration.String()
		log.Info("category done",
			"window", w.String(),
			"pages", stats.Pages,
			"accepted", stats.Accepted,
			"too_old", stats.TooOld,
			"stop", reason,
		)
		return accepted, stats
	}

	for page := 1; ; page++ {
		if ctx.Err() != nil {
			return stop(page, StopCanceled)
		}
		if page > 1 && c.listDelay != nil {
			if err := c.listDelay.Wait(ctx); err != nil {
				return stop(page, StopCanceled)
			}
		}

		pageURL := c.source.PageURL(cat.URL, page)
		entries, err := c.fetchList(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return stop(page, StopCanceled)
			}
			log.Warn("listing fetch failed", "url", pageURL, "page", page, "error", err)
			stats.Err = err.Error()
			return stop(page, StopFetchFailed)
		}
		stats.Pages++

		if len(entries) == 0 {
			log.Debug("empty listing", "url", pageURL, "page", page)
			return stop(page, StopEmptyList)
		}
		if c.opts.MaxArticlesPerPage > 0 && len(entries) > c.opts.MaxArticlesPerPage {
			entries = entries[:c.opts.MaxArticlesPerPage]
		}
		stats.Listed += len(entries)

		// Filter on listing metadata.
		var toFetch []fetchCandidate
		pageOld, pageIn, pageUnknown := 0, 0, 0
		for i, e := range entries {
			if !c.seen.MarkSeen(e.URL) {
				stats.Duplicates++
				continue
			}
			date := e.PublishedAt
			if date == nil {
				date = parser.DateFromURL(e.URL, c.loc)
			}
			switch w.Classify(date) {
			case TooOld:
				stats.TooOld++
				if i >= c.opts.PinnedPosts {
					pageOld++
				}
			case TooRecent:
				stats.TooRecent++
			case InWindow:
				stats.InWindow++
				pageIn++
				toFetch = append(toFetch, fetchCandidate{entry: e, date: date})
			default:
				stats.UnknownDate++
				pageUnknown++
				toFetch = append(toFetch, fetchCandidate{entry: e, date: nil})
			}
		}

		// Fetch and re-check with the content date.
		for _, fc := range toFetch {
			cand, ok, err := c.scrape(ctx, fc, cat, w)
			if err != nil {
				if ctx.Err() != nil {
					return stop(page, StopCanceled)
				}
				stats.FetchErrors++
				log.Warn("article fetch failed", "url", fc.entry.URL, "error", err)
				continue
			}
			stats.Fetched++
			if !ok {
				stats.Rejected++
				continue
			}
			stats.Accepted++
			accepted = append(accepted, cand)
		}

		log.Debug("page processed",
			"page", page,
			"entries", len(entries),
			"in_window", pageIn,
			"unknown", pageUnknown,
			"too_old", pageOld,
		)

		switch {
		case pageOld > 0 && pageIn == 0 && pageUnknown == 0:
			return stop(page, StopExhausted)
		case c.opts.MinPageSize > 0 && len(entries) < c.opts.MinPageSize:
			return stop(page, StopShortPage)
		case c.opts.MaxPages > 0 && page >= c.opts.MaxPages:
			return stop(page, StopMaxPages)
		}
	}
}

func (c *Crawler) fetchList(ctx context.Context, pageURL string) ([]types.ListEntry, error) {
	resp, err := c.fetch(ctx, pageURL, types.KindList)
	if err != nil {
		return nil, err
	}
	return c.strategy.ParseList(resp.Text())
}

// scrape fetches one article. ok is false when the content date places the
// article outside the window.
func (c *Crawler) scrape(ctx context.Context, fc fetchCandidate, cat config.Category, w Window) (*types.Candidate, bool, error) {
	if c.articleDelay != nil {
		if err := c.articleDelay.Wait(ctx); err != nil {
			return nil, false, err
		}
	}
	resp, err := c.fetch(ctx, fc.entry.URL, types.KindArticle)
	if err != nil {
		return nil, false, err
	}
	content, err := c.strategy.ParseContent(resp.Text())
	if err != nil {
		return nil, false, err
	}

	date := content.PublishedAt
	if date == nil {
		date = fc.date
	}
	if !w.Accepts(date) {
		c.logger.Debug("rejected by content date", "url", fc.entry.URL, "date", date)
		return nil, false, nil
	}

	title := content.Title
	if title == "" {
		title = fc.entry.Title
	}
	return &types.Candidate{
		Title:       title,
		URL:         fc.entry.URL,
		PublishedAt: date,
		Content:     content.Content,
		Tags:        content.Tags,
		Category:    cat.Label,
		Source:      c.source.Name,
	}, true, nil
}

func (c *Crawler) fetch(ctx context.Context, rawURL, kind string) (*types.Response, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	req.Kind = kind
	req.Encoding = c.source.Encoding
	req.Source = c.source.Name
	return c.fetcher.Fetch(ctx, req)
}

// CrawlAll crawls every category of the source with one shared seen set.
// Categories are independent: a failed category does not stop the others.
func (c *Crawler) CrawlAll(ctx context.Context, w Window) ([]*types.Candidate, SourceStats) {
	stats := SourceStats{Source: c.source.Name}
	var all []*types.Candidate
	for _, cat := range c.source.Categories {
		if ctx.Err() != nil {
			stats.Add(CategoryStats{Category: cat.Label, URL: cat.URL, StopReason: StopCanceled, StopPage: 1})
			continue
		}
		cands, cs := c.Crawl(ctx, cat, w)
		all = append(all, cands...)
		stats.Add(cs)
	}
	return all, stats
}
