package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/blackdavinci/guinea-election-monitor/internal/engine"
	"github.com/blackdavinci/guinea-election-monitor/internal/scoring"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// RelevantScore is the score from which a diagnosed article counts as
// relevant.
const RelevantScore = 0.5

// SampleArticle is one diagnosed article.
type SampleArticle struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Category      string     `json:"category"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	Score         float64    `json:"score"`
	Keywords      []string   `json:"keywords,omitempty"`
	ElectionCount int        `json:"election_count"`
}

// Diagnosis is the result of a dry crawl of one source. Nothing is stored.
type Diagnosis struct {
	Source       string             `json:"source"`
	Strategy     string             `json:"strategy"`
	Window       string             `json:"window"`
	Stats        engine.SourceStats `json:"stats"`
	Articles     int                `json:"articles"`
	Samples      []SampleArticle    `json:"samples"`
	AverageScore float64            `json:"average_score"`
	Relevant     int                `json:"relevant"`
}

// Diagnose crawls one source, active or not, and scores what it finds
// without persisting anything. sample bounds the listed articles.
func (m *Monitor) Diagnose(ctx context.Context, name string, w engine.Window, maxPages, sample int) (*Diagnosis, error) {
	src, ok := m.catalog.Find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSource, name)
	}
	src = *src.Normalize()
	if w.Kind == "" {
		w = engine.Today(m.clock.Now(), m.loc)
	}
	if maxPages <= 0 {
		maxPages = m.cfg.Scraping.MaxPages
	}
	log := m.logger.With("source", src.Name, "diagnose", true)

	crawler, closeFetcher, err := m.newCrawler(src, maxPages, log)
	if err != nil {
		return nil, err
	}
	defer closeFetcher()

	cands, stats := crawler.CrawlAll(ctx, w)
	d := &Diagnosis{
		Source:   src.Name,
		Strategy: src.Strategy,
		Window:   w.String(),
		Stats:    stats,
		Articles: len(cands),
	}

	var total float64
	for _, c := range cands {
		text := c.Title + " " + c.Content
		score, kws := m.scorer.Score(text)
		total += score
		if score >= RelevantScore {
			d.Relevant++
		}
		if len(d.Samples) < sample {
			d.Samples = append(d.Samples, SampleArticle{
				Title:         c.Title,
				URL:           c.URL,
				Category:      c.Category,
				PublishedAt:   c.PublishedAt,
				Score:         score,
				Keywords:      kws,
				ElectionCount: scoring.CountElectionMentions(text),
			})
		}
	}
	if len(cands) > 0 {
		d.AverageScore = total / float64(len(cands))
	}
	return d, nil
}

// WriteTable renders the per-category counts and the sampled articles.
func (d *Diagnosis) WriteTable(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s (%s)  %s", d.Source, d.Strategy, d.Window))
	t.AppendHeader(table.Row{"Category", "Pages", "Listed", "In window", "Too old", "Unknown", "Accepted", "Errors", "Stop"})
	for _, c := range d.Stats.Categories {
		t.AppendRow(table.Row{c.Category, c.Pages, c.Listed, c.InWindow, c.TooOld, c.UnknownDate, c.Accepted, c.FetchErrors, fmt.Sprintf("%s@%d", c.StopReason, c.StopPage)})
	}
	t.AppendFooter(table.Row{"Articles", d.Articles, "Avg score", fmt.Sprintf("%.3f", d.AverageScore), fmt.Sprintf(">= %.0f%%", RelevantScore*100), d.Relevant, "", "", ""})
	t.Render()

	if len(d.Samples) == 0 {
		return
	}
	s := table.NewWriter()
	s.SetOutputMirror(w)
	s.SetStyle(table.StyleLight)
	s.AppendHeader(table.Row{"Date", "Score", "Count", "Title", "Keywords"})
	for _, a := range d.Samples {
		date := "?"
		if a.PublishedAt != nil {
			date = a.PublishedAt.Format(time.DateOnly)
		}
		s.AppendRow(table.Row{date, fmt.Sprintf("%.3f", a.Score), a.ElectionCount, a.Title, fmt.Sprint(a.Keywords)})
	}
	s.Render()
}
