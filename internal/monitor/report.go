package monitor

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/blackdavinci/guinea-election-monitor/internal/engine"
	"github.com/blackdavinci/guinea-election-monitor/internal/storage"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// Highlight is a high-relevance article surfaced to notifiers.
type Highlight struct {
	Title    string          `json:"title"`
	URL      string          `json:"url"`
	Source   string          `json:"source"`
	Mode     types.ScoreMode `json:"mode"`
	Score    float64         `json:"score"`
	Priority bool            `json:"priority"`
}

func highlightOf(c *types.Candidate) Highlight {
	return Highlight{
		Title:    c.Title,
		URL:      c.URL,
		Source:   c.Source,
		Mode:     c.Mode,
		Score:    c.Rank(),
		Priority: c.HighPriority(),
	}
}

// SourceResult is the outcome of one source run.
type SourceResult struct {
	Source     string             `json:"source"`
	Strategy   string             `json:"strategy"`
	Mode       types.ScoreMode    `json:"mode"`
	Status     string             `json:"status"`
	Found      int                `json:"found"`
	Kept       int                `json:"kept"`
	Saved      int                `json:"saved"`
	Skipped    int                `json:"skipped"`
	Dropped    map[string]int     `json:"dropped,omitempty"`
	Highlights []Highlight        `json:"highlights,omitempty"`
	Stats      engine.SourceStats `json:"stats"`
	Err        string             `json:"error,omitempty"`
	Duration   string             `json:"duration"`
	duration   time.Duration
}

// Elapsed returns the source run duration.
func (r *SourceResult) Elapsed() time.Duration { return r.duration }

// Report summarizes a run across sources.
type Report struct {
	RunID            string         `json:"run_id"`
	Window           string         `json:"window"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	Duration         string         `json:"duration"`
	SourcesProcessed int            `json:"sources_processed"`
	SourcesSucceeded int            `json:"sources_succeeded"`
	SourcesPartial   int            `json:"sources_partial"`
	SourcesFailed    int            `json:"sources_failed"`
	ArticlesFound    int            `json:"articles_found"`
	ArticlesSaved    int            `json:"articles_saved"`
	ArticlesSkipped  int            `json:"articles_skipped"`
	HighRelevance    []Highlight    `json:"high_relevance,omitempty"`
	Sources          []SourceResult `json:"sources"`
}

func newReport(runID string, w engine.Window, started time.Time) *Report {
	return &Report{RunID: runID, Window: w.String(), StartedAt: started}
}

func (r *Report) finish(results []SourceResult, finished time.Time) {
	r.FinishedAt = finished
	r.Duration = finished.Sub(r.StartedAt).String()
	r.Sources = results
	for _, s := range results {
		r.SourcesProcessed++
		switch s.Status {
		case storage.StatusSuccess:
			r.SourcesSucceeded++
		case storage.StatusPartial:
			r.SourcesPartial++
		default:
			r.SourcesFailed++
		}
		r.ArticlesFound += s.Found
		r.ArticlesSaved += s.Saved
		r.ArticlesSkipped += s.Skipped
		r.HighRelevance = append(r.HighRelevance, s.Highlights...)
	}
	sort.SliceStable(r.HighRelevance, func(i, j int) bool {
		a, b := r.HighRelevance[i], r.HighRelevance[j]
		if a.Priority != b.Priority {
			return a.Priority
		}
		return a.Score > b.Score
	})
}

// Failed reports whether every processed source failed.
func (r *Report) Failed() bool {
	return r.SourcesProcessed > 0 && r.SourcesFailed == r.SourcesProcessed
}

// WriteTable renders the per-source summary.
func (r *Report) WriteTable(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("Run %s  %s", r.RunID, r.Window))
	t.AppendHeader(table.Row{"Source", "Mode", "Status", "Pages", "Found", "Saved", "Skipped", "Stops", "Duration"})
	for _, s := range r.Sources {
		totals := s.Stats.Totals()
		t.AppendRow(table.Row{s.Source, s.Mode, s.Status, totals.Pages, s.Found, s.Saved, s.Skipped, formatStops(s.Stats.StopReasons()), s.Duration})
	}
	t.AppendFooter(table.Row{"Total", "", fmt.Sprintf("%d/%d ok", r.SourcesSucceeded, r.SourcesProcessed), "", r.ArticlesFound, r.ArticlesSaved, r.ArticlesSkipped, "", r.Duration})
	t.Render()

	if len(r.HighRelevance) == 0 {
		return
	}
	h := table.NewWriter()
	h.SetOutputMirror(w)
	h.SetStyle(table.StyleLight)
	h.SetTitle("High relevance")
	h.AppendHeader(table.Row{"Source", "Score", "Priority", "Title", "URL"})
	for _, a := range r.HighRelevance {
		score := fmt.Sprintf("%.3f", a.Score)
		if a.Mode == types.ModeElectionCount {
			score = fmt.Sprintf("%d", int(a.Score))
		}
		priority := ""
		if a.Priority {
			priority = "high"
		}
		h.AppendRow(table.Row{a.Source, score, priority, a.Title, a.URL})
	}
	h.Render()
}

func formatStops(stops map[engine.StopReason]int) string {
	keys := make([]string, 0, len(stops))
	for k := range stops {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s:%d", k, stops[engine.StopReason(k)])
	}
	return out
}
