package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/engine"
	"github.com/blackdavinci/guinea-election-monitor/internal/fetcher"
	"github.com/blackdavinci/guinea-election-monitor/internal/storage"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var testNow = time.Date(2025, 12, 10, 10, 0, 0, 0, time.UTC)

const (
	electionBody = "La CENI a annoncé le calendrier de l'élection présidentielle. Le scrutin se tiendra en décembre et les électeurs sont appelés aux urnes dans tout le pays."
	footballBody = "Le Syli national s'est imposé face au Mali au stade du 28 septembre devant un public conquis, une belle victoire pour la sélection guinéenne."
)

type pageFetcher struct {
	pages map[string]string
	// hang lists URLs whose fetch blocks until the context is done.
	hang map[string]bool
}

func (f *pageFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	u := req.URLString()
	if f.hang[u] {
		<-ctx.Done()
		return nil, &types.FetchError{URL: u, Err: ctx.Err()}
	}
	body, ok := f.pages[u]
	if !ok {
		return nil, &types.FetchError{URL: u, Err: types.ErrAllTiersFailed}
	}
	return types.NewRawResponse(req, "fake", []byte(body), u, 0), nil
}

func (f *pageFetcher) Close() error { return nil }

type article struct {
	slug, title, body string
	date              time.Time
}

// site renders a one-page category listing and its articles.
func site(pages map[string]string, base, headingClass string, articles ...article) {
	var list strings.Builder
	list.WriteString("<html><body>")
	for _, a := range articles {
		fmt.Fprintf(&list, `<article><h2 class="%s"><a href="/%s/">%s</a></h2><time datetime="%s">date</time></article>`,
			headingClass, a.slug, a.title, a.date.Format(time.RFC3339))
		pages[base+"/"+a.slug+"/"] = fmt.Sprintf(
			`<html><body><h1 class="entry-title">%s</h1><div class="content entry-content"><p>%s</p></div></body></html>`,
			a.title, a.body)
	}
	list.WriteString("</body></html>")
	pages[base+"/politique/"] = list.String()
}

func testCatalog() *config.Catalog {
	return &config.Catalog{
		Sources: []config.Source{
			{
				Name: "Generique", BaseURL: "https://gen.gn", Strategy: config.StrategyGeneric, Active: true,
				Categories: []config.Category{{URL: "https://gen.gn/politique/", Label: "Politique"}},
			},
			{
				Name: "Presse WP", BaseURL: "https://wp.gn", Strategy: config.StrategyWordPress, Active: true,
				Categories: []config.Category{{URL: "https://wp.gn/politique/", Label: "Politique"}},
			},
			{
				Name: "Hors ligne", BaseURL: "https://down.gn", Strategy: config.StrategyGeneric, Active: true,
				Categories: []config.Category{{URL: "https://down.gn/politique/", Label: "Politique"}},
			},
			{
				Name: "Archive", BaseURL: "https://old.gn", Strategy: config.StrategyGeneric, Active: false,
				Categories: []config.Category{{URL: "https://old.gn/politique/", Label: "Politique"}},
			},
		},
		Taxonomy: config.Taxonomy{Categories: []config.KeywordCategory{
			{Name: "election", Mandatory: true, Weight: 1, Terms: []config.Keyword{
				{Term: "élection", Weight: 1},
				{Term: "CENI", Weight: 1},
				{Term: "scrutin", Weight: 0.5},
			}},
		}},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scraping.Timezone = "UTC"
	cfg.Scraping.MinPageSize = 0
	cfg.Scraping.MaxPages = 1
	return cfg
}

func testPages() map[string]string {
	pages := make(map[string]string)
	today := testNow.Add(-2 * time.Hour)
	site(pages, "https://gen.gn", "title",
		article{"a1", "La CENI publie le calendrier électoral", electionBody, today},
		article{"a2", "Présidentielle: le scrutin fixé au 28 décembre", electionBody + " Les candidats sont connus.", today},
		article{"a3", "Le Syli national s'impose face au Mali", footballBody, today},
	)
	site(pages, "https://wp.gn", "entry-title",
		article{"w1", "Élections: les bureaux de vote ouverts", electionBody, today},
		article{"w2", "Le Syli national en stage à Conakry", footballBody, today},
		article{"w3", "Le marché de Madina rénové cette année", footballBody + " Travaux.", today},
	)
	return pages
}

func newTestMonitor(t *testing.T, store storage.ArticleStore, opts ...Option) (*Monitor, *fetcher.FakeClock) {
	t.Helper()
	return newMonitorWith(t, testConfig(), testCatalog(), &pageFetcher{pages: testPages()}, store, opts...)
}

func newMonitorWith(t *testing.T, cfg *config.Config, catalog *config.Catalog, f *pageFetcher, store storage.ArticleStore, opts ...Option) (*Monitor, *fetcher.FakeClock) {
	t.Helper()
	clock := fetcher.NewFakeClock(testNow)
	all := append([]Option{
		WithClock(clock),
		WithFetcherFactory(func(src config.Source) (SourceFetcher, error) {
			return f, nil
		}),
	}, opts...)
	return New(cfg, catalog, store, testLogger, all...), clock
}

func resultFor(r *Report, name string) *SourceResult {
	for i := range r.Sources {
		if r.Sources[i].Source == name {
			return &r.Sources[i]
		}
	}
	return nil
}

func TestRunEndToEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	m, _ := newTestMonitor(t, store)

	report, err := m.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.RunID == "" || report.SourcesProcessed != 3 {
		t.Fatalf("report: %+v", report)
	}

	gen := resultFor(report, "Generique")
	if gen.Status != storage.StatusSuccess || gen.Mode != types.ModeRelevance {
		t.Errorf("generic: status=%s mode=%s err=%s", gen.Status, gen.Mode, gen.Err)
	}
	if gen.Found != 3 || gen.Saved != 2 || gen.Skipped != 1 {
		t.Errorf("generic counts: found=%d saved=%d skipped=%d dropped=%v", gen.Found, gen.Saved, gen.Skipped, gen.Dropped)
	}

	wp := resultFor(report, "Presse WP")
	if wp.Status != storage.StatusSuccess || wp.Mode != types.ModeElectionCount {
		t.Errorf("wordpress: status=%s mode=%s err=%s", wp.Status, wp.Mode, wp.Err)
	}
	if wp.Saved != 3 {
		t.Errorf("count mode keeps every valid article, saved=%d", wp.Saved)
	}

	down := resultFor(report, "Hors ligne")
	if down.Status != storage.StatusFailed || down.Err == "" {
		t.Errorf("unreachable source: status=%s err=%q", down.Status, down.Err)
	}
	if report.Failed() {
		t.Error("run with successful sources must not be failed")
	}
	if report.SourcesSucceeded != 2 || report.SourcesFailed != 1 {
		t.Errorf("succeeded=%d failed=%d", report.SourcesSucceeded, report.SourcesFailed)
	}
	if report.ArticlesSaved != 5 {
		t.Errorf("saved=%d", report.ArticlesSaved)
	}

	if len(report.HighRelevance) == 0 {
		t.Fatal("expected high-relevance articles")
	}
	for _, h := range report.HighRelevance {
		if h.Mode == types.ModeRelevance && h.Score < types.HighRelevanceScore {
			t.Errorf("highlight below threshold: %+v", h)
		}
	}

	if len(store.Runs()) != 3 {
		t.Errorf("expected one scraping log per source, got %d", len(store.Runs()))
	}
	for _, c := range store.Articles() {
		if c.GUID == "" || c.Summary == "" || c.ImportedAt.IsZero() {
			t.Errorf("stored article not enriched: %+v", c)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	m, _ := newTestMonitor(t, store)
	ctx := context.Background()

	if _, err := m.Run(ctx, RunOptions{Sources: []string{"generique"}}); err != nil {
		t.Fatal(err)
	}
	report, err := m.Run(ctx, RunOptions{Sources: []string{"generique"}})
	if err != nil {
		t.Fatal(err)
	}
	gen := resultFor(report, "Generique")
	if gen.Saved != 0 || gen.Status != storage.StatusPartial {
		t.Errorf("second run: saved=%d status=%s", gen.Saved, gen.Status)
	}
	if gen.Dropped["exists"] != 2 {
		t.Errorf("persisted articles should be dropped by the exists check: %v", gen.Dropped)
	}
	if len(store.Articles()) != 2 {
		t.Errorf("store has %d articles", len(store.Articles()))
	}
}

func TestRunSelection(t *testing.T) {
	m, _ := newTestMonitor(t, storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := m.Run(ctx, RunOptions{Sources: []string{"nope"}}); !errors.Is(err, types.ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
	if _, err := m.Run(ctx, RunOptions{Sources: []string{"archive"}}); err == nil {
		t.Error("inactive source alone should leave nothing to run")
	}
}

func TestRunAllFailed(t *testing.T) {
	m, _ := newTestMonitor(t, storage.NewMemoryStore())
	report, err := m.Run(context.Background(), RunOptions{Sources: []string{"hors ligne"}})
	if err != nil {
		t.Fatal(err)
	}
	if !report.Failed() {
		t.Error("run where every source failed must be failed")
	}
	down := resultFor(report, "Hors ligne")
	if got := down.Stats.StopReasons()[engine.StopFetchFailed]; got != 1 {
		t.Errorf("stop reasons: %v", down.Stats.StopReasons())
	}
}

func TestRunRecoversPanics(t *testing.T) {
	store := storage.NewMemoryStore()
	m, _ := newTestMonitor(t, store)
	inner := m.fetchers
	m.fetchers = func(src config.Source) (SourceFetcher, error) {
		if src.Name == "Presse WP" {
			panic("selector exploded")
		}
		return inner(src)
	}

	report, err := m.Run(context.Background(), RunOptions{Parallel: 3})
	if err != nil {
		t.Fatal(err)
	}
	wp := resultFor(report, "Presse WP")
	if wp.Status != storage.StatusFailed || !strings.Contains(wp.Err, "selector exploded") {
		t.Errorf("panic not captured: %+v", wp)
	}
	if gen := resultFor(report, "Generique"); gen.Status != storage.StatusSuccess {
		t.Errorf("other sources must keep running: %s", gen.Status)
	}
	if len(store.Runs()) != 3 {
		t.Errorf("panicking source still needs a scraping log, got %d", len(store.Runs()))
	}
}

func TestRunWindowExcludesOldArticles(t *testing.T) {
	m, _ := newTestMonitor(t, storage.NewMemoryStore())
	tomorrow := engine.Today(testNow.AddDate(0, 0, 1), time.UTC)

	report, err := m.Run(context.Background(), RunOptions{Sources: []string{"generique"}, Window: tomorrow})
	if err != nil {
		t.Fatal(err)
	}
	gen := resultFor(report, "Generique")
	if gen.Found != 0 || gen.Status != storage.StatusPartial {
		t.Errorf("found=%d status=%s", gen.Found, gen.Status)
	}
	if gen.Stats.StopReasons()[engine.StopExhausted] != 1 {
		t.Errorf("expected exhausted stop: %v", gen.Stats.StopReasons())
	}
}

func TestBackfill(t *testing.T) {
	m, _ := newTestMonitor(t, storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := m.Backfill(ctx, nil, testNow, testNow.AddDate(0, 0, -3), 0, 1); err == nil {
		t.Error("inverted range should fail")
	}
	report, err := m.Backfill(ctx, []string{"generique"}, testNow.AddDate(0, 0, -7), testNow, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(report.Window, "range(") || report.ArticlesSaved != 2 {
		t.Errorf("window=%s saved=%d", report.Window, report.ArticlesSaved)
	}
}

type recordingObserver struct {
	sources []string
	runs    int
}

func (o *recordingObserver) ObserveSource(r *SourceResult) { o.sources = append(o.sources, r.Source) }
func (o *recordingObserver) ObserveRun(*Report)            { o.runs++ }

type recordingNotifier struct{ reports []*Report }

func (n *recordingNotifier) Notify(_ context.Context, r *Report) error {
	n.reports = append(n.reports, r)
	return errors.New("delivery failed")
}

func TestRunHooks(t *testing.T) {
	obs := &recordingObserver{}
	notif := &recordingNotifier{}
	m, _ := newTestMonitor(t, storage.NewMemoryStore(), WithObserver(obs), WithNotifier(notif))

	if _, err := m.Run(context.Background(), RunOptions{Sources: []string{"generique", "presse wp"}}); err != nil {
		t.Fatalf("notifier failure must not fail the run: %v", err)
	}
	if len(obs.sources) != 2 || obs.runs != 1 {
		t.Errorf("observer: %+v", obs)
	}
	if len(notif.reports) != 1 {
		t.Errorf("notifier calls: %d", len(notif.reports))
	}
}

func TestDiagnose(t *testing.T) {
	store := storage.NewMemoryStore()
	m, _ := newTestMonitor(t, store)

	d, err := m.Diagnose(context.Background(), "generique", engine.Window{}, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if d.Articles != 3 || len(d.Samples) != 2 || d.Relevant != 2 {
		t.Errorf("diagnosis: articles=%d samples=%d relevant=%d", d.Articles, len(d.Samples), d.Relevant)
	}
	if d.AverageScore <= 0 || d.AverageScore >= 1 {
		t.Errorf("average score: %v", d.AverageScore)
	}
	if len(store.Articles()) != 0 || len(store.Runs()) != 0 {
		t.Error("diagnose must not persist anything")
	}

	var buf bytes.Buffer
	d.WriteTable(&buf)
	if !strings.Contains(buf.String(), "Politique") {
		t.Errorf("table missing category:\n%s", buf.String())
	}

	if _, err := m.Diagnose(context.Background(), "nope", engine.Window{}, 1, 1); !errors.Is(err, types.ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestReportFinish(t *testing.T) {
	r := newReport("r", engine.Today(testNow, time.UTC), testNow)
	r.finish([]SourceResult{
		{Source: "a", Status: storage.StatusSuccess, Found: 3, Saved: 2, Skipped: 1, Highlights: []Highlight{{Title: "low", Score: 0.8}}},
		{Source: "b", Status: storage.StatusPartial, Found: 1, Skipped: 1, Highlights: []Highlight{{Title: "prio", Score: 6, Priority: true}}},
		{Source: "c", Status: storage.StatusFailed, Err: "boom"},
	}, testNow.Add(time.Minute))

	if r.SourcesSucceeded != 1 || r.SourcesPartial != 1 || r.SourcesFailed != 1 || r.Failed() {
		t.Errorf("counts: %+v", r)
	}
	if r.ArticlesFound != 4 || r.ArticlesSaved != 2 || r.ArticlesSkipped != 2 {
		t.Errorf("totals: %+v", r)
	}
	if r.HighRelevance[0].Title != "prio" {
		t.Error("priority highlights come first")
	}

	var buf bytes.Buffer
	r.WriteTable(&buf)
	if !strings.Contains(buf.String(), "High relevance") {
		t.Error("highlight table not rendered")
	}
	if (&Report{}).Failed() {
		t.Error("empty report is not failed")
	}
}

func TestRunKeepsPartialResultsOnSourceTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Scraping.SourceTimeout = 200 * time.Millisecond
	catalog := testCatalog()
	catalog.Sources = []config.Source{{
		Name: "Lent", BaseURL: "https://gen.gn", Strategy: config.StrategyGeneric, Active: true,
		Categories: []config.Category{
			{URL: "https://gen.gn/politique/", Label: "Politique"},
			{URL: "https://gen.gn/societe/", Label: "Societe"},
		},
	}}
	f := &pageFetcher{pages: testPages(), hang: map[string]bool{"https://gen.gn/societe/": true}}
	store := storage.NewMemoryStore()
	m, _ := newMonitorWith(t, cfg, catalog, f, store)

	report, err := m.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	res := resultFor(report, "Lent")
	if res.Found != 3 || res.Saved != 2 {
		t.Errorf("found=%d kept=%d saved=%d dropped=%v", res.Found, res.Kept, res.Saved, res.Dropped)
	}
	if res.Status != storage.StatusPartial || !strings.Contains(res.Err, "deadline exceeded") {
		t.Errorf("status=%s err=%q", res.Status, res.Err)
	}
	if len(store.Articles()) != 2 {
		t.Errorf("collected articles must be stored, got %d", len(store.Articles()))
	}
	runs := store.Runs()
	if len(runs) != 1 || runs[0].ErrorMessage == "" || runs[0].ArticlesSaved != 2 {
		t.Errorf("scraping log: %+v", runs)
	}
}

func TestRunTimeoutWithNothingCollectedFails(t *testing.T) {
	cfg := testConfig()
	cfg.Scraping.SourceTimeout = 100 * time.Millisecond
	f := &pageFetcher{pages: testPages(), hang: map[string]bool{"https://gen.gn/a1/": true}}
	m, _ := newMonitorWith(t, cfg, testCatalog(), f, storage.NewMemoryStore())

	report, err := m.Run(context.Background(), RunOptions{Sources: []string{"generique"}})
	if err != nil {
		t.Fatal(err)
	}
	gen := resultFor(report, "Generique")
	if gen.Status != storage.StatusFailed || gen.Err == "" {
		t.Errorf("status=%s err=%q saved=%d", gen.Status, gen.Err, gen.Saved)
	}
}

func TestListPageDelay(t *testing.T) {
	tests := []struct {
		name       string
		listDelay  time.Duration
		wantSleeps int
	}{
		{"zero disables list throttling", 0, 3},
		{"configured delay applies from page 2", 7 * time.Second, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Scraping.MaxPages = 2
			cfg.Scraping.RequestDelay = 2 * time.Second
			cfg.Scraping.ListPageDelay = tt.listDelay
			m, clock := newMonitorWith(t, cfg, testCatalog(), &pageFetcher{pages: testPages()}, storage.NewMemoryStore())

			if _, err := m.Run(context.Background(), RunOptions{Sources: []string{"generique"}}); err != nil {
				t.Fatal(err)
			}
			sleeps := clock.Sleeps()
			if len(sleeps) != tt.wantSleeps {
				t.Fatalf("sleeps: %v", sleeps)
			}
			long := 0
			for _, d := range sleeps {
				if d < cfg.Scraping.RequestDelay {
					t.Errorf("sleep %v below request_delay", d)
				}
				if d >= 7*time.Second {
					long++
				}
			}
			if want := tt.wantSleeps - 3; long != want {
				t.Errorf("list sleeps=%d, want %d (%v)", long, want, sleeps)
			}
		})
	}
	if d := (&Monitor{cfg: testConfig(), clock: fetcher.NewFakeClock(testNow)}).listThrottle().Delay(); d != 0 {
		t.Errorf("zero list_page_delay throttles by %v", d)
	}
}
