package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/dedup"
	"github.com/blackdavinci/guinea-election-monitor/internal/scoring"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = func() time.Time { return time.Date(2025, 12, 10, 8, 0, 0, 0, time.UTC) }

func testScorer() *scoring.Scorer {
	tax := config.Taxonomy{Categories: []config.KeywordCategory{
		{Name: "election", Mandatory: true, Weight: 1, Terms: []config.Keyword{
			{Term: "élection", Weight: 1.0},
			{Term: "CENI", Weight: 1.0},
		}},
		{Name: "acteurs", Weight: 1, Terms: []config.Keyword{
			{Term: "candidat", Weight: 0.5},
		}},
	}}
	return scoring.NewScorer(tax)
}

type fakeLookup struct {
	urls   map[string]bool
	hashes map[string]bool
	err    error
}

func (f *fakeLookup) ExistsByURL(_ context.Context, url string) (bool, error) {
	return f.urls[url], f.err
}

func (f *fakeLookup) ExistsByContentHash(_ context.Context, hash string) (bool, error) {
	return f.hashes[hash], f.err
}

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredFieldsMiddleware{})

	c := &types.Candidate{Title: "  Résultats provisoires  ", URL: " https://a.gn/1 ", Tags: []string{" CENI ", " "}}
	out, stage, err := p.Process(context.Background(), c)
	if err != nil || stage != "" {
		t.Fatalf("unexpected: %v %q", err, stage)
	}
	if out.Title != "Résultats provisoires" || out.URL != "https://a.gn/1" {
		t.Errorf("not trimmed: %+v", out)
	}
	if len(out.Tags) != 1 || out.Tags[0] != "CENI" {
		t.Errorf("tags: %v", out.Tags)
	}

	_, stage, _ = p.Process(context.Background(), &types.Candidate{Title: "   ", URL: "https://a.gn/2"})
	if stage != "required_fields" {
		t.Errorf("blank title should be dropped by required_fields, got %q", stage)
	}
}

func TestHTMLSanitizeMiddleware(t *testing.T) {
	m := NewHTMLSanitizeMiddleware()
	c, _ := m.Process(context.Background(), &types.Candidate{Title: "La &lt;b&gt;CENI&lt;/b&gt;  publie &amp; confirme"})
	if c.Title != "La CENI publie & confirme" {
		t.Errorf("got %q", c.Title)
	}
}

func TestRelevanceMiddleware(t *testing.T) {
	m := NewRelevanceMiddleware(testScorer(), 0.3, testLogger)

	c, _ := m.Process(context.Background(), &types.Candidate{Title: "La CENI prépare l'élection", Content: "Chaque candidat dépose son dossier."})
	if c == nil {
		t.Fatal("relevant candidate dropped")
	}
	if c.RelevanceScore != 0.833 || c.Mode != types.ModeRelevance {
		t.Errorf("score=%v mode=%s", c.RelevanceScore, c.Mode)
	}
	if len(c.KeywordsMatched) != 3 {
		t.Errorf("matched: %v", c.KeywordsMatched)
	}

	if c, _ := m.Process(context.Background(), &types.Candidate{Title: "Un candidat au championnat"}); c != nil {
		t.Error("candidate without a mandatory term should be dropped")
	}
}

func TestEnrichMiddleware(t *testing.T) {
	content := strings.Repeat("La commission électorale publie la liste des bureaux de vote. ", 20)
	c := &types.Candidate{Title: "Élection", URL: "https://a.gn/1", Content: content}

	out, _ := (&EnrichMiddleware{Now: fixedNow}).Process(context.Background(), c)
	if out.GUID != scoring.GUID("https://a.gn/1") || out.ContentHash != scoring.ContentHash(content) {
		t.Error("guid or content hash not set")
	}
	if len([]rune(out.Summary)) > scoring.TruncateSummaryLength+3 {
		t.Errorf("summary too long: %d", len([]rune(out.Summary)))
	}
	if out.Language != "fr" {
		t.Errorf("language: %q", out.Language)
	}
	if !out.ImportedAt.Equal(fixedNow()) {
		t.Errorf("imported_at: %v", out.ImportedAt)
	}
}

func TestExistsMiddleware(t *testing.T) {
	store := &fakeLookup{
		urls:   map[string]bool{"https://a.gn/old": true},
		hashes: map[string]bool{"h-old": true},
	}
	m := NewExistsMiddleware(store, true)
	ctx := context.Background()

	if c, _ := m.Process(ctx, &types.Candidate{URL: "https://a.gn/old/?utm_source=fb"}); c != nil {
		t.Error("persisted URL should be dropped after canonicalization")
	}
	if c, _ := m.Process(ctx, &types.Candidate{URL: "https://a.gn/new", ContentHash: "h-old"}); c != nil {
		t.Error("persisted content hash should be dropped")
	}
	if c, _ := m.Process(ctx, &types.Candidate{URL: "https://a.gn/new", ContentHash: "h-new"}); c == nil {
		t.Error("new candidate dropped")
	}

	store.err = errors.New("db down")
	if _, err := m.Process(ctx, &types.Candidate{URL: "https://a.gn/x"}); err == nil {
		t.Error("lookup error should propagate")
	}
}

func TestRunRelevanceMode(t *testing.T) {
	store := &fakeLookup{urls: map[string]bool{"https://a.gn/3": true}}
	p := ForMode(types.ModeRelevance, Deps{
		Scorer:             testScorer(),
		RelevanceThreshold: 0.3,
		Deduper:            dedup.New(testLogger),
		Store:              store,
		Now:                fixedNow,
	}, testLogger)

	in := []*types.Candidate{
		{Title: "La CENI fixe la date de l'élection", URL: "https://a.gn/1", Content: "élection"},
		{Title: "La CENI fixe la date de l'élection", URL: "https://b.gn/1", Content: "élection"},
		{Title: "Match nul au stade", URL: "https://a.gn/2", Content: "football"},
		{Title: "Élection: la CENI rassure", URL: "https://a.gn/3", Content: "CENI"},
		{Title: "", URL: "https://a.gn/4"},
	}
	res := runBatch(t, p, in)

	if len(res.Kept) != 1 || res.Kept[0].URL != "https://a.gn/1" {
		t.Fatalf("kept: %+v", res.Kept)
	}
	want := map[string]int{"dedup": 1, "relevance": 1, "exists": 1, "required_fields": 1}
	for stage, n := range want {
		if res.Dropped[stage] != n {
			t.Errorf("dropped[%s] = %d, want %d (all: %v)", stage, res.Dropped[stage], n, res.Dropped)
		}
	}
	if res.Input != 5 || res.Errors != 0 {
		t.Errorf("input=%d errors=%d", res.Input, res.Errors)
	}
}

func TestGUIDIgnoresTrackingParameters(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"utm parameters", "https://a.gn/ceni/", "https://a.gn/ceni/?utm_source=fb&utm_medium=social", true},
		{"fragment and host case", "https://A.gn/ceni#comments", "https://a.gn/ceni", true},
		{"different articles", "https://a.gn/ceni/", "https://a.gn/vote/", false},
	}
	enrich := &EnrichMiddleware{Now: fixedNow}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := enrich.Process(context.Background(), &types.Candidate{URL: tt.a, Content: "texte"})
			b, _ := enrich.Process(context.Background(), &types.Candidate{URL: tt.b, Content: "texte"})
			if (a.GUID == b.GUID) != tt.same {
				t.Errorf("GUID(%q)=%s GUID(%q)=%s", tt.a, a.GUID, tt.b, b.GUID)
			}
		})
	}

	p := ForMode(types.ModeElectionCount, Deps{Now: fixedNow}, testLogger)
	res := runBatch(t, p, []*types.Candidate{
		{Title: "Élections", URL: "https://a.gn/ceni/", Content: "Le scrutin et le vote."},
		{Title: "Élections", URL: "https://a.gn/ceni/?utm_campaign=partage", Content: "Le scrutin et le vote."},
	})
	if len(res.Kept) != 1 || res.Dropped["guid_dedup"] != 1 {
		t.Errorf("kept=%d dropped=%v", len(res.Kept), res.Dropped)
	}
}

func TestRunCountMode(t *testing.T) {
	p := ForMode(types.ModeElectionCount, Deps{Now: fixedNow}, testLogger)

	in := []*types.Candidate{
		{Title: "Élections législatives", URL: "https://a.gn/1", Content: "Le scrutin et le vote. Les électeurs aux urnes."},
		{Title: "Élections législatives (bis)", URL: "https://a.gn/1", Content: "doublon"},
		{Title: "Football", URL: "https://a.gn/2", Content: "Match amical."},
	}
	res := runBatch(t, p, in)
	if len(res.Kept) != 2 {
		t.Fatalf("expected 2 kept, got %d", len(res.Kept))
	}
	if res.Dropped["guid_dedup"] != 1 {
		t.Errorf("dropped: %v", res.Dropped)
	}
	first := res.Kept[0]
	if first.Mode != types.ModeElectionCount || first.ElectionCount < 3 {
		t.Errorf("count mode: mode=%s count=%d", first.Mode, first.ElectionCount)
	}
	if res.Kept[1].ElectionCount != 0 {
		t.Errorf("unrelated article should count 0, got %d", res.Kept[1].ElectionCount)
	}
	if first.Summary == "" || first.GUID == "" {
		t.Error("count mode candidates must be enriched")
	}
}

func TestRunCountsErrors(t *testing.T) {
	p := New(testLogger)
	p.Use(NewExistsMiddleware(&fakeLookup{err: errors.New("boom")}, false))
	res := p.Run(context.Background(), []*types.Candidate{{Title: "t", URL: "https://a.gn/1"}})
	if res.Errors != 1 || len(res.Kept) != 0 {
		t.Errorf("errors=%d kept=%d", res.Errors, len(res.Kept))
	}
}

func TestModeFor(t *testing.T) {
	cases := map[string]types.ScoreMode{
		config.StrategyGeneric:    types.ModeRelevance,
		config.StrategyWordPress:  types.ModeElectionCount,
		config.StrategyGuineenews: types.ModeElectionCount,
		"":                        types.ModeRelevance,
	}
	for strategy, want := range cases {
		if got := ModeFor(strategy); got != want {
			t.Errorf("ModeFor(%q) = %s, want %s", strategy, got, want)
		}
	}
}

func runBatch(t *testing.T, p *Pipeline, in []*types.Candidate) Result {
	t.Helper()
	return p.Run(context.Background(), in)
}
