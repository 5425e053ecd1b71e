package pipeline

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/dedup"
	"github.com/blackdavinci/guinea-election-monitor/internal/scoring"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// --- Candidate Middleware ---

// HTMLSanitizeMiddleware strips leftover tags and entities from titles.
// Listing titles sometimes carry escaped markup that the DOM text did not
// decode.
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(_ context.Context, c *types.Candidate) (*types.Candidate, error) {
	title := html.UnescapeString(c.Title)
	title = m.stripRe.ReplaceAllString(title, "")
	c.Title = strings.Join(strings.Fields(title), " ")
	return c, nil
}

// RelevanceMiddleware scores a candidate against the keyword taxonomy and
// drops it below the threshold.
type RelevanceMiddleware struct {
	scorer    *scoring.Scorer
	threshold float64
	logger    *slog.Logger
}

func NewRelevanceMiddleware(scorer *scoring.Scorer, threshold float64, logger *slog.Logger) *RelevanceMiddleware {
	return &RelevanceMiddleware{
		scorer:    scorer,
		threshold: threshold,
		logger:    logger.With("component", "relevance"),
	}
}

func (m *RelevanceMiddleware) Name() string { return "relevance" }

func (m *RelevanceMiddleware) Process(_ context.Context, c *types.Candidate) (*types.Candidate, error) {
	score, matched := m.scorer.Score(c.Title + " " + c.Content)
	if score < m.threshold {
		m.logger.Debug("below relevance threshold", "url", c.URL, "score", score)
		return nil, nil
	}
	c.Mode = types.ModeRelevance
	c.RelevanceScore = score
	c.KeywordsMatched = matched
	return c, nil
}

// ElectionCountMiddleware ranks a candidate by election-vocabulary mentions.
// It never drops.
type ElectionCountMiddleware struct{}

func (m *ElectionCountMiddleware) Name() string { return "election_count" }

func (m *ElectionCountMiddleware) Process(_ context.Context, c *types.Candidate) (*types.Candidate, error) {
	c.Mode = types.ModeElectionCount
	c.ElectionCount = scoring.CountElectionMentions(c.Title + " " + c.Content)
	return c, nil
}

// EnrichMiddleware fills the derived fields: GUID, content hash, summary,
// language and import time.
type EnrichMiddleware struct {
	// SentenceSummary selects the sentence-based summary; otherwise the
	// content is truncated on a word boundary.
	SentenceSummary bool
	Now             func() time.Time
}

func (m *EnrichMiddleware) Name() string { return "enrich" }

func (m *EnrichMiddleware) Process(_ context.Context, c *types.Candidate) (*types.Candidate, error) {
	// Tracking parameters and fragments must not yield a new identity.
	c.GUID = scoring.GUID(dedup.NormalizeURL(c.URL))
	c.ContentHash = scoring.ContentHash(c.Content)
	if c.Summary == "" {
		if m.SentenceSummary {
			c.Summary = scoring.SentenceSummary(c.Content, scoring.SentenceSummaryLength)
		} else {
			c.Summary = scoring.TruncateSummary(c.Content, scoring.TruncateSummaryLength)
		}
	}
	if c.Language == "" {
		c.Language = scoring.DetectLanguage(c.Title + " " + c.Content)
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	c.ImportedAt = now().UTC()
	return c, nil
}

// --- Store checks ---

// Lookup answers existence questions against persisted articles.
type Lookup interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
	ExistsByContentHash(ctx context.Context, hash string) (bool, error)
}

// ExistsMiddleware drops candidates already persisted under the same
// canonical URL or the same content hash.
type ExistsMiddleware struct {
	store     Lookup
	checkHash bool
}

func NewExistsMiddleware(store Lookup, checkHash bool) *ExistsMiddleware {
	return &ExistsMiddleware{store: store, checkHash: checkHash}
}

func (m *ExistsMiddleware) Name() string { return "exists" }

func (m *ExistsMiddleware) Process(ctx context.Context, c *types.Candidate) (*types.Candidate, error) {
	ok, err := m.store.ExistsByURL(ctx, dedup.NormalizeURL(c.URL))
	if err != nil {
		return nil, fmt.Errorf("url lookup: %w", err)
	}
	if !ok && c.URL != dedup.NormalizeURL(c.URL) {
		if ok, err = m.store.ExistsByURL(ctx, c.URL); err != nil {
			return nil, fmt.Errorf("url lookup: %w", err)
		}
	}
	if ok {
		return nil, nil
	}
	if !m.checkHash || c.ContentHash == "" {
		return c, nil
	}
	ok, err = m.store.ExistsByContentHash(ctx, c.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("content hash lookup: %w", err)
	}
	if ok {
		return nil, nil
	}
	return c, nil
}

// --- Assembly ---

// ModeFor returns the scoring mode used by a strategy family. Site-specialized
// strategies rank with the election counter; the generic one with the
// relevance scorer.
func ModeFor(strategy string) types.ScoreMode {
	switch strategy {
	case config.StrategyWordPress, config.StrategyGuineenews:
		return types.ModeElectionCount
	default:
		return types.ModeRelevance
	}
}

// Deps are the collaborators needed to assemble a pipeline.
type Deps struct {
	Scorer             *scoring.Scorer
	RelevanceThreshold float64
	Deduper            *dedup.Deduplicator
	Store              Lookup
	Now                func() time.Time
}

// ForMode assembles the post-processing chain of a scoring mode.
//
// Relevance: near-duplicate pass, then required fields, sanitize, score gate,
// enrichment, persisted-URL and content-hash checks.
//
// Election count: required fields, sanitize, count, enrichment and an
// in-run GUID check. Persisted duplicates are left to the store's unique
// constraints.
func ForMode(mode types.ScoreMode, deps Deps, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredFieldsMiddleware{})
	p.Use(NewHTMLSanitizeMiddleware())

	switch mode {
	case types.ModeElectionCount:
		p.Use(&ElectionCountMiddleware{})
		p.Use(&EnrichMiddleware{SentenceSummary: true, Now: deps.Now})
		p.Use(NewGUIDDedupMiddleware())
	default:
		if deps.Deduper != nil {
			p.Dedup(deps.Deduper, true)
		}
		p.Use(NewRelevanceMiddleware(deps.Scorer, deps.RelevanceThreshold, logger))
		p.Use(&EnrichMiddleware{Now: deps.Now})
		if deps.Store != nil {
			p.Use(NewExistsMiddleware(deps.Store, true))
		}
	}
	return p
}
