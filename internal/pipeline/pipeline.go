package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/blackdavinci/guinea-election-monitor/internal/dedup"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// Middleware processes a candidate and returns the (possibly modified)
// candidate. Return nil to drop the candidate from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a candidate. Return nil to drop it.
	Process(ctx context.Context, c *types.Candidate) (*types.Candidate, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	deduper     *dedup.Deduplicator
	checkTitle  bool
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Dedup enables the batch-level near-duplicate pass that Run applies before
// the per-candidate chain.
func (p *Pipeline) Dedup(d *dedup.Deduplicator, checkTitle bool) {
	p.deduper = d
	p.checkTitle = checkTitle
}

// Process runs the candidate through all middleware in order.
func (p *Pipeline) Process(ctx context.Context, c *types.Candidate) (*types.Candidate, string, error) {
	current := c

	for _, mw := range p.middlewares {
		result, err := mw.Process(ctx, current)
		if err != nil {
			return nil, mw.Name(), &types.PipelineError{
				Stage:     mw.Name(),
				Candidate: current,
				Err:       err,
			}
		}
		if result == nil {
			p.logger.Debug("candidate dropped", "stage", mw.Name(), "url", c.URL)
			return nil, mw.Name(), nil
		}
		current = result
	}

	return current, "", nil
}

// Result is the outcome of a batch run.
type Result struct {
	Kept    []*types.Candidate
	Input   int
	Dropped map[string]int
	Errors  int
}

// Run processes a batch. Middleware errors drop the candidate and are
// counted; they never abort the batch.
func (p *Pipeline) Run(ctx context.Context, cands []*types.Candidate) Result {
	res := Result{Input: len(cands), Dropped: make(map[string]int)}

	if p.deduper != nil {
		before := len(cands)
		cands = p.deduper.DeduplicateList(cands, p.checkTitle)
		if n := before - len(cands); n > 0 {
			res.Dropped["dedup"] = n
		}
	}

	for _, c := range cands {
		if ctx.Err() != nil {
			break
		}
		out, stage, err := p.Process(ctx, c)
		if err != nil {
			res.Errors++
			p.logger.Warn("candidate failed", "url", c.URL, "error", err)
			continue
		}
		if out == nil {
			res.Dropped[stage]++
			continue
		}
		res.Kept = append(res.Kept, out)
	}
	return res
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// RequiredFieldsMiddleware drops candidates without a title or URL.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(_ context.Context, c *types.Candidate) (*types.Candidate, error) {
	if !c.Valid() {
		return nil, nil
	}
	return c, nil
}

// TrimMiddleware trims whitespace from the text fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(_ context.Context, c *types.Candidate) (*types.Candidate, error) {
	c.Title = strings.TrimSpace(c.Title)
	c.URL = strings.TrimSpace(c.URL)
	c.Content = strings.TrimSpace(c.Content)
	c.Category = strings.TrimSpace(c.Category)
	tags := c.Tags[:0]
	for _, t := range c.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	c.Tags = tags
	return c, nil
}

// GUIDDedupMiddleware drops candidates whose GUID was already seen in this
// pipeline. It must run after the GUID is assigned.
type GUIDDedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewGUIDDedupMiddleware() *GUIDDedupMiddleware {
	return &GUIDDedupMiddleware{seen: make(map[string]struct{})}
}

func (m *GUIDDedupMiddleware) Name() string { return "guid_dedup" }

func (m *GUIDDedupMiddleware) Process(_ context.Context, c *types.Candidate) (*types.Candidate, error) {
	key := c.GUID
	if key == "" {
		key = dedup.NormalizeURL(c.URL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil
	}
	m.seen[key] = struct{}{}
	return c, nil
}
