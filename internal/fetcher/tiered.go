package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// PlanFor returns the ordered tier plan for a source. The plan is fixed
// when the source's fetcher is built and never changes during a run.
func PlanFor(src config.Source, antiBot []string) []string {
	if len(src.FetchTiers) > 0 {
		return append([]string(nil), src.FetchTiers...)
	}
	for _, name := range antiBot {
		if src.Matches(name) {
			return []string{TierBrowser, TierCurl, TierHTTP}
		}
	}
	if src.Strategy == config.StrategyWordPress {
		return []string{TierCurl, TierHTTP}
	}
	return []string{TierHTTP}
}

// Tiered tries each tier in order, retrying transient failures within a
// tier. Bodies from non-final tiers that are too small or still show a bot
// challenge count as failures so the next tier gets a chance.
type Tiered struct {
	tiers   []Fetcher
	retry   RetryPolicy
	minBody int
	logger  *slog.Logger
}

// NewTiered wraps already constructed tiers.
func NewTiered(tiers []Fetcher, retry RetryPolicy, minBody int, logger *slog.Logger) *Tiered {
	return &Tiered{
		tiers:   tiers,
		retry:   retry,
		minBody: minBody,
		logger:  logger.With("component", "tiered_fetcher"),
	}
}

// Options carries the optional collaborators used by Build.
type Options struct {
	Runner    CommandRunner
	Transport HTTPOption
	Browser   []BrowserOption
}

// Build constructs the tier plan for src. Each call returns fetchers with
// their own session state, so workers never share cookies.
func Build(src config.Source, settings Settings, agents *UserAgentPool, logger *slog.Logger, opts Options) (*Tiered, error) {
	plan := PlanFor(src, settings.AntiBotSources)
	tiers := make([]Fetcher, 0, len(plan))
	for _, name := range plan {
		switch name {
		case TierHTTP:
			var httpOpts []HTTPOption
			if opts.Transport != nil {
				httpOpts = append(httpOpts, opts.Transport)
			}
			f, err := NewHTTPFetcher(settings, agents, logger, httpOpts...)
			if err != nil {
				return nil, err
			}
			tiers = append(tiers, f)
		case TierCurl:
			tiers = append(tiers, NewCurlFetcher(settings, agents, opts.Runner, logger))
		case TierBrowser:
			tiers = append(tiers, NewBrowserFetcher(settings, agents, logger, opts.Browser...))
		default:
			return nil, fmt.Errorf("unknown fetch tier %q", name)
		}
	}
	logger.Debug("fetch plan", "source", src.Name, "tiers", strings.Join(plan, ","))
	return NewTiered(tiers, settings.Retry, settings.MinBodySize, logger), nil
}

// Plan returns the tier names in order.
func (t *Tiered) Plan() []string {
	names := make([]string, len(t.tiers))
	for i, f := range t.tiers {
		names[i] = f.Type()
	}
	return names
}

// Fetch returns the first acceptable response. When every tier fails the
// error wraps types.ErrAllTiersFailed; callers treat it as "no content".
func (t *Tiered) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	var errs []error
	for i, tier := range t.tiers {
		final := i == len(t.tiers)-1

		resp, err := t.retry.Do(ctx, func(ctx context.Context) (*types.Response, error) {
			return tier.Fetch(ctx, req)
		})
		if err == nil && !final {
			err = t.check(resp)
		}
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		errs = append(errs, fmt.Errorf("%s: %w", tier.Type(), err))
		if !final {
			t.logger.Warn("tier failed, falling back",
				"url", req.URLString(),
				"tier", tier.Type(),
				"next", t.tiers[i+1].Type(),
				"error", err,
			)
		}
	}

	return nil, &types.FetchError{
		URL: req.URLString(),
		Err: fmt.Errorf("%w: %w", types.ErrAllTiersFailed, errors.Join(errs...)),
	}
}

func (t *Tiered) check(resp *types.Response) error {
	if len(resp.Body) < t.minBody {
		return fmt.Errorf("%w: %d < %d bytes", types.ErrBodyTooSmall, len(resp.Body), t.minBody)
	}
	if kind := DetectChallenge(resp.Text()); kind != ChallengeNone {
		return fmt.Errorf("%s challenge page", kind)
	}
	return nil
}

// Close closes every tier.
func (t *Tiered) Close() error {
	var errs []error
	for _, f := range t.tiers {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Type returns the fetcher type identifier.
func (t *Tiered) Type() string {
	return "tiered"
}
