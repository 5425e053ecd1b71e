package fetcher

import (
	"context"
	"time"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// Tier names.
const (
	TierHTTP    = "http"
	TierCurl    = "curl"
	TierBrowser = "browser"
)

// AcceptLanguage is sent by every tier; the monitored press is French-language.
const AcceptLanguage = "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7"

// Fetcher is the interface for all request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Settings is the immutable per-run view of fetcher configuration shared by
// every tier. Build it once with NewSettings and pass it by value.
type Settings struct {
	RequestTimeout       time.Duration
	MaxBodySize          int64
	MaxRedirects         int
	TLSInsecure          bool
	MinBodySize          int
	CurlPath             string
	CurlTimeout          time.Duration
	BrowserChallengeWait time.Duration
	AntiBotSources       []string
	Retry                RetryPolicy
}

// NewSettings derives Settings from configuration.
func NewSettings(cfg config.FetcherConfig, clock Clock) Settings {
	if clock == nil {
		clock = SystemClock{}
	}
	return Settings{
		RequestTimeout:       cfg.RequestTimeout,
		MaxBodySize:          cfg.MaxBodySize,
		MaxRedirects:         cfg.MaxRedirects,
		TLSInsecure:          cfg.TLSInsecure,
		MinBodySize:          cfg.MinBodySize,
		CurlPath:             cfg.CurlPath,
		CurlTimeout:          cfg.CurlTimeout,
		BrowserChallengeWait: cfg.BrowserChallengeWait,
		AntiBotSources:       append([]string(nil), cfg.AntiBotSources...),
		Retry: RetryPolicy{
			MaxAttempts: cfg.MaxRetries,
			Multiplier:  time.Second,
			MinBackoff:  cfg.RetryMinBackoff,
			MaxBackoff:  cfg.RetryMaxBackoff,
			Retryable:   IsRetryable,
			Clock:       clock,
		},
	}
}
