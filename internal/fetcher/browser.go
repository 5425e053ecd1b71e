package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// BrowserFetcher implements Fetcher using a headless Chromium via Rod with
// stealth patches. It is the anti-bot tier: the browser runs the challenge
// script and the fetcher waits for the interstitial to clear.
type BrowserFetcher struct {
	settings   Settings
	stealthCfg *StealthConfig
	agents     *UserAgentPool
	clock      Clock
	logger     *slog.Logger
	controlURL string

	mu      sync.Mutex
	browser *rod.Browser
}

// BrowserOption configures the BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithStealth sets the stealth configuration.
func WithStealth(cfg *StealthConfig) BrowserOption {
	return func(bf *BrowserFetcher) { bf.stealthCfg = cfg }
}

// WithControlURL connects to an already running browser instead of
// launching one (e.g. a remote Chromium container).
func WithControlURL(u string) BrowserOption {
	return func(bf *BrowserFetcher) { bf.controlURL = u }
}

// NewBrowserFetcher creates a headless browser fetcher. Chromium is launched
// on first use so plans that never reach this tier cost nothing.
func NewBrowserFetcher(settings Settings, agents *UserAgentPool, logger *slog.Logger, opts ...BrowserOption) *BrowserFetcher {
	clock := settings.Retry.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	bf := &BrowserFetcher{
		settings:   settings,
		stealthCfg: DefaultStealthConfig(),
		agents:     agents,
		clock:      clock,
		logger:     logger.With("component", "browser_fetcher"),
	}
	for _, opt := range opts {
		opt(bf)
	}
	return bf
}

func (bf *BrowserFetcher) ensureBrowser() (*rod.Browser, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if bf.browser != nil {
		return bf.browser, nil
	}

	controlURL := bf.controlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("no-sandbox").
			Set("disable-blink-features", "AutomationControlled").
			Set("lang", bf.stealthCfg.Locale)
		if bf.stealthCfg.UserDataDir != "" {
			l = l.UserDataDir(bf.stealthCfg.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser
	bf.logger.Info("browser ready", "locale", bf.stealthCfg.Locale)
	return browser, nil
}

// Fetch navigates to a URL and returns the rendered page content once any
// bot challenge has cleared.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()
	url := req.URLString()

	browser, err := bf.ensureBrowser()
	if err != nil {
		return nil, &types.FetchError{URL: url, Tier: TierBrowser, Err: err}
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, &types.FetchError{URL: url, Tier: TierBrowser, Err: fmt.Errorf("stealth page: %w", err), Retryable: true}
	}
	defer func() { _ = page.Close() }()
	page = page.Context(ctx)

	if err := bf.prepare(page); err != nil {
		bf.logger.Warn("page setup incomplete", "url", url, "error", err)
	}

	timeout := bf.settings.RequestTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if err := page.Timeout(timeout).Navigate(url); err != nil {
		return nil, &types.FetchError{URL: url, Tier: TierBrowser, Err: err, Retryable: true}
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		bf.logger.Warn("page load timeout, continuing", "url", url, "error", err)
	}

	html, err := bf.waitForChallenge(ctx, page)
	if err != nil {
		return nil, &types.FetchError{URL: url, Tier: TierBrowser, Err: err, Retryable: true}
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", url,
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)
	return types.NewRawResponse(req, TierBrowser, []byte(html), finalURL, duration), nil
}

func (bf *BrowserFetcher) prepare(page *rod.Page) error {
	ua := bf.agents.Pick()
	if ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: AcceptLanguage,
		}); err != nil {
			return err
		}
	}
	sc := bf.stealthCfg
	if sc.ViewportWidth > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             sc.ViewportWidth,
			Height:            sc.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			return err
		}
	}
	if sc.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: sc.Timezone}).Call(page); err != nil {
			return err
		}
	}
	return nil
}

// waitForChallenge polls the DOM until no challenge marker remains or the
// configured wait elapses.
func (bf *BrowserFetcher) waitForChallenge(ctx context.Context, page *rod.Page) (string, error) {
	deadline := bf.clock.Now().Add(bf.settings.BrowserChallengeWait)
	for {
		html, err := page.HTML()
		if err != nil {
			return "", err
		}
		kind := DetectChallenge(html)
		if kind == ChallengeNone {
			return html, nil
		}
		if !bf.clock.Now().Before(deadline) {
			return "", fmt.Errorf("%s challenge did not clear within %s", kind, bf.settings.BrowserChallengeWait)
		}
		bf.logger.Debug("waiting for challenge", "kind", kind)
		if err := bf.clock.Sleep(ctx, 500*time.Millisecond); err != nil {
			return "", err
		}
	}
}

// Close shuts down the browser.
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if bf.browser == nil {
		return nil
	}
	err := bf.browser.Close()
	bf.browser = nil
	return err
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return TierBrowser
}
