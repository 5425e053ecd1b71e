package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// HTTPFetcher implements Fetcher using net/http. Each instance owns a
// cookie jar, so one fetcher per source keeps its session coherent.
type HTTPFetcher struct {
	client   *http.Client
	settings Settings
	agents   *UserAgentPool
	logger   *slog.Logger
}

// HTTPOption configures the HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithTransport replaces the default stealth transport.
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(f *HTTPFetcher) { f.client.Transport = rt }
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(settings Settings, agents *UserAgentPool, logger *slog.Logger, opts ...HTTPOption) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	maxRedirects := settings.MaxRedirects
	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("max redirects (%d) reached", maxRedirects)
		}
		return nil
	}

	f := &HTTPFetcher{
		client: &http.Client{
			Transport:     NewTLSTransport(settings.TLSInsecure, logger),
			Jar:           jar,
			Timeout:       settings.RequestTimeout,
			CheckRedirect: redirectPolicy,
		},
		settings: settings,
		agents:   agents,
		logger:   logger.With("component", "http_fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch executes a single GET and returns the decoded response. Retries are
// the caller's concern.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URLString(), nil)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Tier: TierHTTP, Err: err}
	}

	if ua := f.agents.Pick(); ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", AcceptLanguage)
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	httpReq.Header.Set("Connection", "keep-alive")
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", types.ErrTimeout, err)
		}
		return nil, &types.FetchError{
			URL:       req.URLString(),
			Tier:      TierHTTP,
			Err:       err,
			Retryable: isRetryableError(err),
		}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		fe := &types.FetchError{
			URL:        req.URLString(),
			Tier:       TierHTTP,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet))),
			Retryable:  isRetryableStatus(httpResp.StatusCode),
		}
		if httpResp.StatusCode == http.StatusTooManyRequests {
			fe.RetryAfter = parseRetryAfter(httpResp.Header.Get("Retry-After"))
		}
		return nil, fe
	}

	var reader io.Reader = httpResp.Body
	if f.settings.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.settings.MaxBodySize)
	}
	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Tier: TierHTTP, Err: err}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Tier: TierHTTP, Err: err, Retryable: true}
	}

	body, err = decodeBody(body, req.Encoding, httpResp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Tier: TierHTTP, Err: err}
	}

	resp := types.NewResponse(req, httpResp, body, duration)
	resp.Tier = TierHTTP

	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", resp.StatusCode,
		"size", len(body),
		"duration", duration,
	)

	return resp, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return TierHTTP
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
