package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// CommandRunner executes an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// CurlFetcher shells out to curl. Some WordPress hosts mishandle Go's TLS
// or redirect chains but serve curl fine.
type CurlFetcher struct {
	settings Settings
	agents   *UserAgentPool
	runner   CommandRunner
	logger   *slog.Logger
}

// NewCurlFetcher creates a curl tier. A nil runner uses ExecRunner.
func NewCurlFetcher(settings Settings, agents *UserAgentPool, runner CommandRunner, logger *slog.Logger) *CurlFetcher {
	if runner == nil {
		runner = ExecRunner{}
	}
	if settings.CurlPath == "" {
		settings.CurlPath = "curl"
	}
	if settings.CurlTimeout <= 0 {
		settings.CurlTimeout = 60 * time.Second
	}
	return &CurlFetcher{
		settings: settings,
		agents:   agents,
		runner:   runner,
		logger:   logger.With("component", "curl_fetcher"),
	}
}

// statusMarker prefixes the status line curl appends after the body.
const statusMarker = "__electionwatch_status="

// splitStatus separates the body from the trailing status line written by
// -w. A missing line yields status 0.
func splitStatus(out []byte) ([]byte, int) {
	i := bytes.LastIndex(out, []byte("\n"+statusMarker))
	if i < 0 {
		return out, 0
	}
	code, err := strconv.Atoi(string(bytes.TrimSpace(out[i+1+len(statusMarker):])))
	if err != nil {
		return out[:i], 0
	}
	return out[:i], code
}

// Args builds the curl argument list for url with the given user-agent.
func (f *CurlFetcher) Args(url, ua string) []string {
	secs := int(f.settings.CurlTimeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	args := []string{
		"-s", "-L",
		"--max-time", strconv.Itoa(secs),
		"--compressed",
		"-w", "\n" + statusMarker + "%{http_code}",
		"-H", "Accept: text/html",
		"-H", "Accept-Language: " + AcceptLanguage,
	}
	if ua != "" {
		args = append(args, "-A", ua)
	}
	return append(args, url)
}

// Fetch runs curl and returns its stdout as the body. A non-2xx status
// reported by curl fails with a FetchError carrying the code.
func (f *CurlFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.settings.CurlTimeout+5*time.Second)
	defer cancel()

	start := time.Now()
	out, err := f.runner.Run(ctx, f.settings.CurlPath, f.Args(req.URLString(), f.agents.Pick())...)
	duration := time.Since(start)
	if err != nil {
		return nil, &types.FetchError{
			URL:       req.URLString(),
			Tier:      TierCurl,
			Err:       err,
			Retryable: errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
	}
	out, status := splitStatus(out)
	if status != 0 && (status < 200 || status >= 300) {
		return nil, &types.FetchError{
			URL:        req.URLString(),
			Tier:       TierCurl,
			StatusCode: status,
			Err:        fmt.Errorf("HTTP %d", status),
			Retryable:  isRetryableStatus(status),
		}
	}
	if len(out) == 0 {
		return nil, &types.FetchError{URL: req.URLString(), Tier: TierCurl, Err: types.ErrEmptyResponse}
	}

	body, err := decodeBody(out, req.Encoding, "text/html")
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Tier: TierCurl, Err: err}
	}

	f.logger.Debug("curl fetch complete", "url", req.URLString(), "size", len(body), "duration", duration)
	return types.NewRawResponse(req, TierCurl, body, "", duration), nil
}

// Close is a no-op.
func (f *CurlFetcher) Close() error { return nil }

// Type returns the fetcher type identifier.
func (f *CurlFetcher) Type() string { return TierCurl }
