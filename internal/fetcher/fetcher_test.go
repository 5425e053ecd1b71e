package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testSettings(clock Clock) Settings {
	s := NewSettings(config.DefaultConfig().Fetcher, clock)
	s.RequestTimeout = 5 * time.Second
	return s
}

func mustRequest(t *testing.T, url string) *types.Request {
	t.Helper()
	req, err := types.NewRequest(url)
	if err != nil {
		t.Fatalf("NewRequest(%q): %v", url, err)
	}
	return req
}

func TestBackoffIsClamped(t *testing.T) {
	p := DefaultRetryPolicy()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{12, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	clock := NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	p := DefaultRetryPolicy()
	p.Clock = clock

	calls := 0
	resp, err := p.Do(context.Background(), func(ctx context.Context) (*types.Response, error) {
		calls++
		if calls < 3 {
			return nil, &types.FetchError{URL: "u", StatusCode: 503, Err: errors.New("unavailable")}
		}
		return &types.Response{StatusCode: 200}, nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp.StatusCode != 200 || calls != 3 {
		t.Errorf("calls = %d, status = %d", calls, resp.StatusCode)
	}
	want := []time.Duration{2 * time.Second, 2 * time.Second}
	if got := clock.Sleeps(); !reflect.DeepEqual(got, want) {
		t.Errorf("sleeps = %v, want %v", got, want)
	}
}

func TestRetryDoesNotRetryClientErrors(t *testing.T) {
	clock := NewFakeClock(time.Now())
	p := DefaultRetryPolicy()
	p.Clock = clock

	for _, status := range []int{400, 403, 404} {
		calls := 0
		_, err := p.Do(context.Background(), func(ctx context.Context) (*types.Response, error) {
			calls++
			return nil, &types.FetchError{URL: "u", StatusCode: status, Err: errors.New("nope")}
		})
		if err == nil || calls != 1 {
			t.Errorf("status %d: calls = %d, err = %v", status, calls, err)
		}
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("no sleeps expected, got %v", clock.Sleeps())
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	p := DefaultRetryPolicy()
	p.Clock = NewFakeClock(time.Now())

	calls := 0
	_, err := p.Do(context.Background(), func(ctx context.Context) (*types.Response, error) {
		calls++
		return nil, &types.FetchError{URL: "u", StatusCode: 429, Err: errors.New("slow down")}
	})
	if !errors.Is(err, types.ErrMaxRetries) {
		t.Fatalf("expected ErrMaxRetries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"408", &types.FetchError{StatusCode: 408}, true},
		{"429", &types.FetchError{StatusCode: 429}, true},
		{"500", &types.FetchError{StatusCode: 500}, true},
		{"404", &types.FetchError{StatusCode: 404}, false},
		{"timeout", types.ErrTimeout, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestUserAgentPoolRotation(t *testing.T) {
	agents := []string{"a", "b", "c", "d", "e"}

	never := NewUserAgentPool(agents, 0, rand.New(rand.NewSource(1)))
	first := never.Current()
	for i := 0; i < 50; i++ {
		if ua := never.Pick(); ua != first {
			t.Fatalf("probability 0 must never rotate, got %q then %q", first, ua)
		}
	}

	always := NewUserAgentPool(agents, 1, rand.New(rand.NewSource(1)))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[always.Pick()] = true
	}
	if len(seen) < 2 {
		t.Errorf("probability 1 should rotate across agents, saw %v", seen)
	}
}

func TestThrottleDelayRange(t *testing.T) {
	clock := NewFakeClock(time.Now())
	th := NewThrottle(2*time.Second, clock, rand.New(rand.NewSource(7)))
	for i := 0; i < 20; i++ {
		if err := th.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	for _, d := range clock.Sleeps() {
		if d < 2*time.Second || d >= 3*time.Second {
			t.Errorf("delay %v outside [2s,3s)", d)
		}
	}

	zero := NewThrottle(0, clock, nil).WithJitter(0)
	if d := zero.Delay(); d != 0 {
		t.Errorf("zero throttle delay = %v", d)
	}
}

func TestHTTPFetcherStatusHandling(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("Accept-Language") != AcceptLanguage {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body>Élection</body></html>"))
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			gz.Write([]byte("<p>compressed</p>"))
			gz.Close()
		case "/limited":
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	agents := NewUserAgentPool(config.DefaultUserAgents, 0.3, nil)
	f, err := NewHTTPFetcher(testSettings(nil), agents, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL+"/ok"))
	if err != nil {
		t.Fatalf("fetch /ok: %v", err)
	}
	if !strings.Contains(resp.Text(), "Élection") || resp.Tier != TierHTTP {
		t.Errorf("unexpected body/tier: %q %q", resp.Text(), resp.Tier)
	}

	resp, err = f.Fetch(context.Background(), mustRequest(t, srv.URL+"/gzip"))
	if err != nil || resp.Text() != "<p>compressed</p>" {
		t.Errorf("gzip decode failed: %v %q", err, resp.Text())
	}

	_, err = f.Fetch(context.Background(), mustRequest(t, srv.URL+"/missing"))
	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != 404 || IsRetryable(err) {
		t.Errorf("404 should be a non-retryable FetchError, got %v", err)
	}

	_, err = f.Fetch(context.Background(), mustRequest(t, srv.URL+"/limited"))
	if !errors.As(err, &fe) || fe.RetryAfter != 3*time.Second || !IsRetryable(err) {
		t.Errorf("429 should be retryable with Retry-After, got %v", err)
	}
}

func TestDecodeDeclaredEncoding(t *testing.T) {
	latin1 := []byte{'S', 0xe9, 'n', 0xe9, 'g', 'a', 'l'}
	got, err := decodeBody(latin1, "iso-8859-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "Sénégal" {
		t.Errorf("decoded = %q", got)
	}

	utf := []byte("Conakry é")
	got, _ = decodeBody(utf, "utf-8", "text/html")
	if string(got) != "Conakry é" {
		t.Errorf("utf-8 passthrough = %q", got)
	}
}

type fakeRunner struct {
	name string
	args []string
	out  []byte
	err  error
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.name, r.args = name, args
	return r.out, r.err
}

func TestCurlFetcher(t *testing.T) {
	runner := &fakeRunner{out: []byte("<html>ok</html>")}
	agents := NewUserAgentPool([]string{"UA-1"}, 0, nil)
	f := NewCurlFetcher(testSettings(nil), agents, runner, testLogger)

	resp, err := f.Fetch(context.Background(), mustRequest(t, "https://ledjely.com/x/"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text() != "<html>ok</html>" || resp.Tier != TierCurl {
		t.Errorf("unexpected response %q %q", resp.Text(), resp.Tier)
	}

	args := strings.Join(runner.args, " ")
	for _, want := range []string{"-s -L", "--max-time 60", "--compressed", "Accept: text/html", "-A UA-1", "https://ledjely.com/x/"} {
		if !strings.Contains(args, want) {
			t.Errorf("curl args %q missing %q", args, want)
		}
	}
	if runner.name != "curl" {
		t.Errorf("expected curl binary, got %q", runner.name)
	}

	runner.out = nil
	if _, err := f.Fetch(context.Background(), mustRequest(t, "https://ledjely.com/y/")); !errors.Is(err, types.ErrEmptyResponse) {
		t.Errorf("empty output should fail, got %v", err)
	}
}

func TestCurlFetcherStatus(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		wantBody  string
		wantCode  int
		retryable bool
	}{
		{"ok", "<html>ok</html>\n" + statusMarker + "200", "<html>ok</html>", 0, false},
		{"no status line", "<html>ok</html>", "<html>ok</html>", 0, false},
		{"not found", "<html>gone</html>\n" + statusMarker + "404", "", 404, false},
		{"unavailable", "busy\n" + statusMarker + "503", "", 503, true},
		{"rate limited", "\n" + statusMarker + "429", "", 429, true},
		{"timeout", "\n" + statusMarker + "408", "", 408, true},
	}
	agents := NewUserAgentPool([]string{"UA-1"}, 0, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{out: []byte(tt.out)}
			f := NewCurlFetcher(testSettings(nil), agents, runner, testLogger)

			resp, err := f.Fetch(context.Background(), mustRequest(t, "https://ledjely.com/x/"))
			if tt.wantCode == 0 {
				if err != nil {
					t.Fatal(err)
				}
				if resp.Text() != tt.wantBody {
					t.Errorf("body = %q, want %q", resp.Text(), tt.wantBody)
				}
				return
			}
			var fe *types.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fe.StatusCode != tt.wantCode || fe.Tier != TierCurl || fe.Retryable != tt.retryable {
				t.Errorf("got status=%d tier=%s retryable=%v", fe.StatusCode, fe.Tier, fe.Retryable)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v", IsRetryable(err))
			}
		})
	}

	if args := strings.Join(NewCurlFetcher(testSettings(nil), agents, nil, testLogger).Args("https://x.gn/", ""), " "); !strings.Contains(args, "-w \n"+statusMarker+"%{http_code}") {
		t.Errorf("curl args %q do not request the status code", args)
	}
}

func TestPlanFor(t *testing.T) {
	anti := []string{"africaguinee"}
	tests := []struct {
		name string
		src  config.Source
		want []string
	}{
		{"anti-bot by site type", config.Source{Name: "Africa Guinee", SiteType: "africaguinee", Strategy: "wordpress"}, []string{TierBrowser, TierCurl, TierHTTP}},
		{"anti-bot by name", config.Source{Name: "AfricaGuinee", Strategy: "generic"}, []string{TierBrowser, TierCurl, TierHTTP}},
		{"wordpress", config.Source{Name: "Ledjely", Strategy: "wordpress"}, []string{TierCurl, TierHTTP}},
		{"generic", config.Source{Name: "Other", Strategy: "generic"}, []string{TierHTTP}},
		{"override", config.Source{Name: "Ledjely", Strategy: "wordpress", FetchTiers: []string{"http"}}, []string{TierHTTP}},
	}
	for _, tt := range tests {
		if got := PlanFor(tt.src, anti); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: PlanFor = %v, want %v", tt.name, got, tt.want)
		}
	}
}

type stubFetcher struct {
	tier  string
	body  string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return types.NewRawResponse(req, s.tier, []byte(s.body), "", 0), nil
}
func (s *stubFetcher) Close() error { return nil }
func (s *stubFetcher) Type() string { return s.tier }

func TestTieredFallsBackOnSmallBody(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Clock = NewFakeClock(time.Now())

	curl := &stubFetcher{tier: TierCurl, body: "<html>tiny</html>"}
	httpTier := &stubFetcher{tier: TierHTTP, body: "<html>also small but final</html>"}
	tiered := NewTiered([]Fetcher{curl, httpTier}, policy, 1000, testLogger)

	resp, err := tiered.Fetch(context.Background(), mustRequest(t, "https://example.org/a"))
	if err != nil {
		t.Fatalf("final tier should accept small body: %v", err)
	}
	if resp.Tier != TierHTTP || curl.calls != 1 || httpTier.calls != 1 {
		t.Errorf("tier = %s, calls curl=%d http=%d", resp.Tier, curl.calls, httpTier.calls)
	}
}

func TestTieredSkipsChallengePage(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Clock = NewFakeClock(time.Now())

	challenge := "<html><head><title>Just a moment...</title></head>" + strings.Repeat(" ", 2000) + "</html>"
	browser := &stubFetcher{tier: TierBrowser, body: challenge}
	curl := &stubFetcher{tier: TierCurl, body: "<html>" + strings.Repeat("article ", 200) + "</html>"}
	tiered := NewTiered([]Fetcher{browser, curl}, policy, 1000, testLogger)

	resp, err := tiered.Fetch(context.Background(), mustRequest(t, "https://example.org/a"))
	if err != nil || resp.Tier != TierCurl {
		t.Fatalf("expected curl response, got %v %v", resp, err)
	}
	if got := tiered.Plan(); !reflect.DeepEqual(got, []string{TierBrowser, TierCurl}) {
		t.Errorf("Plan = %v", got)
	}
}

func TestTieredAllFail(t *testing.T) {
	policy := DefaultRetryPolicy()
	clock := NewFakeClock(time.Now())
	policy.Clock = clock

	a := &stubFetcher{tier: TierCurl, err: &types.FetchError{StatusCode: 503, Err: errors.New("down")}}
	b := &stubFetcher{tier: TierHTTP, err: &types.FetchError{StatusCode: 403, Err: errors.New("forbidden")}}
	tiered := NewTiered([]Fetcher{a, b}, policy, 1000, testLogger)

	_, err := tiered.Fetch(context.Background(), mustRequest(t, "https://example.org/a"))
	if !errors.Is(err, types.ErrAllTiersFailed) {
		t.Fatalf("expected ErrAllTiersFailed, got %v", err)
	}
	if a.calls != 3 || b.calls != 1 {
		t.Errorf("calls: transient tier %d (want 3), forbidden tier %d (want 1)", a.calls, b.calls)
	}
	if len(clock.Sleeps()) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %v", clock.Sleeps())
	}
}

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		html string
		want ChallengeKind
	}{
		{"<title>Just a moment...</title>", ChallengeCloudflare},
		{`<div class="cf-turnstile" data-sitekey="x"></div>`, ChallengeTurnstile},
		{`<div class="g-recaptcha" data-sitekey="x"></div>`, ChallengeReCaptcha},
		{"<html><body><article>Le scrutin</article></body></html>", ChallengeNone},
	}
	for _, tt := range tests {
		if got := DetectChallenge(tt.html); got != tt.want {
			t.Errorf("DetectChallenge(%q) = %q, want %q", tt.html, got, tt.want)
		}
	}
}
