package fetcher

import (
	"crypto/tls"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// StealthConfig shapes the headless browser so it looks like a regular
// desktop visitor from the region.
type StealthConfig struct {
	ViewportWidth  int
	ViewportHeight int
	Timezone       string
	Locale         string
	UserDataDir    string
}

// DefaultStealthConfig returns a stealth configuration that mimics a typical desktop browser.
func DefaultStealthConfig() *StealthConfig {
	viewports := []struct{ w, h int }{
		{1920, 1080}, {1366, 768}, {1536, 864},
		{1440, 900}, {1280, 720},
	}
	vp := viewports[rand.Intn(len(viewports))]

	return &StealthConfig{
		ViewportWidth:  vp.w,
		ViewportHeight: vp.h,
		Timezone:       "Africa/Conakry",
		Locale:         "fr-FR",
	}
}

// TLSTransport is an http.RoundTripper with a browser-like TLS setup that
// fills in the navigation headers a real browser sends.
type TLSTransport struct {
	inner  *http.Transport
	logger *slog.Logger
}

// NewTLSTransport creates a transport that mimics common browser TLS fingerprints.
func NewTLSTransport(insecure bool, logger *slog.Logger) *TLSTransport {
	tlsCfg := randomTLSConfig()
	tlsCfg.InsecureSkipVerify = insecure

	return &TLSTransport{
		inner: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:     tlsCfg,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			// Decompression (including brotli) is done by the fetcher.
			DisableCompression: true,
		},
		logger: logger.With("component", "tls_transport"),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *TLSTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", AcceptLanguage)
	}
	if req.Header.Get("Sec-Fetch-Dest") == "" {
		req.Header.Set("Sec-Fetch-Dest", "document")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Sec-Fetch-Site", "none")
		req.Header.Set("Sec-Fetch-User", "?1")
	}
	if req.Header.Get("Upgrade-Insecure-Requests") == "" {
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	}

	return t.inner.RoundTrip(req)
}

// CloseIdleConnections closes idle keep-alive connections.
func (t *TLSTransport) CloseIdleConnections() {
	t.inner.CloseIdleConnections()
}

// randomTLSConfig creates a TLS config that mimics browser fingerprints.
func randomTLSConfig() *tls.Config {
	cipherSuites := [][]uint16{
		// Chrome-like
		{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
		// Firefox-like
		{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		},
	}

	return &tls.Config{
		CipherSuites: cipherSuites[rand.Intn(len(cipherSuites))],
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
			tls.CurveP384,
		},
	}
}
