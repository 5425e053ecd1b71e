package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Page kinds used for throttling and logging.
const (
	KindList    = "list"
	KindArticle = "article"
)

// Request represents a single page fetch.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Encoding is the declared charset of the source (e.g. "utf-8", "iso-8859-1").
	Encoding string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Timeout overrides the fetcher timeout for this request.
	Timeout time.Duration

	// Kind is KindList or KindArticle.
	Kind string

	// Source is the name of the source the page belongs to.
	Source string
}

// NewRequest creates a GET request for the given absolute URL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return &Request{
		URL:     u,
		Headers: make(http.Header),
		Kind:    KindArticle,
	}, nil
}

// URLString returns the request URL as a string.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Clone returns a shallow copy with its own header map.
func (r *Request) Clone() *Request {
	c := *r
	c.Headers = r.Headers.Clone()
	if c.Headers == nil {
		c.Headers = make(http.Header)
	}
	return &c
}
