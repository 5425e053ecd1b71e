package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout         = errors.New("request timed out")
	ErrMaxRetries      = errors.New("max retries exceeded")
	ErrEmptyResponse   = errors.New("empty response body")
	ErrBodyTooSmall    = errors.New("response body below minimum size")
	ErrInvalidURL      = errors.New("invalid URL")
	ErrAllTiersFailed  = errors.New("all fetch tiers failed")
	ErrNoContent       = errors.New("no content extracted")
	ErrUnknownStrategy = errors.New("unknown extraction strategy")
	ErrUnknownSource   = errors.New("unknown source")
	ErrDuplicate       = errors.New("duplicate article")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	Tier       string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	prefix := "fetch error"
	if e.Tier != "" {
		prefix = fmt.Sprintf("fetch error [%s]", e.Tier)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s for %s (status %d): %v", prefix, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s for %s: %v", prefix, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ExtractionError reports a page whose selectors matched nothing usable.
// It is informational: strategies return partial results alongside it.
type ExtractionError struct {
	URL   string
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error for %s (field=%q): %v", e.URL, e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur in a storage backend.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SourceError isolates a failure to a single source during a run.
type SourceError struct {
	Source string
	Stage  string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %q failed at %s: %v", e.Source, e.Stage, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the candidate pipeline.
type PipelineError struct {
	Stage     string
	Candidate *Candidate
	Err       error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
