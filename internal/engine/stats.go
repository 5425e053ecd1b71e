package engine

import "time"

// StopReason explains why pagination of a category ended.
type StopReason string

const (
	StopFetchFailed StopReason = "fetch_failed"
	StopEmptyList   StopReason = "empty_list"
	StopExhausted   StopReason = "exhausted"
	StopShortPage   StopReason = "short_page"
	StopMaxPages    StopReason = "max_pages"
	StopCanceled    StopReason = "canceled"
)

// CategoryStats describes one category crawl.
type CategoryStats struct {
	Category      string     `json:"category"`
	URL           string     `json:"url"`
	Pages         int        `json:"pages"`
	Listed        int        `json:"listed"`
	Duplicates    int        `json:"duplicates"`
	TooOld        int        `json:"too_old"`
	TooRecent     int        `json:"too_recent"`
	InWindow      int        `json:"in_window"`
	UnknownDate   int        `json:"unknown_date"`
	Fetched       int        `json:"fetched"`
	FetchErrors   int        `json:"fetch_errors"`
	Accepted      int        `json:"accepted"`
	Rejected      int        `json:"rejected"`
	StopReason    StopReason `json:"stop_reason"`
	StopPage      int        `json:"stop_page"`
	Err           string     `json:"error,omitempty"`
	Duration      string     `json:"duration"`
	duration      time.Duration
}

// SourceStats aggregates the category crawls of one source run.
type SourceStats struct {
	Source     string          `json:"source"`
	Categories []CategoryStats `json:"categories"`
}

// Add appends a finished category.
func (s *SourceStats) Add(c CategoryStats) {
	s.Categories = append(s.Categories, c)
}

// Totals sums the counters of every category.
func (s *SourceStats) Totals() CategoryStats {
	var t CategoryStats
	for _, c := range s.Categories {
		t.Pages += c.Pages
		t.Listed += c.Listed
		t.Duplicates += c.Duplicates
		t.TooOld += c.TooOld
		t.TooRecent += c.TooRecent
		t.InWindow += c.InWindow
		t.UnknownDate += c.UnknownDate
		t.Fetched += c.Fetched
		t.FetchErrors += c.FetchErrors
		t.Accepted += c.Accepted
		t.Rejected += c.Rejected
		t.duration += c.duration
	}
	t.Duration = t.duration.String()
	return t
}

// StopReasons counts categories per stop reason.
func (s *SourceStats) StopReasons() map[StopReason]int {
	out := make(map[StopReason]int)
	for _, c := range s.Categories {
		out[c.StopReason]++
	}
	return out
}

// AllFailed reports whether every category stopped on a fetch failure of
// its first page.
func (s *SourceStats) AllFailed() bool {
	if len(s.Categories) == 0 {
		return false
	}
	for _, c := range s.Categories {
		if c.StopReason != StopFetchFailed || c.StopPage != 1 {
			return false
		}
	}
	return true
}
