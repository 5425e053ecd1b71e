package parser

import (
	"github.com/blackdavinci/guinea-election-monitor/internal/config"
)

var (
	genericTitles = []string{
		"h1.entry-title", "h1.post-title", "h1.article-title",
		"article h1", ".post h1", "h1",
	}
	genericContentFallbacks = []string{
		"div.entry-content", "div.post-content", "div.article-content",
		"div.article-body", "article .content", "article",
	}
	genericDateFallbacks = []string{
		"time.entry-date", "time.published", "time[datetime]",
		"span.date", "span.post-date", ".meta time", ".entry-meta time",
	}
)

// newGeneric builds the strategy for arbitrary sites driven entirely by
// configured selectors with common fallbacks.
func newGeneric(configured config.Selectors) *extractor {
	s := merge(defaultGeneric, configured)
	tags := s.Tags
	if len(tags) == 0 {
		tags = []string{"a[rel='tag']"}
	}
	return &extractor{
		kind:      config.StrategyGeneric,
		selectors: s,
		title:     NewChain("title", LongerThan(5), First(genericTitles...)),
		ogTitle:   true,
		content: NewChain("content", LongerThan(100),
			First(s.Content...),
			First(genericContentFallbacks...),
		),
		dates:  append(append([]string(nil), s.Date...), genericDateFallbacks...),
		remove: genericBoilerplate,
		tags:   tags,
	}
}
