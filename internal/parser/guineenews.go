package parser

import (
	"regexp"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
)

var (
	guineenewsContentFallbacks = []string{
		"div.post-content", "div.article-content", "div.article-body",
		"div.content-wrap", "article .content", "article",
	}

	guineenewsBoilerplate = []string{
		"script", "style", "nav", "aside", "iframe", "noscript",
		".widget", ".tagcloud", ".sidebar", ".share-buttons",
		".advertisement", ".ad", ".related-posts",
	}

	guineenewsTags = []string{
		".post-tags a", ".entry-tags a", ".tags a", ".tag-links a", "a.tag",
	}

	guineenewsNoise = []*regexp.Regexp{noiseFollowers, noisePartager, noiseShare}
)

// newGuineenews builds the strategy for guineenews.org. Several
// .entry-content blocks can appear on one page, so the richest wins.
func newGuineenews(configured config.Selectors) *extractor {
	s := merge(defaultGuineenews, configured)
	return &extractor{
		kind:      config.StrategyGuineenews,
		selectors: s,
		title:     NewChain("title", LongerThan(5), First(genericTitles...)),
		content: NewChain("content", LongerThan(100),
			Richest(".entry-content"),
			First(guineenewsContentFallbacks...),
		),
		dates:  append(append([]string(nil), s.Date...), genericDateFallbacks...),
		remove: guineenewsBoilerplate,
		noise:  guineenewsNoise,
		tags:   append(append([]string(nil), s.Tags...), guineenewsTags...),
	}
}
