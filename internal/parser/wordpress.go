package parser

import (
	"regexp"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
)

var (
	wordPressListFallbacks = []string{"article", ".hentry", ".td-module-container"}

	wordPressHeadings = []string{
		"h3.jeg_post_title a",
		"h2.entry-title a",
		"h3.entry-title a",
		".td-module-title a",
		".post-title a",
	}

	wordPressTitles = []string{
		"h1.entry-title", "h1.post-title", "h1.penci__post-title",
		"h1.jeg_post_title", "h1.td-post-title", "h1.article-title",
		"article h1", ".post h1", "h1",
	}

	wordPressContentFallbacks = []string{
		".entry-content", ".post-content", ".td-post-content",
		".penci-entry-content", ".jeg_inner_content", ".content-inner",
		"article .content", "article",
	}

	wordPressBoilerplate = []string{
		"script", "style", "nav", "aside", "iframe", "noscript",
		".widget", ".tagcloud", ".sidebar", ".share-buttons",
		".advertisement", ".ad", ".related-posts",
		".jeg_share_button", ".penci-social-share", ".td-post-sharing", ".jeg_sharebar",
	}

	wordPressNoise = []*regexp.Regexp{noiseFollowers, noisePartager, noiseShare, noiseLireAussi}
)

// newWordPress builds the strategy for WordPress themes. The site_type
// profile supplies selectors; configured ones override it per field.
func newWordPress(siteType string, configured config.Selectors) *extractor {
	s := merge(WordPressProfile(siteType), configured)
	return &extractor{
		kind:             config.StrategyWordPress,
		selectors:        s,
		listFallbacks:    wordPressListFallbacks,
		headingSelectors: wordPressHeadings,
		title:            NewChain("title", LongerThan(5), First(wordPressTitles...)),
		ogTitle:          true,
		content: NewChain("content", LongerThan(100),
			Richest(s.Content...),
			First(wordPressContentFallbacks...),
		),
		dates:  s.Date,
		remove: wordPressBoilerplate,
		noise:  wordPressNoise,
		tags:   s.Tags,
		tagMax: 50,
	}
}
