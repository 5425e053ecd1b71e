package parser

import (
	"strings"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
)

func sel(list ...string) []string { return list }

// wordPressProfiles are the selector sets of known WordPress themes, keyed
// by site_type.
var wordPressProfiles = map[string]config.Selectors{
	"guinee7": {
		ArticleList: sel("article"),
		Title:       sel("h2.entry-title a", "h3.entry-title a", "h2 a", "h3 a"),
		Link:        sel("h2.entry-title a", "h3.entry-title a", "h2 a", "h3 a"),
		Date:        sel("time[datetime]"),
		Content:     sel(".entry-content"),
		Tags:        sel("a[rel='tag']"),
	},
	"ledjely": {
		ArticleList: sel("article.hentry", "article.penci-post-item"),
		Title:       sel("h3 a", "h2 a", ".penci__post-title a"),
		Link:        sel("h3 a", "h2 a", ".penci__post-title a"),
		Date:        sel("time[datetime]"),
		Content:     sel(".penci-entry-content", ".entry-content", ".post-content"),
		Tags:        sel("a[rel='tag']", ".penci-post-tags a"),
	},
	"guinee360": {
		ArticleList: sel("article", ".post-item"),
		Title:       sel("h2 a", "h3 a", ".entry-title a"),
		Link:        sel("h2 a", "h3 a", ".entry-title a"),
		Date:        sel("time[datetime]", ".post-date"),
		Content:     sel(".entry-content", ".post-content"),
		Tags:        sel("a[rel='tag']"),
	},
	"mosaiqueguinee": {
		ArticleList: sel("article.jeg_post"),
		Title:       sel("h3.jeg_post_title a", "h3 a", "h2 a"),
		Link:        sel("h3.jeg_post_title a", "h3 a", "h2 a"),
		Date:        sel("time[datetime]", ".jeg_meta_date"),
		Content:     sel(".jeg_inner_content .content-inner", ".entry-content", ".content-inner"),
		Tags:        sel("a[rel='tag']", ".jeg_post_tags a"),
	},
	"visionguinee": {
		ArticleList: sel("article", ".post"),
		Title:       sel("h2 a", "h3 a", ".entry-title a"),
		Link:        sel("h2 a", "h3 a", ".entry-title a"),
		Date:        sel("time[datetime]"),
		Content:     sel(".entry-content", ".post-content"),
		Tags:        sel("a[rel='tag']"),
	},
	"mediaguinee": {
		ArticleList: sel(".listing-item", "article"),
		Title:       sel("h2.title a", "h3.title a", ".title a", "h2 a", "h3 a"),
		Link:        sel("h2.title a", "h3.title a", ".title a", "h2 a", "h3 a"),
		Date:        sel("time[datetime]"),
		Content:     sel(".entry-content", ".td-post-content", ".post-content"),
		Tags:        sel("a[rel='tag']"),
	},
	"guineematin": {
		ArticleList: sel(".td-module-container", "article"),
		Title:       sel(".td-module-title a", "h3 a", "h2 a"),
		Link:        sel(".td-module-title a", "h3 a", "h2 a"),
		Date:        sel("time[datetime]", ".td-post-date"),
		Content:     sel(".td-post-content", ".entry-content"),
		Tags:        sel("a[rel='tag']", ".td-tags a"),
	},
	"guinee114": {
		ArticleList: sel("article", ".post"),
		Title:       sel("h2 a", "h3 a", ".entry-title a"),
		Link:        sel("h2 a", "h3 a", ".entry-title a"),
		Date:        sel("time[datetime]"),
		Content:     sel(".entry-content", ".post-content"),
		Tags:        sel("a[rel='tag']"),
	},
	"africaguinee": {
		ArticleList: sel("article", ".post"),
		Title:       sel("h2 a", "h3 a", ".entry-title a"),
		Link:        sel("h2 a", "h3 a", ".entry-title a"),
		Date:        sel("time[datetime]", ".post-date"),
		Content:     sel(".entry-content", ".post-content"),
		Tags:        sel("a[rel='tag']"),
	},
}

var (
	defaultWordPress = config.Selectors{
		ArticleList: sel("article"),
		Title:       sel("h2 a", "h3 a", ".entry-title a"),
		Link:        sel("h2 a", "h3 a", ".entry-title a"),
		Date:        sel("time[datetime]"),
		Content:     sel(".entry-content"),
		Tags:        sel("a[rel='tag']"),
	}

	defaultGuineenews = config.Selectors{
		ArticleList: sel("article.listing-item"),
		Title:       sel("h2 a"),
		Link:        sel("h2 a"),
		Date:        sel("time"),
		Content:     sel("div.entry-content"),
		Tags:        sel("a[rel='tag']"),
	}

	defaultGeneric = config.Selectors{
		ArticleList: sel("article"),
		Title:       sel("h2 a"),
		Link:        sel("h2 a"),
		Date:        sel("time"),
		Content:     sel("div.content"),
	}
)

// WordPressProfile returns the selector set for a site_type, falling back
// to the generic WordPress theme selectors.
func WordPressProfile(siteType string) config.Selectors {
	if p, ok := wordPressProfiles[strings.ToLower(siteType)]; ok {
		return p
	}
	return defaultWordPress
}

// ProfileNames lists the known WordPress site types.
func ProfileNames() []string {
	names := make([]string, 0, len(wordPressProfiles))
	for name := range wordPressProfiles {
		names = append(names, name)
	}
	return names
}

// merge overlays configured selectors on a profile, field by field.
func merge(base, override config.Selectors) config.Selectors {
	pick := func(b, o []string) []string {
		if len(o) > 0 {
			return o
		}
		return b
	}
	return config.Selectors{
		ArticleList: pick(base.ArticleList, override.ArticleList),
		Title:       pick(base.Title, override.Title),
		Link:        pick(base.Link, override.Link),
		Date:        pick(base.Date, override.Date),
		Content:     pick(base.Content, override.Content),
		Tags:        pick(base.Tags, override.Tags),
	}
}
