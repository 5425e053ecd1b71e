package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// Strategy extracts listing entries and article content for one source.
// Implementations are safe for concurrent use.
type Strategy interface {
	// Kind returns the strategy tag (generic, wordpress, guineenews).
	Kind() string
	// ParseList returns the article references on a listing page.
	ParseList(html string) ([]types.ListEntry, error)
	// ParseContent returns whatever could be extracted from an article page.
	// Missing fields are left empty; only unparseable input is an error.
	ParseContent(html string) (*types.ArticleContent, error)
}

// New returns the strategy variant selected by the source's strategy tag.
func New(src config.Source, loc *time.Location, logger *slog.Logger) (Strategy, error) {
	if loc == nil {
		loc = time.UTC
	}
	var base *url.URL
	if src.BaseURL != "" {
		u, err := url.Parse(src.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("source %s: base url: %w", src.Name, err)
		}
		base = u
	}

	var e *extractor
	switch src.Strategy {
	case config.StrategyGeneric, "":
		e = newGeneric(src.Selectors)
	case config.StrategyWordPress:
		e = newWordPress(src.SiteType, src.Selectors)
	case config.StrategyGuineenews:
		e = newGuineenews(src.Selectors)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownStrategy, src.Strategy)
	}
	e.base = base
	e.loc = loc
	e.logger = logger.With("component", "parser", "strategy", e.kind, "source", src.Name)
	return e, nil
}

// extractor is the shared engine behind every strategy variant. The
// variants differ only in the data they load into it.
type extractor struct {
	kind      string
	selectors config.Selectors

	// Container selectors tried when the configured list selector finds
	// nothing.
	listFallbacks []string
	// Title links searched page-wide when few containers exist. Nil
	// disables heading mode.
	headingSelectors []string

	title   Chain
	ogTitle bool
	content Chain
	dates   []string
	remove  []string
	noise   []*regexp.Regexp
	tags    []string
	tagMax  int

	base   *url.URL
	loc    *time.Location
	logger *slog.Logger
}

func (e *extractor) Kind() string { return e.kind }

// ParseList implements Strategy.
func (e *extractor) ParseList(html string) ([]types.ListEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	containers := doc.Find(strings.Join(e.selectors.ArticleList, ", "))
	if containers.Length() == 0 {
		for _, s := range e.listFallbacks {
			if containers = doc.Find(s); containers.Length() > 0 {
				e.logger.Debug("using fallback container selector", "selector", s)
				break
			}
		}
	}

	if e.headingSelectors != nil && containers.Length() < 3 {
		if headings := e.headingEntries(doc); len(headings) > containers.Length() {
			return headings, nil
		}
	}

	var entries []types.ListEntry
	containers.Each(func(_ int, c *goquery.Selection) {
		if entry, ok := e.listEntry(c); ok {
			entries = append(entries, entry)
		}
	})
	e.logger.Debug("listing parsed", "containers", containers.Length(), "entries", len(entries))
	return entries, nil
}

func (e *extractor) listEntry(c *goquery.Selection) (types.ListEntry, bool) {
	var title, href string
	for _, s := range e.selectors.Title {
		el := c.Find(s).First()
		if el.Length() == 0 {
			continue
		}
		t := normalizedText(el)
		h := strings.TrimSpace(el.AttrOr("href", ""))
		if t != "" && title == "" {
			title = t
		}
		if t != "" && h != "" {
			title, href = t, h
			break
		}
	}
	if href == "" {
		for _, s := range e.selectors.Link {
			if h := strings.TrimSpace(c.Find(s).First().AttrOr("href", "")); h != "" {
				href = h
				break
			}
		}
	}

	link := e.absolute(href)
	if title == "" || link == "" {
		return types.ListEntry{}, false
	}

	entry := types.ListEntry{Title: title, URL: link}
	for _, s := range e.selectors.Date {
		el := c.Find(s).First()
		if el.Length() == 0 {
			continue
		}
		if raw := elementDate(el); raw != "" {
			entry.PublishedAt = ParseDate(raw, e.loc)
			break
		}
	}
	return entry, true
}

// headingEntries finds article links directly from title headings. The
// first selector with any match wins. Dates are unknown in this mode.
func (e *extractor) headingEntries(doc *goquery.Document) []types.ListEntry {
	var entries []types.ListEntry
	seen := make(map[string]bool)
	for _, s := range e.headingSelectors {
		links := doc.Find(s)
		if links.Length() == 0 {
			continue
		}
		links.Each(func(_ int, a *goquery.Selection) {
			title := normalizedText(a)
			link := e.absolute(a.AttrOr("href", ""))
			if utf8.RuneCountInString(title) <= 5 || link == "" || seen[link] {
				return
			}
			seen[link] = true
			entries = append(entries, types.ListEntry{Title: title, URL: link})
		})
		break
	}
	return entries
}

// ParseContent implements Strategy.
func (e *extractor) ParseContent(html string) (*types.ArticleContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse article: %w", err)
	}

	out := &types.ArticleContent{
		Title: e.title.Text(doc.Selection),
	}
	if out.Title == "" && e.ogTitle {
		out.Title = metaContent(doc, MetaOGTitle)
	}

	if el, _, ok := e.content.Find(doc.Selection); ok {
		out.Content = cleanText(el, e.remove, e.noise)
	}
	if out.Content == "" {
		out.Content = metaContent(doc, MetaOGDescription)
	}
	if out.Content == "" {
		e.logger.Debug("no content matched", "chain", e.content.Name)
	}

	out.PublishedAt = e.contentDate(doc)
	out.Tags = e.extractTags(doc)
	return out, nil
}

// contentDate tries each date selector, then the published_time meta tag,
// then JSON-LD.
func (e *extractor) contentDate(doc *goquery.Document) *time.Time {
	for _, s := range e.dates {
		var found *time.Time
		doc.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if raw := elementDate(el); raw != "" {
				found = ParseDate(raw, e.loc)
			}
			return found == nil
		})
		if found != nil {
			return found
		}
	}
	if raw := metaContent(doc, MetaPublishedTime); raw != "" {
		if t := ParseDate(raw, e.loc); t != nil {
			return t
		}
	}
	if a, ok := extractJSONLD(doc); ok {
		return ParseDate(a.DatePublished, e.loc)
	}
	return nil
}

// extractTags returns the tags of the first selector that yields any.
func (e *extractor) extractTags(doc *goquery.Document) []string {
	for _, s := range e.tags {
		var tags []string
		seen := make(map[string]bool)
		doc.Find(s).Each(func(_ int, el *goquery.Selection) {
			tag := normalizedText(el)
			if tag == "" || seen[tag] {
				return
			}
			if e.tagMax > 0 && utf8.RuneCountInString(tag) >= e.tagMax {
				return
			}
			seen[tag] = true
			tags = append(tags, tag)
		})
		if len(tags) > 0 {
			return tags
		}
	}
	return nil
}

// absolute resolves href against the source base URL. Fragment-only and
// javascript links are dropped.
func (e *extractor) absolute(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if e.base != nil {
		u = e.base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// elementDate prefers the datetime attribute over the visible text.
func elementDate(el *goquery.Selection) string {
	if dt := strings.TrimSpace(el.AttrOr("datetime", "")); dt != "" {
		return dt
	}
	return normalizedText(el)
}
