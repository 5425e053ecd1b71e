package config

import (
	"fmt"
	"strings"
)

// Strategy kinds.
const (
	StrategyGeneric    = "generic"
	StrategyWordPress  = "wordpress"
	StrategyGuineenews = "guineenews"
)

// DefaultPagination is the WordPress paging convention appended to category URLs.
const DefaultPagination = "page/%d/"

// Selectors maps extraction fields to ordered CSS selector lists.
type Selectors struct {
	ArticleList []string `mapstructure:"article_list" yaml:"article_list,omitempty"`
	Title       []string `mapstructure:"title"        yaml:"title,omitempty"`
	Link        []string `mapstructure:"link"         yaml:"link,omitempty"`
	Date        []string `mapstructure:"date"         yaml:"date,omitempty"`
	Content     []string `mapstructure:"content"      yaml:"content,omitempty"`
	Tags        []string `mapstructure:"tags"         yaml:"tags,omitempty"`
}

// Category is one listing URL traversed for a source.
type Category struct {
	URL   string `mapstructure:"url"   yaml:"url"`
	Label string `mapstructure:"label" yaml:"label"`
}

// Source describes one news site.
type Source struct {
	Name       string     `mapstructure:"name"        yaml:"name"`
	BaseURL    string     `mapstructure:"base_url"    yaml:"base_url"`
	Strategy   string     `mapstructure:"strategy"    yaml:"strategy"`
	SiteType   string     `mapstructure:"site_type"   yaml:"site_type,omitempty"`
	Selectors  Selectors  `mapstructure:"selectors"   yaml:"selectors,omitempty"`
	Encoding   string     `mapstructure:"encoding"    yaml:"encoding,omitempty"`
	Categories []Category `mapstructure:"categories"  yaml:"categories"`
	Active     bool       `mapstructure:"active"      yaml:"active"`
	Pagination string     `mapstructure:"pagination"  yaml:"pagination,omitempty"`
	FetchTiers []string   `mapstructure:"fetch_tiers" yaml:"fetch_tiers,omitempty"`
}

// Normalize fills defaults and trims selector lists. It returns the receiver.
func (s *Source) Normalize() *Source {
	s.Name = strings.TrimSpace(s.Name)
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	s.Strategy = strings.ToLower(strings.TrimSpace(s.Strategy))
	if s.Strategy == "" {
		s.Strategy = StrategyGeneric
	}
	s.SiteType = strings.ToLower(strings.TrimSpace(s.SiteType))
	if s.Encoding == "" {
		s.Encoding = "utf-8"
	}
	if s.Pagination == "" {
		s.Pagination = DefaultPagination
	}
	s.Selectors.ArticleList = cleanList(s.Selectors.ArticleList)
	s.Selectors.Title = cleanList(s.Selectors.Title)
	s.Selectors.Link = cleanList(s.Selectors.Link)
	s.Selectors.Date = cleanList(s.Selectors.Date)
	s.Selectors.Content = cleanList(s.Selectors.Content)
	s.Selectors.Tags = cleanList(s.Selectors.Tags)
	for i := range s.Categories {
		s.Categories[i].URL = strings.TrimSpace(s.Categories[i].URL)
		if strings.TrimSpace(s.Categories[i].Label) == "" {
			s.Categories[i].Label = "Non classé"
		}
	}
	tiers := s.FetchTiers[:0]
	for _, t := range cleanList(s.FetchTiers) {
		tiers = append(tiers, strings.ToLower(t))
	}
	s.FetchTiers = tiers
	return s
}

// PageURL returns the listing URL for page n. Page 1 is the bare category URL.
func (s *Source) PageURL(categoryURL string, n int) string {
	if n <= 1 {
		return categoryURL
	}
	pattern := s.Pagination
	if pattern == "" {
		pattern = DefaultPagination
	}
	suffix := fmt.Sprintf(pattern, n)
	switch {
	case strings.HasPrefix(suffix, "?"), strings.HasPrefix(suffix, "&"):
		if strings.Contains(categoryURL, "?") && strings.HasPrefix(suffix, "?") {
			suffix = "&" + suffix[1:]
		}
		return categoryURL + suffix
	case strings.HasSuffix(categoryURL, "/"):
		return categoryURL + suffix
	default:
		return categoryURL + "/" + suffix
	}
}

// Matches reports whether name identifies this source (case-insensitive
// on the name or the site type).
func (s *Source) Matches(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	return strings.ToLower(s.Name) == name || (s.SiteType != "" && s.SiteType == name)
}

// Catalog is the read-only set of sources and keywords resolved once per run.
type Catalog struct {
	Sources  []Source
	Taxonomy Taxonomy
}

// Active returns the active sources, optionally restricted to names.
// Unknown names are returned separately so callers can report them.
func (c *Catalog) Active(names []string) ([]Source, []string) {
	var out []Source
	if len(names) == 0 {
		for _, s := range c.Sources {
			if s.Active {
				out = append(out, s)
			}
		}
		return out, nil
	}

	var unknown []string
	for _, n := range names {
		found := false
		for _, s := range c.Sources {
			if s.Matches(n) {
				found = true
				if s.Active {
					out = append(out, s)
				}
				break
			}
		}
		if !found {
			unknown = append(unknown, n)
		}
	}
	return out, unknown
}

// Find returns the source identified by name.
func (c *Catalog) Find(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Matches(name) {
			return s, true
		}
	}
	return Source{}, false
}

func cleanList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
