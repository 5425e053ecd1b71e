package parser

import (
	"encoding/json"

	"github.com/PuerkitoBio/goquery"
)

// jsonLDArticle holds the schema.org fields used as fallbacks.
type jsonLDArticle struct {
	Headline      string
	DatePublished string
}

// extractJSONLD walks every ld+json block, including @graph arrays, and
// returns the first article-like object with a publication date.
func extractJSONLD(doc *goquery.Document) (jsonLDArticle, bool) {
	for _, raw := range jsonLDScripts(doc) {
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			continue
		}
		if a, ok := findArticle(data); ok {
			return a, true
		}
	}
	return jsonLDArticle{}, false
}

func findArticle(v any) (jsonLDArticle, bool) {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if a, ok := findArticle(item); ok {
				return a, true
			}
		}
	case map[string]any:
		if published, _ := node["datePublished"].(string); published != "" {
			headline, _ := node["headline"].(string)
			return jsonLDArticle{Headline: headline, DatePublished: published}, true
		}
		if graph, ok := node["@graph"]; ok {
			return findArticle(graph)
		}
	}
	return jsonLDArticle{}, false
}
