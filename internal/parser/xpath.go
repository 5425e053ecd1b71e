package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Meta properties read as last-resort fallbacks.
const (
	MetaPublishedTime = "article:published_time"
	MetaOGTitle       = "og:title"
	MetaOGDescription = "og:description"
)

// metaContent returns the content attribute of the first <meta> whose
// property or name equals key. The goquery document shares its node tree
// with htmlquery, so no second parse is needed.
func metaContent(doc *goquery.Document, key string) string {
	root := rootNode(doc)
	if root == nil {
		return ""
	}
	expr := fmt.Sprintf(`//meta[@property=%[1]q or @name=%[1]q]`, key)
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return ""
	}
	for _, n := range nodes {
		if v := strings.TrimSpace(htmlquery.SelectAttr(n, "content")); v != "" {
			return v
		}
	}
	return ""
}

// jsonLDScripts returns the raw bodies of every ld+json script block.
func jsonLDScripts(doc *goquery.Document) []string {
	root := rootNode(doc)
	if root == nil {
		return nil
	}
	nodes, err := htmlquery.QueryAll(root, `//script[@type="application/ld+json"]`)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if body := strings.TrimSpace(htmlquery.InnerText(n)); body != "" {
			out = append(out, body)
		}
	}
	return out
}

func rootNode(doc *goquery.Document) *html.Node {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil
	}
	return doc.Nodes[0]
}
