package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	// Removed before text extraction on generic pages.
	genericBoilerplate = []string{
		"script", "style", "nav", "header", "footer", "aside",
		".share", ".social", ".related", ".comments", ".advertisement", ".ad",
	}

	noiseFollowers = regexp.MustCompile(`(?i)Followers\s*Subscribers\s*Followers?`)
	noisePartager  = regexp.MustCompile(`(?i)Partager\s*(sur\s*)?(Facebook|Twitter|WhatsApp|LinkedIn|Email)?`)
	noiseShare     = regexp.MustCompile(`(?i)Share\s*(on\s*)?(Facebook|Twitter|WhatsApp|LinkedIn|Email)?`)
	// "Lire aussi: ..." teaser up to the next full stop or the end.
	noiseLireAussi = regexp.MustCompile(`(?i)Lire aussi\s*:[^.]*`)

	whitespace = regexp.MustCompile(`\s+`)
)

// cleanText clones sel, drops boilerplate elements, extracts text with a
// space between text nodes, strips noise phrases and collapses whitespace.
func cleanText(sel *goquery.Selection, remove []string, noise []*regexp.Regexp) string {
	clone := sel.Clone()
	if len(remove) > 0 {
		clone.Find(strings.Join(remove, ", ")).Remove()
	}

	text := whitespace.ReplaceAllString(spacedText(clone), " ")
	if len(noise) == 0 {
		return strings.TrimSpace(text)
	}
	for _, re := range noise {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// spacedText joins every non-blank text node with a single space.
func spacedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
